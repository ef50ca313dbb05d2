package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeServer is an in-memory implementation of the subset of the JSON storage
// API the client uses.
type fakeServer struct {
	t  *testing.T
	mu sync.Mutex

	buckets  map[string]*BucketMetadata
	objects  map[string]map[string]*ObjectMetadata
	contents map[string][]byte
	acls     map[string][]AccessControl
	sessions map[string]*uploadSession

	// pageSize limits listing pages so paging is exercised
	pageSize int
	// failures maps "METHOD path-prefix" to a number of 503 responses to send first
	failures map[string]int
	// requests records "METHOD escaped-path" for every request
	requests []string
	// headers records the headers of every request
	headers []http.Header
	// ignoreRange serves whole objects with 200 regardless of Range
	ignoreRange bool

	server *httptest.Server
}

type uploadSession struct {
	meta ObjectMetadata
	data []byte
}

func newFakeServer(t *testing.T) *fakeServer {
	f := &fakeServer{
		t:        t,
		buckets:  make(map[string]*BucketMetadata),
		objects:  make(map[string]map[string]*ObjectMetadata),
		contents: make(map[string][]byte),
		acls:     make(map[string][]AccessControl),
		sessions: make(map[string]*uploadSession),
		failures: make(map[string]int),
		pageSize: 2,
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeServer) URL() string {
	return f.server.URL
}

func (f *fakeServer) failNext(method, pathPrefix string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method+" "+pathPrefix] = n
}

func (f *fakeServer) requestCount(method, pathPrefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, method+" "+pathPrefix) {
			n++
		}
	}
	return n
}

func (f *fakeServer) putBucket(b *BucketMetadata) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[b.Name] = b
	f.objects[b.Name] = make(map[string]*ObjectMetadata)
}

func (f *fakeServer) putObject(bucket, name string, data []byte) *ObjectMetadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.storeObject(ObjectMetadata{Bucket: bucket, Name: name, ContentType: DefaultContentType}, data)
}

func (f *fakeServer) storeObject(meta ObjectMetadata, data []byte) *ObjectMetadata {
	prev := f.objects[meta.Bucket][meta.Name]
	meta.Generation = 1
	if prev != nil {
		meta.Generation = prev.Generation + 1
	}
	meta.Metageneration = 1
	meta.Size = uint64(len(data))
	if f.objects[meta.Bucket] == nil {
		f.objects[meta.Bucket] = make(map[string]*ObjectMetadata)
	}
	f.objects[meta.Bucket][meta.Name] = &meta
	f.contents[meta.Bucket+"/"+meta.Name] = data
	return &meta
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	http.Error(w, msg, code)
}

func (f *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	escaped := r.URL.EscapedPath()
	f.requests = append(f.requests, r.Method+" "+escaped)
	f.headers = append(f.headers, r.Header.Clone())

	for key, n := range f.failures {
		if n > 0 && strings.HasPrefix(r.Method+" "+escaped, key) {
			f.failures[key] = n - 1
			writeError(w, http.StatusServiceUnavailable, "try again later")
			return
		}
	}

	var segs []string
	for _, s := range strings.Split(strings.Trim(escaped, "/"), "/") {
		u, err := url.PathUnescape(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		segs = append(segs, u)
	}

	switch {
	case len(segs) >= 3 && segs[0] == "storage" && segs[2] == "b":
		f.serveStorage(w, r, segs[3:])
	case len(segs) == 6 && segs[0] == "upload" && segs[3] == "b" && segs[5] == "o":
		f.serveUpload(w, r, segs[4])
	case len(segs) == 3 && segs[0] == "upload" && segs[1] == "session":
		f.serveSession(w, r, segs[2])
	default:
		writeError(w, http.StatusNotFound, "no route for "+escaped)
	}
}

func (f *fakeServer) serveStorage(w http.ResponseWriter, r *http.Request, segs []string) {
	switch {
	case len(segs) == 0:
		f.serveBuckets(w, r)
	case len(segs) == 1:
		f.serveBucket(w, r, segs[0])
	case len(segs) >= 2 && (segs[1] == "acl" || segs[1] == "defaultObjectAcl"):
		if _, ok := f.buckets[segs[0]]; !ok {
			writeError(w, http.StatusNotFound, "no such bucket")
			return
		}
		f.serveACL(w, r, segs[0]+"/"+segs[1], segs[2:])
	case len(segs) == 2 && segs[1] == "o":
		f.serveObjectList(w, r, segs[0])
	case len(segs) == 3 && segs[1] == "o":
		f.serveObject(w, r, segs[0], segs[2])
	case len(segs) >= 4 && segs[1] == "o" && segs[3] == "acl":
		if f.objects[segs[0]][segs[2]] == nil {
			writeError(w, http.StatusNotFound, "no such object")
			return
		}
		f.serveACL(w, r, segs[0]+"/o/"+segs[2]+"/acl", segs[4:])
	default:
		writeError(w, http.StatusNotFound, "no route")
	}
}

func (f *fakeServer) serveBuckets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var names []string
		for name := range f.buckets {
			names = append(names, name)
		}
		slices.Sort(names)
		items := make([]BucketMetadata, 0, len(names))
		for _, n := range names {
			items = append(items, *f.buckets[n])
		}
		page, next := paginate(items, r.URL.Query().Get("pageToken"), f.pageSize)
		writeJSON(w, http.StatusOK, bucketList{Items: page, NextPageToken: next})
	case http.MethodPost:
		var b BucketMetadata
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, ok := f.buckets[b.Name]; ok {
			writeError(w, http.StatusConflict, "bucket already exists")
			return
		}
		b.Metageneration = 1
		b.ProjectNumber = r.URL.Query().Get("project")
		f.buckets[b.Name] = &b
		f.objects[b.Name] = make(map[string]*ObjectMetadata)
		writeJSON(w, http.StatusOK, b)
	default:
		writeError(w, http.StatusMethodNotAllowed, r.Method)
	}
}

func (f *fakeServer) serveBucket(w http.ResponseWriter, r *http.Request, name string) {
	b, ok := f.buckets[name]
	if !ok {
		writeError(w, http.StatusNotFound, "no such bucket")
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, b)
	case http.MethodDelete:
		if len(f.objects[name]) > 0 {
			writeError(w, http.StatusConflict, "bucket not empty")
			return
		}
		delete(f.buckets, name)
		delete(f.objects, name)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPut:
		var upd BucketMetadata
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		upd.Metageneration = b.Metageneration + 1
		f.buckets[name] = &upd
		writeJSON(w, http.StatusOK, upd)
	case http.MethodPatch:
		if !metagenerationMatches(r, b.Metageneration) {
			writeError(w, http.StatusPreconditionFailed, "metageneration mismatch")
			return
		}
		var out BucketMetadata
		if !applyMergePatch(w, r, b, &out) {
			return
		}
		out.Metageneration = b.Metageneration + 1
		f.buckets[name] = &out
		writeJSON(w, http.StatusOK, out)
	default:
		writeError(w, http.StatusMethodNotAllowed, r.Method)
	}
}

func (f *fakeServer) serveObjectList(w http.ResponseWriter, r *http.Request, bucket string) {
	objs, ok := f.objects[bucket]
	if !ok {
		writeError(w, http.StatusNotFound, "no such bucket")
		return
	}
	prefix := r.URL.Query().Get("prefix")
	var names []string
	for name := range objs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	items := make([]ObjectMetadata, 0, len(names))
	for _, n := range names {
		items = append(items, *objs[n])
	}
	page, next := paginate(items, r.URL.Query().Get("pageToken"), f.pageSize)
	writeJSON(w, http.StatusOK, objectList{Items: page, NextPageToken: next})
}

func (f *fakeServer) serveObject(w http.ResponseWriter, r *http.Request, bucket, name string) {
	o, ok := f.objects[bucket][name]
	if !ok {
		writeError(w, http.StatusNotFound, "no such object")
		return
	}
	switch r.Method {
	case http.MethodGet:
		if r.URL.Query().Get("alt") == "media" {
			f.serveMedia(w, r, f.contents[bucket+"/"+name])
			return
		}
		writeJSON(w, http.StatusOK, o)
	case http.MethodDelete:
		delete(f.objects[bucket], name)
		delete(f.contents, bucket+"/"+name)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPatch:
		if !metagenerationMatches(r, o.Metageneration) {
			writeError(w, http.StatusPreconditionFailed, "metageneration mismatch")
			return
		}
		var out ObjectMetadata
		if !applyMergePatch(w, r, o, &out) {
			return
		}
		out.Metageneration = o.Metageneration + 1
		f.objects[bucket][name] = &out
		writeJSON(w, http.StatusOK, out)
	case http.MethodPut:
		var upd ObjectMetadata
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		upd.Generation = o.Generation
		upd.Size = o.Size
		upd.Metageneration = o.Metageneration + 1
		f.objects[bucket][name] = &upd
		writeJSON(w, http.StatusOK, upd)
	default:
		writeError(w, http.StatusMethodNotAllowed, r.Method)
	}
}

func (f *fakeServer) serveMedia(w http.ResponseWriter, r *http.Request, data []byte) {
	total := int64(len(data))
	rng := r.Header.Get("Range")
	if rng == "" || f.ignoreRange {
		w.Header().Set("Content-Length", strconv.FormatInt(total, 10))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	spec := strings.TrimPrefix(rng, "bytes=")
	firstStr, lastStr, _ := strings.Cut(spec, "-")
	first, _ := strconv.ParseInt(firstStr, 10, 64)
	last := total - 1
	if lastStr != "" {
		last, _ = strconv.ParseInt(lastStr, 10, 64)
		if last >= total {
			last = total - 1
		}
	}
	if first >= total {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", total))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", first, last, total))
	w.Header().Set("Content-Length", strconv.FormatInt(last-first+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	_, _ = w.Write(data[first : last+1])
}

func (f *fakeServer) serveACL(w http.ResponseWriter, r *http.Request, key string, segs []string) {
	entries := f.acls[key]
	if len(segs) == 0 {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, aclList{Items: entries})
		case http.MethodPost:
			var a AccessControl
			if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			for _, e := range entries {
				if e.Entity == a.Entity {
					writeError(w, http.StatusConflict, "entry exists")
					return
				}
			}
			f.acls[key] = append(entries, a)
			writeJSON(w, http.StatusOK, a)
		default:
			writeError(w, http.StatusMethodNotAllowed, r.Method)
		}
		return
	}

	entity := segs[0]
	idx := -1
	for i, e := range entries {
		if e.Entity == entity {
			idx = i
		}
	}
	if idx < 0 {
		writeError(w, http.StatusNotFound, "no such entry")
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, entries[idx])
	case http.MethodDelete:
		f.acls[key] = append(entries[:idx], entries[idx+1:]...)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPut:
		var a AccessControl
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		entries[idx] = a
		writeJSON(w, http.StatusOK, a)
	case http.MethodPatch:
		var out AccessControl
		if !applyMergePatch(w, r, entries[idx], &out) {
			return
		}
		entries[idx] = out
		writeJSON(w, http.StatusOK, out)
	default:
		writeError(w, http.StatusMethodNotAllowed, r.Method)
	}
}

func (f *fakeServer) serveUpload(w http.ResponseWriter, r *http.Request, bucket string) {
	if _, ok := f.buckets[bucket]; !ok {
		writeError(w, http.StatusNotFound, "no such bucket")
		return
	}
	name := r.URL.Query().Get("name")
	switch r.URL.Query().Get("uploadType") {
	case "media":
		data, _ := io.ReadAll(r.Body)
		meta := f.storeObject(ObjectMetadata{Bucket: bucket, Name: name, ContentType: r.Header.Get("Content-Type")}, data)
		writeJSON(w, http.StatusOK, meta)
	case "resumable":
		var meta ObjectMetadata
		if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		meta.Bucket = bucket
		meta.Name = name
		id := strconv.Itoa(len(f.sessions) + 1)
		f.sessions[id] = &uploadSession{meta: meta}
		w.Header().Set("Location", f.server.URL+"/upload/session/"+id)
		w.WriteHeader(http.StatusOK)
	default:
		writeError(w, http.StatusBadRequest, "unknown uploadType")
	}
}

func (f *fakeServer) serveSession(w http.ResponseWriter, r *http.Request, id string) {
	s, ok := f.sessions[id]
	if !ok || (r.Method != http.MethodPut && r.Method != http.MethodDelete) {
		writeError(w, http.StatusNotFound, "no such session")
		return
	}
	if r.Method == http.MethodDelete {
		delete(f.sessions, id)
		w.WriteHeader(499)
		return
	}
	data, _ := io.ReadAll(r.Body)
	cr := r.Header.Get("Content-Range")
	spec := strings.TrimPrefix(cr, "bytes ")
	span, total, _ := strings.Cut(spec, "/")
	if span != "*" {
		firstStr, _, _ := strings.Cut(span, "-")
		first, _ := strconv.Atoi(firstStr)
		if first != len(s.data) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("chunk at %d, have %d", first, len(s.data)))
			return
		}
		s.data = append(s.data, data...)
	}
	if total == "*" {
		if len(s.data) > 0 {
			w.Header().Set("Range", fmt.Sprintf("bytes=0-%d", len(s.data)-1))
		}
		w.WriteHeader(http.StatusPermanentRedirect)
		return
	}
	meta := f.storeObject(s.meta, s.data)
	delete(f.sessions, id)
	writeJSON(w, http.StatusOK, meta)
}

func metagenerationMatches(r *http.Request, current int64) bool {
	want := r.URL.Query().Get("ifMetagenerationMatch")
	return want == "" || want == strconv.FormatInt(current, 10)
}

// applyMergePatch applies the request body as a JSON merge patch to current
// and decodes the result into out.
func applyMergePatch(w http.ResponseWriter, r *http.Request, current, out any) bool {
	var patchDoc map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patchDoc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	raw, _ := json.Marshal(current)
	var doc map[string]any
	_ = json.Unmarshal(raw, &doc)
	merged, _ := json.Marshal(mergePatch(doc, patchDoc))
	if err := json.Unmarshal(merged, out); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func mergePatch(target, p map[string]any) map[string]any {
	if target == nil {
		target = make(map[string]any)
	}
	for k, v := range p {
		if v == nil {
			delete(target, k)
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			existing, _ := target[k].(map[string]any)
			target[k] = mergePatch(existing, sub)
			continue
		}
		target[k] = v
	}
	return target
}

func paginate[T any](items []T, token string, size int) ([]T, string) {
	start := 0
	if token != "" {
		start, _ = strconv.Atoi(token)
	}
	if start > len(items) {
		start = len(items)
	}
	end := start + size
	if end >= len(items) {
		return items[start:], ""
	}
	return items[start:end], strconv.Itoa(end)
}
