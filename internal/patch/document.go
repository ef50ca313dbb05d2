// Package patch builds partial-update documents. Every field of a document
// is in one of three states: absent (left unchanged by the server), reset
// (cleared to its default) or set to a new value. Map-valued fields carry a
// MapPatch instead of a single value.
//
// The wire form is a JSON merge patch: a set field is its value, a reset
// field is null and an absent field is omitted.
package patch

import (
	"encoding/json"
	"maps"
	"slices"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"k8s.io/apimachinery/pkg/util/sets"
)

// State is the state of one field in a Document
type State int

const (
	// Absent fields are not part of the patch
	Absent State = iota
	// Reset fields are cleared
	Reset
	// Set fields carry a new value
	Set
)

func (s State) String() string {
	switch s {
	case Reset:
		return "reset"
	case Set:
		return "set"
	default:
		return "absent"
	}
}

// Document is a set of field changes. The zero value is not usable; call New.
type Document struct {
	values map[string]any
	resets sets.Set[string]
	maps   map[string]*MapPatch
}

// New returns an empty Document
func New() *Document {
	return &Document{
		values: make(map[string]any),
		resets: sets.New[string](),
		maps:   make(map[string]*MapPatch),
	}
}

// Set records a new value for field, replacing any earlier change to it.
func (d *Document) Set(field string, value any) *Document {
	d.forget(field)
	d.values[field] = value
	return d
}

// Reset records that field is to be cleared.
func (d *Document) Reset(field string) *Document {
	d.forget(field)
	d.resets.Insert(field)
	return d
}

// Map returns the key-level patch for a map-valued field, creating it if
// needed. A scalar change to the same field is discarded.
func (d *Document) Map(field string) *MapPatch {
	if mp, ok := d.maps[field]; ok {
		return mp
	}
	d.forget(field)
	mp := &MapPatch{}
	d.maps[field] = mp
	return mp
}

func (d *Document) forget(field string) {
	delete(d.values, field)
	d.resets.Delete(field)
	delete(d.maps, field)
}

// Get returns the value and state of field. Map fields report Set with their
// *MapPatch as the value.
func (d *Document) Get(field string) (any, State) {
	if v, ok := d.values[field]; ok {
		return v, Set
	}
	if d.resets.Has(field) {
		return nil, Reset
	}
	if mp, ok := d.maps[field]; ok && !mp.IsEmpty() {
		return mp, Set
	}
	return nil, Absent
}

// Fields returns the names of all non-absent fields in sorted order.
func (d *Document) Fields() []string {
	fields := sets.KeySet(d.values).Union(d.resets)
	for name, mp := range d.maps {
		if !mp.IsEmpty() {
			fields.Insert(name)
		}
	}
	return sets.List(fields)
}

// IsEmpty reports whether applying the document would change nothing.
func (d *Document) IsEmpty() bool {
	return len(d.Fields()) == 0
}

// Clone returns a deep copy of the document structure. Values are shared.
func (d *Document) Clone() *Document {
	out := &Document{
		values: maps.Clone(d.values),
		resets: d.resets.Clone(),
		maps:   make(map[string]*MapPatch, len(d.maps)),
	}
	for name, mp := range d.maps {
		out.maps[name] = mp.clone()
	}
	return out
}

// Build implements Patcher so a Document from a diff can be passed wherever
// a builder is accepted.
func (d *Document) Build() *Document {
	return d.Clone()
}

// MarshalJSON encodes the document as a JSON merge patch.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.tree())
}

func (d *Document) tree() map[string]any {
	tree := make(map[string]any, len(d.values)+d.resets.Len()+len(d.maps))
	for name, v := range d.values {
		tree[name] = v
	}
	for name := range d.resets {
		tree[name] = nil
	}
	for name, mp := range d.maps {
		if mp.IsEmpty() {
			continue
		}
		tree[name] = mp.tree()
	}
	return tree
}

// AsStruct returns the merge patch as a protobuf Struct for RPC update calls.
func (d *Document) AsStruct() (*structpb.Struct, error) {
	data, err := d.MarshalJSON()
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// MapPatch is the key-level change to a map-valued field. When ResetAll is
// set the whole map is cleared and the other fields are empty.
type MapPatch struct {
	ResetAll bool
	Set      map[string]string
	Remove   []string
}

// SetKey sets one entry. It cancels an earlier ResetKeys.
func (m *MapPatch) SetKey(key, value string) *MapPatch {
	m.ResetAll = false
	if m.Set == nil {
		m.Set = make(map[string]string)
	}
	m.Set[key] = value
	m.Remove = slices.DeleteFunc(m.Remove, func(k string) bool { return k == key })
	return m
}

// RemoveKey removes one entry. It cancels an earlier ResetKeys.
func (m *MapPatch) RemoveKey(key string) *MapPatch {
	m.ResetAll = false
	delete(m.Set, key)
	if !slices.Contains(m.Remove, key) {
		m.Remove = append(m.Remove, key)
	}
	return m
}

// ResetKeys clears the whole map, discarding any key-level changes.
func (m *MapPatch) ResetKeys() *MapPatch {
	m.ResetAll = true
	m.Set = nil
	m.Remove = nil
	return m
}

// IsEmpty reports whether the patch changes nothing.
func (m *MapPatch) IsEmpty() bool {
	return m == nil || (!m.ResetAll && len(m.Set) == 0 && len(m.Remove) == 0)
}

func (m *MapPatch) clone() *MapPatch {
	return &MapPatch{
		ResetAll: m.ResetAll,
		Set:      maps.Clone(m.Set),
		Remove:   slices.Clone(m.Remove),
	}
}

func (m *MapPatch) tree() any {
	if m.ResetAll {
		return nil
	}
	sub := make(map[string]any, len(m.Set)+len(m.Remove))
	for k, v := range m.Set {
		sub[k] = v
	}
	for _, k := range m.Remove {
		sub[k] = nil
	}
	return sub
}
