package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/executor"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/storage"
	apperrors "github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/errors"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/logger"
)

// -----------------------------------------------------------------------------
// stat
// -----------------------------------------------------------------------------

func newStatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stat gs://BUCKET[/OBJECT]",
		Short: "Print bucket or object metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  runWithApp(runStat),
	}
}

func runStat(ctx context.Context, a *app, args []string) error {
	t, err := parseTarget(args[0])
	if err != nil {
		return err
	}
	s := a.clients.Storage
	if t.Object == "" {
		bucket, err := s.GetBucketMetadata(ctx, t.Bucket)
		if err != nil {
			return err
		}
		return printResource(a.out, a.format, bucket)
	}
	object, err := s.GetObjectMetadata(ctx, t.Bucket, t.Object)
	if err != nil {
		return err
	}
	return printResource(a.out, a.format, object)
}

// -----------------------------------------------------------------------------
// ls
// -----------------------------------------------------------------------------

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [gs://BUCKET[/PREFIX]]",
		Short: "List the project's buckets, or the objects in a bucket",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWithApp(runList),
	}
}

func runList(ctx context.Context, a *app, args []string) error {
	s := a.clients.Storage
	if len(args) == 0 {
		if a.config.Spec.Project == "" {
			return apperrors.Validation("listing buckets needs spec.project in the configuration")
		}
		buckets, err := s.ListBuckets(ctx, a.config.Spec.Project)
		if err != nil {
			return err
		}
		for _, b := range buckets {
			if _, err := fmt.Fprintln(a.out, target{Bucket: b.Name}); err != nil {
				return err
			}
		}
		return nil
	}

	t, err := parseTarget(args[0])
	if err != nil {
		return err
	}
	objects, err := s.ListObjects(ctx, t.Bucket, storage.ListObjectsOptions{Prefix: t.Object})
	if err != nil {
		return err
	}
	for _, o := range objects {
		if _, err := fmt.Fprintf(a.out, "%12d  %s\n", o.Size, target{Bucket: t.Bucket, Object: o.Name}); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// cp
// -----------------------------------------------------------------------------

var copyContentType string

func newCopyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cp SRC DST",
		Short: "Copy between local files and objects (\"-\" is stdin or stdout)",
		Long: `Copy streams object contents. Downloads resume from the last byte received
when the connection drops, and uploads are sent in resumable chunks.`,
		Args: cobra.ExactArgs(2),
		RunE: runWithApp(runCopy),
	}
	cmd.Flags().StringVar(&copyContentType, "content-type", "",
		"Content type of uploaded objects (default: guessed from the file extension)")
	return cmd
}

func runCopy(ctx context.Context, a *app, args []string) error {
	src, dst := args[0], args[1]
	switch {
	case isRemote(src) && isRemote(dst):
		from, err := parseTarget(src)
		if err != nil {
			return err
		}
		to, err := parseTarget(dst)
		if err != nil {
			return err
		}
		return copyRemote(ctx, a, from, to)
	case isRemote(src):
		from, err := parseTarget(src)
		if err != nil {
			return err
		}
		return download(ctx, a, from, dst)
	case isRemote(dst):
		to, err := parseTarget(dst)
		if err != nil {
			return err
		}
		return upload(ctx, a, src, to)
	default:
		return fmt.Errorf("one of %q and %q must be a %s location", src, dst, remoteScheme)
	}
}

// openObject opens a download of the whole object
func openObject(ctx context.Context, a *app, t target) (io.ReadCloser, error) {
	if t.Object == "" {
		return nil, fmt.Errorf("%s names a bucket, not an object", t)
	}
	return a.clients.Storage.ReadObject(ctx, t.Bucket, t.Object, storage.ReadOptions{})
}

// writeObject streams r into t and returns the created object's metadata
func writeObject(ctx context.Context, a *app, r io.Reader, t target, contentType string) (*storage.ObjectMetadata, error) {
	if t.Object == "" {
		return nil, fmt.Errorf("%s names a bucket, not an object", t)
	}
	w, err := a.clients.Storage.WriteObject(ctx, t.Bucket, t.Object, storage.WriteOptions{ContentType: contentType})
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(w, r); err != nil {
		// Closing would commit whatever was read so far as the object.
		if aerr := w.Abort(err); aerr != nil {
			return nil, errors.Join(err, aerr)
		}
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	metadata, ok := w.Result()
	if !ok {
		return nil, fmt.Errorf("upload of %s finished without object metadata", t)
	}
	return metadata, nil
}

func download(ctx context.Context, a *app, from target, path string) error {
	r, err := openObject(ctx, a, from)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	var w io.Writer = a.out
	if path != stdioPath {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	n, err := io.Copy(w, r)
	if err != nil {
		return err
	}
	a.log.Infof(logger.WithObject(ctx, from.Bucket, from.Object), "Downloaded %d bytes to %s", n, path)
	return nil
}

func upload(ctx context.Context, a *app, path string, to target) error {
	if strings.HasSuffix(to.Object, "/") || to.Object == "" {
		if path == stdioPath {
			return fmt.Errorf("an object name is required when copying from stdin")
		}
		to.Object += filepath.Base(path)
	}

	var r io.Reader = a.in
	if path != stdioPath {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	contentType := copyContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(to.Object))
	}
	metadata, err := writeObject(ctx, a, r, to, contentType)
	if err != nil {
		return err
	}
	a.log.Infof(logger.WithObject(ctx, to.Bucket, to.Object), "Uploaded %d bytes (generation %d)", metadata.Size, metadata.Generation)
	return nil
}

// copyRemote streams one object into another through this process
func copyRemote(ctx context.Context, a *app, from, to target) error {
	if from.Object == "" {
		return fmt.Errorf("%s names a bucket, not an object", from)
	}
	if to.Object == "" || strings.HasSuffix(to.Object, "/") {
		to.Object += filepath.Base(from.Object)
	}
	source, err := a.clients.Storage.GetObjectMetadata(ctx, from.Bucket, from.Object)
	if err != nil {
		return err
	}
	r, err := openObject(ctx, a, from)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	contentType := copyContentType
	if contentType == "" {
		contentType = source.ContentType
	}
	metadata, err := writeObject(ctx, a, r, to, contentType)
	if err != nil {
		return err
	}
	a.log.Infof(logger.WithObject(ctx, to.Bucket, to.Object), "Copied %d bytes from %s", metadata.Size, from)
	return nil
}

// -----------------------------------------------------------------------------
// patch
// -----------------------------------------------------------------------------

type patchFlags struct {
	file   string
	set    []string
	remove []string
}

func newPatchCommand() *cobra.Command {
	flags := &patchFlags{}
	cmd := &cobra.Command{
		Use:   "patch gs://BUCKET[/OBJECT]",
		Short: "Patch bucket or object metadata",
		Long: `Patch reads the current metadata, applies the edits and sends only the
fields that changed. The patch is conditional on the metageneration that was
read, so a concurrent change makes it fail instead of being overwritten.

--file takes a YAML or JSON snapshot; fields it names replace the current
values. A labels or metadata map in the snapshot is taken whole, so keys it
omits are removed. --set and --remove edit object metadata or bucket labels
after the snapshot is applied.`,
		Args: cobra.ExactArgs(1),
		RunE: runWithApp(func(ctx context.Context, a *app, args []string) error {
			return runPatch(ctx, a, args, flags)
		}),
	}
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "YAML or JSON metadata snapshot to apply")
	cmd.Flags().StringArrayVar(&flags.set, "set", nil, "Set a metadata (object) or label (bucket) key, as key=value")
	cmd.Flags().StringArrayVar(&flags.remove, "remove", nil, "Remove a metadata (object) or label (bucket) key")
	return cmd
}

// applyKeyEdits applies --set and --remove to m, allocating it when needed
func applyKeyEdits(m map[string]string, flags *patchFlags) (map[string]string, error) {
	if len(flags.set) == 0 && len(flags.remove) == 0 {
		return m, nil
	}
	if m == nil {
		m = make(map[string]string)
	}
	for _, kv := range flags.set {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--set %q is not key=value", kv)
		}
		m[key] = value
	}
	for _, key := range flags.remove {
		delete(m, key)
	}
	return m, nil
}

// readSnapshot decodes the snapshot at path over into. A map field the
// snapshot names replaces the current map, so keys it leaves out are removed;
// maps holds those fields by their JSON name.
func readSnapshot(path string, into any, maps map[string]*map[string]string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	var named map[string]any
	if err := yaml.Unmarshal(data, &named); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for field, m := range maps {
		if _, ok := named[field]; ok {
			*m = nil
		}
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func runPatch(ctx context.Context, a *app, args []string, flags *patchFlags) error {
	t, err := parseTarget(args[0])
	if err != nil {
		return err
	}
	s := a.clients.Storage

	if t.Object == "" {
		current, err := s.GetBucketMetadata(ctx, t.Bucket)
		if err != nil {
			return err
		}
		updated := current.DeepCopy()
		if err := readSnapshot(flags.file, updated, map[string]*map[string]string{"labels": &updated.Labels}); err != nil {
			return err
		}
		if updated.Labels, err = applyKeyEdits(updated.Labels, flags); err != nil {
			return err
		}
		if storage.DiffBucketMetadata(current, updated).IsEmpty() {
			a.log.Infof(logger.WithBucket(ctx, t.Bucket), "Nothing to patch")
			return printResource(a.out, a.format, current)
		}
		patched, err := s.PatchBucket(ctx, t.Bucket, current, updated)
		if err != nil {
			return err
		}
		return printResource(a.out, a.format, patched)
	}

	current, err := s.GetObjectMetadata(ctx, t.Bucket, t.Object)
	if err != nil {
		return err
	}
	updated := current.DeepCopy()
	if err := readSnapshot(flags.file, updated, map[string]*map[string]string{"metadata": &updated.Metadata}); err != nil {
		return err
	}
	if updated.Metadata, err = applyKeyEdits(updated.Metadata, flags); err != nil {
		return err
	}
	if storage.DiffObjectMetadata(current, updated).IsEmpty() {
		a.log.Infof(logger.WithObject(ctx, t.Bucket, t.Object), "Nothing to patch")
		return printResource(a.out, a.format, current)
	}
	patched, err := s.PatchObject(ctx, t.Bucket, t.Object, current, updated)
	if err != nil {
		return err
	}
	return printResource(a.out, a.format, patched)
}

// -----------------------------------------------------------------------------
// rm
// -----------------------------------------------------------------------------

var removeRecursive bool

func newRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm gs://BUCKET[/OBJECT]",
		Short: "Delete an object, or a bucket",
		Long: `Delete an object, or a bucket. With --recursive every object in the bucket
is deleted first, concurrently up to spec.concurrency.maxInFlight.`,
		Args: cobra.ExactArgs(1),
		RunE: runWithApp(runRemove),
	}
	cmd.Flags().BoolVarP(&removeRecursive, "recursive", "r", false, "Delete every object in the bucket before the bucket")
	return cmd
}

func runRemove(ctx context.Context, a *app, args []string) error {
	t, err := parseTarget(args[0])
	if err != nil {
		return err
	}
	s := a.clients.Storage
	if t.Object != "" {
		if err := s.DeleteObject(ctx, t.Bucket, t.Object); err != nil {
			return err
		}
		a.log.Infof(logger.WithObject(ctx, t.Bucket, t.Object), "Deleted %s", t)
		return nil
	}

	if removeRecursive {
		if err := removeObjects(ctx, a, t.Bucket); err != nil {
			return err
		}
	}
	if err := s.DeleteBucket(ctx, t.Bucket); err != nil {
		return err
	}
	a.log.Infof(logger.WithBucket(ctx, t.Bucket), "Deleted %s", t)
	return nil
}

// removeObjects deletes every object in bucket through the launcher and
// joins all failures.
func removeObjects(ctx context.Context, a *app, bucket string) error {
	s := a.clients.Storage
	objects, err := s.ListObjects(ctx, bucket, storage.ListObjectsOptions{})
	if err != nil {
		return err
	}

	futures := make([]*executor.Future[struct{}], 0, len(objects))
	for _, o := range objects {
		futures = append(futures, s.DeleteObjectAsync(ctx, bucket, o.Name))
	}
	var errs []error
	for i, f := range futures {
		if _, err := f.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target{Bucket: bucket, Object: objects[i].Name}, err))
		}
	}
	return errors.Join(errs...)
}
