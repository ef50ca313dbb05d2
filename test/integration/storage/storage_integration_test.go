//go:build integration

package storage_integration_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/client_factory"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/config_loader"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/executor"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/storage"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/logger"
)

const testProject = "integration-project"

func newStorageClient(t *testing.T) *storage.Client {
	t.Helper()
	endpoint := requireEmulator(t)

	config, err := config_loader.Parse([]byte(fmt.Sprintf(`
apiVersion: hyperfleet.redhat.com/v1alpha1
kind: AdminClientConfig
metadata:
  name: storage-integration
spec:
  endpoint: %q
  project: %s
  retry:
    maxAttempts: 3
  backoff:
    initialDelay: 50ms
    maxDelay: 500ms
`, endpoint, testProject)))
	require.NoError(t, err)

	clients, err := client_factory.CreateClients(config, logger.NewTestLogger(), nil)
	require.NoError(t, err)
	return clients.Storage
}

// newBucket creates a uniquely named bucket that is removed with its objects
// when the test ends.
func newBucket(t *testing.T, s *storage.Client) string {
	t.Helper()
	ctx := context.Background()
	name := "it-" + uuid.NewString()[:8]

	_, err := s.CreateBucket(ctx, testProject, &storage.BucketMetadata{Name: name})
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		objects, _ := s.ListObjects(ctx, name, storage.ListObjectsOptions{})
		for _, o := range objects {
			_ = s.DeleteObject(ctx, name, o.Name)
		}
		_ = s.DeleteBucket(ctx, name)
	})
	return name
}

func TestBucketLifecycle(t *testing.T) {
	s := newStorageClient(t)
	ctx := context.Background()
	bucket := newBucket(t, s)

	got, err := s.GetBucketMetadata(ctx, bucket)
	require.NoError(t, err)
	assert.Equal(t, bucket, got.Name)

	buckets, err := s.ListBuckets(ctx, testProject)
	require.NoError(t, err)
	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
	}
	assert.Contains(t, names, bucket)

	_, err = s.CreateBucket(ctx, testProject, &storage.BucketMetadata{Name: bucket})
	require.Error(t, err)
	assert.Equal(t, codes.AlreadyExists, status.Code(err))
}

func TestObjectInsertReadDelete(t *testing.T) {
	s := newStorageClient(t)
	ctx := context.Background()
	bucket := newBucket(t, s)

	created, err := s.InsertObjectMedia(ctx, bucket, "greeting.txt", []byte("hello, storage"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "greeting.txt", created.Name)

	r, err := s.ReadObject(ctx, bucket, "greeting.txt", storage.ReadOptions{})
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "hello, storage", string(data))

	r, err = s.ReadObject(ctx, bucket, "greeting.txt", storage.ReadOptions{Begin: 7, End: 14})
	require.NoError(t, err)
	data, err = io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "storage", string(data))

	require.NoError(t, s.DeleteObject(ctx, bucket, "greeting.txt"))

	_, err = s.GetObjectMetadata(ctx, bucket, "greeting.txt")
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestListObjectsWithPrefix(t *testing.T) {
	s := newStorageClient(t)
	ctx := context.Background()
	bucket := newBucket(t, s)

	for _, name := range []string{"logs/a.txt", "logs/b.txt", "data/c.txt"} {
		_, err := s.InsertObjectMedia(ctx, bucket, name, []byte(name), "text/plain")
		require.NoError(t, err)
	}

	objects, err := s.ListObjects(ctx, bucket, storage.ListObjectsOptions{Prefix: "logs/"})
	require.NoError(t, err)
	names := make([]string, 0, len(objects))
	for _, o := range objects {
		names = append(names, o.Name)
	}
	assert.ElementsMatch(t, []string{"logs/a.txt", "logs/b.txt"}, names)
}

func TestPatchObjectMetadata(t *testing.T) {
	s := newStorageClient(t)
	ctx := context.Background()
	bucket := newBucket(t, s)

	_, err := s.InsertObjectMedia(ctx, bucket, "report.csv", []byte("a,b\n"), "text/csv")
	require.NoError(t, err)

	patched, err := s.PatchObjectWith(ctx, bucket, "report.csv",
		storage.NewObjectMetadataPatchBuilder().SetMetadata("owner", "storage-team").SetCacheControl("no-cache").Build())
	require.NoError(t, err)
	assert.Equal(t, "storage-team", patched.Metadata["owner"])

	current, err := s.GetObjectMetadata(ctx, bucket, "report.csv")
	require.NoError(t, err)
	assert.Equal(t, "storage-team", current.Metadata["owner"])
}

func TestDeleteObjectsAsync(t *testing.T) {
	s := newStorageClient(t)
	ctx := context.Background()
	bucket := newBucket(t, s)

	names := []string{"one", "two", "three", "four"}
	for _, name := range names {
		_, err := s.InsertObjectMedia(ctx, bucket, name, []byte(name), "")
		require.NoError(t, err)
	}

	futures := make([]*executor.Future[struct{}], 0, len(names))
	for _, name := range names {
		futures = append(futures, s.DeleteObjectAsync(ctx, bucket, name))
	}
	for _, f := range futures {
		_, err := f.Wait(ctx)
		require.NoError(t, err)
	}

	objects, err := s.ListObjects(ctx, bucket, storage.ListObjectsOptions{})
	require.NoError(t, err)
	assert.Empty(t, objects)
}
