package storage

import (
	"context"
	"net/http"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/executor"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/patch"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/transport"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/logger"
)

// ListBuckets returns every bucket in project, following page tokens.
// Each page is its own call. Idempotent.
func (c *Client) ListBuckets(ctx context.Context, project string) ([]BucketMetadata, error) {
	ctx = logger.WithProject(ctx, project)

	var out []BucketMetadata
	token := ""
	for {
		page, err := callJSON[bucketList](ctx, c, "storage.ListBuckets", getRequest(c.storageEndpoint+"/b",
			transport.WithQueryParam("project", project),
			transport.WithQueryParam("pageToken", token),
		))
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.NextPageToken == "" {
			return out, nil
		}
		token = page.NextPageToken
	}
}

// CreateBucket creates a bucket in project. Not idempotent: a retried attempt
// after a lost response fails with AlreadyExists.
func (c *Client) CreateBucket(ctx context.Context, project string, metadata *BucketMetadata) (*BucketMetadata, error) {
	ctx = logger.WithBucket(logger.WithProject(ctx, project), metadata.Name)

	body, err := jsonBody(metadata)
	if err != nil {
		return nil, err
	}
	return callJSON[*BucketMetadata](ctx, c, "storage.CreateBucket", func() *transport.Request {
		return newJSONRequest(http.MethodPost, c.storageEndpoint+"/b", body,
			transport.WithQueryParam("project", project))
	})
}

// GetBucketMetadata fetches a bucket. Idempotent.
func (c *Client) GetBucketMetadata(ctx context.Context, bucket string) (*BucketMetadata, error) {
	ctx = logger.WithBucket(ctx, bucket)
	return callJSON[*BucketMetadata](ctx, c, "storage.GetBucketMetadata", getRequest(c.bucketURL(bucket)))
}

// DeleteBucket deletes an empty bucket. Not idempotent: a retried attempt
// after a lost response fails with NotFound.
func (c *Client) DeleteBucket(ctx context.Context, bucket string) error {
	ctx = logger.WithBucket(ctx, bucket)
	return callEmpty(ctx, c, "storage.DeleteBucket", func() *transport.Request {
		return transport.NewRequest(http.MethodDelete, c.bucketURL(bucket))
	})
}

// UpdateBucket replaces the writable metadata of metadata.Name. Idempotent.
func (c *Client) UpdateBucket(ctx context.Context, metadata *BucketMetadata) (*BucketMetadata, error) {
	ctx = logger.WithBucket(ctx, metadata.Name)

	body, err := jsonBody(metadata)
	if err != nil {
		return nil, err
	}
	return callJSON[*BucketMetadata](ctx, c, "storage.UpdateBucket", func() *transport.Request {
		return newJSONRequest(http.MethodPut, c.bucketURL(metadata.Name), body)
	})
}

// PatchBucket applies the difference between two snapshots of a bucket.
// When original carries a metageneration the patch is conditional on it, so
// a retried attempt cannot overwrite a concurrent change.
func (c *Client) PatchBucket(ctx context.Context, bucket string, original, updated *BucketMetadata) (*BucketMetadata, error) {
	var opts []transport.RequestOption
	if original.Metageneration > 0 {
		opts = append(opts, transport.WithQueryParam("ifMetagenerationMatch", formatInt(original.Metageneration)))
	}
	return c.patchBucket(ctx, bucket, DiffBucketMetadata(original, updated), opts...)
}

// PatchBucketWith applies a pre-built patch. Idempotent.
func (c *Client) PatchBucketWith(ctx context.Context, bucket string, p patch.Patcher) (*BucketMetadata, error) {
	return c.patchBucket(ctx, bucket, p)
}

func (c *Client) patchBucket(ctx context.Context, bucket string, p patch.Patcher, opts ...transport.RequestOption) (*BucketMetadata, error) {
	ctx = logger.WithBucket(ctx, bucket)

	body, err := patchBody(p)
	if err != nil {
		return nil, err
	}
	return callJSON[*BucketMetadata](ctx, c, "storage.PatchBucket", func() *transport.Request {
		return newJSONRequest(http.MethodPatch, c.bucketURL(bucket), body, opts...)
	})
}

// CreateBucketAsync runs CreateBucket on the client's launcher.
func (c *Client) CreateBucketAsync(ctx context.Context, project string, metadata *BucketMetadata) *executor.Future[*BucketMetadata] {
	return executor.Go(c.launcher, ctx, func(ctx context.Context) (*BucketMetadata, error) {
		return c.CreateBucket(ctx, project, metadata)
	})
}

// DeleteBucketAsync runs DeleteBucket on the client's launcher.
func (c *Client) DeleteBucketAsync(ctx context.Context, bucket string) *executor.Future[struct{}] {
	return executor.Go(c.launcher, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.DeleteBucket(ctx, bucket)
	})
}
