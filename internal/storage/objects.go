package storage

import (
	"context"
	"net/http"
	"strconv"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/executor"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/patch"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/transport"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/logger"
)

// DefaultContentType is used for uploads that do not name a content type
const DefaultContentType = "application/octet-stream"

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// ListObjectsOptions filters an object listing
type ListObjectsOptions struct {
	Prefix    string
	Delimiter string
	Versions  bool
}

// InsertObjectMedia uploads data as bucket/object in a single request.
// A retried attempt rewrites the same content, creating a new generation.
func (c *Client) InsertObjectMedia(ctx context.Context, bucket, object string, data []byte, contentType string) (*ObjectMetadata, error) {
	ctx = logger.WithObject(ctx, bucket, object)
	if contentType == "" {
		contentType = DefaultContentType
	}
	return callJSON[*ObjectMetadata](ctx, c, "storage.InsertObjectMedia", func() *transport.Request {
		return transport.NewRequest(http.MethodPost, c.uploadEndpoint+"/b/"+pathEscape(bucket)+"/o",
			transport.WithQueryParam("uploadType", "media"),
			transport.WithQueryParam("name", object),
			transport.WithHeader("Content-Type", contentType),
			transport.WithBody(data),
		)
	})
}

// GetObjectMetadata fetches an object's metadata. Idempotent.
func (c *Client) GetObjectMetadata(ctx context.Context, bucket, object string) (*ObjectMetadata, error) {
	ctx = logger.WithObject(ctx, bucket, object)
	return callJSON[*ObjectMetadata](ctx, c, "storage.GetObjectMetadata", getRequest(c.objectURL(bucket, object)))
}

// ListObjects returns every object in bucket matching opts, following page
// tokens. Idempotent.
func (c *Client) ListObjects(ctx context.Context, bucket string, opts ListObjectsOptions) ([]ObjectMetadata, error) {
	ctx = logger.WithBucket(ctx, bucket)

	var out []ObjectMetadata
	token := ""
	for {
		reqOpts := []transport.RequestOption{
			transport.WithQueryParam("prefix", opts.Prefix),
			transport.WithQueryParam("delimiter", opts.Delimiter),
			transport.WithQueryParam("pageToken", token),
		}
		if opts.Versions {
			reqOpts = append(reqOpts, transport.WithQueryParam("versions", "true"))
		}
		page, err := callJSON[objectList](ctx, c, "storage.ListObjects", getRequest(c.bucketURL(bucket, "o"), reqOpts...))
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

// DeleteObject deletes the live generation of an object. Not idempotent: a
// retried attempt after a lost response fails with NotFound.
func (c *Client) DeleteObject(ctx context.Context, bucket, object string) error {
	ctx = logger.WithObject(ctx, bucket, object)
	return callEmpty(ctx, c, "storage.DeleteObject", func() *transport.Request {
		return transport.NewRequest(http.MethodDelete, c.objectURL(bucket, object))
	})
}

// DeleteObjectAsync runs DeleteObject on the client's launcher.
func (c *Client) DeleteObjectAsync(ctx context.Context, bucket, object string) *executor.Future[struct{}] {
	return executor.Go(c.launcher, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.DeleteObject(ctx, bucket, object)
	})
}

// UpdateObject replaces the writable metadata of an object. Idempotent.
func (c *Client) UpdateObject(ctx context.Context, metadata *ObjectMetadata) (*ObjectMetadata, error) {
	ctx = logger.WithObject(ctx, metadata.Bucket, metadata.Name)

	body, err := jsonBody(metadata)
	if err != nil {
		return nil, err
	}
	return callJSON[*ObjectMetadata](ctx, c, "storage.UpdateObject", func() *transport.Request {
		return newJSONRequest(http.MethodPut, c.objectURL(metadata.Bucket, metadata.Name), body)
	})
}

// PatchObject applies the difference between two snapshots of an object's
// metadata, conditional on the original metageneration when known.
func (c *Client) PatchObject(ctx context.Context, bucket, object string, original, updated *ObjectMetadata) (*ObjectMetadata, error) {
	var opts []transport.RequestOption
	if original.Metageneration > 0 {
		opts = append(opts, transport.WithQueryParam("ifMetagenerationMatch", formatInt(original.Metageneration)))
	}
	return c.patchObject(ctx, bucket, object, DiffObjectMetadata(original, updated), opts...)
}

// PatchObjectWith applies a pre-built patch. Idempotent.
func (c *Client) PatchObjectWith(ctx context.Context, bucket, object string, p patch.Patcher) (*ObjectMetadata, error) {
	return c.patchObject(ctx, bucket, object, p)
}

func (c *Client) patchObject(ctx context.Context, bucket, object string, p patch.Patcher, opts ...transport.RequestOption) (*ObjectMetadata, error) {
	ctx = logger.WithObject(ctx, bucket, object)

	body, err := patchBody(p)
	if err != nil {
		return nil, err
	}
	return callJSON[*ObjectMetadata](ctx, c, "storage.PatchObject", func() *transport.Request {
		return newJSONRequest(http.MethodPatch, c.objectURL(bucket, object), body, opts...)
	})
}
