package storage

import (
	"context"
	"net/http"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/patch"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/transport"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/logger"
)

// aclCollection addresses one of the three ACL collections: a bucket's ACL,
// an object's ACL or a bucket's default object ACL. The operations are the
// same for all three.
type aclCollection struct {
	c    *Client
	url  string
	kind string
}

func (c *Client) bucketACL(bucket string) aclCollection {
	return aclCollection{c: c, url: c.bucketURL(bucket, "acl"), kind: "BucketAcl"}
}

func (c *Client) objectACL(bucket, object string) aclCollection {
	return aclCollection{c: c, url: c.objectURL(bucket, object, "acl"), kind: "ObjectAcl"}
}

func (c *Client) defaultObjectACL(bucket string) aclCollection {
	return aclCollection{c: c, url: c.bucketURL(bucket, "defaultObjectAcl"), kind: "DefaultObjectAcl"}
}

func (a aclCollection) method(verb string) string {
	return "storage." + verb + a.kind
}

func (a aclCollection) entityURL(entity string) string {
	return a.url + "/" + pathEscape(entity)
}

// list is idempotent
func (a aclCollection) list(ctx context.Context) ([]AccessControl, error) {
	resp, err := callJSON[aclList](ctx, a.c, a.method("List"), getRequest(a.url))
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// get is idempotent
func (a aclCollection) get(ctx context.Context, entity string) (*AccessControl, error) {
	return callJSON[*AccessControl](ctx, a.c, a.method("Get"), getRequest(a.entityURL(entity)))
}

// create is not idempotent: a retried attempt after a lost response fails
// with AlreadyExists.
func (a aclCollection) create(ctx context.Context, entity, role string) (*AccessControl, error) {
	body, err := jsonBody(AccessControl{Entity: entity, Role: role})
	if err != nil {
		return nil, err
	}
	return callJSON[*AccessControl](ctx, a.c, a.method("Create"), func() *transport.Request {
		return newJSONRequest(http.MethodPost, a.url, body)
	})
}

// update is idempotent
func (a aclCollection) update(ctx context.Context, entity, role string) (*AccessControl, error) {
	body, err := jsonBody(AccessControl{Entity: entity, Role: role})
	if err != nil {
		return nil, err
	}
	return callJSON[*AccessControl](ctx, a.c, a.method("Update"), func() *transport.Request {
		return newJSONRequest(http.MethodPut, a.entityURL(entity), body)
	})
}

// patch is idempotent
func (a aclCollection) patch(ctx context.Context, entity string, p patch.Patcher) (*AccessControl, error) {
	body, err := patchBody(p)
	if err != nil {
		return nil, err
	}
	return callJSON[*AccessControl](ctx, a.c, a.method("Patch"), func() *transport.Request {
		return newJSONRequest(http.MethodPatch, a.entityURL(entity), body)
	})
}

// remove is not idempotent: a retried attempt after a lost response fails
// with NotFound.
func (a aclCollection) remove(ctx context.Context, entity string) error {
	return callEmpty(ctx, a.c, a.method("Delete"), func() *transport.Request {
		return transport.NewRequest(http.MethodDelete, a.entityURL(entity))
	})
}

// -----------------------------------------------------------------------------
// Bucket ACL
// -----------------------------------------------------------------------------

func (c *Client) ListBucketACL(ctx context.Context, bucket string) ([]AccessControl, error) {
	return c.bucketACL(bucket).list(logger.WithBucket(ctx, bucket))
}

func (c *Client) GetBucketACL(ctx context.Context, bucket, entity string) (*AccessControl, error) {
	return c.bucketACL(bucket).get(logger.WithBucket(ctx, bucket), entity)
}

func (c *Client) CreateBucketACL(ctx context.Context, bucket, entity, role string) (*AccessControl, error) {
	return c.bucketACL(bucket).create(logger.WithBucket(ctx, bucket), entity, role)
}

func (c *Client) UpdateBucketACL(ctx context.Context, bucket, entity, role string) (*AccessControl, error) {
	return c.bucketACL(bucket).update(logger.WithBucket(ctx, bucket), entity, role)
}

// PatchBucketACL applies the difference between two snapshots of an entry
func (c *Client) PatchBucketACL(ctx context.Context, bucket, entity string, original, updated *AccessControl) (*AccessControl, error) {
	return c.bucketACL(bucket).patch(logger.WithBucket(ctx, bucket), entity, DiffAccessControl(original, updated))
}

// PatchBucketACLWith applies a pre-built patch to an entry
func (c *Client) PatchBucketACLWith(ctx context.Context, bucket, entity string, p patch.Patcher) (*AccessControl, error) {
	return c.bucketACL(bucket).patch(logger.WithBucket(ctx, bucket), entity, p)
}

func (c *Client) DeleteBucketACL(ctx context.Context, bucket, entity string) error {
	return c.bucketACL(bucket).remove(logger.WithBucket(ctx, bucket), entity)
}

// -----------------------------------------------------------------------------
// Object ACL
// -----------------------------------------------------------------------------

func (c *Client) ListObjectACL(ctx context.Context, bucket, object string) ([]AccessControl, error) {
	return c.objectACL(bucket, object).list(logger.WithObject(ctx, bucket, object))
}

func (c *Client) GetObjectACL(ctx context.Context, bucket, object, entity string) (*AccessControl, error) {
	return c.objectACL(bucket, object).get(logger.WithObject(ctx, bucket, object), entity)
}

func (c *Client) CreateObjectACL(ctx context.Context, bucket, object, entity, role string) (*AccessControl, error) {
	return c.objectACL(bucket, object).create(logger.WithObject(ctx, bucket, object), entity, role)
}

func (c *Client) UpdateObjectACL(ctx context.Context, bucket, object, entity, role string) (*AccessControl, error) {
	return c.objectACL(bucket, object).update(logger.WithObject(ctx, bucket, object), entity, role)
}

// PatchObjectACL applies the difference between two snapshots of an entry
func (c *Client) PatchObjectACL(ctx context.Context, bucket, object, entity string, original, updated *AccessControl) (*AccessControl, error) {
	return c.objectACL(bucket, object).patch(logger.WithObject(ctx, bucket, object), entity, DiffAccessControl(original, updated))
}

// PatchObjectACLWith applies a pre-built patch to an entry
func (c *Client) PatchObjectACLWith(ctx context.Context, bucket, object, entity string, p patch.Patcher) (*AccessControl, error) {
	return c.objectACL(bucket, object).patch(logger.WithObject(ctx, bucket, object), entity, p)
}

func (c *Client) DeleteObjectACL(ctx context.Context, bucket, object, entity string) error {
	return c.objectACL(bucket, object).remove(logger.WithObject(ctx, bucket, object), entity)
}

// -----------------------------------------------------------------------------
// Default object ACL
// -----------------------------------------------------------------------------

func (c *Client) ListDefaultObjectACL(ctx context.Context, bucket string) ([]AccessControl, error) {
	return c.defaultObjectACL(bucket).list(logger.WithBucket(ctx, bucket))
}

func (c *Client) GetDefaultObjectACL(ctx context.Context, bucket, entity string) (*AccessControl, error) {
	return c.defaultObjectACL(bucket).get(logger.WithBucket(ctx, bucket), entity)
}

func (c *Client) CreateDefaultObjectACL(ctx context.Context, bucket, entity, role string) (*AccessControl, error) {
	return c.defaultObjectACL(bucket).create(logger.WithBucket(ctx, bucket), entity, role)
}

func (c *Client) UpdateDefaultObjectACL(ctx context.Context, bucket, entity, role string) (*AccessControl, error) {
	return c.defaultObjectACL(bucket).update(logger.WithBucket(ctx, bucket), entity, role)
}

// PatchDefaultObjectACL applies the difference between two snapshots of an entry
func (c *Client) PatchDefaultObjectACL(ctx context.Context, bucket, entity string, original, updated *AccessControl) (*AccessControl, error) {
	return c.defaultObjectACL(bucket).patch(logger.WithBucket(ctx, bucket), entity, DiffAccessControl(original, updated))
}

// PatchDefaultObjectACLWith applies a pre-built patch to an entry
func (c *Client) PatchDefaultObjectACLWith(ctx context.Context, bucket, entity string, p patch.Patcher) (*AccessControl, error) {
	return c.defaultObjectACL(bucket).patch(logger.WithBucket(ctx, bucket), entity, p)
}

func (c *Client) DeleteDefaultObjectACL(ctx context.Context, bucket, entity string) error {
	return c.defaultObjectACL(bucket).remove(logger.WithBucket(ctx, bucket), entity)
}
