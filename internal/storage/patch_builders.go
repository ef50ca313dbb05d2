package storage

import (
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/patch"
)

// Field names as they appear in the JSON resource representation
const (
	fieldACL                = "acl"
	fieldDefaultObjectACL   = "defaultObjectAcl"
	fieldCacheControl       = "cacheControl"
	fieldContentDisposition = "contentDisposition"
	fieldContentEncoding    = "contentEncoding"
	fieldContentLanguage    = "contentLanguage"
	fieldContentType        = "contentType"
	fieldMetadata           = "metadata"
	fieldStorageClass       = "storageClass"
	fieldLabels             = "labels"
	fieldVersioning         = "versioning"
	fieldRole               = "role"
)

// aclPatchValue keeps only the writable ACL fields
func aclPatchValue(acl []AccessControl) []AccessControl {
	out := make([]AccessControl, 0, len(acl))
	for _, a := range acl {
		out = append(out, AccessControl{Entity: a.Entity, Role: a.Role})
	}
	return out
}

func setACL(b *patch.Builder, field string, acl []AccessControl) {
	if len(acl) == 0 {
		b.ResetField(field)
		return
	}
	b.SetValue(field, aclPatchValue(acl))
}

// -----------------------------------------------------------------------------
// Objects
// -----------------------------------------------------------------------------

// ObjectMetadataPatchBuilder builds a patch for object metadata. Setting a
// string field to "" resets it.
type ObjectMetadataPatchBuilder struct {
	b *patch.Builder
}

// NewObjectMetadataPatchBuilder returns an empty builder
func NewObjectMetadataPatchBuilder() *ObjectMetadataPatchBuilder {
	return &ObjectMetadataPatchBuilder{b: patch.NewBuilder()}
}

func (p *ObjectMetadataPatchBuilder) SetACL(acl []AccessControl) *ObjectMetadataPatchBuilder {
	setACL(p.b, fieldACL, acl)
	return p
}

func (p *ObjectMetadataPatchBuilder) ResetACL() *ObjectMetadataPatchBuilder {
	p.b.ResetField(fieldACL)
	return p
}

func (p *ObjectMetadataPatchBuilder) SetCacheControl(v string) *ObjectMetadataPatchBuilder {
	p.b.SetString(fieldCacheControl, v)
	return p
}

func (p *ObjectMetadataPatchBuilder) ResetCacheControl() *ObjectMetadataPatchBuilder {
	p.b.ResetField(fieldCacheControl)
	return p
}

func (p *ObjectMetadataPatchBuilder) SetContentDisposition(v string) *ObjectMetadataPatchBuilder {
	p.b.SetString(fieldContentDisposition, v)
	return p
}

func (p *ObjectMetadataPatchBuilder) ResetContentDisposition() *ObjectMetadataPatchBuilder {
	p.b.ResetField(fieldContentDisposition)
	return p
}

func (p *ObjectMetadataPatchBuilder) SetContentEncoding(v string) *ObjectMetadataPatchBuilder {
	p.b.SetString(fieldContentEncoding, v)
	return p
}

func (p *ObjectMetadataPatchBuilder) ResetContentEncoding() *ObjectMetadataPatchBuilder {
	p.b.ResetField(fieldContentEncoding)
	return p
}

func (p *ObjectMetadataPatchBuilder) SetContentLanguage(v string) *ObjectMetadataPatchBuilder {
	p.b.SetString(fieldContentLanguage, v)
	return p
}

func (p *ObjectMetadataPatchBuilder) ResetContentLanguage() *ObjectMetadataPatchBuilder {
	p.b.ResetField(fieldContentLanguage)
	return p
}

func (p *ObjectMetadataPatchBuilder) SetContentType(v string) *ObjectMetadataPatchBuilder {
	p.b.SetString(fieldContentType, v)
	return p
}

func (p *ObjectMetadataPatchBuilder) ResetContentType() *ObjectMetadataPatchBuilder {
	p.b.ResetField(fieldContentType)
	return p
}

// SetMetadata sets one custom metadata entry
func (p *ObjectMetadataPatchBuilder) SetMetadata(key, value string) *ObjectMetadataPatchBuilder {
	p.b.SetMapKey(fieldMetadata, key, value)
	return p
}

// ResetMetadataKey removes one custom metadata entry
func (p *ObjectMetadataPatchBuilder) ResetMetadataKey(key string) *ObjectMetadataPatchBuilder {
	p.b.RemoveMapKey(fieldMetadata, key)
	return p
}

// ResetMetadata removes all custom metadata
func (p *ObjectMetadataPatchBuilder) ResetMetadata() *ObjectMetadataPatchBuilder {
	p.b.ResetMap(fieldMetadata)
	return p
}

// Build implements patch.Patcher
func (p *ObjectMetadataPatchBuilder) Build() *patch.Document {
	return p.b.Build()
}

// DiffObjectMetadata returns the patch that turns original into updated.
// Only writable fields are compared.
func DiffObjectMetadata(original, updated *ObjectMetadata) *patch.Document {
	d := patch.New()
	diffACL(d, fieldACL, original.ACL, updated.ACL)
	patch.DiffString(d, fieldCacheControl, original.CacheControl, updated.CacheControl)
	patch.DiffString(d, fieldContentDisposition, original.ContentDisposition, updated.ContentDisposition)
	patch.DiffString(d, fieldContentEncoding, original.ContentEncoding, updated.ContentEncoding)
	patch.DiffString(d, fieldContentLanguage, original.ContentLanguage, updated.ContentLanguage)
	patch.DiffString(d, fieldContentType, original.ContentType, updated.ContentType)
	patch.DiffMap(d, fieldMetadata, original.Metadata, updated.Metadata)
	return d
}

// -----------------------------------------------------------------------------
// Buckets
// -----------------------------------------------------------------------------

// BucketMetadataPatchBuilder builds a patch for bucket metadata.
type BucketMetadataPatchBuilder struct {
	b *patch.Builder
}

// NewBucketMetadataPatchBuilder returns an empty builder
func NewBucketMetadataPatchBuilder() *BucketMetadataPatchBuilder {
	return &BucketMetadataPatchBuilder{b: patch.NewBuilder()}
}

func (p *BucketMetadataPatchBuilder) SetACL(acl []AccessControl) *BucketMetadataPatchBuilder {
	setACL(p.b, fieldACL, acl)
	return p
}

func (p *BucketMetadataPatchBuilder) ResetACL() *BucketMetadataPatchBuilder {
	p.b.ResetField(fieldACL)
	return p
}

func (p *BucketMetadataPatchBuilder) SetDefaultObjectACL(acl []AccessControl) *BucketMetadataPatchBuilder {
	setACL(p.b, fieldDefaultObjectACL, acl)
	return p
}

func (p *BucketMetadataPatchBuilder) ResetDefaultObjectACL() *BucketMetadataPatchBuilder {
	p.b.ResetField(fieldDefaultObjectACL)
	return p
}

func (p *BucketMetadataPatchBuilder) SetStorageClass(v string) *BucketMetadataPatchBuilder {
	p.b.SetString(fieldStorageClass, v)
	return p
}

func (p *BucketMetadataPatchBuilder) ResetStorageClass() *BucketMetadataPatchBuilder {
	p.b.ResetField(fieldStorageClass)
	return p
}

func (p *BucketMetadataPatchBuilder) SetVersioning(v Versioning) *BucketMetadataPatchBuilder {
	p.b.SetValue(fieldVersioning, v)
	return p
}

func (p *BucketMetadataPatchBuilder) ResetVersioning() *BucketMetadataPatchBuilder {
	p.b.ResetField(fieldVersioning)
	return p
}

// SetLabel sets one label
func (p *BucketMetadataPatchBuilder) SetLabel(key, value string) *BucketMetadataPatchBuilder {
	p.b.SetMapKey(fieldLabels, key, value)
	return p
}

// ResetLabel removes one label
func (p *BucketMetadataPatchBuilder) ResetLabel(key string) *BucketMetadataPatchBuilder {
	p.b.RemoveMapKey(fieldLabels, key)
	return p
}

// ResetLabels removes all labels
func (p *BucketMetadataPatchBuilder) ResetLabels() *BucketMetadataPatchBuilder {
	p.b.ResetMap(fieldLabels)
	return p
}

// Build implements patch.Patcher
func (p *BucketMetadataPatchBuilder) Build() *patch.Document {
	return p.b.Build()
}

// DiffBucketMetadata returns the patch that turns original into updated.
func DiffBucketMetadata(original, updated *BucketMetadata) *patch.Document {
	d := patch.New()
	diffACL(d, fieldACL, original.ACL, updated.ACL)
	diffACL(d, fieldDefaultObjectACL, original.DefaultObjectACL, updated.DefaultObjectACL)
	patch.DiffString(d, fieldStorageClass, original.StorageClass, updated.StorageClass)
	switch {
	case original.Versioning != nil && updated.Versioning == nil:
		d.Reset(fieldVersioning)
	case updated.Versioning != nil:
		patch.DiffValue(d, fieldVersioning, original.Versioning, updated.Versioning)
	}
	patch.DiffMap(d, fieldLabels, original.Labels, updated.Labels)
	return d
}

func diffACL(d *patch.Document, field string, original, updated []AccessControl) {
	if len(updated) == 0 {
		if len(original) > 0 {
			d.Reset(field)
		}
		return
	}
	patch.DiffValue(d, field, aclPatchValue(original), aclPatchValue(updated))
}

// -----------------------------------------------------------------------------
// Access control entries
// -----------------------------------------------------------------------------

// AccessControlPatchBuilder builds a patch for a single ACL entry.
type AccessControlPatchBuilder struct {
	b *patch.Builder
}

// NewAccessControlPatchBuilder returns an empty builder
func NewAccessControlPatchBuilder() *AccessControlPatchBuilder {
	return &AccessControlPatchBuilder{b: patch.NewBuilder()}
}

func (p *AccessControlPatchBuilder) SetRole(role string) *AccessControlPatchBuilder {
	p.b.SetString(fieldRole, role)
	return p
}

// Build implements patch.Patcher
func (p *AccessControlPatchBuilder) Build() *patch.Document {
	return p.b.Build()
}

// DiffAccessControl returns the patch that turns original into updated.
func DiffAccessControl(original, updated *AccessControl) *patch.Document {
	d := patch.New()
	patch.DiffString(d, fieldRole, original.Role, updated.Role)
	return d
}
