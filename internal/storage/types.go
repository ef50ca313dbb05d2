package storage

import (
	"time"

	"github.com/mitchellh/copystructure"
)

// AccessControl is one entry of a bucket, object or default object ACL.
type AccessControl struct {
	Bucket string `json:"bucket,omitempty"`
	Object string `json:"object,omitempty"`
	Entity string `json:"entity"`
	Role   string `json:"role"`
	Email  string `json:"email,omitempty"`
	Domain string `json:"domain,omitempty"`
	ID     string `json:"id,omitempty"`
	Etag   string `json:"etag,omitempty"`
}

// Versioning is a bucket's object versioning configuration.
type Versioning struct {
	Enabled bool `json:"enabled"`
}

// BucketMetadata is the server-side description of a bucket.
type BucketMetadata struct {
	ID               string            `json:"id,omitempty"`
	Name             string            `json:"name"`
	Location         string            `json:"location,omitempty"`
	StorageClass     string            `json:"storageClass,omitempty"`
	Labels           map[string]string `json:"labels,omitempty"`
	Versioning       *Versioning       `json:"versioning,omitempty"`
	ACL              []AccessControl   `json:"acl,omitempty"`
	DefaultObjectACL []AccessControl   `json:"defaultObjectAcl,omitempty"`
	Metageneration   int64             `json:"metageneration,omitempty,string"`
	ProjectNumber    string            `json:"projectNumber,omitempty"`
	Etag             string            `json:"etag,omitempty"`
	TimeCreated      *time.Time        `json:"timeCreated,omitempty"`
	Updated          *time.Time        `json:"updated,omitempty"`
}

// DeepCopy returns an independent copy, suitable as the "original" snapshot
// for a later diff.
func (b *BucketMetadata) DeepCopy() *BucketMetadata {
	if b == nil {
		return nil
	}
	return copystructure.Must(copystructure.Copy(b)).(*BucketMetadata)
}

// ObjectMetadata is the server-side description of an object.
type ObjectMetadata struct {
	ID                 string            `json:"id,omitempty"`
	Bucket             string            `json:"bucket"`
	Name               string            `json:"name"`
	Generation         int64             `json:"generation,omitempty,string"`
	Metageneration     int64             `json:"metageneration,omitempty,string"`
	Size               uint64            `json:"size,omitempty,string"`
	ContentType        string            `json:"contentType,omitempty"`
	CacheControl       string            `json:"cacheControl,omitempty"`
	ContentDisposition string            `json:"contentDisposition,omitempty"`
	ContentEncoding    string            `json:"contentEncoding,omitempty"`
	ContentLanguage    string            `json:"contentLanguage,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	ACL                []AccessControl   `json:"acl,omitempty"`
	StorageClass       string            `json:"storageClass,omitempty"`
	CRC32C             string            `json:"crc32c,omitempty"`
	MD5Hash            string            `json:"md5Hash,omitempty"`
	MediaLink          string            `json:"mediaLink,omitempty"`
	Etag               string            `json:"etag,omitempty"`
	TimeCreated        *time.Time        `json:"timeCreated,omitempty"`
	Updated            *time.Time        `json:"updated,omitempty"`
}

// DeepCopy returns an independent copy, suitable as the "original" snapshot
// for a later diff.
func (o *ObjectMetadata) DeepCopy() *ObjectMetadata {
	if o == nil {
		return nil
	}
	return copystructure.Must(copystructure.Copy(o)).(*ObjectMetadata)
}

// bucketList is one page of a bucket listing
type bucketList struct {
	Items         []BucketMetadata `json:"items"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

// objectList is one page of an object listing
type objectList struct {
	Items         []ObjectMetadata `json:"items"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

// aclList is the response to an ACL listing
type aclList struct {
	Items []AccessControl `json:"items"`
}
