package storage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/patch"
)

func marshal(t *testing.T, d *patch.Document) string {
	t.Helper()
	data, err := json.Marshal(d)
	require.NoError(t, err)
	return string(data)
}

func TestDiffObjectMetadataIdenticalIsEmpty(t *testing.T) {
	o := &ObjectMetadata{
		Bucket:       "bkt",
		Name:         "obj",
		ContentType:  "text/plain",
		Metadata:     map[string]string{"a": "1"},
		ACL:          []AccessControl{{Entity: "allUsers", Role: "READER", Etag: "x"}},
		CacheControl: "no-cache",
	}
	assert.True(t, DiffObjectMetadata(o, o.DeepCopy()).IsEmpty())
}

func TestDiffObjectMetadata(t *testing.T) {
	original := &ObjectMetadata{
		ContentType:     "text/plain",
		ContentLanguage: "en",
		Metadata:        map[string]string{"a": "1", "b": "2"},
	}

	t.Run("one map value changed", func(t *testing.T) {
		updated := original.DeepCopy()
		updated.Metadata["b"] = "3"

		d := DiffObjectMetadata(original, updated)
		assert.Equal(t, []string{"metadata"}, d.Fields())
		v, _ := d.Get("metadata")
		mp := v.(*patch.MapPatch)
		assert.Equal(t, map[string]string{"b": "3"}, mp.Set)
		assert.Empty(t, mp.Remove)
	})

	t.Run("emptied map is reset", func(t *testing.T) {
		updated := original.DeepCopy()
		updated.Metadata = map[string]string{}
		assert.JSONEq(t, `{"metadata": null}`, marshal(t, DiffObjectMetadata(original, updated)))
	})

	t.Run("scalar set and reset", func(t *testing.T) {
		updated := original.DeepCopy()
		updated.ContentType = "application/json"
		updated.ContentLanguage = ""
		assert.JSONEq(t, `{"contentType": "application/json", "contentLanguage": null}`,
			marshal(t, DiffObjectMetadata(original, updated)))
	})

	t.Run("acl compares writable fields only", func(t *testing.T) {
		withACL := original.DeepCopy()
		withACL.ACL = []AccessControl{{Entity: "allUsers", Role: "READER", Etag: "1"}}
		sameACL := withACL.DeepCopy()
		sameACL.ACL[0].Etag = "2"
		assert.True(t, DiffObjectMetadata(withACL, sameACL).IsEmpty())

		noACL := withACL.DeepCopy()
		noACL.ACL = nil
		assert.JSONEq(t, `{"acl": null}`, marshal(t, DiffObjectMetadata(withACL, noACL)))
	})
}

func TestDiffBucketMetadata(t *testing.T) {
	original := &BucketMetadata{
		Name:         "bkt",
		StorageClass: "STANDARD",
		Labels:       map[string]string{"env": "dev"},
		Versioning:   &Versioning{Enabled: true},
	}
	assert.True(t, DiffBucketMetadata(original, original.DeepCopy()).IsEmpty())

	updated := original.DeepCopy()
	updated.Labels["team"] = "storage"
	updated.Versioning = nil
	updated.DefaultObjectACL = []AccessControl{{Entity: "allUsers", Role: "READER"}}

	assert.JSONEq(t, `{
		"labels": {"team": "storage"},
		"versioning": null,
		"defaultObjectAcl": [{"entity": "allUsers", "role": "READER"}]
	}`, marshal(t, DiffBucketMetadata(original, updated)))
}

func TestObjectMetadataPatchBuilder(t *testing.T) {
	b := NewObjectMetadataPatchBuilder().
		SetContentType("text/html").
		SetContentEncoding("").
		ResetContentDisposition().
		SetMetadata("k", "v").
		ResetMetadataKey("old").
		SetACL([]AccessControl{{Entity: "allUsers", Role: "READER", Email: "ignored@example.com"}})

	assert.JSONEq(t, `{
		"contentType": "text/html",
		"contentEncoding": null,
		"contentDisposition": null,
		"metadata": {"k": "v", "old": null},
		"acl": [{"entity": "allUsers", "role": "READER"}]
	}`, marshal(t, b.Build()))

	assert.JSONEq(t, `{"metadata": null}`, marshal(t, NewObjectMetadataPatchBuilder().SetMetadata("k", "v").ResetMetadata().Build()))
	assert.JSONEq(t, `{"acl": null}`, marshal(t, NewObjectMetadataPatchBuilder().SetACL(nil).Build()))
}

func TestBucketMetadataPatchBuilder(t *testing.T) {
	b := NewBucketMetadataPatchBuilder().
		SetStorageClass("NEARLINE").
		SetLabel("env", "prod").
		ResetLabel("tmp").
		ResetDefaultObjectACL()

	assert.JSONEq(t, `{
		"storageClass": "NEARLINE",
		"labels": {"env": "prod", "tmp": null},
		"defaultObjectAcl": null
	}`, marshal(t, b.Build()))
}

func TestDeepCopyIsIndependent(t *testing.T) {
	now := time.Now().UTC()
	o := &ObjectMetadata{
		Name:        "obj",
		Metadata:    map[string]string{"a": "1"},
		ACL:         []AccessControl{{Entity: "allUsers", Role: "READER"}},
		TimeCreated: &now,
	}
	c := o.DeepCopy()
	c.Metadata["a"] = "2"
	c.ACL[0].Role = "OWNER"

	assert.Equal(t, "1", o.Metadata["a"])
	assert.Equal(t, "READER", o.ACL[0].Role)
	require.NotNil(t, c.TimeCreated)
	assert.True(t, now.Equal(*c.TimeCreated))

	var nilObj *ObjectMetadata
	assert.Nil(t, nilObj.DeepCopy())
}
