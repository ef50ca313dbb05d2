package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffStringMap(t *testing.T) {
	t.Run("identical maps produce no patch", func(t *testing.T) {
		assert.Nil(t, DiffStringMap(map[string]string{"a": "1"}, map[string]string{"a": "1"}))
		assert.Nil(t, DiffStringMap(nil, map[string]string{}))
	})

	t.Run("one changed value is exactly one set-key", func(t *testing.T) {
		mp := DiffStringMap(
			map[string]string{"a": "1", "b": "2"},
			map[string]string{"a": "1", "b": "3"},
		)
		require.NotNil(t, mp)
		assert.Equal(t, map[string]string{"b": "3"}, mp.Set)
		assert.Empty(t, mp.Remove)
		assert.False(t, mp.ResetAll)
	})

	t.Run("emptied map is reset-all", func(t *testing.T) {
		mp := DiffStringMap(map[string]string{"a": "1"}, map[string]string{})
		require.NotNil(t, mp)
		assert.True(t, mp.ResetAll)
		assert.Empty(t, mp.Set)
		assert.Empty(t, mp.Remove)
	})

	t.Run("removed and added keys", func(t *testing.T) {
		mp := DiffStringMap(
			map[string]string{"z": "1", "b": "2", "keep": "x"},
			map[string]string{"keep": "x", "new": "n"},
		)
		require.NotNil(t, mp)
		assert.Equal(t, []string{"b", "z"}, mp.Remove)
		assert.Equal(t, map[string]string{"new": "n"}, mp.Set)
	})
}

func TestDiffString(t *testing.T) {
	d := New()
	DiffString(d, "same", "x", "x")
	DiffString(d, "changed", "x", "y")
	DiffString(d, "cleared", "x", "")

	assert.Equal(t, []string{"changed", "cleared"}, d.Fields())
	_, st := d.Get("cleared")
	assert.Equal(t, Reset, st)
	v, st := d.Get("changed")
	assert.Equal(t, Set, st)
	assert.Equal(t, "y", v)
}

func TestDiffValue(t *testing.T) {
	type acl struct{ Entity, Role string }

	d := New()
	DiffValue(d, "same", []acl{{"allUsers", "READER"}}, []acl{{"allUsers", "READER"}})
	DiffValue(d, "versioning", false, true)
	assert.Equal(t, []string{"versioning"}, d.Fields())
}

func TestDiffMap(t *testing.T) {
	d := New()
	DiffMap(d, "labels", map[string]string{"a": "1"}, map[string]string{"a": "1"})
	assert.True(t, d.IsEmpty())

	DiffMap(d, "labels", map[string]string{"a": "1"}, nil)
	v, st := d.Get("labels")
	assert.Equal(t, Set, st)
	assert.True(t, v.(*MapPatch).ResetAll)
}
