package patch

import (
	"k8s.io/apimachinery/pkg/api/equality"
	"k8s.io/apimachinery/pkg/util/sets"
)

// DiffStringMap returns the key-level patch that turns original into updated,
// or nil when they are equal. Emptying a non-empty map is a reset of the
// whole map. Removed keys are listed in sorted order.
func DiffStringMap(original, updated map[string]string) *MapPatch {
	if len(updated) == 0 {
		if len(original) == 0 {
			return nil
		}
		return &MapPatch{ResetAll: true}
	}

	mp := &MapPatch{}
	removed := sets.KeySet(original).Difference(sets.KeySet(updated))
	for _, k := range sets.List(removed) {
		mp.RemoveKey(k)
	}
	for _, k := range sets.List(sets.KeySet(updated)) {
		if v, ok := original[k]; !ok || v != updated[k] {
			mp.SetKey(k, updated[k])
		}
	}
	if mp.IsEmpty() {
		return nil
	}
	return mp
}

// DiffString records field as set when the strings differ, or reset when the
// updated value is empty.
func DiffString(d *Document, field, original, updated string) {
	if original == updated {
		return
	}
	if updated == "" {
		d.Reset(field)
		return
	}
	d.Set(field, updated)
}

// DiffValue records field as set to updated when it is not semantically
// equal to original.
func DiffValue(d *Document, field string, original, updated any) {
	if equality.Semantic.DeepEqual(original, updated) {
		return
	}
	d.Set(field, updated)
}

// DiffMap records the key-level changes to a map-valued field.
func DiffMap(d *Document, field string, original, updated map[string]string) {
	mp := DiffStringMap(original, updated)
	if mp == nil {
		return
	}
	*d.Map(field) = *mp
}
