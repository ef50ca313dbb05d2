package patch

// Patcher is anything that can produce a patch Document. Resource-specific
// builders implement it so patch calls accept either a diff or a builder.
type Patcher interface {
	Build() *Document
}

// Builder is a fluent wrapper around a Document. Resource builders embed it
// and add typed setters for their fields.
type Builder struct {
	doc *Document
}

// NewBuilder returns an empty Builder
func NewBuilder() *Builder {
	return &Builder{doc: New()}
}

// FromDocument returns a Builder that continues editing a copy of doc.
func FromDocument(doc *Document) *Builder {
	return &Builder{doc: doc.Clone()}
}

// SetString sets field to v, or resets it when v is empty.
func (b *Builder) SetString(field, v string) *Builder {
	if v == "" {
		return b.ResetField(field)
	}
	b.doc.Set(field, v)
	return b
}

// SetValue sets field to v
func (b *Builder) SetValue(field string, v any) *Builder {
	b.doc.Set(field, v)
	return b
}

// ResetField clears field
func (b *Builder) ResetField(field string) *Builder {
	b.doc.Reset(field)
	return b
}

// SetMapKey sets one entry of a map-valued field
func (b *Builder) SetMapKey(field, key, value string) *Builder {
	b.doc.Map(field).SetKey(key, value)
	return b
}

// RemoveMapKey removes one entry of a map-valued field
func (b *Builder) RemoveMapKey(field, key string) *Builder {
	b.doc.Map(field).RemoveKey(key)
	return b
}

// ResetMap clears a map-valued field
func (b *Builder) ResetMap(field string) *Builder {
	b.doc.Map(field).ResetKeys()
	return b
}

// Build returns a snapshot of the document; later edits do not affect it.
func (b *Builder) Build() *Document {
	return b.doc.Clone()
}

var (
	_ Patcher = (*Builder)(nil)
	_ Patcher = (*Document)(nil)
)
