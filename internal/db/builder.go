package db

// IndexBuilder is a fluent builder for index definitions.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Prefix adds key prefixes to the index.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// Numeric adds a NUMERIC field.
func (b *IndexBuilder) Numeric(name string) *IndexBuilder {
	return b.field(IndexField{Name: name, Type: IndexFieldNumeric})
}

// Tag adds a TAG field with default options.
func (b *IndexBuilder) Tag(name string) *IndexBuilder {
	return b.TagWith(name, TagOptions{})
}

// TagWith adds a TAG field with a custom separator or case sensitivity.
func (b *IndexBuilder) TagWith(name string, opts TagOptions) *IndexBuilder {
	return b.field(IndexField{Name: name, Type: IndexFieldTag, Tag: opts})
}

// Vector adds a VECTOR field. Fields sharing one embedding space share one spec.
func (b *IndexBuilder) Vector(name string, spec VectorSpec) *IndexBuilder {
	return b.field(IndexField{Name: name, Type: IndexFieldVector, Vector: spec})
}

func (b *IndexBuilder) field(f IndexField) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	return &b.def, nil
}
