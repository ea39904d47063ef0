package tuple

import (
	"fmt"
	"spilljoin/pkg/types"
)

// Builder provides a fluent interface for constructing tuples
type Builder struct {
	tuple        *Tuple
	currentIndex int
	err          error
}

// NewBuilder creates a new tuple builder with the given schema
func NewBuilder(td *TupleDescription) *Builder {
	return &Builder{
		tuple:        NewTuple(td),
		currentIndex: 0,
		err:          nil,
	}
}

// WithKey sets the row key.
func (b *Builder) WithKey(key string) *Builder {
	b.tuple.Key = key
	return b
}

// WithOffset sets the source offset.
func (b *Builder) WithOffset(offset int64) *Builder {
	b.tuple.Offset = offset
	return b
}

// AddInt adds an integer field at the current index
func (b *Builder) AddInt(value int64) *Builder {
	return b.AddField(types.NewIntField(value))
}

// AddString adds a string field at the current index
func (b *Builder) AddString(value string) *Builder {
	return b.AddField(types.NewStringField(value))
}

// AddFloat adds a float field at the current index
func (b *Builder) AddFloat(value float64) *Builder {
	return b.AddField(types.NewFloat64Field(value))
}

// AddBool adds a boolean field at the current index
func (b *Builder) AddBool(value bool) *Builder {
	return b.AddField(types.NewBoolField(value))
}

// AddMissing adds a missing cell of the schema's type at the current index
func (b *Builder) AddMissing() *Builder {
	if b.err != nil {
		return b
	}
	t, err := b.tuple.TupleDesc.TypeAtIndex(b.currentIndex)
	if err != nil {
		b.err = err
		return b
	}
	return b.AddField(types.NewMissingField(t))
}

// AddField adds an arbitrary field at the current index
func (b *Builder) AddField(field types.Field) *Builder {
	if b.err != nil {
		return b
	}
	if err := b.tuple.SetField(b.currentIndex, field); err != nil {
		b.err = fmt.Errorf("field %d: %w", b.currentIndex, err)
		return b
	}
	b.currentIndex++
	return b
}

// Build returns the constructed tuple, or the first error encountered.
// Every schema field must have been set.
func (b *Builder) Build() (*Tuple, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.currentIndex != b.tuple.TupleDesc.NumFields() {
		return nil, fmt.Errorf("incomplete tuple: set %d of %d fields",
			b.currentIndex, b.tuple.TupleDesc.NumFields())
	}
	return b.tuple, nil
}

// MustBuild is Build for fixtures; it panics on error.
func (b *Builder) MustBuild() *Tuple {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}
