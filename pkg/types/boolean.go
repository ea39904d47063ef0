package types

import (
	"io"
	"strconv"
)

// BoolField is a boolean cell, serialized as a single 0 or 1 byte.
type BoolField struct {
	Value bool
}

func NewBoolField(value bool) *BoolField {
	return &BoolField{Value: value}
}

func (b *BoolField) Serialize(w io.Writer) error {
	var v [1]byte
	if b.Value {
		v[0] = 1
	}
	_, err := w.Write(v[:])
	return err
}

func (b *BoolField) Type() Type { return BoolType }

func (b *BoolField) String() string {
	return strconv.FormatBool(b.Value)
}

func (b *BoolField) Equals(other Field) bool {
	o, ok := other.(*BoolField)
	return ok && b.Value == o.Value
}

func (b *BoolField) MemSize() int64 { return fieldHeader + 1 }

func (b *BoolField) IsMissing() bool { return false }
