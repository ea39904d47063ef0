package types

import (
	"io"
	"strconv"
)

// IntField is a 64-bit signed integer cell.
type IntField struct {
	Value int64
}

func NewIntField(value int64) *IntField {
	return &IntField{Value: value}
}

func (f *IntField) Serialize(w io.Writer) error {
	return writeUint64(w, uint64(f.Value)) // #nosec G115
}

func (f *IntField) Type() Type { return IntType }

func (f *IntField) String() string {
	return strconv.FormatInt(f.Value, 10)
}

func (f *IntField) Equals(other Field) bool {
	o, ok := other.(*IntField)
	return ok && f.Value == o.Value
}

func (f *IntField) MemSize() int64 { return fieldHeader + 8 }

func (f *IntField) IsMissing() bool { return false }
