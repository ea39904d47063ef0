package types

import "io"

// MissingField is a cell without a value. It keeps the declared column type so
// padding for an absent join side produces missing cells of the right type.
//
// Missing cells never compare equal to anything, themselves included, which
// gives join keys SQL NULL semantics.
type MissingField struct {
	ColumnType Type
}

// NewMissingField returns the missing sentinel for a column of type t.
func NewMissingField(t Type) *MissingField {
	return &MissingField{ColumnType: t}
}

// Serialize writes nothing; presence is recorded by the row codec.
func (m *MissingField) Serialize(io.Writer) error {
	return nil
}

func (m *MissingField) Type() Type {
	return m.ColumnType
}

func (m *MissingField) String() string {
	return "?"
}

func (m *MissingField) Equals(Field) bool {
	return false
}

func (m *MissingField) MemSize() int64 {
	return fieldHeader
}

func (m *MissingField) IsMissing() bool {
	return true
}

// IsMissing reports whether f is nil or a missing cell.
func IsMissing(f Field) bool {
	return f == nil || f.IsMissing()
}
