package types

import "io"

// StringField is a variable-length string cell.
type StringField struct {
	Value string
}

// NewStringField creates a new StringField holding value.
func NewStringField(value string) *StringField {
	return &StringField{Value: value}
}

// Serialize writes a 4-byte big-endian length followed by the string bytes.
func (s *StringField) Serialize(w io.Writer) error {
	if err := writeUint32(w, uint32(len(s.Value))); err != nil { // #nosec G115
		return err
	}
	_, err := io.WriteString(w, s.Value)
	return err
}

func (s *StringField) Type() Type { return StringType }

func (s *StringField) String() string { return s.Value }

func (s *StringField) Equals(other Field) bool {
	o, ok := other.(*StringField)
	return ok && s.Value == o.Value
}

// MemSize counts the string header and its bytes.
func (s *StringField) MemSize() int64 {
	return fieldHeader + 16 + int64(len(s.Value))
}

func (s *StringField) IsMissing() bool { return false }
