package tuple

import (
	"fmt"
	"spilljoin/pkg/types"
	"strings"
)

// NoOffset marks a tuple that was not read from an input table.
const NoOffset int64 = -1

// Tuple represents a row of data: fixed-arity cells plus a unique row key.
type Tuple struct {
	TupleDesc *TupleDescription // Schema of this tuple
	Key       string            // Unique row key within its table
	Offset    int64             // Position in the source table, NoOffset if none
	fields    []types.Field
}

// NewTuple creates a new tuple with the given schema. All cells start as
// typed-missing.
func NewTuple(td *TupleDescription) *Tuple {
	t := &Tuple{
		TupleDesc: td,
		Offset:    NoOffset,
		fields:    make([]types.Field, td.NumFields()),
	}
	for i, typ := range td.Types {
		t.fields[i] = types.NewMissingField(typ)
	}
	return t
}

// SetField stores field at index i. The field's type must match the schema.
func (t *Tuple) SetField(i int, field types.Field) error {
	if i < 0 || i >= len(t.fields) {
		return fmt.Errorf("field index %d out of bounds [0, %d)", i, len(t.fields))
	}
	if field == nil {
		return fmt.Errorf("field %d: nil field, use types.NewMissingField", i)
	}

	expectedType := t.TupleDesc.Types[i]
	if field.Type() != expectedType {
		return fmt.Errorf("field type mismatch: expected %v, got %v",
			expectedType, field.Type())
	}

	t.fields[i] = field
	return nil
}

// GetField returns the value of the ith field
func (t *Tuple) GetField(i int) (types.Field, error) {
	if i < 0 || i >= len(t.fields) {
		return nil, fmt.Errorf("field index %d out of bounds [0, %d)", i, len(t.fields))
	}
	return t.fields[i], nil
}

// Field returns the ith field without bounds reporting. It panics on a bad
// index, like a slice access; use it only with indices derived from the schema.
func (t *Tuple) Field(i int) types.Field {
	return t.fields[i]
}

// NumFields returns the tuple arity.
func (t *Tuple) NumFields() int {
	return len(t.fields)
}

// String returns a string representation of this tuple
// Format: key\tfield1\tfield2\t...\tfieldN
func (t *Tuple) String() string {
	parts := make([]string, 0, len(t.fields)+1)
	parts = append(parts, t.Key)
	for _, field := range t.fields {
		parts = append(parts, field.String())
	}
	return strings.Join(parts, "\t")
}

// Project returns a new tuple holding the cells at indices, in that order,
// under schema td. Key and offset are carried over.
func (t *Tuple) Project(td *TupleDescription, indices []int) (*Tuple, error) {
	if td.NumFields() != len(indices) {
		return nil, fmt.Errorf("projection arity %d does not match schema arity %d",
			len(indices), td.NumFields())
	}

	out := &Tuple{
		TupleDesc: td,
		Key:       t.Key,
		Offset:    t.Offset,
		fields:    make([]types.Field, len(indices)),
	}
	for i, idx := range indices {
		field, err := t.GetField(idx)
		if err != nil {
			return nil, err
		}
		if field.Type() != td.Types[i] {
			return nil, fmt.Errorf("projected field %d: expected %v, got %v", i, td.Types[i], field.Type())
		}
		out.fields[i] = field
	}
	return out, nil
}

// Clone creates a copy of this tuple. Fields are immutable values and are shared.
func (t *Tuple) Clone() *Tuple {
	newTup := &Tuple{
		TupleDesc: t.TupleDesc,
		Key:       t.Key,
		Offset:    t.Offset,
		fields:    make([]types.Field, len(t.fields)),
	}
	copy(newTup.fields, t.fields)
	return newTup
}

// Equals reports whether both tuples have the same key and cell values.
// Missing cells are equal when their types agree.
func (t *Tuple) Equals(other *Tuple) bool {
	if other == nil || t.Key != other.Key || len(t.fields) != len(other.fields) {
		return false
	}
	for i, f := range t.fields {
		o := other.fields[i]
		if f.IsMissing() || o.IsMissing() {
			if f.IsMissing() != o.IsMissing() || f.Type() != o.Type() {
				return false
			}
			continue
		}
		if !f.Equals(o) {
			return false
		}
	}
	return true
}
