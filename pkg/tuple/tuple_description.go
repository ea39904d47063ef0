package tuple

import (
	"fmt"
	"spilljoin/pkg/types"
	"strings"
)

// TupleDescription describes the schema of a tuple (like a table schema).
// It contains the types and names of fields in a tuple.
type TupleDescription struct {
	// Types contains the data type of each field in order
	Types []types.Type
	// FieldNames contains the name of each field
	FieldNames []string
}

// NewTupleDesc creates a new TupleDescription given field types and field names.
// An empty schema is allowed: key-only projections have no cells.
//
// Parameters:
//   - fieldTypes: slice of field types
//   - fieldNames: slice of field names, same length as fieldTypes, or nil
//
// Returns:
//   - *TupleDescription: newly created tuple descriptor
//   - error: if the lengths disagree or a type is unknown
func NewTupleDesc(fieldTypes []types.Type, fieldNames []string) (*TupleDescription, error) {
	for i, t := range fieldTypes {
		if !t.IsValid() {
			return nil, fmt.Errorf("field %d: unknown type %v", i, t)
		}
	}

	typesCopy := make([]types.Type, len(fieldTypes))
	copy(typesCopy, fieldTypes)

	namesCopy := make([]string, len(fieldTypes))
	if fieldNames != nil {
		if len(fieldNames) != len(fieldTypes) {
			return nil, fmt.Errorf("field names length (%d) must match field types length (%d)",
				len(fieldNames), len(fieldTypes))
		}
		copy(namesCopy, fieldNames)
	}

	return &TupleDescription{
		Types:      typesCopy,
		FieldNames: namesCopy,
	}, nil
}

// MustTupleDesc is NewTupleDesc for schemas known to be valid, such as test
// fixtures. It panics on error.
func MustTupleDesc(fieldTypes []types.Type, fieldNames []string) *TupleDescription {
	td, err := NewTupleDesc(fieldTypes, fieldNames)
	if err != nil {
		panic(err)
	}
	return td
}

// NumFields returns the number of fields in this tuple descriptor.
func (td *TupleDescription) NumFields() int {
	return len(td.Types)
}

// GetFieldName returns the name of the ith field.
func (td *TupleDescription) GetFieldName(i int) (string, error) {
	if i < 0 || i >= len(td.Types) {
		return "", fmt.Errorf("field index %d out of bounds [0, %d)", i, len(td.Types))
	}
	return td.FieldNames[i], nil
}

// TypeAtIndex returns the type of the ith field.
func (td *TupleDescription) TypeAtIndex(i int) (types.Type, error) {
	if i < 0 || i >= len(td.Types) {
		return 0, fmt.Errorf("field index %d out of bounds [0, %d)", i, len(td.Types))
	}
	return td.Types[i], nil
}

// Equals checks if two TupleDescriptions have the same field types in the same order.
// Field names are not compared.
func (td *TupleDescription) Equals(other *TupleDescription) bool {
	if other == nil || len(td.Types) != len(other.Types) {
		return false
	}
	for i, fieldType := range td.Types {
		if fieldType != other.Types[i] {
			return false
		}
	}
	return true
}

// String returns a string representation of this TupleDescription.
// Format: "Type1(fieldName1),Type2(fieldName2),..."
func (td *TupleDescription) String() string {
	parts := make([]string, 0, len(td.Types))
	for i, fieldType := range td.Types {
		parts = append(parts, fmt.Sprintf("%s(%s)", fieldType.String(), td.FieldNames[i]))
	}
	return strings.Join(parts, ",")
}

// FindFieldIndex locates a field by name in the tuple descriptor.
// Performs case-sensitive linear search through the schema definition.
func (td *TupleDescription) FindFieldIndex(fieldName string) (int, error) {
	for i, name := range td.FieldNames {
		if name == fieldName {
			return i, nil
		}
	}
	return -1, fmt.Errorf("column %s not found", fieldName)
}

// Project returns the schema made of the fields at indices, in that order.
func (td *TupleDescription) Project(indices []int) (*TupleDescription, error) {
	fieldTypes := make([]types.Type, len(indices))
	fieldNames := make([]string, len(indices))
	for i, idx := range indices {
		t, err := td.TypeAtIndex(idx)
		if err != nil {
			return nil, err
		}
		fieldTypes[i] = t
		fieldNames[i] = td.FieldNames[idx]
	}
	return NewTupleDesc(fieldTypes, fieldNames)
}

// Combine merges two TupleDescriptions into one.
// The resulting descriptor contains all fields from td1 followed by all fields from td2.
// If either descriptor is nil, returns the other descriptor.
func Combine(td1, td2 *TupleDescription) *TupleDescription {
	if td1 == nil {
		return td2
	}
	if td2 == nil {
		return td1
	}

	newTypes := make([]types.Type, 0, len(td1.Types)+len(td2.Types))
	newTypes = append(newTypes, td1.Types...)
	newTypes = append(newTypes, td2.Types...)

	newFieldNames := make([]string, 0, len(newTypes))
	newFieldNames = append(newFieldNames, td1.FieldNames...)
	newFieldNames = append(newFieldNames, td2.FieldNames...)

	return &TupleDescription{Types: newTypes, FieldNames: newFieldNames}
}
