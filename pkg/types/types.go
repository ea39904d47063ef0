package types

import "fmt"

type Type int

const (
	IntType Type = iota
	StringType
	BoolType
	FloatType
)

// String returns a string representation of the type
func (t Type) String() string {
	switch t {
	case IntType:
		return "INT_TYPE"
	case StringType:
		return "STRING_TYPE"
	case BoolType:
		return "BOOL_TYPE"
	case FloatType:
		return "FLOAT_TYPE"
	default:
		return "UNKNOWN_TYPE"
	}
}

// Size returns the serialized width in bytes of a fixed-width type.
// Strings are length-prefixed and report 0.
func (t Type) Size() uint32 {
	switch t {
	case IntType, FloatType:
		return 8
	case BoolType:
		return 1
	default:
		return 0
	}
}

// IsValid reports whether t is one of the known cell types.
func (t Type) IsValid() bool {
	return t >= IntType && t <= FloatType
}

// IsNumeric reports whether t holds numbers.
func (t Type) IsNumeric() bool {
	return t == IntType || t == FloatType
}

// ParseType maps a type name as written in configuration or CSV headers
// ("int", "string", "bool", "float") to a Type.
func ParseType(name string) (Type, error) {
	switch name {
	case "int", "INT", "INT_TYPE", "long":
		return IntType, nil
	case "string", "STRING", "STRING_TYPE", "str":
		return StringType, nil
	case "bool", "BOOL", "BOOL_TYPE", "boolean":
		return BoolType, nil
	case "float", "FLOAT", "FLOAT_TYPE", "double":
		return FloatType, nil
	default:
		return 0, fmt.Errorf("unknown column type %q", name)
	}
}
