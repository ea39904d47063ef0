package types

import "fmt"

// Convert returns f as a cell of type t. Missing cells stay missing, any
// cell converts to a string, and ints widen to floats.
func Convert(f Field, t Type) (Field, error) {
	if IsMissing(f) {
		return NewMissingField(t), nil
	}
	if f.Type() == t {
		return f, nil
	}
	switch t {
	case StringType:
		return NewStringField(f.String()), nil
	case FloatType:
		if v, ok := f.(*IntField); ok {
			return NewFloat64Field(float64(v.Value)), nil
		}
	}
	return nil, fmt.Errorf("cannot convert %v to %v", f.Type(), t)
}

// CommonType is the narrowest type both a and b convert to.
func CommonType(a, b Type) Type {
	switch {
	case a == b:
		return a
	case a.IsNumeric() && b.IsNumeric():
		return FloatType
	default:
		return StringType
	}
}
