package types

import (
	"fmt"
	"strconv"
	"strings"
)

// CreateFieldFromConstant parses a textual constant (for example a CSV cell)
// into a field of type t. The empty string and "?" produce a missing cell.
func CreateFieldFromConstant(t Type, constant string) (Field, error) {
	if constant == "" || constant == "?" {
		if !t.IsValid() {
			return nil, fmt.Errorf("unsupported field type: %v", t)
		}
		return NewMissingField(t), nil
	}

	switch t {
	case IntType:
		intVal, err := strconv.ParseInt(strings.TrimSpace(constant), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid int constant %q: %w", constant, err)
		}
		return NewIntField(intVal), nil

	case BoolType:
		boolVal, err := strconv.ParseBool(strings.TrimSpace(constant))
		if err != nil {
			return nil, fmt.Errorf("invalid bool constant %q: %w", constant, err)
		}
		return NewBoolField(boolVal), nil

	case FloatType:
		floatVal, err := strconv.ParseFloat(strings.TrimSpace(constant), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float constant %q: %w", constant, err)
		}
		return NewFloat64Field(floatVal), nil

	case StringType:
		return NewStringField(constant), nil
	default:
		return nil, fmt.Errorf("unsupported field type: %v", t)
	}
}
