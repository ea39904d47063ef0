package types

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// maxStringLength bounds the length prefix accepted when parsing a string
// cell, so a corrupt spill block fails instead of allocating gigabytes.
const maxStringLength = 64 << 20

// ParseField reads and parses a field from the given reader based on the specified field type.
// This function acts as a dispatcher to the appropriate type-specific parsing function.
//
// Parameters:
//   - r: The io.Reader to read the serialized field data from
//   - fieldType: The Type of field to parse
//
// Returns:
//   - Field: The parsed field instance of the appropriate type
//   - error: An error if the field type is unsupported or parsing fails
func ParseField(r io.Reader, fieldType Type) (Field, error) {
	switch fieldType {
	case IntType:
		return parseIntField(r)

	case StringType:
		return parseStringField(r)

	case BoolType:
		return parseBoolField(r)

	case FloatType:
		return parseFloat64Field(r)

	default:
		return nil, fmt.Errorf("unsupported field type: %v", fieldType)
	}
}

func parseIntField(r io.Reader) (*IntField, error) {
	bytes, err := readBytes(r, IntType.Size())
	if err != nil {
		return nil, err
	}
	return NewIntField(int64(binary.BigEndian.Uint64(bytes))), nil // #nosec G115
}

func parseFloat64Field(r io.Reader) (*Float64Field, error) {
	bytes, err := readBytes(r, FloatType.Size())
	if err != nil {
		return nil, err
	}
	return NewFloat64Field(math.Float64frombits(binary.BigEndian.Uint64(bytes))), nil
}

func parseBoolField(r io.Reader) (*BoolField, error) {
	bytes, err := readBytes(r, BoolType.Size())
	if err != nil {
		return nil, err
	}
	switch bytes[0] {
	case 0:
		return NewBoolField(false), nil
	case 1:
		return NewBoolField(true), nil
	default:
		return nil, fmt.Errorf("invalid boolean byte %#x", bytes[0])
	}
}

// parseStringField reads a length-prefixed string:
// 4 bytes big-endian length followed by the string bytes.
func parseStringField(r io.Reader) (*StringField, error) {
	lengthBytes, err := readBytes(r, 4)
	if err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lengthBytes)
	if length > maxStringLength {
		return nil, fmt.Errorf("string length %d exceeds limit %d", length, maxStringLength)
	}

	value, err := readBytes(r, length)
	if err != nil {
		return nil, err
	}
	return NewStringField(string(value)), nil
}
