package types

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// ComparisonMode selects when two join-column cells count as equal.
type ComparisonMode int

const (
	// CompareStrict matches cells of the same type and value.
	CompareStrict ComparisonMode = iota
	// CompareAsString matches cells whose String forms are equal, whatever
	// their types.
	CompareAsString
	// CompareNumericAsLong additionally matches an int cell with a float cell
	// holding the same integral value.
	CompareNumericAsLong
)

func (m ComparisonMode) String() string {
	switch m {
	case CompareStrict:
		return "STRICT"
	case CompareAsString:
		return "AS_STRING"
	case CompareNumericAsLong:
		return "NUMERIC_AS_LONG"
	default:
		return fmt.Sprintf("ComparisonMode(%d)", int(m))
	}
}

// IsValid reports whether m is a known mode.
func (m ComparisonMode) IsValid() bool {
	return m >= CompareStrict && m <= CompareNumericAsLong
}

// ParseComparisonMode accepts mode names case-insensitively, with "-" or "_".
func ParseComparisonMode(name string) (ComparisonMode, error) {
	switch strings.ToUpper(strings.ReplaceAll(name, "-", "_")) {
	case "STRICT", "":
		return CompareStrict, nil
	case "AS_STRING", "STRING":
		return CompareAsString, nil
	case "NUMERIC_AS_LONG", "NUMERIC":
		return CompareNumericAsLong, nil
	default:
		return 0, fmt.Errorf("unknown comparison mode %q", name)
	}
}

// Comparable reports whether columns of types a and b can ever match under m.
func (m ComparisonMode) Comparable(a, b Type) bool {
	switch m {
	case CompareAsString:
		return true
	case CompareNumericAsLong:
		return a == b || (a.IsNumeric() && b.IsNumeric())
	default:
		return a == b
	}
}

// AppendKey appends the canonical key encoding of f to dst. Two fields append
// identical bytes exactly when Equals reports true, which makes the encoding
// usable as a hash-map key for composite join keys. The encoding is
// type-tagged and strings are length-prefixed, so concatenations of several
// fields stay unambiguous.
//
// Missing fields have no key encoding; callers must filter them first.
func AppendKey(dst []byte, f Field) ([]byte, error) {
	return AppendKeyAs(dst, f, CompareStrict)
}

// AppendKeyAs is AppendKey under comparison mode m. Under CompareAsString
// every cell encodes as its String form. Under CompareNumericAsLong a float
// with an integral value in int64 range encodes like the equal int.
func AppendKeyAs(dst []byte, f Field, m ComparisonMode) ([]byte, error) {
	if IsMissing(f) {
		return dst, fmt.Errorf("missing cell has no key encoding")
	}

	switch m {
	case CompareAsString:
		return appendStringKey(dst, f.String()), nil
	case CompareNumericAsLong:
		if v, ok := f.(*Float64Field); ok {
			if n, integral := asInt64(v.Value); integral {
				return appendIntKey(dst, n), nil
			}
		}
	}

	switch v := f.(type) {
	case *IntField:
		return appendIntKey(dst, v.Value), nil
	case *Float64Field:
		dst = append(dst, byte(FloatType))
		return binary.BigEndian.AppendUint64(dst, canonicalFloatBits(v.Value)), nil
	case *BoolField:
		dst = append(dst, byte(BoolType))
		if v.Value {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	case *StringField:
		return appendStringKey(dst, v.Value), nil
	default:
		return dst, fmt.Errorf("unsupported key field %T", f)
	}
}

func appendIntKey(dst []byte, v int64) []byte {
	dst = append(dst, byte(IntType))
	return binary.BigEndian.AppendUint64(dst, uint64(v)) // #nosec G115
}

func appendStringKey(dst []byte, s string) []byte {
	dst = append(dst, byte(StringType))
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

// asInt64 converts v when it is integral and exactly representable.
func asInt64(v float64) (int64, bool) {
	if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}
