package types

import (
	"io"
	"math"
	"strconv"
)

// Float64Field is a double-precision cell.
type Float64Field struct {
	Value float64
}

func NewFloat64Field(value float64) *Float64Field {
	return &Float64Field{Value: value}
}

func (f *Float64Field) Serialize(w io.Writer) error {
	return writeUint64(w, math.Float64bits(f.Value))
}

func (f *Float64Field) Type() Type { return FloatType }

func (f *Float64Field) String() string {
	return strconv.FormatFloat(f.Value, 'f', -1, 64)
}

// Equals compares canonical bit patterns: -0 equals +0 and NaN equals NaN,
// matching the key encoding.
func (f *Float64Field) Equals(other Field) bool {
	o, ok := other.(*Float64Field)
	return ok && canonicalFloatBits(f.Value) == canonicalFloatBits(o.Value)
}

func (f *Float64Field) MemSize() int64 { return fieldHeader + 8 }

func (f *Float64Field) IsMissing() bool { return false }

// canonicalFloatBits folds -0 onto +0 and every NaN onto one pattern.
func canonicalFloatBits(v float64) uint64 {
	switch {
	case v == 0:
		return 0
	case math.IsNaN(v):
		return 0x7ff8000000000001
	default:
		return math.Float64bits(v)
	}
}
