package types

import "io"

// Field is a single cell value. Every field carries its declared column type,
// including missing cells, so a missing int is distinguishable from a missing
// string.
type Field interface {
	// Serialize writes the value in its fixed binary form (see ParseField).
	// Missing cells write nothing.
	Serialize(w io.Writer) error

	Type() Type

	String() string

	// Equals is value equality. It agrees with AppendKey.
	Equals(other Field) bool

	// MemSize approximates the heap bytes the value holds.
	MemSize() int64

	IsMissing() bool
}

// fieldHeader approximates the interface word plus the boxed value header.
const fieldHeader = 16
