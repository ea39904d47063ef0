package join

import (
	"fmt"
	"strings"
)

// JoinMode names the supported combinations of retained output.
type JoinMode int

const (
	Inner JoinMode = iota
	LeftOuter
	RightOuter
	FullOuter
	LeftAnti
	RightAnti
)

func (m JoinMode) String() string {
	switch m {
	case Inner:
		return "INNER"
	case LeftOuter:
		return "LEFT_OUTER"
	case RightOuter:
		return "RIGHT_OUTER"
	case FullOuter:
		return "FULL_OUTER"
	case LeftAnti:
		return "LEFT_ANTI"
	case RightAnti:
		return "RIGHT_ANTI"
	default:
		return fmt.Sprintf("JoinMode(%d)", int(m))
	}
}

// Flags returns the retain flags the mode stands for.
func (m JoinMode) Flags() (matches, leftUnmatched, rightUnmatched bool) {
	switch m {
	case Inner:
		return true, false, false
	case LeftOuter:
		return true, true, false
	case RightOuter:
		return true, false, true
	case FullOuter:
		return true, true, true
	case LeftAnti:
		return false, true, false
	case RightAnti:
		return false, false, true
	default:
		return false, false, false
	}
}

// modeOf maps retain flags back to a named mode.
func modeOf(matches, leftUnmatched, rightUnmatched bool) (JoinMode, bool) {
	for m := Inner; m <= RightAnti; m++ {
		a, b, c := m.Flags()
		if a == matches && b == leftUnmatched && c == rightUnmatched {
			return m, true
		}
	}
	return 0, false
}

// ParseJoinMode accepts mode names case-insensitively, with "-" or "_".
func ParseJoinMode(name string) (JoinMode, error) {
	norm := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	for m := Inner; m <= RightAnti; m++ {
		if m.String() == norm {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown join mode %q", name)
}

// OutputOrder is the row order of the join output.
type OutputOrder int

const (
	// OrderArbitrary makes no ordering promise.
	OrderArbitrary OutputOrder = iota
	// OrderProbeHash orders rows by streamed-side offset, then hashed-side
	// offset, with hashed-only rows last. Only available in memory.
	OrderProbeHash
	// OrderLeftRight orders rows with a left part by (left offset, right
	// offset), followed by right-only rows in right-table order.
	OrderLeftRight
)

func (o OutputOrder) String() string {
	switch o {
	case OrderArbitrary:
		return "ARBITRARY"
	case OrderProbeHash:
		return "PROBE_HASH"
	case OrderLeftRight:
		return "LEFT_RIGHT"
	default:
		return fmt.Sprintf("OutputOrder(%d)", int(o))
	}
}

// ParseOutputOrder accepts order names case-insensitively, with "-" or "_".
func ParseOutputOrder(name string) (OutputOrder, error) {
	switch strings.ToUpper(strings.ReplaceAll(name, "-", "_")) {
	case "ARBITRARY", "":
		return OrderArbitrary, nil
	case "PROBE_HASH":
		return OrderProbeHash, nil
	case "LEFT_RIGHT":
		return OrderLeftRight, nil
	default:
		return 0, fmt.Errorf("unknown output order %q", name)
	}
}

// Side identifies one of the two join inputs.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// Other returns the opposite side.
func (s Side) Other() Side {
	return 1 - s
}

// HashSide selects which input is indexed in memory.
type HashSide int

const (
	// HashSideAuto indexes the input with the smaller row-count estimate.
	HashSideAuto HashSide = iota
	HashSideLeft
	HashSideRight
)

// ParseHashSide accepts "auto", "left" or "right".
func ParseHashSide(name string) (HashSide, error) {
	switch strings.ToLower(name) {
	case "auto", "":
		return HashSideAuto, nil
	case "left":
		return HashSideLeft, nil
	case "right":
		return HashSideRight, nil
	default:
		return 0, fmt.Errorf("unknown hash side %q", name)
	}
}

// ExecutionMode reports how much of the join ran in memory.
type ExecutionMode int

const (
	InMemory ExecutionMode = iota
	PartiallyInMemory
	OnDisk
)

func (m ExecutionMode) String() string {
	switch m {
	case InMemory:
		return "IN_MEMORY"
	case PartiallyInMemory:
		return "PARTIALLY_IN_MEMORY"
	case OnDisk:
		return "ON_DISK"
	default:
		return fmt.Sprintf("ExecutionMode(%d)", int(m))
	}
}

// RowKeyMode selects how output row keys are formed.
type RowKeyMode int

const (
	// RowKeysConcat joins input keys with the separator, using "?" for an
	// absent side: "Row0_Row3", "Row1_?", "?_Row4".
	RowKeysConcat RowKeyMode = iota
	// RowKeysSequence numbers output rows Row0, Row1, ... per output table.
	RowKeysSequence
	// RowKeysRetain keeps the left key, or the right key for right-only rows.
	// Keys are only unique if each row matches at most once.
	RowKeysRetain
)

// ParseRowKeyMode accepts "concat", "sequence" or "retain".
func ParseRowKeyMode(name string) (RowKeyMode, error) {
	switch strings.ToLower(name) {
	case "concat", "":
		return RowKeysConcat, nil
	case "sequence":
		return RowKeysSequence, nil
	case "retain":
		return RowKeysRetain, nil
	default:
		return 0, fmt.Errorf("unknown row key mode %q", name)
	}
}
