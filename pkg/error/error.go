package error

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Kind classifies a join failure. Callers branch on it through errors.Is and
// the sentinels in codes.go.
type Kind int

const (
	// KindInvalidSpecification: the join definition was rejected before any
	// row was read. Examples: unknown join column, mismatched key arity.
	KindInvalidSpecification Kind = iota + 1

	// KindCancelled: the execution monitor asked to stop. Partial output
	// is discarded.
	KindCancelled

	// KindStorageFailure: spill or row files could not be written or read
	// back. Examples: spill directory full, truncated partition file.
	KindStorageFailure

	// KindUnsupportedCombination: the options are valid alone but the
	// execution mode cannot honor them together.
	KindUnsupportedCombination
)

// Code is the stable identifier printed in brackets by Error.
func (k Kind) Code() string {
	switch k {
	case KindInvalidSpecification:
		return CodeInvalidSpecification
	case KindCancelled:
		return CodeCancelled
	case KindStorageFailure:
		return CodeStorageFailure
	case KindUnsupportedCombination:
		return CodeUnsupportedCombination
	default:
		return "UNKNOWN"
	}
}

func (k Kind) String() string { return k.Code() }

// Retryable reports whether running the same join again may succeed.
func (k Kind) Retryable() bool {
	return k == KindCancelled || k == KindStorageFailure
}

// JoinError is a classified failure with the context it was raised in.
type JoinError struct {
	Kind Kind

	// Message is fixed per kind; Detail describes this instance.
	Message string
	Detail  string

	// Hint suggests a way around the failure.
	// Example: "use ARBITRARY or LEFT_RIGHT order when memory is low".
	Hint string

	// Operation and Component locate the failure.
	// Examples: "JoinOutputCombined" in "HybridHashJoin", "WritePartition" in "Spill".
	Operation string
	Component string

	Cause error

	// Stack is captured by New and Wrap.
	Stack []uintptr
}

// New creates a JoinError of the given kind.
func New(kind Kind, message string) *JoinError {
	return &JoinError{
		Kind:    kind,
		Message: message,
		Stack:   captureStack(),
	}
}

// Wrap attaches operation context to err. A JoinError anywhere in the chain
// is enriched in place (empty fields only) and returned; anything else
// becomes a new JoinError of the given kind with err as its cause.
func Wrap(err error, kind Kind, operation, component string) *JoinError {
	if err == nil {
		return nil
	}

	var je *JoinError
	if errors.As(err, &je) {
		if je.Operation == "" {
			je.Operation = operation
		}
		if je.Component == "" {
			je.Component = component
		}
		return je
	}

	return &JoinError{
		Kind:      kind,
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

// captureStack skips runtime.Callers, captureStack and New/Wrap.
func captureStack() []uintptr {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[:n]
}

// Error renders
//
//	[CODE] Message: Detail (operation: Operation, component: Component) caused by: Cause
//
// leaving out empty parts.
func (e *JoinError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind.Code(), e.Message)
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if e.Operation != "" {
		fmt.Fprintf(&b, " (operation: %s", e.Operation)
		if e.Component != "" {
			fmt.Fprintf(&b, ", component: %s", e.Component)
		}
		b.WriteString(")")
	}
	if e.Cause != nil && e.Cause.Error() != e.Message {
		fmt.Fprintf(&b, " caused by: %v", e.Cause)
	}
	return b.String()
}

// Is matches any JoinError of the same kind.
func (e *JoinError) Is(target error) bool {
	t, ok := target.(*JoinError)
	return ok && t.Kind != 0 && t.Kind == e.Kind
}

func (e *JoinError) Unwrap() error {
	return e.Cause
}

// FormatStack renders the captured stack, one frame per entry.
func (e *JoinError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Stack trace:\n")
	frames := runtime.CallersFrames(e.Stack)
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "  %s\n    %s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}
	return b.String()
}

// KindOf returns the kind of the first JoinError in err's chain, or 0.
func KindOf(err error) Kind {
	var je *JoinError
	if errors.As(err, &je) {
		return je.Kind
	}
	return 0
}
