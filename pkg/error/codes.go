package error

import "fmt"

// Codes printed by JoinError.Error.
const (
	CodeInvalidSpecification   = "INVALID_SPECIFICATION"
	CodeCancelled              = "CANCELLED"
	CodeStorageFailure         = "STORAGE_FAILURE"
	CodeUnsupportedCombination = "UNSUPPORTED_COMBINATION"
)

// Sentinels for errors.Is. They are never returned directly.
var (
	ErrInvalidSpecification   = &JoinError{Kind: KindInvalidSpecification, Message: "invalid join specification"}
	ErrCancelled              = &JoinError{Kind: KindCancelled, Message: "execution cancelled"}
	ErrStorageFailure         = &JoinError{Kind: KindStorageFailure, Message: "spill storage failure"}
	ErrUnsupportedCombination = &JoinError{Kind: KindUnsupportedCombination, Message: "unsupported combination"}
)

// InvalidSpecification reports a join definition rejected at construction.
func InvalidSpecification(format string, args ...any) *JoinError {
	err := New(KindInvalidSpecification, ErrInvalidSpecification.Message)
	err.Detail = fmt.Sprintf(format, args...)
	return err
}

// Cancelled reports cooperative cancellation; cause is what the monitor returned.
func Cancelled(cause error) *JoinError {
	err := New(KindCancelled, ErrCancelled.Message)
	err.Cause = cause
	return err
}

// StorageFailure reports a spill read or write failure. detail names the
// partition or file involved.
func StorageFailure(cause error, detail string) *JoinError {
	err := New(KindStorageFailure, ErrStorageFailure.Message)
	err.Detail = detail
	err.Cause = cause
	return err
}

// UnsupportedCombination reports an output order the active execution mode
// cannot honor.
func UnsupportedCombination(detail, hint string) *JoinError {
	err := New(KindUnsupportedCombination, ErrUnsupportedCombination.Message)
	err.Detail = detail
	err.Hint = hint
	return err
}
