package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/zkslice/internal/policy"
)

// ContractError reports a broken engine or policy invariant.
//
// Contract errors are fatal: the engine stops at the first one and returns
// it from every later call. They include:
//   - a transaction started while already open
//   - a commit for a transaction that was never started
//   - a policy answering Reset with anything but Noop
//   - the safe-cut cursor moving backward
type ContractError struct {
	// Code identifies the broken invariant.
	Code ContractErrorCode

	// Message is a human-readable description.
	Message string

	// ID is the transaction involved, if any.
	ID policy.TransactionID

	// EID is the trace entry being inserted when the error surfaced.
	EID uint64
}

// ContractErrorCode categorizes contract errors.
type ContractErrorCode string

const (
	// ErrCodeAlreadyOpen indicates a start for an id that is already open.
	ErrCodeAlreadyOpen ContractErrorCode = "TRANSACTION_ALREADY_OPEN"

	// ErrCodeNotOpen indicates a commit for an id that is not open.
	ErrCodeNotOpen ContractErrorCode = "TRANSACTION_NOT_OPEN"

	// ErrCodeResetNotNoop indicates the policy answered Reset with a command.
	ErrCodeResetNotNoop ContractErrorCode = "RESET_NOT_NOOP"

	// ErrCodeCursorRegression indicates the safe cut moved backward.
	ErrCodeCursorRegression ContractErrorCode = "CURSOR_REGRESSION"

	// ErrCodeRepeatedAbort indicates the policy aborted the same entry twice.
	ErrCodeRepeatedAbort ContractErrorCode = "REPEATED_ABORT"

	// ErrCodeIncompleteGroup indicates a group was still open at Finalize.
	ErrCodeIncompleteGroup ContractErrorCode = "INCOMPLETE_GROUP"

	// ErrCodeUnknownCommand indicates a command kind the engine does not know.
	ErrCodeUnknownCommand ContractErrorCode = "UNKNOWN_COMMAND"

	// ErrCodeFinalized indicates an Insert after Finalize.
	ErrCodeFinalized ContractErrorCode = "FINALIZED"
)

// Error implements the error interface.
func (e *ContractError) Error() string {
	if e.EID != 0 {
		return fmt.Sprintf("%s: %s (eid=%d)", e.Code, e.Message, e.EID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsContractError reports whether err is a contract error with the given
// code. Uses errors.As to handle wrapped errors.
func IsContractError(err error, code ContractErrorCode) bool {
	var ce *ContractError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// ContractCode returns the code of a contract error, or "" for any other
// error.
func ContractCode(err error) ContractErrorCode {
	var ce *ContractError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// SinkError wraps a failure of the slice sink.
type SinkError struct {
	Index int
	Err   error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("push slice %d: %v", e.Index, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
