package types

import (
	"errors"
	"fmt"
)

var (
	ErrNoProvider          = errors.New("no wallet provider detected")
	ErrUserRejected        = errors.New("user rejected the request")
	ErrRejectedBySigner    = errors.New("signer rejected the transaction")
	ErrReadFailure         = errors.New("contract read failed")
	ErrSubmissionFailure   = errors.New("transaction submission failed")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrTransactionDropped  = errors.New("transaction dropped")
)

// OpError records the operation that failed, the failure kind and its cause.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func NewOpError(op string, kind, err error) *OpError {
	return &OpError{Op: op, Kind: kind, Err: err}
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsUserActionable reports whether err should be surfaced to the user as an alert.
func IsUserActionable(err error) bool {
	return errors.Is(err, ErrNoProvider) ||
		errors.Is(err, ErrUserRejected) ||
		errors.Is(err, ErrRejectedBySigner)
}

// UserMessage returns the alert text for err, or an empty string for errors that are
// only logged.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoProvider):
		return "No wallet detected. Install or configure a wallet provider to wave."
	case errors.Is(err, ErrUserRejected):
		return "The wallet request was rejected."
	case errors.Is(err, ErrRejectedBySigner):
		return "The wave transaction was not signed."
	default:
		return ""
	}
}
