package constants

import "errors"

// Errors
var (
	ErrInvalidResponse = errors.New("invalid response from the remote store")
	ErrNoBaseURL       = errors.New("base url not set")
	ErrNoToken         = errors.New("auth token not set")
	ErrNoUserID        = errors.New("user id not known")

	// ErrRefreshAfterSubmit wraps refresh failures that follow a successful
	// submission. The operations were applied remotely and must not be resent.
	ErrRefreshAfterSubmit = errors.New("transaction submitted, refreshing touched blocks failed")
)

// ErrUsage is wrapped by every error caused by malformed caller input.
// These errors are returned synchronously and are never retried.
var ErrUsage = errors.New("usage error")

var (
	ErrInvalidID          = usage("invalid record id")
	ErrInvalidViewURL     = usage("invalid collection view URL")
	ErrCollectionRequired = usage("a collection must be passed along with a collection view id")
	ErrNotCollectionView  = usage("block is not a collection view")
	ErrUnknownTable       = usage("unknown table")
)

type usageError struct {
	msg string
}

func usage(msg string) error {
	return &usageError{msg: msg}
}

func (e *usageError) Error() string {
	return e.msg
}

func (e *usageError) Is(target error) bool {
	return target == ErrUsage
}
