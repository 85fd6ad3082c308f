package domain

import "errors"

// ErrUsage is the parent of every malformed-call error. Usage errors are
// surfaced immediately and never retried.
var ErrUsage = errors.New("invalid usage")

var (
	// ErrInvalidQuery signals a query call with both or neither argument forms.
	ErrInvalidQuery = newUsageError("query takes either a text term or one or more fields")
	// ErrInvalidFilter signals an unsupported filter operator or a malformed or_ group.
	ErrInvalidFilter = newUsageError("invalid filter")
	// ErrExcerptBeforeFetch signals an excerpt request on an unrealized search.
	ErrExcerptBeforeFetch = newUsageError("excerpt called before results were fetched")
	// ErrUnknownStep signals a request step outside the closed set of builder calls.
	ErrUnknownStep = newUsageError("unknown request step")
	// ErrIndexOutOfRange signals positional access past the end of the results.
	ErrIndexOutOfRange = newUsageError("index out of range")
	// ErrNoResolver signals object results requested without an id resolver.
	ErrNoResolver = newUsageError("no resolver configured for object results")
	// ErrNoIndex signals a mapping with neither its own nor a default index.
	ErrNoIndex = newUsageError("no index configured")
)

// UsageError is a named usage failure that unwraps to ErrUsage.
type UsageError struct {
	msg string
}

func newUsageError(msg string) *UsageError {
	return &UsageError{msg: msg}
}

func (e *UsageError) Error() string { return e.msg }

func (e *UsageError) Unwrap() error { return ErrUsage }
