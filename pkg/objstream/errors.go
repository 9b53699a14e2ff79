package objstream

import "errors"

// ErrMagicNotFound is returned by Scan when a buffer has no stream magic.
var ErrMagicNotFound = errors.New("stream magic not found")

// Decoding errors.
var (
	ErrInvalidHeader          = errors.New("invalid stream header")
	ErrUnknownTypeCode        = errors.New("unknown type code")
	ErrTruncatedStream        = errors.New("truncated stream")
	ErrInvalidHandleReference = errors.New("invalid handle reference")
	ErrNestingTooDeep         = errors.New("nesting too deep")
)

// Encoding errors.
var (
	ErrDanglingReference = errors.New("dangling reference")
	ErrFieldMismatch     = errors.New("field mismatch")
	ErrValueOutOfRange   = errors.New("value out of range")
)
