package checker

import "errors"

var (
	// ErrEmptyBatch means the request carried no address list, or an empty one.
	ErrEmptyBatch = errors.New("no email addresses provided")
	// ErrBatchTooLarge means the list exceeds the per-request ceiling.
	ErrBatchTooLarge = errors.New("too many email addresses")
	// ErrInvalidRequest means the request body is not valid JSON.
	ErrInvalidRequest = errors.New("invalid request body")
)
