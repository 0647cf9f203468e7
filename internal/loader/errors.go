package loader

import "errors"

// Loader errors
var (
	ErrMalformedDocument = errors.New("malformed definition document")
)
