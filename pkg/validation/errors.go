package validation

import "errors"

// ErrDefinition marks any load-time definition failure. Specific causes
// remain reachable through errors.Is/As on the wrapped chain.
var ErrDefinition = errors.New("invalid definition")

type definitionError struct {
	err error
}

func (e *definitionError) Error() string {
	return "invalid definition: " + e.err.Error()
}

func (e *definitionError) Unwrap() error {
	return e.err
}

func (e *definitionError) Is(target error) bool {
	return target == ErrDefinition
}
