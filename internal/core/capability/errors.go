package capability

import "errors"

// Registry errors
var (
	ErrNotFound            = errors.New("capability not registered")
	ErrDuplicateCapability = errors.New("capability already registered")
	ErrEmptyName           = errors.New("capability name cannot be empty")
	ErrNilInvoker          = errors.New("capability invoker cannot be nil")
)
