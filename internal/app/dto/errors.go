package dto

import "errors"

// Engine API errors
var (
	ErrMissingDefinition   = errors.New("definition is required")
	ErrMissingRegistry     = errors.New("capability registry is required")
	ErrMissingSaver        = errors.New("checkpoint saver is required")
	ErrRunStillActive      = errors.New("run is still active")
	ErrDefinitionNotFound  = errors.New("definition not found")
	ErrDuplicateDefinition = errors.New("definition already registered")
)
