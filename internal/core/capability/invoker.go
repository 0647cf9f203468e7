// Package capability defines the single boundary contract the engine needs
// from every wrapped tool, agent call, or external integration: invoke a
// named capability with an input map and get an output map or a classified
// error back. The engine has no knowledge of what a capability does.
package capability

import (
	"context"
	"errors"
	"fmt"
)

// Invoker is the external collaborator contract. Implementations must be
// safe for concurrent invocation from multiple branches.
type Invoker interface {
	Invoke(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}

// Func adapts a plain function to the Invoker interface.
type Func func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)

// Invoke calls the wrapped function.
func (f Func) Invoke(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	return f(ctx, input)
}

// Error classifies a capability failure. Transient failures are retryable
// per the step's retry policy; permanent ones are not.
type Error struct {
	Capability string
	Transient  bool
	Err        error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("capability %s failed (%s): %v", e.Capability, kind, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransient wraps err as a retryable capability failure.
func NewTransient(capability string, err error) *Error {
	return &Error{Capability: capability, Transient: true, Err: err}
}

// NewPermanent wraps err as a non-retryable capability failure.
func NewPermanent(capability string, err error) *Error {
	return &Error{Capability: capability, Transient: false, Err: err}
}

// IsTransient reports whether err is a retryable capability failure.
// Context deadline errors count as transient per the timeout policy.
func IsTransient(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Transient
	}
	return errors.Is(err, context.DeadlineExceeded)
}
