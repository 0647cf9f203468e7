package capability

import (
	"fmt"
	"sync"
)

// Registry holds named capability invokers. It is passed into the engine at
// construction so multiple runs and tests can use isolated registries; there
// is no process-wide registry.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]Invoker
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{capabilities: make(map[string]Invoker)}
}

// Register binds a name to an invoker. Duplicate names are rejected so a
// misconfigured recipe fails at wiring time rather than mid-run.
func (r *Registry) Register(name string, inv Invoker) error {
	if name == "" {
		return ErrEmptyName
	}
	if inv == nil {
		return ErrNilInvoker
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.capabilities[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCapability, name)
	}
	r.capabilities[name] = inv
	return nil
}

// RegisterFunc binds a name to a plain function.
func (r *Registry) RegisterFunc(name string, fn Func) error {
	return r.Register(name, fn)
}

// Resolve returns the invoker registered under name.
func (r *Registry) Resolve(name string) (Invoker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.capabilities[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return inv, nil
}

// Names returns the registered capability names, unordered.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	return names
}
