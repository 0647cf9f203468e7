package run

import (
	"sync"
)

// Scope is one level of the run's variable binding table. Reads fall through
// to the parent chain; writes stay local until explicitly published and
// promoted by the scheduler at a merge-back point. Concurrent branches each
// own a child scope, so the only cross-scope traffic is parent reads.
type Scope struct {
	parent    *Scope
	vars      map[string]interface{}
	published []string
	mu        sync.RWMutex
}

// NewScope creates a root scope seeded with the given bindings.
func NewScope(initial map[string]interface{}) *Scope {
	vars := make(map[string]interface{}, len(initial))
	for k, v := range initial {
		vars[k] = v
	}
	return &Scope{vars: vars}
}

// Child creates a nested scope that reads through to s.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s, vars: make(map[string]interface{})}
}

// Lookup resolves a binding, walking up the parent chain.
func (s *Scope) Lookup(name string) (interface{}, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		v, ok := cur.vars[name]
		cur.mu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// Set writes a binding local to this scope.
func (s *Scope) Set(name string, value interface{}) {
	s.mu.Lock()
	s.vars[name] = value
	s.mu.Unlock()
}

// Publish marks a local binding for promotion at the next merge-back.
// Publication order is preserved so promotion stays deterministic.
func (s *Scope) Publish(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.published {
		if p == name {
			return
		}
	}
	s.published = append(s.published, name)
}

// Published returns the names marked for promotion, in publication order.
func (s *Scope) Published() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.published))
	copy(out, s.published)
	return out
}

// PromoteTo copies this scope's published bindings into target, in
// publication order, and re-marks them so they keep propagating upward.
func (s *Scope) PromoteTo(target *Scope) {
	for _, name := range s.Published() {
		if v, ok := s.Lookup(name); ok {
			target.Set(name, v)
			target.Publish(name)
		}
	}
}

// Locals returns a copy of this scope's own bindings, parents excluded.
func (s *Scope) Locals() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interface{}, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}
