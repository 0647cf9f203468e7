// Package library provides definition storage for SubWorkflow resolution.
package library

import (
	"fmt"
	"sort"
	"sync"

	"github.com/recipeflow/recipeflow/internal/app/dto"
	"github.com/recipeflow/recipeflow/internal/core/step"
)

// InMemory is a thread-safe, in-process definition library. Definitions are
// treated as immutable once saved; Save replaces an existing entry only when
// the version string differs.
type InMemory struct {
	mu          sync.RWMutex
	definitions map[string]*step.Definition
}

// NewInMemory creates an empty definition library.
func NewInMemory() *InMemory {
	return &InMemory{definitions: make(map[string]*step.Definition)}
}

// Save stores a definition under its ID.
func (l *InMemory) Save(def *step.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.definitions[def.ID]; ok && existing.Version == def.Version {
		return fmt.Errorf("%w: %s@%s", dto.ErrDuplicateDefinition, def.ID, def.Version)
	}
	l.definitions[def.ID] = def
	return nil
}

// Get returns the definition stored under id.
func (l *InMemory) Get(id string) (*step.Definition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	def, ok := l.definitions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dto.ErrDefinitionNotFound, id)
	}
	return def, nil
}

// List returns the stored definitions sorted by ID.
func (l *InMemory) List() []*step.Definition {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*step.Definition, 0, len(l.definitions))
	for _, def := range l.definitions {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
