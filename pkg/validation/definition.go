// Package validation provides load-time validation for recipe definitions.
// Malformed definitions are rejected here, before any execution, and every
// failure wraps ErrDefinition so callers can classify it with errors.Is.
package validation

import (
	"fmt"

	"github.com/recipeflow/recipeflow/internal/core/step"
)

// Library resolves SubWorkflow refs to definitions during validation.
type Library interface {
	Get(id string) (*step.Definition, error)
}

// Options controls optional validation checks.
type Options struct {
	// Library enables SubWorkflow ref resolution and cycle detection.
	// When nil, refs are only checked for non-emptiness.
	Library Library
}

// ValidateDefinition performs structural validation on a definition: per-step
// variant checks, step ID uniqueness, and (with a library) SubWorkflow ref
// resolution plus cycle detection across the reference graph.
func ValidateDefinition(def *step.Definition, opts ...Options) error {
	if err := def.Validate(); err != nil {
		return wrapDefinition(err)
	}

	seen := make(map[string]struct{})
	err := def.Root.Walk(func(s *step.Step) error {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("step %q: %w", s.ID, err)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("step %q: %w", s.ID, step.ErrDuplicateStepID)
		}
		seen[s.ID] = struct{}{}
		return nil
	})
	if err != nil {
		return wrapDefinition(err)
	}

	var cfg Options
	if len(opts) > 0 {
		cfg = opts[0]
	}
	if cfg.Library != nil {
		if err := checkReferences(def, cfg.Library); err != nil {
			return wrapDefinition(err)
		}
	}
	return nil
}

// checkReferences resolves every SubWorkflow ref reachable from def and
// rejects self or mutual reference cycles using DFS with coloring.
func checkReferences(def *step.Definition, lib Library) error {
	const (
		white = 0 // unvisited
		gray  = 1 // visiting
		black = 2 // visited
	)
	color := make(map[string]int)

	var visit func(d *step.Definition) error
	visit = func(d *step.Definition) error {
		color[d.ID] = gray
		err := d.Root.Walk(func(s *step.Step) error {
			if s.Type != step.TypeSubWorkflow {
				return nil
			}
			child, gerr := lib.Get(s.Ref)
			if gerr != nil {
				return fmt.Errorf("step %q ref %q: %w", s.ID, s.Ref, step.ErrUnresolvedRef)
			}
			switch color[child.ID] {
			case gray:
				return fmt.Errorf("definition %q via step %q: %w", child.ID, s.ID, step.ErrCyclicReference)
			case white:
				return visit(child)
			}
			return nil
		})
		if err != nil {
			return err
		}
		color[d.ID] = black
		return nil
	}
	return visit(def)
}

func wrapDefinition(err error) error {
	return &definitionError{err: err}
}
