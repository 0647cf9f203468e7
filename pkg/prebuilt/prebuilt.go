// Package prebuilt provides ready-made recipe definitions for the two
// common aggregation styles: parallel diagnosis feeding hypothesis ranking,
// and foreach prioritization feeding composite scoring.
package prebuilt

import (
	"fmt"

	"github.com/recipeflow/recipeflow/pkg/recipeflow"
)

// Check is one diagnostic probe in a Diagnosis recipe.
type Check struct {
	// Name identifies the step; must be unique within the recipe.
	Name string
	// Capability is the registered invoker to call.
	Capability string
	// Category is the hypothesis this check's evidence supports.
	Category string
	// ConfidenceFrom names the output field carrying the confidence value;
	// when empty, Confidence is used as a fixed value.
	ConfidenceFrom string
	Confidence     float64
	// Input is passed to the capability; "$name" values resolve bindings.
	Input map[string]interface{}
}

// Diagnosis builds a recipe that fans all checks out in parallel with an
// all-join and skip-on-failure, so one failing probe never hides evidence
// from the others. The final report ranks hypotheses per category.
func Diagnosis(id, name string, checks []Check) *recipeflow.Definition {
	branches := make([]*recipeflow.Step, 0, len(checks))
	for _, c := range checks {
		branches = append(branches, &recipeflow.Step{
			ID:         c.Name,
			Type:       recipeflow.TypeAction,
			Capability: c.Capability,
			Input:      c.Input,
			OnFailure:  recipeflow.Skip,
			Evidence: &recipeflow.EvidenceSpec{
				Category:       c.Category,
				Description:    fmt.Sprintf("%s check", c.Name),
				Confidence:     c.Confidence,
				ConfidenceFrom: c.ConfidenceFrom,
			},
		})
	}
	return &recipeflow.Definition{
		ID:      id,
		Name:    name,
		Version: "1",
		Root: &recipeflow.Step{
			ID:   "diagnose",
			Type: recipeflow.TypeSequence,
			Steps: []*recipeflow.Step{
				{
					ID:       "checks",
					Type:     recipeflow.TypeParallel,
					Branches: branches,
					Join:     &recipeflow.Join{Policy: recipeflow.JoinAll},
				},
			},
		},
	}
}

// Prioritization builds a recipe that iterates a bound list of subjects,
// scores each with the given capability, and submits weighted factors for
// composite ranking. source names the binding holding the list; the scoring
// capability receives each element as "item" and must return the subject
// name under "subject" and a factor map under "factors".
func Prioritization(id, name, source, scoreCapability string, weights map[string]float64, maxConcurrency int) *recipeflow.Definition {
	return &recipeflow.Definition{
		ID:      id,
		Name:    name,
		Version: "1",
		Root: &recipeflow.Step{
			ID:   "prioritize",
			Type: recipeflow.TypeSequence,
			Steps: []*recipeflow.Step{
				{
					ID:             "score-items",
					Type:           recipeflow.TypeForEach,
					Source:         source,
					Item:           "item",
					MaxConcurrency: maxConcurrency,
					Body: &recipeflow.Step{
						ID:         "score",
						Type:       recipeflow.TypeAction,
						Capability: scoreCapability,
						Input:      map[string]interface{}{"item": "$item"},
						Score: &recipeflow.ScoreSpec{
							SubjectFrom: "subject",
							Weights:     weights,
							FactorsFrom: "factors",
						},
					},
				},
			},
		},
	}
}
