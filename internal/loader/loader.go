// Package loader parses recipe definition documents (YAML or JSON) into the
// core step model. Decoding is strict: unknown or malformed fields are
// rejected at load time, before any execution.
package loader

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/recipeflow/recipeflow/internal/core/step"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// document is the external shape of a definition file.
type document struct {
	ID      string        `yaml:"id" validate:"required"`
	Name    string        `yaml:"name" validate:"required"`
	Version string        `yaml:"version"`
	Root    *documentStep `yaml:"root" validate:"required"`
}

// documentStep mirrors step.Step with wire-friendly field types; durations
// are strings ("30s") parsed during conversion.
type documentStep struct {
	ID   string `yaml:"id" validate:"required"`
	Type string `yaml:"type" validate:"required,oneof=action sequence parallel foreach conditional subworkflow"`

	Capability string                 `yaml:"capability"`
	Input      map[string]interface{} `yaml:"input"`
	Timeout    string                 `yaml:"timeout"`
	OnFailure  string                 `yaml:"on_failure" validate:"omitempty,oneof=fail_fast skip"`
	Retry      *documentRetry         `yaml:"retry"`
	Publish    []string               `yaml:"publish"`
	Evidence   *documentEvidence      `yaml:"evidence"`
	Score      *documentScore         `yaml:"score"`

	Steps    []*documentStep `yaml:"steps"`
	Branches []*documentStep `yaml:"branches"`
	Join     *documentJoin   `yaml:"join"`

	Source         string        `yaml:"source"`
	Item           string        `yaml:"item"`
	Body           *documentStep `yaml:"body"`
	MaxConcurrency int           `yaml:"max_concurrency" validate:"gte=0"`

	Predicate *documentPredicate `yaml:"predicate"`
	Then      *documentStep      `yaml:"then"`
	Else      *documentStep      `yaml:"else"`

	Ref     string            `yaml:"ref"`
	Params  map[string]string `yaml:"params"`
	Results map[string]string `yaml:"results"`
}

type documentRetry struct {
	Attempts   int    `yaml:"attempts" validate:"gte=1"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

type documentJoin struct {
	Policy string `yaml:"policy" validate:"required,oneof=all any quorum"`
	Quorum int    `yaml:"quorum" validate:"gte=0"`
}

type documentPredicate struct {
	Var   string      `yaml:"var" validate:"required"`
	Op    string      `yaml:"op" validate:"required,oneof=eq ne gt lt gte lte exists truthy"`
	Value interface{} `yaml:"value"`
}

type documentEvidence struct {
	Category       string   `yaml:"category" validate:"required"`
	Description    string   `yaml:"description"`
	Confidence     float64  `yaml:"confidence" validate:"gte=0,lte=1"`
	ConfidenceFrom string   `yaml:"confidence_from"`
	DataFields     []string `yaml:"data_fields"`
}

type documentScore struct {
	Subject     string             `yaml:"subject"`
	SubjectFrom string             `yaml:"subject_from"`
	Weights     map[string]float64 `yaml:"weights" validate:"required,min=1"`
	FactorsFrom string             `yaml:"factors_from" validate:"required"`
}

// Load parses a definition document from r.
func Load(r io.Reader) (*step.Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	root, err := doc.Root.toStep()
	if err != nil {
		return nil, err
	}
	return &step.Definition{
		ID:      doc.ID,
		Name:    doc.Name,
		Version: doc.Version,
		Root:    root,
		Created: time.Now(),
	}, nil
}

// LoadFile parses a definition document from disk.
func LoadFile(path string) (*step.Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open definition: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func (d *documentStep) toStep() (*step.Step, error) {
	if d == nil {
		return nil, nil
	}
	if err := validate.Struct(d); err != nil {
		return nil, fmt.Errorf("%w: step %q: %v", ErrMalformedDocument, d.ID, err)
	}

	s := &step.Step{
		ID:             d.ID,
		Type:           step.Type(d.Type),
		Capability:     d.Capability,
		Input:          d.Input,
		OnFailure:      step.FailurePolicy(d.OnFailure),
		Publish:        d.Publish,
		Source:         d.Source,
		Item:           d.Item,
		MaxConcurrency: d.MaxConcurrency,
		Ref:            d.Ref,
		Params:         d.Params,
		Results:        d.Results,
	}

	var err error
	if s.Timeout, err = parseDuration(d.Timeout, d.ID, "timeout"); err != nil {
		return nil, err
	}
	if d.Retry != nil {
		retry := &step.RetryPolicy{Attempts: d.Retry.Attempts}
		if retry.Backoff, err = parseDuration(d.Retry.Backoff, d.ID, "retry.backoff"); err != nil {
			return nil, err
		}
		if retry.MaxBackoff, err = parseDuration(d.Retry.MaxBackoff, d.ID, "retry.max_backoff"); err != nil {
			return nil, err
		}
		s.Retry = retry
	}
	if d.Join != nil {
		s.Join = &step.Join{Policy: step.JoinPolicy(d.Join.Policy), Quorum: d.Join.Quorum}
	}
	if d.Predicate != nil {
		s.Predicate = &step.Predicate{
			Var:   d.Predicate.Var,
			Op:    step.PredicateOp(d.Predicate.Op),
			Value: d.Predicate.Value,
		}
	}
	if d.Evidence != nil {
		s.Evidence = &step.EvidenceSpec{
			Category:       d.Evidence.Category,
			Description:    d.Evidence.Description,
			Confidence:     d.Evidence.Confidence,
			ConfidenceFrom: d.Evidence.ConfidenceFrom,
			DataFields:     d.Evidence.DataFields,
		}
	}
	if d.Score != nil {
		s.Score = &step.ScoreSpec{
			Subject:     d.Score.Subject,
			SubjectFrom: d.Score.SubjectFrom,
			Weights:     d.Score.Weights,
			FactorsFrom: d.Score.FactorsFrom,
		}
	}

	if s.Steps, err = convertSteps(d.Steps); err != nil {
		return nil, err
	}
	if s.Branches, err = convertSteps(d.Branches); err != nil {
		return nil, err
	}
	if s.Body, err = d.Body.toStep(); err != nil {
		return nil, err
	}
	if s.Then, err = d.Then.toStep(); err != nil {
		return nil, err
	}
	if s.Else, err = d.Else.toStep(); err != nil {
		return nil, err
	}
	return s, nil
}

func convertSteps(docs []*documentStep) ([]*step.Step, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	out := make([]*step.Step, 0, len(docs))
	for _, d := range docs {
		s, err := d.toStep()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func parseDuration(raw, stepID, field string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: step %q field %s: %v", ErrMalformedDocument, stepID, field, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("%w: step %q field %s: negative duration", ErrMalformedDocument, stepID, field)
	}
	return dur, nil
}
