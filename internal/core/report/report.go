// Package report provides the evidence aggregator: hypothesis ranking for
// diagnosis-style recipes and composite prioritization scoring for
// impact-style recipes. Both algorithms are fully deterministic so repeated
// runs over the same inputs are bit-reproducible.
package report

import (
	"sort"
	"time"

	"github.com/recipeflow/recipeflow/internal/core/run"
)

// Hypothesis is an aggregated, ranked category of evidence.
type Hypothesis struct {
	Category      string    `json:"category"`
	Confidence    float64   `json:"confidence"`
	EvidenceCount int       `json:"evidence_count"`
	FirstSeen     time.Time `json:"first_seen"`
}

// ScoredItem is a subject with a composite priority score derived from
// weighted factors.
type ScoredItem struct {
	Subject        string             `json:"subject"`
	FactorScores   map[string]float64 `json:"factor_scores"`
	Weights        map[string]float64 `json:"weights"`
	CompositeScore float64            `json:"composite_score"`
	Category       string             `json:"category"`
}

// FinalReport is the run's terminal output: ranked hypotheses, scored
// items, and the full evidence log. A failed run yields a partial report
// with Cause set; partial results are never discarded.
type FinalReport struct {
	RunID        string         `json:"run_id"`
	DefinitionID string         `json:"definition_id"`
	Status       run.Status     `json:"status"`
	Hypotheses   []Hypothesis   `json:"hypotheses"`
	ScoredItems  []ScoredItem   `json:"scored_items"`
	Evidence     []run.Evidence `json:"evidence"`
	Cause        string         `json:"cause,omitempty"`
}

// Threshold bands for composite score categorization, evaluated in
// descending order; the first matching band wins.
const (
	BandCritical = 0.9
	BandHigh     = 0.7
	BandMedium   = 0.4
)

// Categorize maps a composite score to its threshold band.
func Categorize(score float64) string {
	switch {
	case score >= BandCritical:
		return "critical"
	case score >= BandHigh:
		return "high"
	case score >= BandMedium:
		return "medium"
	default:
		return "low"
	}
}

// RankHypotheses groups evidence by category and aggregates confidence per
// category as 1 - product(1 - c_i), treating each item as an independent
// signal with diminishing returns. Error evidence carries no confidence
// signal and only contributes to the count. Ranking is by confidence
// descending, then evidence count descending, then earliest timestamp, then
// category name for a total order.
func RankHypotheses(evidence []run.Evidence) []Hypothesis {
	grouped := make(map[string]*Hypothesis)
	order := make([]string, 0)
	inverse := make(map[string]float64)

	for _, ev := range evidence {
		h, ok := grouped[ev.Category]
		if !ok {
			h = &Hypothesis{Category: ev.Category, FirstSeen: ev.Timestamp}
			grouped[ev.Category] = h
			inverse[ev.Category] = 1.0
			order = append(order, ev.Category)
		}
		h.EvidenceCount++
		if ev.Timestamp.Before(h.FirstSeen) {
			h.FirstSeen = ev.Timestamp
		}
		if !ev.Err {
			inverse[ev.Category] *= 1.0 - ev.Confidence
		}
	}

	out := make([]Hypothesis, 0, len(order))
	for _, cat := range order {
		h := grouped[cat]
		h.Confidence = 1.0 - inverse[cat]
		out = append(out, *h)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		if out[i].EvidenceCount != out[j].EvidenceCount {
			return out[i].EvidenceCount > out[j].EvidenceCount
		}
		if !out[i].FirstSeen.Equal(out[j].FirstSeen) {
			return out[i].FirstSeen.Before(out[j].FirstSeen)
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// ScoreSubmission computes one ScoredItem from a raw submission. The
// composite is sum(weight_i * factor_i) over factors present in the weight
// vector, summed in ascending factor-name order so the floating-point
// result is identical on every evaluation. Weights need not sum to 1.
func ScoreSubmission(sub run.ScoreSubmission) ScoredItem {
	factors := make([]string, 0, len(sub.Weights))
	for name := range sub.Weights {
		factors = append(factors, name)
	}
	sort.Strings(factors)

	composite := 0.0
	for _, name := range factors {
		composite += sub.Weights[name] * sub.FactorScores[name]
	}

	return ScoredItem{
		Subject:        sub.Subject,
		FactorScores:   sub.FactorScores,
		Weights:        sub.Weights,
		CompositeScore: composite,
		Category:       Categorize(composite),
	}
}

// ScoreAll scores every submission and ranks by composite descending, tie
// broken by subject name ascending.
func ScoreAll(subs []run.ScoreSubmission) []ScoredItem {
	items := make([]ScoredItem, 0, len(subs))
	for _, sub := range subs {
		items = append(items, ScoreSubmission(sub))
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CompositeScore != items[j].CompositeScore {
			return items[i].CompositeScore > items[j].CompositeScore
		}
		return items[i].Subject < items[j].Subject
	})
	return items
}

// Build assembles the final report from a terminal run state.
func Build(state *run.State) *FinalReport {
	evidence := state.EvidenceLog()
	return &FinalReport{
		RunID:        state.RunID,
		DefinitionID: state.DefinitionID,
		Status:       state.CurrentStatus(),
		Hypotheses:   RankHypotheses(evidence),
		ScoredItems:  ScoreAll(state.ScoreLog()),
		Evidence:     evidence,
		Cause:        state.Cause(),
	}
}
