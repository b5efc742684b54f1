// Package score turns per-category rule metrics into an overall rating.
package score

import (
	"fmt"
	"math"

	"github.com/designscore/designscore/internal/analysis"
)

// Aggregator computes the weighted overall score and its qualitative labels.
type Aggregator struct {
	weights    map[analysis.Category]float64
	thresholds map[string]float64
}

// NewAggregator builds an Aggregator from configured weights and category
// thresholds. Every category must carry a weight.
func NewAggregator(weights map[analysis.Category]float64, thresholds map[string]float64) (*Aggregator, error) {
	for _, c := range analysis.Categories() {
		if _, ok := weights[c]; !ok {
			return nil, fmt.Errorf("missing weight for category %q", c)
		}
	}
	return &Aggregator{weights: weights, thresholds: thresholds}, nil
}

// Aggregate folds the five category scores into a single overall value,
// rounded to one decimal place, plus its ladder category and letter grade.
func (a *Aggregator) Aggregate(m analysis.DesignMetrics) analysis.Overall {
	sum := 0.0
	for _, c := range analysis.Categories() {
		sum += m.Score(c) * a.weights[c]
	}
	overall := math.Round(sum*10) / 10

	return analysis.Overall{
		Score:    overall,
		Category: a.categoryFor(overall),
		Grade:    gradeFor(overall),
	}
}

// Breakdown returns the per-category scores keyed by category name.
func (a *Aggregator) Breakdown(m analysis.DesignMetrics) map[analysis.Category]float64 {
	out := make(map[analysis.Category]float64, len(a.weights))
	for _, c := range analysis.Categories() {
		out[c] = m.Score(c)
	}
	return out
}

func (a *Aggregator) categoryFor(score float64) string {
	switch {
	case score >= a.threshold("excellent", 90):
		return "excellent"
	case score >= a.threshold("good", 70):
		return "good"
	case score >= a.threshold("fair", 50):
		return "fair"
	default:
		return "poor"
	}
}

func (a *Aggregator) threshold(name string, fallback float64) float64 {
	if v, ok := a.thresholds[name]; ok {
		return v
	}
	return fallback
}

// gradeFor maps a score to a letter grade on a fixed school-style ladder,
// independent of the configurable category thresholds.
func gradeFor(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}
