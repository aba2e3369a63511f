// Package prediction applies competing estimation strategies to a task
// feature vector and combines them into a single deadline prediction
// with a confidence score and factor breakdown.
package prediction

import (
	"errors"
	"fmt"
	"math"
	"time"

	"lerian-deadline-engine/internal/features"
	"lerian-deadline-engine/pkg/types"
)

// Input carries everything a strategy may consult. Strategies are pure
// functions of their input; they never read engine or store state.
type Input struct {
	Vector  features.Vector
	History []types.PerformanceEntry
	Now     time.Time
}

// Estimate is the raw output of one strategy before post-processing
type Estimate struct {
	Hours      float64
	Confidence float64
	Factors    map[string]types.Factor
}

// StrategyFunc estimates hours from a prediction input
type StrategyFunc func(in Input) (Estimate, error)

// ErrInsufficientHistory is returned by the time-series strategy when
// the developer has too few completed observations for a trend
var ErrInsufficientHistory = errors.New("insufficient performance history")

// linearWeights is the fixed weight table for the linear strategy
var linearWeights = map[string]float64{
	"complexity":           1.2,
	"priority":             0.8,
	"estimated_hours":      0.9,
	"difficulty":           1.1,
	"skill_match":          0.7,
	"developer_experience": 0.6,
	"current_workload":     1.3,
	"historical_accuracy":  0.5,
	"task_type_code":       0.4,
	"has_dependencies":     1.2,
}

// LinearStrategy computes a weighted sum over the feature vector. Skill
// match and historical accuracy enter inverted so that stronger skills
// and better estimation history shorten the estimate while keeping the
// weight table positive. The result is clamped to at least half the
// task's own estimate.
func LinearStrategy(in Input) (Estimate, error) {
	v := in.Vector
	values := map[string]float64{
		"complexity":           v.Complexity,
		"priority":             v.Priority,
		"estimated_hours":      v.EstimatedHours,
		"difficulty":           v.Difficulty,
		"skill_match":          1 - v.SkillMatch,
		"developer_experience": v.DeveloperExperience,
		"current_workload":     v.CurrentWorkload,
		"historical_accuracy":  1 - v.HistoricalAccuracy,
		"task_type_code":       v.TaskTypeCode,
		"has_dependencies":     v.HasDependencies,
	}
	descriptions := map[string]string{
		"complexity":           "ordinal task complexity",
		"priority":             "ordinal task priority",
		"estimated_hours":      "caller-provided estimate",
		"difficulty":           "task difficulty rating",
		"skill_match":          "skill gap against required skills",
		"developer_experience": "average historical completion time",
		"current_workload":     "current workload pressure",
		"historical_accuracy":  "estimation error history",
		"task_type_code":       "task category code",
		"has_dependencies":     "upstream dependency presence",
	}

	hours := 0.0
	factors := make(map[string]types.Factor, len(linearWeights))
	for name, weight := range linearWeights {
		impact := weight * values[name]
		hours += impact
		factors[name] = types.Factor{
			Weight:      weight,
			Impact:      impact,
			Description: descriptions[name],
		}
	}

	floor := v.EstimatedHours * 0.5
	if hours < floor {
		hours = floor
	}

	return Estimate{
		Hours:      hours,
		Confidence: scoreConfidence(v),
		Factors:    factors,
	}, nil
}

// trendWindow bounds how many recent observations feed the slope
const trendWindow = 10

// TimeSeriesStrategy projects the task estimate through the developer's
// recent completion trend and weekday seasonality. Requires at least
// minHistory observations.
func TimeSeriesStrategy(minHistory int) StrategyFunc {
	return func(in Input) (Estimate, error) {
		if len(in.History) < minHistory {
			return Estimate{}, fmt.Errorf("%w: have %d entries, need %d",
				ErrInsufficientHistory, len(in.History), minHistory)
		}
		v := in.Vector

		trend := hoursTrend(in.History)
		seasonality := weekdaySeasonality(in.History, in.Now.Weekday())

		complexityMultiplier := math.Pow(v.Complexity, 1.2)
		skillMultiplier := 2 - v.SkillMatch
		experienceMultiplier := 1.5 - (v.DeveloperExperience/40)*0.5

		base := v.EstimatedHours * complexityMultiplier * skillMultiplier * experienceMultiplier
		hours := base * (1 + trend) * (1 + seasonality)
		if hours < v.EstimatedHours*0.5 {
			// a steep downward slope must not collapse the estimate
			hours = v.EstimatedHours * 0.5
		}

		return Estimate{
			Hours:      hours,
			Confidence: scoreConfidence(v),
			Factors: map[string]types.Factor{
				"trend": {
					Weight:      1,
					Impact:      trend,
					Description: "relative slope of recent completion hours",
				},
				"seasonality": {
					Weight:      1,
					Impact:      seasonality,
					Description: "same-weekday deviation from overall average",
				},
				"base_estimate": {
					Weight:      1,
					Impact:      base,
					Description: "estimate scaled by complexity, skill and experience multipliers",
				},
			},
		}, nil
	}
}

// hoursTrend computes the linear slope over the last observations,
// normalized by the first value so it reads as relative growth per step
func hoursTrend(history []types.PerformanceEntry) float64 {
	start := 0
	if len(history) > trendWindow {
		start = len(history) - trendWindow
	}
	window := history[start:]

	n := float64(len(window))
	var sumX, sumY, sumXY, sumXX float64
	for i, entry := range window {
		x := float64(i)
		sumX += x
		sumY += entry.Hours
		sumXY += x * entry.Hours
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (n*sumXY - sumX*sumY) / denom

	first := window[0].Hours
	if first == 0 {
		return 0
	}
	return slope / first
}

// weekdaySeasonality returns the relative deviation of the same-weekday
// average from the overall average
func weekdaySeasonality(history []types.PerformanceEntry, weekday time.Weekday) float64 {
	var total, weekdayTotal float64
	weekdayCount := 0
	for _, entry := range history {
		total += entry.Hours
		if entry.Date.Weekday() == weekday {
			weekdayTotal += entry.Hours
			weekdayCount++
		}
	}
	if weekdayCount == 0 {
		return 0
	}
	overall := total / float64(len(history))
	if overall == 0 {
		return 0
	}
	weekdayAvg := weekdayTotal / float64(weekdayCount)
	return (weekdayAvg - overall) / overall
}

// HeuristicStrategy is a deliberately simple deterministic placeholder:
// it averages the feature values. It exists so the ensemble always has
// a third independent member; replace it through the same StrategyFunc
// interface when a fitted model becomes available.
func HeuristicStrategy(in Input) (Estimate, error) {
	v := in.Vector
	values := []float64{
		v.Complexity, v.Priority, v.EstimatedHours, v.Difficulty,
		v.SkillMatch, v.DeveloperExperience, v.CurrentWorkload,
		v.HistoricalAccuracy, v.TaskTypeCode, v.HasDependencies,
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	hours := sum / float64(len(values))
	if hours < v.EstimatedHours*0.5 {
		hours = v.EstimatedHours * 0.5
	}

	return Estimate{
		Hours:      hours,
		Confidence: scoreConfidence(v),
		Factors: map[string]types.Factor{
			"feature_average": {
				Weight:      1,
				Impact:      hours,
				Description: "plain average of feature values (placeholder member)",
			},
		},
	}, nil
}

// Confidence bounds shared by every non-fallback strategy
const (
	minConfidence = 0.10
	maxConfidence = 0.95
)

// FallbackConfidence is the fixed confidence of the degraded-mode path
const FallbackConfidence = 0.3

// scoreConfidence derives a confidence score from the feature vector:
// base 0.5, adjusted for experience, skill match, accuracy, complexity
// and dependency presence, clamped to [0.10, 0.95]
func scoreConfidence(v features.Vector) float64 {
	confidence := 0.5
	if v.DeveloperExperience > 0 {
		confidence += 0.2
	}
	if v.SkillMatch > 0.7 {
		confidence += 0.2
	}
	if v.HistoricalAccuracy > 0.7 {
		confidence += 0.1
	}
	if v.Complexity > 3 {
		confidence -= 0.1
	}
	if v.HasDependencies > 0 {
		confidence -= 0.1
	}
	return math.Max(minConfidence, math.Min(maxConfidence, confidence))
}
