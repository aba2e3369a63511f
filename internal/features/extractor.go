// Package features derives the fixed feature vector consumed by every
// prediction strategy from a task and developer profile pair.
package features

import (
	"lerian-deadline-engine/pkg/types"
)

// Vector is the sole input to every prediction strategy. Strategies
// never read mutable store state directly, which keeps them pure and
// testable.
type Vector struct {
	Complexity          float64 `json:"complexity"`           // 1-4 ordinal
	Priority            float64 `json:"priority"`             // 1-4 ordinal
	EstimatedHours      float64 `json:"estimated_hours"`
	Difficulty          float64 `json:"difficulty"`
	SkillMatch          float64 `json:"skill_match"`          // 0-1
	DeveloperExperience float64 `json:"developer_experience"` // avg completion hours
	CurrentWorkload     float64 `json:"current_workload"`     // 0-1
	HistoricalAccuracy  float64 `json:"historical_accuracy"`  // 0-1
	TaskTypeCode        float64 `json:"task_type_code"`
	HasDependencies     float64 `json:"has_dependencies"` // 0 or 1
}

// WorkloadProvider supplies the developer's current workload signal.
// The live signal comes from an external collaborator; tests and
// degraded deployments use the static default.
type WorkloadProvider interface {
	CurrentWorkload(developerID string) float64
}

// StaticWorkload always reports the same workload level
type StaticWorkload struct {
	Level float64
}

// CurrentWorkload returns the fixed level
func (s StaticWorkload) CurrentWorkload(string) float64 { return s.Level }

// DefaultWorkload is the placeholder used when no live signal exists
const DefaultWorkload = 0.5

// Extractor builds feature vectors
type Extractor struct {
	workload WorkloadProvider
}

// NewExtractor creates an extractor with the given workload source.
// A nil provider falls back to the static default.
func NewExtractor(workload WorkloadProvider) *Extractor {
	if workload == nil {
		workload = StaticWorkload{Level: DefaultWorkload}
	}
	return &Extractor{workload: workload}
}

// Extract derives the feature vector for a task and developer profile.
// The profile may be nil for unknown developers; the documented
// defaults apply.
func (e *Extractor) Extract(task *types.Task, profile *types.DeveloperProfile) Vector {
	normalized := *task
	normalized.ApplyDefaults()

	v := Vector{
		Complexity:         float64(normalized.Complexity.Ordinal()),
		Priority:           float64(normalized.Priority.Ordinal()),
		EstimatedHours:     normalized.EstimatedHours,
		Difficulty:         normalized.Difficulty,
		SkillMatch:         SkillMatch(normalized.RequiredSkills, profile),
		HistoricalAccuracy: 0.5,
		TaskTypeCode:       normalized.Type.Code(),
	}
	if len(normalized.Dependencies) > 0 {
		v.HasDependencies = 1
	}
	if profile != nil {
		v.DeveloperExperience = profile.AverageCompletionTime
		v.HistoricalAccuracy = profile.Accuracy
		v.CurrentWorkload = e.workload.CurrentWorkload(profile.ID)
	} else {
		v.CurrentWorkload = DefaultWorkload
	}
	return v
}

// SkillMatch returns the fraction of required skills present in the
// developer's profile, or 1.0 when no skills are declared
func SkillMatch(required []string, profile *types.DeveloperProfile) float64 {
	if len(required) == 0 {
		return 1.0
	}
	if profile == nil || len(profile.SkillLevels) == 0 {
		return 0.0
	}
	matched := 0
	for _, skill := range required {
		if _, ok := profile.SkillLevels[skill]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(required))
}
