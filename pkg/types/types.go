// Package types provides the shared data model for deadline prediction
// and risk monitoring: tasks, developer profiles, task patterns,
// predictions, risk assessments and alerts.
package types

import (
	"errors"
	"fmt"
	"time"
)

// Complexity represents the ordinal complexity of a task
type Complexity string

const (
	ComplexityLow      Complexity = "low"
	ComplexityMedium   Complexity = "medium"
	ComplexityHigh     Complexity = "high"
	ComplexityCritical Complexity = "critical"
)

// Ordinal normalizes a complexity to the 1-4 scale. Unknown values map
// to medium so a malformed record never produces a zero weight.
func (c Complexity) Ordinal() int {
	switch c {
	case ComplexityLow:
		return 1
	case ComplexityMedium:
		return 2
	case ComplexityHigh:
		return 3
	case ComplexityCritical:
		return 4
	default:
		return 2
	}
}

// Normalized returns the complexity on a 0-1 scale
func (c Complexity) Normalized() float64 {
	return float64(c.Ordinal()) / 4.0
}

// IsValid returns true if the complexity is a known value
func (c Complexity) IsValid() bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh, ComplexityCritical:
		return true
	default:
		return false
	}
}

// Priority represents the ordinal priority of a task
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Ordinal normalizes a priority to the 1-4 scale
func (p Priority) Ordinal() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 2
	}
}

// TaskType represents the category of work a task covers
type TaskType string

const (
	TaskTypeDevelopment   TaskType = "development"
	TaskTypeTesting       TaskType = "testing"
	TaskTypeDocumentation TaskType = "documentation"
	TaskTypeBugfix        TaskType = "bugfix"
	TaskTypeRefactoring   TaskType = "refactoring"
)

// Code returns the fixed numeric code used as a prediction feature
func (t TaskType) Code() float64 {
	switch t {
	case TaskTypeDevelopment:
		return 1
	case TaskTypeTesting:
		return 2
	case TaskTypeDocumentation:
		return 3
	case TaskTypeBugfix:
		return 4
	case TaskTypeRefactoring:
		return 5
	default:
		return 1
	}
}

// IsValid returns true if the task type is a known value
func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypeDevelopment, TaskTypeTesting, TaskTypeDocumentation, TaskTypeBugfix, TaskTypeRefactoring:
		return true
	default:
		return false
	}
}

// RiskLevel represents the severity of an assessed risk
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// RiskLevelFromScore maps a 0-1 score through the shared cut points
func RiskLevelFromScore(score float64) RiskLevel {
	switch {
	case score > 0.8:
		return RiskLevelCritical
	case score > 0.6:
		return RiskLevelHigh
	case score > 0.3:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// Rank orders risk levels so callers can compare severities
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLevelLow:
		return 0
	case RiskLevelMedium:
		return 1
	case RiskLevelHigh:
		return 2
	case RiskLevelCritical:
		return 3
	default:
		return 0
	}
}

// AtLeast returns the more severe of the two levels
func (r RiskLevel) AtLeast(other RiskLevel) RiskLevel {
	if other.Rank() > r.Rank() {
		return other
	}
	return r
}

// RiskAxis identifies one independently scored risk dimension
type RiskAxis string

const (
	RiskAxisOverall    RiskAxis = "overall"
	RiskAxisDeadline   RiskAxis = "deadline"
	RiskAxisComplexity RiskAxis = "complexity"
	RiskAxisResource   RiskAxis = "resource"
	RiskAxisDependency RiskAxis = "dependency"
	RiskAxisExternal   RiskAxis = "external"
)

// DefaultEstimatedHours is assumed when a task carries no estimate
const DefaultEstimatedHours = 8.0

// DefaultDifficulty is assumed when a task carries no difficulty rating
const DefaultDifficulty = 5.0

// Task represents a unit of scheduled work. ActualHours and Quality are
// set once on completion; Progress is externally reported and is the
// only field that changes afterwards.
type Task struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Type                 TaskType   `json:"type"`
	Complexity           Complexity `json:"complexity"`
	Priority             Priority   `json:"priority"`
	EstimatedHours       float64    `json:"estimated_hours"`
	ActualHours          *float64   `json:"actual_hours,omitempty"`
	Difficulty           float64    `json:"difficulty"`
	RequiredSkills       []string   `json:"required_skills,omitempty"`
	Dependencies         []string   `json:"dependencies,omitempty"`
	ExternalDependencies []string   `json:"external_dependencies,omitempty"`
	Deadline             *time.Time `json:"deadline,omitempty"`
	Progress             float64    `json:"progress"`
	Quality              *float64   `json:"quality,omitempty"`
}

// Validation errors for malformed tasks
var (
	ErrMissingTaskID    = errors.New("task id is required")
	ErrMissingTaskTitle = errors.New("task title is required")
	ErrInvalidTaskType  = errors.New("unknown task type")
	ErrInvalidHours     = errors.New("estimated hours must be positive")
)

// Validate checks the structural requirements for a task. Degraded
// fields (missing complexity, zero difficulty) are normalized elsewhere;
// only structurally broken tasks are rejected.
func (t *Task) Validate() error {
	if t.ID == "" {
		return ErrMissingTaskID
	}
	if t.Title == "" {
		return fmt.Errorf("%w: task %s", ErrMissingTaskTitle, t.ID)
	}
	if t.Type != "" && !t.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTaskType, t.Type)
	}
	if t.EstimatedHours < 0 {
		return fmt.Errorf("%w: got %.2f", ErrInvalidHours, t.EstimatedHours)
	}
	return nil
}

// ApplyDefaults fills the documented fallback values for optional fields
func (t *Task) ApplyDefaults() {
	if t.EstimatedHours <= 0 {
		t.EstimatedHours = DefaultEstimatedHours
	}
	if t.Difficulty <= 0 {
		t.Difficulty = DefaultDifficulty
	}
	if t.Type == "" {
		t.Type = TaskTypeDevelopment
	}
	if t.Complexity == "" {
		t.Complexity = ComplexityMedium
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
}

// TaskRecord is a fully-resolved task attributed to a developer, as it
// arrives for historical ingestion
type TaskRecord struct {
	Task        Task       `json:"task"`
	DeveloperID string     `json:"developer_id"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PerformanceEntry is one observation in a developer's history
type PerformanceEntry struct {
	Date       time.Time `json:"date"`
	Hours      float64   `json:"hours"`
	Quality    float64   `json:"quality"`
	Complexity int       `json:"complexity"`
}

// DeveloperProfile tracks a developer's historical performance. Owned
// exclusively by the profile store and mutated only on ingestion.
type DeveloperProfile struct {
	ID                    string             `json:"id"`
	TotalTasks            int                `json:"total_tasks"`
	CompletedTasks        int                `json:"completed_tasks"`
	AverageCompletionTime float64            `json:"average_completion_time"`
	AverageQuality        float64            `json:"average_quality"`
	SkillLevels           map[string]float64 `json:"skill_levels"`
	PerformanceHistory    []PerformanceEntry `json:"performance_history"`
	Accuracy              float64            `json:"accuracy"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// Clone returns a deep copy so engine components never share the
// store-owned mutable state
func (p *DeveloperProfile) Clone() *DeveloperProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.SkillLevels = make(map[string]float64, len(p.SkillLevels))
	for k, v := range p.SkillLevels {
		out.SkillLevels[k] = v
	}
	out.PerformanceHistory = make([]PerformanceEntry, len(p.PerformanceHistory))
	copy(out.PerformanceHistory, p.PerformanceHistory)
	return &out
}

// PatternKey identifies a task pattern by type and complexity
type PatternKey struct {
	Type       TaskType   `json:"type"`
	Complexity Complexity `json:"complexity"`
}

// String renders the key in the form used for storage and logs
func (k PatternKey) String() string {
	return string(k.Type) + ":" + string(k.Complexity)
}

// TaskPattern aggregates statistics for all tasks sharing a type and
// complexity, used to generalize estimates for developers with sparse
// history
type TaskPattern struct {
	Key            PatternKey `json:"key"`
	TotalTasks     int        `json:"total_tasks"`
	HoursSamples   int        `json:"hours_samples"`
	AverageHours   float64    `json:"average_hours"`
	Variance       float64    `json:"variance"`
	CompletionRate float64    `json:"completion_rate"`
	QualityScores  []float64  `json:"quality_scores"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PredictionMethod tags which strategy produced an estimate
type PredictionMethod string

const (
	MethodLinear     PredictionMethod = "linear"
	MethodTimeSeries PredictionMethod = "time-series"
	MethodHeuristic  PredictionMethod = "heuristic"
	MethodEnsemble   PredictionMethod = "ensemble"
	MethodFallback   PredictionMethod = "fallback"
)

// Factor describes one named contribution to an estimate
type Factor struct {
	Weight      float64 `json:"weight"`
	Impact      float64 `json:"impact"`
	Description string  `json:"description"`
}

// ConfidenceInterval bounds an hours estimate
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// PredictionRisk is the risk summary embedded in a prediction
type PredictionRisk struct {
	Level   RiskLevel `json:"level"`
	Reasons []string  `json:"reasons,omitempty"`
}

// Prediction is the result of a deadline prediction call. Created fresh
// per call and never mutated afterwards; callers may cache it.
type Prediction struct {
	ID                 string             `json:"id"`
	TaskID             string             `json:"task_id"`
	DeveloperID        string             `json:"developer_id"`
	EstimatedHours     float64            `json:"estimated_hours"`
	Confidence         float64            `json:"confidence"`
	Method             PredictionMethod   `json:"method"`
	Factors            map[string]Factor  `json:"factors,omitempty"`
	Risk               PredictionRisk     `json:"risk"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
	Recommendations    []string           `json:"recommendations,omitempty"`
	DeadlineDate       time.Time          `json:"deadline_date"`
	CreatedAt          time.Time          `json:"created_at"`
}

// RiskComponent scores one risk axis
type RiskComponent struct {
	Level   RiskLevel `json:"level"`
	Score   float64   `json:"score"`
	Factors []string  `json:"factors,omitempty"`
}

// RiskAssessment holds the per-axis and aggregate risk for a task as of
// one monitoring sweep
type RiskAssessment struct {
	TaskID     string                     `json:"task_id"`
	Components map[RiskAxis]RiskComponent `json:"components"`
	Overall    RiskComponent              `json:"overall"`
	AssessedAt time.Time                  `json:"assessed_at"`
}

// Alert is an append-only record of a threshold breach. Once raised it
// is never retracted; monitoring is at-least-once.
type Alert struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"task_id"`
	Type            RiskAxis  `json:"type"`
	Level           RiskLevel `json:"level"`
	Score           float64   `json:"score"`
	Timestamp       time.Time `json:"timestamp"`
	Message         string    `json:"message"`
	Recommendations []string  `json:"recommendations,omitempty"`
}

// MonitoringRule declares whether and how often one risk axis is
// evaluated during sweeps
type MonitoringRule struct {
	Axis          RiskAxis      `json:"axis" yaml:"axis"`
	Enabled       bool          `json:"enabled" yaml:"enabled"`
	Threshold     float64       `json:"threshold" yaml:"threshold"`
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval"`
	LastChecked   time.Time     `json:"last_checked" yaml:"-"`
}
