// Package risk computes independent risk scores for active tasks along
// the deadline, complexity, resource, dependency and external axes,
// plus an aggregate level.
package risk

import (
	"context"
	"fmt"
	"time"

	"lerian-deadline-engine/internal/features"
	"lerian-deadline-engine/internal/logging"
	"lerian-deadline-engine/pkg/types"
)

// ActiveTask is a task eligible for risk assessment together with its
// current attribution
type ActiveTask struct {
	Task        types.Task `json:"task"`
	DeveloperID string     `json:"developer_id"`
	ProjectID   string     `json:"project_id,omitempty"`
}

// DeveloperState is the live resourcing view of a developer as reported
// by the external directory
type DeveloperState struct {
	ID              string             `json:"id"`
	CurrentWorkload float64            `json:"current_workload"`
	Capacity        float64            `json:"capacity"`
	Availability    float64            `json:"availability"`
	TeamCapacity    float64            `json:"team_capacity"`
	SkillLevels     map[string]float64 `json:"skill_levels"`
}

// ProjectState is the external project risk view
type ProjectState struct {
	RiskLevel types.RiskLevel `json:"risk_level"`
}

// DependencyStatus reports the state of one upstream task
type DependencyStatus struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"` // "ok", "at_risk", "blocked"
	RiskLevel types.RiskLevel `json:"risk_level"`
}

// ExternalStatus reports the state of one external dependency ref
type ExternalStatus struct {
	Status string `json:"status"` // "ok", "at_risk", "failed"
}

// Dependency status values used by the assessment rules
const (
	StatusOK      = "ok"
	StatusAtRisk  = "at_risk"
	StatusBlocked = "blocked"
	StatusFailed  = "failed"
)

// Collaborator interfaces implemented outside this engine

// TaskSource lists tasks currently eligible for assessment
type TaskSource interface {
	ActiveTasks(ctx context.Context) ([]ActiveTask, error)
}

// DeveloperDirectory resolves live developer resourcing state
type DeveloperDirectory interface {
	Developer(ctx context.Context, id string) (*DeveloperState, error)
}

// ProjectDirectory resolves project-level risk
type ProjectDirectory interface {
	Project(ctx context.Context, id string) (*ProjectState, error)
}

// DependencyChecker resolves the status of upstream task dependencies
type DependencyChecker interface {
	DependencyStatus(ctx context.Context, ids []string) ([]DependencyStatus, error)
}

// ExternalChecker resolves the status of external dependency refs
type ExternalChecker interface {
	ExternalStatus(ctx context.Context, refs []string) ([]ExternalStatus, error)
}

// MarketSignal supplies the optional exogenous risk signal in [0, 1]
type MarketSignal interface {
	AssessMarketRisk(ctx context.Context) (float64, error)
}

// Assessor computes risk assessments for active tasks
type Assessor struct {
	developers DeveloperDirectory
	projects   ProjectDirectory
	deps       DependencyChecker
	external   ExternalChecker
	market     MarketSignal
	logger     logging.Logger
	clock      func() time.Time

	workingHoursPerDay float64
}

// NewAssessor creates a risk assessor. The project, external and market
// collaborators are optional; the corresponding signals degrade to
// neutral when absent.
func NewAssessor(developers DeveloperDirectory, projects ProjectDirectory, deps DependencyChecker, external ExternalChecker, market MarketSignal, logger logging.Logger) *Assessor {
	return &Assessor{
		developers:         developers,
		projects:           projects,
		deps:               deps,
		external:           external,
		market:             market,
		logger:             logger.WithComponent("risk"),
		clock:              time.Now,
		workingHoursPerDay: 8,
	}
}

// SetClock overrides the time source for tests
func (a *Assessor) SetClock(clock func() time.Time) {
	a.clock = clock
}

// Assess computes the per-axis and aggregate risk for one active task.
// graph is the dependency adjacency over all active task IDs, used for
// cycle detection.
func (a *Assessor) Assess(ctx context.Context, active *ActiveTask, graph Graph) (*types.RiskAssessment, error) {
	if active == nil {
		return nil, fmt.Errorf("active task is required")
	}
	task := active.Task
	if err := task.Validate(); err != nil {
		return nil, err
	}
	task.ApplyDefaults()

	dev := a.developerState(ctx, active.DeveloperID)

	components := map[types.RiskAxis]types.RiskComponent{
		types.RiskAxisDeadline:   a.deadlineRisk(&task, dev),
		types.RiskAxisComplexity: a.complexityRisk(&task, dev),
		types.RiskAxisResource:   a.resourceRisk(dev),
		types.RiskAxisDependency: a.dependencyRisk(ctx, &task, graph),
	}
	if external, ok := a.externalRisk(ctx, &task, active.ProjectID); ok {
		components[types.RiskAxisExternal] = external
	}

	total := 0.0
	for _, component := range components {
		total += component.Score
	}
	overallScore := total / float64(len(components))
	overall := types.RiskComponent{
		Level: types.RiskLevelFromScore(overallScore),
		Score: overallScore,
	}

	return &types.RiskAssessment{
		TaskID:     task.ID,
		Components: components,
		Overall:    overall,
		AssessedAt: a.clock().UTC(),
	}, nil
}

// developerState resolves the developer or returns nil on any failure;
// a missing developer is degraded input, not an assessment error
func (a *Assessor) developerState(ctx context.Context, developerID string) *DeveloperState {
	if a.developers == nil || developerID == "" {
		return nil
	}
	dev, err := a.developers.Developer(ctx, developerID)
	if err != nil {
		a.logger.Warn("developer lookup failed", "developer_id", developerID, "error", err)
		return nil
	}
	return dev
}

// deadlineRisk scores how tight the remaining calendar is against the
// estimated remaining effort
func (a *Assessor) deadlineRisk(task *types.Task, dev *DeveloperState) types.RiskComponent {
	component := types.RiskComponent{Level: types.RiskLevelLow, Score: 0}
	if task.Deadline == nil {
		component.Factors = append(component.Factors, "no deadline set")
		return component
	}

	hoursPerDay := a.workingHoursPerDay
	if dev != nil && dev.Capacity > 0 {
		hoursPerDay = dev.Capacity
	}

	remainingHours := task.EstimatedHours * (1 - task.Progress)
	estimatedRemainingDays := remainingHours / hoursPerDay
	calendarDaysRemaining := task.Deadline.Sub(a.clock()).Hours() / 24

	if calendarDaysRemaining < 1 {
		component.Level = types.RiskLevelCritical
		component.Score = 1.0
		component.Factors = append(component.Factors, "less than one day remaining")
		return component
	}

	ratio := estimatedRemainingDays / calendarDaysRemaining
	switch {
	case ratio > 1.5:
		component.Level = types.RiskLevelCritical
		component.Score = 0.9
		component.Factors = append(component.Factors, "remaining effort far exceeds calendar time")
	case ratio > 1.2:
		component.Level = types.RiskLevelHigh
		component.Score = 0.7
		component.Factors = append(component.Factors, "remaining effort exceeds calendar time")
	case ratio > 0.8:
		component.Level = types.RiskLevelMedium
		component.Score = 0.5
		component.Factors = append(component.Factors, "little schedule slack")
	}

	if task.Progress < 0.5 && calendarDaysRemaining < 3 {
		escalate(&component, types.RiskLevelHigh, 0.8, "under half done with deadline imminent")
	}
	return component
}

// complexityRisk scores the mismatch between task complexity and the
// developer's skills
func (a *Assessor) complexityRisk(task *types.Task, dev *DeveloperState) types.RiskComponent {
	component := types.RiskComponent{Level: types.RiskLevelLow, Score: 0}

	complexity := task.Complexity.Normalized()
	var profile *types.DeveloperProfile
	if dev != nil {
		profile = &types.DeveloperProfile{SkillLevels: dev.SkillLevels}
	}
	skillMatch := features.SkillMatch(task.RequiredSkills, profile)

	switch {
	case complexity > 0.8 && skillMatch < 0.5:
		component.Level = types.RiskLevelCritical
		component.Score = 0.9
		component.Factors = append(component.Factors, "critical complexity with weak skill coverage")
	case complexity > 0.6 && skillMatch < 0.7:
		component.Level = types.RiskLevelHigh
		component.Score = 0.7
		component.Factors = append(component.Factors, "high complexity with partial skill coverage")
	case complexity > 0.8:
		component.Level = types.RiskLevelMedium
		component.Score = 0.5
		component.Factors = append(component.Factors, "critical complexity")
	}

	if len(task.Dependencies) > 5 {
		escalate(&component, types.RiskLevelHigh, 0.6, "heavily entangled with other tasks")
	}
	if hasMissingSkill(task.RequiredSkills, dev) {
		escalate(&component, types.RiskLevelMedium, 0.4, "new technology for this developer")
	}
	return component
}

func hasMissingSkill(required []string, dev *DeveloperState) bool {
	if len(required) == 0 {
		return false
	}
	if dev == nil || len(dev.SkillLevels) == 0 {
		return true
	}
	for _, skill := range required {
		if _, ok := dev.SkillLevels[skill]; !ok {
			return true
		}
	}
	return false
}

// resourceRisk scores developer utilization and availability
func (a *Assessor) resourceRisk(dev *DeveloperState) types.RiskComponent {
	component := types.RiskComponent{Level: types.RiskLevelLow, Score: 0}
	if dev == nil {
		component.Factors = append(component.Factors, "developer state unavailable")
		return component
	}

	if dev.Capacity > 0 {
		utilization := dev.CurrentWorkload / dev.Capacity
		switch {
		case utilization > 0.9:
			component.Level = types.RiskLevelCritical
			component.Score = 0.9
			component.Factors = append(component.Factors, "developer utilization above 90%")
		case utilization > 0.7:
			component.Level = types.RiskLevelHigh
			component.Score = 0.6
			component.Factors = append(component.Factors, "developer utilization above 70%")
		}
	}

	if dev.Availability < 0.3 {
		component.Level = types.RiskLevelCritical
		component.Score = 1.0
		component.Factors = append(component.Factors, "developer effectively unavailable")
		return component
	}
	if dev.Availability < 0.5 {
		escalate(&component, types.RiskLevelHigh, 0.7, "developer availability below 50%")
	}
	if dev.TeamCapacity > 0 && dev.TeamCapacity < 0.5 {
		escalate(&component, types.RiskLevelMedium, 0.5, "team capacity below 50%")
	}
	return component
}

// dependencyRisk scores upstream blockage. Any cycle in the dependency
// graph overrides all other signals.
func (a *Assessor) dependencyRisk(ctx context.Context, task *types.Task, graph Graph) types.RiskComponent {
	component := types.RiskComponent{Level: types.RiskLevelLow, Score: 0}

	if graph.InCycle(task.ID) {
		component.Level = types.RiskLevelCritical
		component.Score = 1.0
		component.Factors = append(component.Factors, "circular dependency detected")
		return component
	}
	if len(task.Dependencies) == 0 {
		return component
	}
	if a.deps == nil {
		component.Factors = append(component.Factors, "dependency status unavailable")
		return component
	}

	statuses, err := a.deps.DependencyStatus(ctx, task.Dependencies)
	if err != nil {
		a.logger.Warn("dependency status lookup failed", "task_id", task.ID, "error", err)
		component.Factors = append(component.Factors, "dependency status unavailable")
		return component
	}

	for _, status := range statuses {
		switch {
		case status.Status == StatusBlocked:
			component.Level = types.RiskLevelCritical
			component.Score = 0.9
			component.Factors = append(component.Factors, "blocked dependency: "+status.ID)
			return component
		case status.Status == StatusAtRisk || status.RiskLevel.Rank() >= types.RiskLevelHigh.Rank():
			escalate(&component, types.RiskLevelHigh, 0.7, "at-risk dependency: "+status.ID)
		}
	}
	return component
}

// externalRisk combines external dependency statuses, project risk and
// the market signal. Returns false when no external signal applies.
func (a *Assessor) externalRisk(ctx context.Context, task *types.Task, projectID string) (types.RiskComponent, bool) {
	component := types.RiskComponent{Level: types.RiskLevelLow, Score: 0}
	applicable := false

	if a.external != nil && len(task.ExternalDependencies) > 0 {
		applicable = true
		statuses, err := a.external.ExternalStatus(ctx, task.ExternalDependencies)
		if err != nil {
			a.logger.Warn("external status lookup failed", "task_id", task.ID, "error", err)
		} else {
			for _, status := range statuses {
				switch status.Status {
				case StatusFailed, StatusBlocked:
					escalate(&component, types.RiskLevelCritical, 0.8, "failed external dependency")
				case StatusAtRisk:
					escalate(&component, types.RiskLevelMedium, 0.5, "at-risk external dependency")
				}
			}
		}
	}

	if a.projects != nil && projectID != "" {
		project, err := a.projects.Project(ctx, projectID)
		if err != nil {
			a.logger.Warn("project lookup failed", "project_id", projectID, "error", err)
		} else if project != nil && project.RiskLevel.Rank() >= types.RiskLevelHigh.Rank() {
			applicable = true
			escalate(&component, types.RiskLevelMedium, 0.5, "project flagged "+string(project.RiskLevel))
		}
	}

	if a.market != nil {
		if signal, err := a.market.AssessMarketRisk(ctx); err == nil && signal > 0.7 {
			applicable = true
			escalate(&component, types.RiskLevelMedium, 0.4, "elevated market risk")
		}
	}
	return component, applicable
}

// escalate raises a component to at least the given level and score
func escalate(component *types.RiskComponent, level types.RiskLevel, score float64, factor string) {
	component.Level = component.Level.AtLeast(level)
	if score > component.Score {
		component.Score = score
	}
	component.Factors = append(component.Factors, factor)
}
