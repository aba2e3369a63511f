// Package alerting turns risk assessments into append-only alerts,
// deduplicated per task and axis by a cooldown window.
package alerting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lerian-deadline-engine/internal/config"
	"lerian-deadline-engine/internal/logging"
	"lerian-deadline-engine/pkg/types"
)

// Sink receives every raised alert. Implementations must not block;
// slow delivery belongs behind a buffer.
type Sink interface {
	Deliver(ctx context.Context, alert *types.Alert)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, alert *types.Alert)

// Deliver calls the wrapped function
func (f SinkFunc) Deliver(ctx context.Context, alert *types.Alert) { f(ctx, alert) }

// recommendationCatalogue maps each risk axis to its standing advice
var recommendationCatalogue = map[types.RiskAxis][]string{
	types.RiskAxisOverall: {
		"Review the task's scope and staffing",
		"Escalate to the project lead",
	},
	types.RiskAxisDeadline: {
		"Renegotiate the deadline or cut scope",
		"Clear the developer's calendar until the deadline",
	},
	types.RiskAxisComplexity: {
		"Pair an experienced developer on the task",
		"Split the task into independently deliverable pieces",
	},
	types.RiskAxisResource: {
		"Redistribute workload or add team members",
		"Defer lower-priority work assigned to the same developer",
	},
	types.RiskAxisDependency: {
		"Resolve blocking dependencies immediately",
		"Re-sequence the plan to start unblocked work first",
	},
	types.RiskAxisExternal: {
		"Contact the external provider for a status and ETA",
		"Prepare a fallback that removes the external dependency",
	},
}

// Manager evaluates assessments against the alerting threshold and
// raises deduplicated alerts
type Manager struct {
	cooldowns CooldownStore
	cfg       config.AlertingConfig
	logger    logging.Logger
	clock     func() time.Time
	sinks     []Sink

	mu      sync.Mutex
	history []types.Alert
	raised  int
}

// NewManager creates an alert manager. A nil cooldown store gets the
// in-process implementation.
func NewManager(cooldowns CooldownStore, cfg config.AlertingConfig, logger logging.Logger) *Manager {
	if cooldowns == nil {
		cooldowns = NewMemoryCooldown()
	}
	return &Manager{
		cooldowns: cooldowns,
		cfg:       cfg,
		logger:    logger.WithComponent("alerting"),
		clock:     time.Now,
	}
}

// SetClock overrides the time source for tests
func (m *Manager) SetClock(clock func() time.Time) {
	m.clock = clock
}

// AddSink registers a delivery target for every raised alert
func (m *Manager) AddSink(sink Sink) {
	m.sinks = append(m.sinks, sink)
}

// Process raises alerts for every axis of the assessment at or above
// high severity, plus an overall alert when the aggregate qualifies.
// Returns the alerts actually raised after cooldown suppression.
func (m *Manager) Process(ctx context.Context, assessment *types.RiskAssessment) ([]types.Alert, error) {
	if assessment == nil {
		return nil, fmt.Errorf("assessment is required")
	}

	var raised []types.Alert
	if alert := m.raise(ctx, assessment, types.RiskAxisOverall, assessment.Overall, overallMessage(assessment)); alert != nil {
		raised = append(raised, *alert)
	}
	for _, axis := range orderedAxes(assessment) {
		component := assessment.Components[axis]
		message := fmt.Sprintf("%s risk is %s for task %s (score %.2f)",
			axis, component.Level, assessment.TaskID, component.Score)
		if alert := m.raise(ctx, assessment, axis, component, message); alert != nil {
			raised = append(raised, *alert)
		}
	}
	return raised, nil
}

// orderedAxes returns the component axes in a stable order so alert
// sequences are deterministic across sweeps
func orderedAxes(assessment *types.RiskAssessment) []types.RiskAxis {
	axes := make([]types.RiskAxis, 0, len(assessment.Components))
	for axis := range assessment.Components {
		axes = append(axes, axis)
	}
	sort.Slice(axes, func(i, j int) bool { return axes[i] < axes[j] })
	return axes
}

// raise emits one alert unless its severity is below the threshold or
// the (task, axis) pair is still cooling down
func (m *Manager) raise(ctx context.Context, assessment *types.RiskAssessment, axis types.RiskAxis, component types.RiskComponent, message string) *types.Alert {
	if component.Level.Rank() < types.RiskLevelHigh.Rank() {
		return nil
	}

	key := assessment.TaskID + ":" + string(axis)
	ok, err := m.cooldowns.Claim(ctx, key, m.cfg.Cooldown)
	if err != nil {
		// Better a duplicate alert than a silently dropped one
		m.logger.Warn("cooldown claim failed, raising anyway", "key", key, "error", err)
	} else if !ok {
		return nil
	}

	alert := types.Alert{
		ID:              uuid.New().String(),
		TaskID:          assessment.TaskID,
		Type:            axis,
		Level:           component.Level,
		Score:           component.Score,
		Timestamp:       m.clock().UTC(),
		Message:         message,
		Recommendations: recommendationCatalogue[axis],
	}

	m.mu.Lock()
	m.history = append(m.history, alert)
	if limit := m.cfg.MaxAlertHistory; limit > 0 && len(m.history) > limit {
		m.history = m.history[len(m.history)-limit:]
	}
	m.raised++
	m.mu.Unlock()

	m.logger.Warn("alert raised",
		"task_id", alert.TaskID, "axis", string(axis),
		"level", string(component.Level), "score", component.Score)
	for _, sink := range m.sinks {
		sink.Deliver(ctx, &alert)
	}
	return &alert
}

// overallMessage enumerates which axes pushed the aggregate over
func overallMessage(assessment *types.RiskAssessment) string {
	var critical, high []string
	for _, axis := range orderedAxes(assessment) {
		switch assessment.Components[axis].Level {
		case types.RiskLevelCritical:
			critical = append(critical, string(axis))
		case types.RiskLevelHigh:
			high = append(high, string(axis))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "overall risk is %s for task %s (score %.2f)",
		assessment.Overall.Level, assessment.TaskID, assessment.Overall.Score)
	if len(critical) > 0 {
		fmt.Fprintf(&b, "; critical: %s", strings.Join(critical, ", "))
	}
	if len(high) > 0 {
		fmt.Fprintf(&b, "; high: %s", strings.Join(high, ", "))
	}
	return b.String()
}

// Recent returns up to n alerts, newest first
func (m *Manager) Recent(n int) []types.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 || n > len(m.history) {
		n = len(m.history)
	}
	out := make([]types.Alert, n)
	for i := 0; i < n; i++ {
		out[i] = m.history[len(m.history)-1-i]
	}
	return out
}

// Raised returns the total number of alerts raised since startup,
// including any rotated out of the bounded history
func (m *Manager) Raised() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raised
}
