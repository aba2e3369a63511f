// Package monitor drives periodic risk sweeps over the active task set,
// feeding the alert manager and the dashboard aggregator.
package monitor

import (
	"context"
	"fmt"
	"time"

	"lerian-deadline-engine/internal/alerting"
	"lerian-deadline-engine/internal/config"
	"lerian-deadline-engine/internal/dashboard"
	"lerian-deadline-engine/internal/logging"
	"lerian-deadline-engine/internal/risk"
	"lerian-deadline-engine/pkg/types"
)

// SweepResult summarizes one completed monitoring sweep
type SweepResult struct {
	SweepID      string             `json:"sweep_id"`
	Assessed     int                `json:"assessed"`
	Failed       int                `json:"failed"`
	AlertsRaised int                `json:"alerts_raised"`
	Snapshot     dashboard.Snapshot `json:"snapshot"`
	Duration     time.Duration      `json:"duration"`
}

// Monitor owns the sweep cycle
type Monitor struct {
	source     risk.TaskSource
	assessor   *risk.Assessor
	alerts     *alerting.Manager
	aggregator *dashboard.Aggregator
	rules      map[types.RiskAxis]*types.MonitoringRule
	cfg        config.MonitoringConfig
	logger     logging.Logger
	clock      func() time.Time
}

// New creates a monitor. Rules may be nil, in which case every axis is
// always evaluated.
func New(source risk.TaskSource, assessor *risk.Assessor, alerts *alerting.Manager, aggregator *dashboard.Aggregator, rules []types.MonitoringRule, cfg config.MonitoringConfig, logger logging.Logger) *Monitor {
	indexed := make(map[types.RiskAxis]*types.MonitoringRule, len(rules))
	for i := range rules {
		rule := rules[i]
		indexed[rule.Axis] = &rule
	}
	return &Monitor{
		source:     source,
		assessor:   assessor,
		alerts:     alerts,
		aggregator: aggregator,
		rules:      indexed,
		cfg:        cfg,
		logger:     logger.WithComponent("monitor"),
		clock:      time.Now,
	}
}

// SetClock overrides the time source for tests
func (m *Monitor) SetClock(clock func() time.Time) {
	m.clock = clock
}

// RunSweepOnce assesses every active task, raises qualifying alerts and
// records a dashboard snapshot. One broken task never aborts the sweep;
// only listing failures and cancellation do.
func (m *Monitor) RunSweepOnce(ctx context.Context) (*SweepResult, error) {
	started := m.clock()
	sweepID := logging.NewSweepID()
	logger := m.logger.WithSweepID(sweepID)

	tasks, err := m.source.ActiveTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active tasks: %w", err)
	}
	graph := risk.BuildGraph(tasks)

	result := &SweepResult{SweepID: sweepID}
	assessments := make([]*types.RiskAssessment, 0, len(tasks))
	for i := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		active := tasks[i]

		assessment, err := m.assessTask(ctx, &active, graph)
		if err != nil {
			result.Failed++
			logger.Warn("task assessment failed",
				"task_id", active.Task.ID, "error", err)
			continue
		}
		result.Assessed++
		assessments = append(assessments, assessment)

		raised, err := m.alerts.Process(ctx, m.applyRules(assessment))
		if err != nil {
			logger.Warn("alert processing failed",
				"task_id", active.Task.ID, "error", err)
			continue
		}
		result.AlertsRaised += len(raised)
	}

	result.Snapshot = m.aggregator.RecordSweep(assessments)
	result.Duration = m.clock().Sub(started)
	logger.Info("sweep complete",
		"assessed", result.Assessed, "failed", result.Failed,
		"alerts", result.AlertsRaised, "duration", result.Duration.String())
	return result, nil
}

// assessTask contains the per-task panic boundary: a panicking
// collaborator takes down one assessment, not the sweep
func (m *Monitor) assessTask(ctx context.Context, active *risk.ActiveTask, graph risk.Graph) (assessment *types.RiskAssessment, err error) {
	defer func() {
		if r := recover(); r != nil {
			assessment = nil
			err = fmt.Errorf("assessment panicked: %v", r)
		}
	}()
	return m.assessor.Assess(ctx, active, graph)
}

// applyRules filters the assessment's components for alerting: disabled
// axes, axes whose check interval has not elapsed, and scores below the
// rule threshold are withheld. The dashboard always sees the unfiltered
// assessment.
func (m *Monitor) applyRules(assessment *types.RiskAssessment) *types.RiskAssessment {
	if len(m.rules) == 0 {
		return assessment
	}

	now := m.clock()
	filtered := *assessment
	filtered.Components = make(map[types.RiskAxis]types.RiskComponent, len(assessment.Components))
	for axis, component := range assessment.Components {
		rule, ok := m.rules[axis]
		if !ok {
			filtered.Components[axis] = component
			continue
		}
		if !rule.Enabled {
			continue
		}
		if rule.CheckInterval > 0 && now.Sub(rule.LastChecked) < rule.CheckInterval {
			continue
		}
		if rule.Threshold > 0 && component.Score < rule.Threshold {
			rule.LastChecked = now
			continue
		}
		rule.LastChecked = now
		filtered.Components[axis] = component
	}
	return &filtered
}

// Run sweeps on the configured interval until the context is cancelled.
// The first sweep runs immediately.
func (m *Monitor) Run(ctx context.Context) error {
	if _, err := m.RunSweepOnce(ctx); err != nil && ctx.Err() == nil {
		m.logger.Error("sweep failed", "error", err)
	}

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.RunSweepOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				m.logger.Error("sweep failed", "error", err)
			}
		}
	}
}
