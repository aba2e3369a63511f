package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lerian-deadline-engine/internal/config"
	"lerian-deadline-engine/internal/logging"
	"lerian-deadline-engine/internal/risk"
	"lerian-deadline-engine/pkg/types"
)

type trackerStub struct {
	tasks []risk.ActiveTask
}

func (t *trackerStub) ActiveTasks(_ context.Context) ([]risk.ActiveTask, error) {
	return t.tasks, nil
}

func ptr(v float64) *float64 { return &v }

func historyFor(developerID string, count int) []types.TaskRecord {
	records := make([]types.TaskRecord, 0, count)
	base := time.Now().AddDate(0, 0, -count)
	for i := 0; i < count; i++ {
		completed := base.AddDate(0, 0, i)
		records = append(records, types.TaskRecord{
			Task: types.Task{
				ID:             "hist-" + string(rune('a'+i)),
				Title:          "historical task",
				Type:           types.TaskTypeDevelopment,
				Complexity:     types.ComplexityMedium,
				EstimatedHours: 10,
				ActualHours:    ptr(12),
				Quality:        ptr(0.8),
				RequiredSkills: []string{"go"},
			},
			DeveloperID: developerID,
			Completed:   true,
			CompletedAt: &completed,
		})
	}
	return records
}

func newTestEngine(t *testing.T, source risk.TaskSource) *Engine {
	t.Helper()
	e, err := New(config.DefaultConfig(), logging.NewNoOp(), Options{Source: source})
	require.NoError(t, err)
	return e
}

func TestEndToEndPredictionFlow(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	ingested, err := e.AddHistoricalData(ctx, historyFor("dev1", 5))
	require.NoError(t, err)
	assert.Equal(t, 5, ingested)

	task := &types.Task{
		ID: "t1", Title: "build feature",
		Type:           types.TaskTypeDevelopment,
		Complexity:     types.ComplexityMedium,
		EstimatedHours: 10,
		RequiredSkills: []string{"go"},
	}
	prediction, err := e.PredictDeadline(task, "dev1", map[string]any{"method": "ensemble"})
	require.NoError(t, err)

	assert.Equal(t, "t1", prediction.TaskID)
	assert.Equal(t, types.MethodEnsemble, prediction.Method)
	assert.Greater(t, prediction.EstimatedHours, 0.0)
	assert.GreaterOrEqual(t, prediction.Confidence, 0.1)
	assert.LessOrEqual(t, prediction.Confidence, 0.95)
	assert.True(t, prediction.DeadlineDate.After(time.Now()))

	e.RecordOutcome(prediction.EstimatedHours, prediction.EstimatedHours)

	analytics := e.GetAnalytics()
	assert.Equal(t, 1, analytics.Prediction.TotalPredictions)
	assert.Equal(t, 1.0, analytics.Prediction.PredictionAccuracy)
	assert.Equal(t, 1, analytics.Developers)
	assert.Equal(t, 1, analytics.Patterns)
}

func TestPredictDeadlineRejectsUnknownOptionKeys(t *testing.T) {
	e := newTestEngine(t, nil)
	task := &types.Task{ID: "t1", Title: "x", EstimatedHours: 8}

	_, err := e.PredictDeadline(task, "dev1", map[string]any{"metod": "linear"})
	assert.Error(t, err)
}

func TestPredictDeadlineUnknownDeveloperFallsBack(t *testing.T) {
	e := newTestEngine(t, nil)
	task := &types.Task{ID: "t1", Title: "x", EstimatedHours: 8}

	prediction, err := e.PredictDeadline(task, "nobody", map[string]any{"method": "time-series"})
	require.NoError(t, err)
	assert.Equal(t, types.MethodFallback, prediction.Method)
	assert.InDelta(t, 0.3, prediction.Confidence, 1e-9)
}

func TestAddHistoricalDataIsolatesBadRecords(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	records := historyFor("dev1", 2)
	records = append(records, types.TaskRecord{
		Task:        types.Task{Title: "no id"},
		DeveloperID: "dev1",
	})

	ingested, err := e.AddHistoricalData(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, ingested)

	_, err = e.AddHistoricalData(ctx, []types.TaskRecord{{
		Task: types.Task{Title: "no id"}, DeveloperID: "dev1",
	}})
	assert.Error(t, err, "all-bad batch should surface the first error")
}

func TestSweepFeedsDashboardAndAlerts(t *testing.T) {
	deadline := time.Now().Add(6 * time.Hour)
	source := &trackerStub{tasks: []risk.ActiveTask{
		{Task: types.Task{
			ID: "urgent", Title: "ship",
			EstimatedHours: 40,
			Deadline:       &deadline,
		}, DeveloperID: "dev1"},
	}}
	e := newTestEngine(t, source)

	result, err := e.RunSweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Assessed)
	assert.Equal(t, 1, result.AlertsRaised, "imminent deadline must alert")

	// a second immediate sweep is suppressed by the cooldown
	result, err = e.RunSweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.AlertsRaised)

	board := e.GetRiskDashboard(10)
	require.NotNil(t, board.Current)
	assert.Equal(t, 1, board.Current.TotalTasks)
	assert.Len(t, board.RecentAlerts, 1)
	assert.Equal(t, types.RiskAxisDeadline, board.RecentAlerts[0].Type)
	assert.Equal(t, 2, board.Last24Hours.Sweeps)

	analytics := e.GetAnalytics()
	assert.Equal(t, 1, analytics.AlertsRaised)
}

func TestRunSweepOnceWithoutSourceFails(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.RunSweepOnce(context.Background())
	assert.Error(t, err)
}
