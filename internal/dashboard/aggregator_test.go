package dashboard

import (
	"testing"
	"time"

	"lerian-deadline-engine/pkg/types"
)

var baseTime = time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)

func assessment(taskID string, level types.RiskLevel, score float64) *types.RiskAssessment {
	return &types.RiskAssessment{
		TaskID:  taskID,
		Overall: types.RiskComponent{Level: level, Score: score},
	}
}

type staticFeed []types.Alert

func (f staticFeed) Recent(n int) []types.Alert {
	if n > len(f) {
		n = len(f)
	}
	return f[:n]
}

func TestRecordSweepCountsLevels(t *testing.T) {
	aggregator := NewAggregator(nil)
	aggregator.SetClock(func() time.Time { return baseTime })

	snapshot := aggregator.RecordSweep([]*types.RiskAssessment{
		assessment("t1", types.RiskLevelCritical, 0.9),
		assessment("t2", types.RiskLevelHigh, 0.7),
		assessment("t3", types.RiskLevelLow, 0.1),
		nil,
	})

	if snapshot.TotalTasks != 3 {
		t.Errorf("TotalTasks = %d, want 3 (nil skipped)", snapshot.TotalTasks)
	}
	if snapshot.ByLevel[types.RiskLevelCritical] != 1 || snapshot.ByLevel[types.RiskLevelHigh] != 1 {
		t.Errorf("ByLevel = %v", snapshot.ByLevel)
	}
	if len(snapshot.CriticalTasks) != 1 || snapshot.CriticalTasks[0] != "t1" {
		t.Errorf("CriticalTasks = %v, want [t1]", snapshot.CriticalTasks)
	}
	want := (0.9 + 0.7 + 0.1) / 3
	if diff := snapshot.AverageScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("AverageScore = %v, want %v", snapshot.AverageScore, want)
	}
}

func TestRetentionDropsOldSnapshots(t *testing.T) {
	now := baseTime
	aggregator := NewAggregator(nil)
	aggregator.SetClock(func() time.Time { return now })

	aggregator.RecordSweep([]*types.RiskAssessment{assessment("old", types.RiskLevelLow, 0.1)})
	now = now.AddDate(0, 0, 31)
	aggregator.RecordSweep([]*types.RiskAssessment{assessment("new", types.RiskLevelLow, 0.1)})

	dashboard := aggregator.Dashboard(0)
	if dashboard.Last7Days.Sweeps != 1 {
		t.Errorf("Last7Days.Sweeps = %d, want 1", dashboard.Last7Days.Sweeps)
	}
	if dashboard.Current == nil || !dashboard.Current.Timestamp.Equal(now) {
		t.Errorf("Current snapshot should be the latest sweep")
	}
}

func TestWindowsSeparate24hFrom7d(t *testing.T) {
	now := baseTime
	aggregator := NewAggregator(nil)
	aggregator.SetClock(func() time.Time { return now })

	// Three days ago: two criticals
	aggregator.RecordSweep([]*types.RiskAssessment{
		assessment("t1", types.RiskLevelCritical, 0.9),
		assessment("t2", types.RiskLevelCritical, 0.9),
	})
	now = now.AddDate(0, 0, 3)
	// Inside 24h: one high
	aggregator.RecordSweep([]*types.RiskAssessment{
		assessment("t1", types.RiskLevelHigh, 0.7),
	})

	dashboard := aggregator.Dashboard(0)
	if dashboard.Last24Hours.Sweeps != 1 || dashboard.Last24Hours.PeakCritical != 0 {
		t.Errorf("Last24Hours = %+v, want 1 sweep with no criticals", dashboard.Last24Hours)
	}
	if dashboard.Last7Days.Sweeps != 2 || dashboard.Last7Days.PeakCritical != 2 {
		t.Errorf("Last7Days = %+v, want 2 sweeps with peak 2 criticals", dashboard.Last7Days)
	}
}

func TestTrendSignals(t *testing.T) {
	cases := []struct {
		name   string
		first  []*types.RiskAssessment
		last   []*types.RiskAssessment
		expect Trend
	}{
		{
			"more criticals",
			[]*types.RiskAssessment{assessment("t1", types.RiskLevelLow, 0.1)},
			[]*types.RiskAssessment{assessment("t1", types.RiskLevelCritical, 0.9)},
			TrendIncreasing,
		},
		{
			"surge of highs",
			[]*types.RiskAssessment{assessment("t1", types.RiskLevelLow, 0.1)},
			[]*types.RiskAssessment{
				assessment("t1", types.RiskLevelHigh, 0.7),
				assessment("t2", types.RiskLevelHigh, 0.7),
				assessment("t3", types.RiskLevelHigh, 0.7),
			},
			TrendIncreasing,
		},
		{
			"recovery",
			[]*types.RiskAssessment{
				assessment("t1", types.RiskLevelCritical, 0.9),
				assessment("t2", types.RiskLevelHigh, 0.7),
				assessment("t3", types.RiskLevelHigh, 0.7),
			},
			[]*types.RiskAssessment{
				assessment("t1", types.RiskLevelLow, 0.1),
				assessment("t2", types.RiskLevelLow, 0.1),
				assessment("t3", types.RiskLevelLow, 0.1),
			},
			TrendDecreasing,
		},
		{
			"flat",
			[]*types.RiskAssessment{assessment("t1", types.RiskLevelMedium, 0.5)},
			[]*types.RiskAssessment{assessment("t1", types.RiskLevelMedium, 0.5)},
			TrendStable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now := baseTime
			aggregator := NewAggregator(nil)
			aggregator.SetClock(func() time.Time { return now })

			aggregator.RecordSweep(tc.first)
			now = now.Add(time.Hour)
			aggregator.RecordSweep(tc.last)

			if got := aggregator.Dashboard(0).Trend; got != tc.expect {
				t.Errorf("trend = %s, want %s", got, tc.expect)
			}
		})
	}
}

func TestTrendStableWithSingleSweep(t *testing.T) {
	aggregator := NewAggregator(nil)
	aggregator.SetClock(func() time.Time { return baseTime })
	aggregator.RecordSweep([]*types.RiskAssessment{assessment("t1", types.RiskLevelCritical, 0.9)})

	if got := aggregator.Dashboard(0).Trend; got != TrendStable {
		t.Errorf("trend with one sweep = %s, want stable", got)
	}
}

func TestDashboardIncludesRecentAlerts(t *testing.T) {
	feed := staticFeed{
		{ID: "a1", TaskID: "t1", Type: types.RiskAxisDeadline},
		{ID: "a2", TaskID: "t2", Type: types.RiskAxisResource},
	}
	aggregator := NewAggregator(feed)
	aggregator.SetClock(func() time.Time { return baseTime })

	dashboard := aggregator.Dashboard(1)
	if len(dashboard.RecentAlerts) != 1 || dashboard.RecentAlerts[0].ID != "a1" {
		t.Errorf("RecentAlerts = %v, want just a1", dashboard.RecentAlerts)
	}
}
