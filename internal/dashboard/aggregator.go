// Package dashboard aggregates sweep results into a risk overview with
// short rolling history and a coarse trend signal.
package dashboard

import (
	"sync"
	"time"

	"lerian-deadline-engine/pkg/types"
)

// Trend is the coarse direction of portfolio risk
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// retentionDays bounds how long sweep snapshots are kept
const retentionDays = 30

// Snapshot captures the risk distribution of one monitoring sweep
type Snapshot struct {
	Timestamp     time.Time               `json:"timestamp"`
	TotalTasks    int                     `json:"total_tasks"`
	ByLevel       map[types.RiskLevel]int `json:"by_level"`
	AverageScore  float64                 `json:"average_score"`
	CriticalTasks []string                `json:"critical_tasks,omitempty"`
}

// WindowSummary aggregates snapshots over a rolling window
type WindowSummary struct {
	Sweeps       int     `json:"sweeps"`
	PeakCritical int     `json:"peak_critical"`
	PeakHigh     int     `json:"peak_high"`
	AverageScore float64 `json:"average_score"`
}

// Dashboard is the rendered risk overview
type Dashboard struct {
	GeneratedAt  time.Time     `json:"generated_at"`
	Current      *Snapshot     `json:"current,omitempty"`
	Last24Hours  WindowSummary `json:"last_24_hours"`
	Last7Days    WindowSummary `json:"last_7_days"`
	Trend        Trend         `json:"trend"`
	RecentAlerts []types.Alert `json:"recent_alerts,omitempty"`
}

// AlertFeed supplies the most recent alerts for display
type AlertFeed interface {
	Recent(n int) []types.Alert
}

// Aggregator accumulates sweep snapshots and renders the dashboard
type Aggregator struct {
	alerts AlertFeed
	clock  func() time.Time

	mu        sync.Mutex
	snapshots []Snapshot
}

// NewAggregator creates a dashboard aggregator; the alert feed may be nil
func NewAggregator(alerts AlertFeed) *Aggregator {
	return &Aggregator{alerts: alerts, clock: time.Now}
}

// SetClock overrides the time source for tests
func (a *Aggregator) SetClock(clock func() time.Time) {
	a.clock = clock
}

// RecordSweep folds one sweep's assessments into a snapshot and prunes
// snapshots past retention
func (a *Aggregator) RecordSweep(assessments []*types.RiskAssessment) Snapshot {
	now := a.clock().UTC()
	snapshot := Snapshot{
		Timestamp: now,
		ByLevel: map[types.RiskLevel]int{
			types.RiskLevelLow:      0,
			types.RiskLevelMedium:   0,
			types.RiskLevelHigh:     0,
			types.RiskLevelCritical: 0,
		},
	}

	total := 0.0
	for _, assessment := range assessments {
		if assessment == nil {
			continue
		}
		snapshot.TotalTasks++
		snapshot.ByLevel[assessment.Overall.Level]++
		total += assessment.Overall.Score
		if assessment.Overall.Level == types.RiskLevelCritical {
			snapshot.CriticalTasks = append(snapshot.CriticalTasks, assessment.TaskID)
		}
	}
	if snapshot.TotalTasks > 0 {
		snapshot.AverageScore = total / float64(snapshot.TotalTasks)
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	a.mu.Lock()
	a.snapshots = append(a.snapshots, snapshot)
	for len(a.snapshots) > 0 && a.snapshots[0].Timestamp.Before(cutoff) {
		a.snapshots = a.snapshots[1:]
	}
	a.mu.Unlock()
	return snapshot
}

// Dashboard renders the current risk overview
func (a *Aggregator) Dashboard(recentAlerts int) *Dashboard {
	now := a.clock().UTC()

	a.mu.Lock()
	snapshots := make([]Snapshot, len(a.snapshots))
	copy(snapshots, a.snapshots)
	a.mu.Unlock()

	out := &Dashboard{
		GeneratedAt: now,
		Last24Hours: summarize(snapshots, now.Add(-24*time.Hour)),
		Last7Days:   summarize(snapshots, now.AddDate(0, 0, -7)),
		Trend:       trend(snapshots, now.Add(-24*time.Hour)),
	}
	if len(snapshots) > 0 {
		current := snapshots[len(snapshots)-1]
		out.Current = &current
	}
	if a.alerts != nil && recentAlerts > 0 {
		out.RecentAlerts = a.alerts.Recent(recentAlerts)
	}
	return out
}

func summarize(snapshots []Snapshot, since time.Time) WindowSummary {
	var summary WindowSummary
	total := 0.0
	for _, snapshot := range snapshots {
		if snapshot.Timestamp.Before(since) {
			continue
		}
		summary.Sweeps++
		total += snapshot.AverageScore
		if c := snapshot.ByLevel[types.RiskLevelCritical]; c > summary.PeakCritical {
			summary.PeakCritical = c
		}
		if h := snapshot.ByLevel[types.RiskLevelHigh]; h > summary.PeakHigh {
			summary.PeakHigh = h
		}
	}
	if summary.Sweeps > 0 {
		summary.AverageScore = total / float64(summary.Sweeps)
	}
	return summary
}

// trend compares the latest snapshot against the oldest one inside the
// window: more critical tasks, or clearly more high-risk tasks, reads
// as increasing; the mirror reads as decreasing
func trend(snapshots []Snapshot, since time.Time) Trend {
	var window []Snapshot
	for _, snapshot := range snapshots {
		if !snapshot.Timestamp.Before(since) {
			window = append(window, snapshot)
		}
	}
	if len(window) < 2 {
		return TrendStable
	}

	first, last := window[0], window[len(window)-1]
	criticalDelta := last.ByLevel[types.RiskLevelCritical] - first.ByLevel[types.RiskLevelCritical]
	highDelta := last.ByLevel[types.RiskLevelHigh] - first.ByLevel[types.RiskLevelHigh]

	switch {
	case criticalDelta > 0 || highDelta > 2:
		return TrendIncreasing
	case criticalDelta < 0 && highDelta < -1:
		return TrendDecreasing
	default:
		return TrendStable
	}
}
