package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lerian-deadline-engine/internal/logging"
	"lerian-deadline-engine/pkg/types"
)

func openTestJournal(t *testing.T) *AlertJournal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alerts.db")
	journal, err := NewAlertJournal(path, time.Hour, logging.NewNoOp())
	if err != nil {
		t.Fatalf("NewAlertJournal: %v", err)
	}
	t.Cleanup(func() { journal.Close() })
	return journal
}

func testAlert(id, taskID string, ts time.Time) *types.Alert {
	return &types.Alert{
		ID:              id,
		TaskID:          taskID,
		Type:            types.RiskAxisDeadline,
		Level:           types.RiskLevelCritical,
		Score:           0.9,
		Timestamp:       ts,
		Message:         "deadline risk is critical",
		Recommendations: []string{"cut scope"},
	}
}

func TestJournalRoundTrip(t *testing.T) {
	journal := openTestJournal(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)

	journal.Deliver(ctx, testAlert("a1", "t1", now))
	journal.Deliver(ctx, testAlert("a2", "t2", now.Add(time.Minute)))
	journal.Flush()

	alerts, err := journal.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("Recent returned %d alerts, want 2", len(alerts))
	}
	if alerts[0].ID != "a2" {
		t.Errorf("newest first: got %s, want a2", alerts[0].ID)
	}
	if alerts[1].Level != types.RiskLevelCritical || alerts[1].Type != types.RiskAxisDeadline {
		t.Errorf("alert fields lost in round trip: %+v", alerts[1])
	}
	if len(alerts[1].Recommendations) != 1 || alerts[1].Recommendations[0] != "cut scope" {
		t.Errorf("recommendations = %v", alerts[1].Recommendations)
	}
}

func TestJournalTaskHistoryFilters(t *testing.T) {
	journal := openTestJournal(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)

	journal.Deliver(ctx, testAlert("a1", "t1", now))
	journal.Deliver(ctx, testAlert("a2", "t2", now))
	journal.Deliver(ctx, testAlert("a3", "t1", now.Add(time.Minute)))
	journal.Flush()

	alerts, err := journal.TaskHistory(ctx, "t1", 10)
	if err != nil {
		t.Fatalf("TaskHistory: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("TaskHistory returned %d alerts, want 2", len(alerts))
	}
	for _, alert := range alerts {
		if alert.TaskID != "t1" {
			t.Errorf("alert %s belongs to %s", alert.ID, alert.TaskID)
		}
	}
}

func TestJournalPrune(t *testing.T) {
	journal := openTestJournal(t)
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -60)
	journal.Deliver(ctx, testAlert("a1", "t1", old))
	journal.Deliver(ctx, testAlert("a2", "t1", time.Now().UTC()))
	journal.Flush()

	pruned, err := journal.PruneOlderThan(ctx, 30)
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}
	alerts, err := journal.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != "a2" {
		t.Errorf("surviving alerts = %v, want just a2", alerts)
	}
}

func TestJournalIgnoresDuplicateIDs(t *testing.T) {
	journal := openTestJournal(t)
	ctx := context.Background()
	now := time.Now().UTC()

	journal.Deliver(ctx, testAlert("a1", "t1", now))
	journal.Deliver(ctx, testAlert("a1", "t1", now))
	journal.Flush()

	alerts, err := journal.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(alerts) != 1 {
		t.Errorf("duplicate insert should be ignored, got %d rows", len(alerts))
	}
}
