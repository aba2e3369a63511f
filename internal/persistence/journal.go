// Package persistence provides the optional durable stores: a SQLite
// journal for raised alerts and a Postgres store for profile and
// pattern snapshots. The engine runs fully in memory without either.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"lerian-deadline-engine/internal/logging"
	"lerian-deadline-engine/pkg/types"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS alerts (
	id              TEXT PRIMARY KEY,
	task_id         TEXT NOT NULL,
	type            TEXT NOT NULL,
	level           TEXT NOT NULL,
	score           REAL NOT NULL,
	timestamp       DATETIME NOT NULL,
	message         TEXT NOT NULL,
	recommendations TEXT
);
CREATE INDEX IF NOT EXISTS idx_alerts_task ON alerts(task_id);
CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp);
`

// journalBuffer bounds how many alerts can queue before writes drop
const journalBuffer = 256

// AlertJournal persists raised alerts to SQLite. Writes are buffered
// and flushed in batches; Deliver never blocks the sweep.
type AlertJournal struct {
	db     *sql.DB
	logger logging.Logger

	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	pending []types.Alert
	dropped int
}

// NewAlertJournal opens (creating if needed) the journal database and
// starts the background flusher
func NewAlertJournal(path string, flushInterval time.Duration, logger logging.Logger) (*AlertJournal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening alert journal: %w", err)
	}
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating alert journal schema: %w", err)
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}

	j := &AlertJournal{
		db:     db,
		logger: logger.WithComponent("alert-journal"),
		done:   make(chan struct{}),
	}
	j.wg.Add(1)
	go j.flusher(flushInterval)
	return j, nil
}

// Deliver implements alerting.Sink. A full buffer drops the alert
// rather than stalling the sweep; drops are counted and logged.
func (j *AlertJournal) Deliver(_ context.Context, alert *types.Alert) {
	j.mu.Lock()
	if len(j.pending) >= journalBuffer {
		j.dropped++
		dropped := j.dropped
		j.mu.Unlock()
		j.logger.Warn("alert journal buffer full, dropping alert",
			"alert_id", alert.ID, "dropped_total", dropped)
		return
	}
	j.pending = append(j.pending, *alert)
	full := len(j.pending) >= journalBuffer/2
	j.mu.Unlock()

	if full {
		j.flush()
	}
}

func (j *AlertJournal) flusher(interval time.Duration) {
	defer j.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.flush()
		case <-j.done:
			j.flush()
			return
		}
	}
}

// flush writes all pending alerts in one transaction
func (j *AlertJournal) flush() {
	j.mu.Lock()
	batch := j.pending
	j.pending = nil
	j.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	tx, err := j.db.Begin()
	if err != nil {
		j.logger.Error("alert journal flush failed", "error", err)
		j.requeue(batch)
		return
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO alerts
		(id, task_id, type, level, score, timestamp, message, recommendations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		j.logger.Error("alert journal flush failed", "error", err)
		j.requeue(batch)
		return
	}
	for _, alert := range batch {
		recommendations, _ := json.Marshal(alert.Recommendations)
		if _, err := stmt.Exec(alert.ID, alert.TaskID, string(alert.Type),
			string(alert.Level), alert.Score, alert.Timestamp,
			alert.Message, string(recommendations)); err != nil {
			j.logger.Warn("alert insert failed", "alert_id", alert.ID, "error", err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		j.logger.Error("alert journal commit failed", "error", err)
		j.requeue(batch)
	}
}

func (j *AlertJournal) requeue(batch []types.Alert) {
	j.mu.Lock()
	j.pending = append(batch, j.pending...)
	j.mu.Unlock()
}

// Recent returns up to limit alerts, newest first
func (j *AlertJournal) Recent(ctx context.Context, limit int) ([]types.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `SELECT id, task_id, type, level,
		score, timestamp, message, recommendations
		FROM alerts ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	return j.scanAlerts(rows)
}

// TaskHistory returns the journaled alerts for one task, newest first
func (j *AlertJournal) TaskHistory(ctx context.Context, taskID string, limit int) ([]types.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `SELECT id, task_id, type, level,
		score, timestamp, message, recommendations
		FROM alerts WHERE task_id = ? ORDER BY timestamp DESC LIMIT ?`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying task alerts: %w", err)
	}
	return j.scanAlerts(rows)
}

func (j *AlertJournal) scanAlerts(rows *sql.Rows) ([]types.Alert, error) {
	defer rows.Close()

	var alerts []types.Alert
	for rows.Next() {
		var alert types.Alert
		var axis, level, recommendations string
		if err := rows.Scan(&alert.ID, &alert.TaskID, &axis, &level,
			&alert.Score, &alert.Timestamp, &alert.Message, &recommendations); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alert.Type = types.RiskAxis(axis)
		alert.Level = types.RiskLevel(level)
		if recommendations != "" && recommendations != "null" {
			if err := json.Unmarshal([]byte(recommendations), &alert.Recommendations); err != nil {
				j.logger.Warn("bad recommendations payload", "alert_id", alert.ID, "error", err)
			}
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// PruneOlderThan deletes journal entries past the retention horizon and
// returns how many were removed
func (j *AlertJournal) PruneOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	result, err := j.db.ExecContext(ctx, `DELETE FROM alerts WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning alerts: %w", err)
	}
	return result.RowsAffected()
}

// Flush forces pending alerts to disk
func (j *AlertJournal) Flush() {
	j.flush()
}

// Close flushes the buffer and closes the database
func (j *AlertJournal) Close() error {
	close(j.done)
	j.wg.Wait()
	return j.db.Close()
}
