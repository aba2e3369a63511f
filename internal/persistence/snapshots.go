package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"lerian-deadline-engine/internal/logging"
	"lerian-deadline-engine/pkg/types"
)

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS developer_profiles (
	id         TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS task_patterns (
	task_type  TEXT NOT NULL,
	complexity TEXT NOT NULL,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (task_type, complexity)
);
`

// SnapshotStore persists profile and pattern state to Postgres so a
// restarted engine keeps its learned history
type SnapshotStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewSnapshotStore connects to Postgres and ensures the schema
func NewSnapshotStore(dsn string, logger logging.Logger) (*SnapshotStore, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, snapshotSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating snapshot schema: %w", err)
	}
	return &SnapshotStore{db: db, logger: logger.WithComponent("snapshots")}, nil
}

// SaveProfile upserts one developer profile
func (s *SnapshotStore) SaveProfile(ctx context.Context, profile *types.DeveloperProfile) error {
	payload, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encoding profile %s: %w", profile.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO developer_profiles (id, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		profile.ID, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving profile %s: %w", profile.ID, err)
	}
	return nil
}

// SavePattern upserts one task pattern
func (s *SnapshotStore) SavePattern(ctx context.Context, pattern *types.TaskPattern) error {
	payload, err := json.Marshal(pattern)
	if err != nil {
		return fmt.Errorf("encoding pattern %s: %w", pattern.Key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_patterns (task_type, complexity, payload, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (task_type, complexity) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		string(pattern.Key.Type), string(pattern.Key.Complexity), payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving pattern %s: %w", pattern.Key, err)
	}
	return nil
}

// LoadProfiles streams every stored profile to the callback, used to
// warm the in-memory store on startup
func (s *SnapshotStore) LoadProfiles(ctx context.Context, restore func(*types.DeveloperProfile)) error {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM developer_profiles`)
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("scanning profile: %w", err)
		}
		var profile types.DeveloperProfile
		if err := json.Unmarshal(payload, &profile); err != nil {
			s.logger.Warn("skipping undecodable profile", "error", err)
			continue
		}
		restore(&profile)
		loaded++
	}
	s.logger.Info("profiles restored", "count", loaded)
	return rows.Err()
}

// LoadPatterns streams every stored pattern to the callback
func (s *SnapshotStore) LoadPatterns(ctx context.Context, restore func(*types.TaskPattern)) error {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM task_patterns`)
	if err != nil {
		return fmt.Errorf("loading patterns: %w", err)
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("scanning pattern: %w", err)
		}
		var pattern types.TaskPattern
		if err := json.Unmarshal(payload, &pattern); err != nil {
			s.logger.Warn("skipping undecodable pattern", "error", err)
			continue
		}
		restore(&pattern)
		loaded++
	}
	s.logger.Info("patterns restored", "count", loaded)
	return rows.Err()
}

// Close releases the connection pool
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}
