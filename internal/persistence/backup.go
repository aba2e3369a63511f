package persistence

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lerian-deadline-engine/internal/logging"
	"lerian-deadline-engine/internal/profile"
	"lerian-deadline-engine/pkg/types"
)

const backupVersion = "1"

// BackupMetadata describes one learned-state archive
type BackupMetadata struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Profiles  int       `json:"profiles"`
	Patterns  int       `json:"patterns"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
}

// BackupManager exports and restores the engine's learned state as
// gzipped tar archives: developer profiles and task patterns. It gives
// in-memory deployments a way to survive restarts without Postgres.
type BackupManager struct {
	store         *profile.Store
	dir           string
	retentionDays int
	logger        logging.Logger
}

// NewBackupManager creates a backup manager writing into dir
func NewBackupManager(store *profile.Store, dir string, retentionDays int, logger logging.Logger) *BackupManager {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &BackupManager{
		store:         store,
		dir:           dir,
		retentionDays: retentionDays,
		logger:        logger.WithComponent("backup"),
	}
}

type backupPayload struct {
	Profiles []*types.DeveloperProfile `json:"profiles"`
	Patterns []*types.TaskPattern      `json:"patterns"`
}

// Create writes a new archive of the current learned state and returns
// its metadata
func (bm *BackupManager) Create(ctx context.Context) (*BackupMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(bm.dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating backup dir: %w", err)
	}

	payload := backupPayload{
		Profiles: bm.store.Profiles(),
		Patterns: bm.store.Patterns(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding backup payload: %w", err)
	}
	sum := sha256.Sum256(body)

	meta := &BackupMetadata{
		Version:   backupVersion,
		CreatedAt: time.Now().UTC(),
		Profiles:  len(payload.Profiles),
		Patterns:  len(payload.Patterns),
		Checksum:  hex.EncodeToString(sum[:]),
	}
	metaBody, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding backup metadata: %w", err)
	}

	path := filepath.Join(bm.dir, bm.fileName(meta.CreatedAt))
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating backup file: %w", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	tw := tar.NewWriter(gz)
	for _, entry := range []struct {
		name string
		data []byte
	}{
		{"metadata.json", metaBody},
		{"state.json", body},
	} {
		header := &tar.Header{
			Name:    entry.name,
			Mode:    0o600,
			Size:    int64(len(entry.data)),
			ModTime: meta.CreatedAt,
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, fmt.Errorf("writing %s header: %w", entry.name, err)
		}
		if _, err := tw.Write(entry.data); err != nil {
			return nil, fmt.Errorf("writing %s: %w", entry.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip stream: %w", err)
	}

	if info, err := os.Stat(path); err == nil {
		meta.Size = info.Size()
	}
	bm.logger.Info("backup created", "path", path,
		"profiles", meta.Profiles, "patterns", meta.Patterns, "size", meta.Size)
	return meta, nil
}

// Restore loads an archive into the profile store, verifying the
// payload against the recorded checksum first
func (bm *BackupManager) Restore(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("reading gzip stream: %w", err)
	}
	defer gz.Close()

	var meta BackupMetadata
	var body []byte
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("reading %s: %w", header.Name, err)
		}
		switch header.Name {
		case "metadata.json":
			if err := json.Unmarshal(data, &meta); err != nil {
				return fmt.Errorf("decoding metadata: %w", err)
			}
		case "state.json":
			body = data
		}
	}
	if body == nil {
		return fmt.Errorf("backup %s has no state payload", path)
	}
	if meta.Checksum != "" {
		sum := sha256.Sum256(body)
		if hex.EncodeToString(sum[:]) != meta.Checksum {
			return fmt.Errorf("backup %s is corrupt: checksum mismatch", path)
		}
	}

	var payload backupPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decoding backup payload: %w", err)
	}
	for _, prof := range payload.Profiles {
		bm.store.RestoreProfile(prof)
	}
	for _, pattern := range payload.Patterns {
		bm.store.RestorePattern(pattern)
	}
	bm.logger.Info("backup restored", "path", path,
		"profiles", len(payload.Profiles), "patterns", len(payload.Patterns))
	return nil
}

// List returns the available archive paths, newest first
func (bm *BackupManager) List() ([]string, error) {
	entries, err := os.ReadDir(bm.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing backups: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".tar.gz") {
			names = append(names, filepath.Join(bm.dir, entry.Name()))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// CleanupOldBackups deletes archives past the retention horizon and
// returns how many were removed
func (bm *BackupManager) CleanupOldBackups(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(bm.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("listing backups: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -bm.retentionDays)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tar.gz") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(bm.dir, entry.Name())); err != nil {
				bm.logger.Warn("failed to remove expired backup",
					"name", entry.Name(), "error", err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		bm.logger.Info("expired backups removed", "count", removed)
	}
	return removed, nil
}

func (bm *BackupManager) fileName(at time.Time) string {
	return "deadline-state-" + at.Format("20060102-150405") + ".tar.gz"
}
