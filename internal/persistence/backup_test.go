package persistence

import (
	"context"
	"testing"
	"time"

	"lerian-deadline-engine/internal/config"
	"lerian-deadline-engine/internal/logging"
	"lerian-deadline-engine/internal/profile"
	"lerian-deadline-engine/pkg/types"
)

func seededStore(t *testing.T) *profile.Store {
	t.Helper()
	store := profile.NewStore(config.ProfileConfig{
		MaxHistoryDays:   365,
		MaxHistorySize:   100,
		SkillIncrement:   0.1,
		MaxQualityScores: 50,
	}, logging.NewNoOp())

	actual := 12.0
	quality := 0.8
	completed := time.Now().Add(-24 * time.Hour)
	record := &types.TaskRecord{
		Task: types.Task{
			ID: "t1", Title: "seed",
			Type:           types.TaskTypeDevelopment,
			Complexity:     types.ComplexityMedium,
			EstimatedHours: 10,
			ActualHours:    &actual,
			Quality:        &quality,
			RequiredSkills: []string{"go"},
		},
		DeveloperID: "dev1",
		Completed:   true,
		CompletedAt: &completed,
	}
	if err := store.Ingest(context.Background(), record); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	return store
}

func emptyStore() *profile.Store {
	return profile.NewStore(config.ProfileConfig{
		MaxHistoryDays:   365,
		MaxHistorySize:   100,
		SkillIncrement:   0.1,
		MaxQualityScores: 50,
	}, logging.NewNoOp())
}

func TestBackupRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := seededStore(t)
	dir := t.TempDir()

	manager := NewBackupManager(source, dir, 30, logging.NewNoOp())
	meta, err := manager.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if meta.Profiles != 1 || meta.Patterns != 1 {
		t.Errorf("metadata = %+v, want 1 profile and 1 pattern", meta)
	}
	if meta.Size == 0 || meta.Checksum == "" {
		t.Errorf("metadata missing size or checksum: %+v", meta)
	}

	paths, err := manager.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("List returned %d archives, want 1", len(paths))
	}

	target := emptyStore()
	restorer := NewBackupManager(target, dir, 30, logging.NewNoOp())
	if err := restorer.Restore(ctx, paths[0]); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	prof := target.Profile("dev1")
	if prof == nil {
		t.Fatal("restored store has no dev1 profile")
	}
	if prof.CompletedTasks != 1 || prof.AverageCompletionTime != 12 {
		t.Errorf("restored profile = %+v", prof)
	}
	pattern := target.Pattern(types.TaskTypeDevelopment, types.ComplexityMedium)
	if pattern == nil || pattern.AverageHours != 12 {
		t.Errorf("restored pattern = %+v", pattern)
	}
}

func TestRestoreRejectsMissingArchive(t *testing.T) {
	manager := NewBackupManager(emptyStore(), t.TempDir(), 30, logging.NewNoOp())
	if err := manager.Restore(context.Background(), "absent.tar.gz"); err == nil {
		t.Error("expected error for missing archive")
	}
}

func TestListEmptyDirIsNotAnError(t *testing.T) {
	manager := NewBackupManager(emptyStore(), t.TempDir()+"/never-created", 30, logging.NewNoOp())
	paths, err := manager.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("List = %v, want empty", paths)
	}
	removed, err := manager.CleanupOldBackups(context.Background())
	if err != nil || removed != 0 {
		t.Errorf("CleanupOldBackups = %d, %v", removed, err)
	}
}
