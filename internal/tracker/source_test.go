package tracker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"lerian-deadline-engine/pkg/types"
)

const sampleDoc = `
developers:
  - id: dev1
    current_workload: 6
    capacity: 8
    availability: 0.9
    team_capacity: 0.8
    skills:
      go: 0.9
      sql: 0.4
tasks:
  - id: t1
    title: Build the exporter
    type: development
    complexity: high
    priority: high
    estimated_hours: 24
    progress: 0.3
    deadline: 2026-09-11T00:00:00Z
    developer: dev1
    required_skills: [go]
    dependencies: [t0]
  - id: t2
    title: Write docs
    type: documentation
    estimated_hours: 4
    developer: dev1
`

func writeTaskFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing task file: %v", err)
	}
	return path
}

func TestFileSourceLoadsTasksAndDevelopers(t *testing.T) {
	source, err := NewFileSource(writeTaskFile(t, sampleDoc))
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	ctx := context.Background()

	tasks, err := source.ActiveTasks(ctx)
	if err != nil {
		t.Fatalf("ActiveTasks: %v", err)
	}
	if len(tasks) != 2 || source.Count() != 2 {
		t.Fatalf("loaded %d tasks, want 2", len(tasks))
	}
	first := tasks[0]
	if first.Task.ID != "t1" || first.Task.Complexity != types.ComplexityHigh {
		t.Errorf("first task = %+v", first.Task)
	}
	if first.Task.Deadline == nil || first.Task.Deadline.Year() != 2026 {
		t.Errorf("deadline not parsed: %v", first.Task.Deadline)
	}
	if first.DeveloperID != "dev1" {
		t.Errorf("DeveloperID = %q", first.DeveloperID)
	}

	dev, err := source.Developer(ctx, "dev1")
	if err != nil {
		t.Fatalf("Developer: %v", err)
	}
	if dev.Capacity != 8 || dev.SkillLevels["go"] != 0.9 {
		t.Errorf("developer state = %+v", dev)
	}
	if _, err := source.Developer(ctx, "ghost"); err == nil {
		t.Error("unknown developer should error")
	}
}

func TestFileSourcePicksUpEdits(t *testing.T) {
	path := writeTaskFile(t, sampleDoc)
	source, err := NewFileSource(path)
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}

	extended := sampleDoc + `
  - id: t3
    title: New arrival
    estimated_hours: 2
`
	if err := os.WriteFile(path, []byte(extended), 0o600); err != nil {
		t.Fatalf("rewriting task file: %v", err)
	}

	tasks, err := source.ActiveTasks(context.Background())
	if err != nil {
		t.Fatalf("ActiveTasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Errorf("after edit loaded %d tasks, want 3", len(tasks))
	}
}

func TestFileSourceRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"missing title":       "tasks:\n  - id: t1",
		"duplicate task":      "tasks:\n  - id: t1\n    title: a\n  - id: t1\n    title: b",
		"developer id":        "developers:\n  - capacity: 8",
		"duplicate developer": "developers:\n  - id: d1\n  - id: d1",
		"not yaml":            "{{{",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewFileSource(writeTaskFile(t, doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	if _, err := NewFileSource(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
