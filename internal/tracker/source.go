// Package tracker supplies active tasks and developer state from a
// YAML file, for deployments without a live task tracker integration.
// The file is re-read on every sweep so edits take effect immediately.
package tracker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"lerian-deadline-engine/internal/risk"
	"lerian-deadline-engine/pkg/types"
)

type taskDoc struct {
	ID                   string     `yaml:"id"`
	Title                string     `yaml:"title"`
	Type                 string     `yaml:"type"`
	Complexity           string     `yaml:"complexity"`
	Priority             string     `yaml:"priority"`
	EstimatedHours       float64    `yaml:"estimated_hours"`
	Difficulty           float64    `yaml:"difficulty"`
	Progress             float64    `yaml:"progress"`
	Deadline             *time.Time `yaml:"deadline"`
	Developer            string     `yaml:"developer"`
	Project              string     `yaml:"project"`
	RequiredSkills       []string   `yaml:"required_skills"`
	Dependencies         []string   `yaml:"dependencies"`
	ExternalDependencies []string   `yaml:"external_dependencies"`
}

type developerDoc struct {
	ID              string             `yaml:"id"`
	CurrentWorkload float64            `yaml:"current_workload"`
	Capacity        float64            `yaml:"capacity"`
	Availability    float64            `yaml:"availability"`
	TeamCapacity    float64            `yaml:"team_capacity"`
	Skills          map[string]float64 `yaml:"skills"`
}

type fileDoc struct {
	Tasks      []taskDoc      `yaml:"tasks"`
	Developers []developerDoc `yaml:"developers"`
}

// FileSource reads the tracked task set from a YAML file
type FileSource struct {
	path string

	mu         sync.RWMutex
	tasks      []risk.ActiveTask
	developers map[string]*risk.DeveloperState
}

// NewFileSource opens and validates the task file
func NewFileSource(path string) (*FileSource, error) {
	s := &FileSource{path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// ActiveTasks implements risk.TaskSource, re-reading the file so task
// edits are picked up between sweeps
func (s *FileSource) ActiveTasks(ctx context.Context) ([]risk.ActiveTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.reload(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]risk.ActiveTask, len(s.tasks))
	copy(out, s.tasks)
	return out, nil
}

// Developer implements risk.DeveloperDirectory
func (s *FileSource) Developer(_ context.Context, id string) (*risk.DeveloperState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dev, ok := s.developers[id]
	if !ok {
		return nil, fmt.Errorf("developer %s not in task file", id)
	}
	clone := *dev
	clone.SkillLevels = make(map[string]float64, len(dev.SkillLevels))
	for k, v := range dev.SkillLevels {
		clone.SkillLevels[k] = v
	}
	return &clone, nil
}

// Count returns how many tasks are currently tracked
func (s *FileSource) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *FileSource) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading task file: %w", err)
	}
	tasks, developers, err := parse(data, s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.tasks = tasks
	s.developers = developers
	s.mu.Unlock()
	return nil
}

func parse(data []byte, path string) ([]risk.ActiveTask, map[string]*risk.DeveloperState, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parsing task file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(doc.Tasks))
	tasks := make([]risk.ActiveTask, 0, len(doc.Tasks))
	for i, td := range doc.Tasks {
		task := types.Task{
			ID:                   td.ID,
			Title:                td.Title,
			Type:                 types.TaskType(td.Type),
			Complexity:           types.Complexity(td.Complexity),
			Priority:             types.Priority(td.Priority),
			EstimatedHours:       td.EstimatedHours,
			Difficulty:           td.Difficulty,
			Progress:             td.Progress,
			Deadline:             td.Deadline,
			RequiredSkills:       td.RequiredSkills,
			Dependencies:         td.Dependencies,
			ExternalDependencies: td.ExternalDependencies,
		}
		if err := task.Validate(); err != nil {
			return nil, nil, fmt.Errorf("task %d in %s: %w", i, path, err)
		}
		if seen[task.ID] {
			return nil, nil, fmt.Errorf("duplicate task id %q in %s", task.ID, path)
		}
		seen[task.ID] = true
		tasks = append(tasks, risk.ActiveTask{
			Task:        task,
			DeveloperID: td.Developer,
			ProjectID:   td.Project,
		})
	}

	developers := make(map[string]*risk.DeveloperState, len(doc.Developers))
	for i, dd := range doc.Developers {
		if dd.ID == "" {
			return nil, nil, fmt.Errorf("developer %d in %s: id is required", i, path)
		}
		if _, ok := developers[dd.ID]; ok {
			return nil, nil, fmt.Errorf("duplicate developer id %q in %s", dd.ID, path)
		}
		developers[dd.ID] = &risk.DeveloperState{
			ID:              dd.ID,
			CurrentWorkload: dd.CurrentWorkload,
			Capacity:        dd.Capacity,
			Availability:    dd.Availability,
			TeamCapacity:    dd.TeamCapacity,
			SkillLevels:     dd.Skills,
		}
	}
	return tasks, developers, nil
}
