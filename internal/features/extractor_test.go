package features

import (
	"testing"

	"lerian-deadline-engine/pkg/types"
)

func TestExtractDefaultsForUnknownDeveloper(t *testing.T) {
	extractor := NewExtractor(nil)
	task := &types.Task{ID: "t1", Title: "x", Type: types.TaskTypeBugfix}

	v := extractor.Extract(task, nil)

	if v.EstimatedHours != types.DefaultEstimatedHours {
		t.Errorf("EstimatedHours = %v, want default 8", v.EstimatedHours)
	}
	if v.Difficulty != types.DefaultDifficulty {
		t.Errorf("Difficulty = %v, want default 5", v.Difficulty)
	}
	if v.DeveloperExperience != 0 {
		t.Errorf("DeveloperExperience = %v, want 0 for unknown developer", v.DeveloperExperience)
	}
	if v.HistoricalAccuracy != 0.5 {
		t.Errorf("HistoricalAccuracy = %v, want default 0.5", v.HistoricalAccuracy)
	}
	if v.CurrentWorkload != DefaultWorkload {
		t.Errorf("CurrentWorkload = %v, want placeholder 0.5", v.CurrentWorkload)
	}
	if v.TaskTypeCode != types.TaskTypeBugfix.Code() {
		t.Errorf("TaskTypeCode = %v", v.TaskTypeCode)
	}
}

func TestExtractUsesProfileSignals(t *testing.T) {
	extractor := NewExtractor(StaticWorkload{Level: 0.9})
	profile := &types.DeveloperProfile{
		ID:                    "dev1",
		AverageCompletionTime: 20,
		Accuracy:              0.85,
		SkillLevels:           map[string]float64{"go": 0.5, "sql": 0.3},
	}
	task := &types.Task{
		ID: "t1", Title: "x",
		Complexity:     types.ComplexityCritical,
		RequiredSkills: []string{"go", "rust"},
		Dependencies:   []string{"t0"},
	}

	v := extractor.Extract(task, profile)

	if v.Complexity != 4 {
		t.Errorf("Complexity = %v, want 4", v.Complexity)
	}
	if v.SkillMatch != 0.5 {
		t.Errorf("SkillMatch = %v, want 0.5 (1 of 2)", v.SkillMatch)
	}
	if v.DeveloperExperience != 20 {
		t.Errorf("DeveloperExperience = %v, want 20", v.DeveloperExperience)
	}
	if v.CurrentWorkload != 0.9 {
		t.Errorf("CurrentWorkload = %v, want 0.9 from provider", v.CurrentWorkload)
	}
	if v.HasDependencies != 1 {
		t.Errorf("HasDependencies = %v, want 1", v.HasDependencies)
	}
}

func TestSkillMatch(t *testing.T) {
	profile := &types.DeveloperProfile{SkillLevels: map[string]float64{"go": 1.0}}

	if got := SkillMatch(nil, profile); got != 1.0 {
		t.Errorf("no required skills: got %v, want 1.0", got)
	}
	if got := SkillMatch([]string{"rust"}, profile); got != 0.0 {
		t.Errorf("absent skill: got %v, want 0.0", got)
	}
	if got := SkillMatch([]string{"rust"}, nil); got != 0.0 {
		t.Errorf("nil profile: got %v, want 0.0", got)
	}
	if got := SkillMatch([]string{"go", "rust"}, profile); got != 0.5 {
		t.Errorf("half match: got %v, want 0.5", got)
	}
}
