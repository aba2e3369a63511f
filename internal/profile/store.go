// Package profile maintains per-developer historical performance
// profiles and per-task-pattern statistics, updated incrementally as
// completed-task records arrive.
package profile

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"lerian-deadline-engine/internal/config"
	"lerian-deadline-engine/internal/logging"
	"lerian-deadline-engine/pkg/types"
)

const shardCount = 16

// ErrMissingDeveloperID is returned when a record has no developer attribution
var ErrMissingDeveloperID = errors.New("task record has no developer id")

// SnapshotSink receives profile and pattern snapshots after each
// ingest. Implementations must tolerate being called concurrently for
// different developers.
type SnapshotSink interface {
	SaveProfile(ctx context.Context, profile *types.DeveloperProfile) error
	SavePattern(ctx context.Context, pattern *types.TaskPattern) error
}

type shard struct {
	mu       sync.RWMutex
	profiles map[string]*types.DeveloperProfile
}

// Store owns all developer profiles and task patterns. Writes are
// serialized per developer via shards keyed by developer ID, so
// concurrent ingests for different developers do not block each other.
type Store struct {
	cfg    config.ProfileConfig
	logger logging.Logger

	shards [shardCount]*shard

	patternMu sync.RWMutex
	patterns  map[types.PatternKey]*types.TaskPattern

	sink SnapshotSink
}

// NewStore creates an empty profile store
func NewStore(cfg config.ProfileConfig, logger logging.Logger) *Store {
	s := &Store{
		cfg:      cfg,
		logger:   logger.WithComponent("profile-store"),
		patterns: make(map[types.PatternKey]*types.TaskPattern),
	}
	for i := range s.shards {
		s.shards[i] = &shard{profiles: make(map[string]*types.DeveloperProfile)}
	}
	return s
}

// SetSnapshotSink enables write-through persistence of profile and
// pattern state. Safe to call only before the store is in use.
func (s *Store) SetSnapshotSink(sink SnapshotSink) {
	s.sink = sink
}

func (s *Store) shardFor(developerID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(developerID))
	return s.shards[h.Sum32()%shardCount]
}

// Ingest incorporates a task record into the developer's profile and
// the matching task pattern. Completed records with actual hours update
// the running means; every record updates the pattern statistics.
func (s *Store) Ingest(ctx context.Context, record *types.TaskRecord) error {
	if record.DeveloperID == "" {
		return ErrMissingDeveloperID
	}
	task := record.Task
	if err := task.Validate(); err != nil {
		return err
	}
	task.ApplyDefaults()

	sh := s.shardFor(record.DeveloperID)
	sh.mu.Lock()
	prof := sh.profiles[record.DeveloperID]
	if prof == nil {
		prof = &types.DeveloperProfile{
			ID:          record.DeveloperID,
			SkillLevels: make(map[string]float64),
			Accuracy:    0.5,
		}
		sh.profiles[record.DeveloperID] = prof
	}

	s.pruneLocked(prof, time.Now().AddDate(0, 0, -s.cfg.MaxHistoryDays))

	prof.TotalTasks++
	if record.Completed && task.ActualHours != nil {
		s.recordCompletion(prof, &task, record)
	}
	prof.UpdatedAt = time.Now().UTC()
	snapshot := prof.Clone()
	sh.mu.Unlock()

	pattern := s.updatePattern(&task, record)

	if s.sink != nil {
		if err := s.sink.SaveProfile(ctx, snapshot); err != nil {
			s.logger.Warn("profile snapshot failed", "developer_id", snapshot.ID, "error", err)
		}
		if err := s.sink.SavePattern(ctx, pattern); err != nil {
			s.logger.Warn("pattern snapshot failed", "pattern", pattern.Key.String(), "error", err)
		}
	}
	return nil
}

// recordCompletion folds a completed task into the running means. The
// caller holds the shard lock.
func (s *Store) recordCompletion(prof *types.DeveloperProfile, task *types.Task, record *types.TaskRecord) {
	actual := *task.ActualHours
	prof.CompletedTasks++
	n := float64(prof.CompletedTasks)
	prof.AverageCompletionTime = movingAverage(prof.AverageCompletionTime, actual, n)

	quality := 0.0
	if task.Quality != nil {
		quality = *task.Quality
		prof.AverageQuality = movingAverage(prof.AverageQuality, quality, n)
	}

	// Accuracy tracks how close estimates land to actuals, folded with
	// the same moving-average discipline as completion time.
	if task.EstimatedHours > 0 {
		relErr := math.Abs(actual-task.EstimatedHours) / task.EstimatedHours
		observed := math.Max(0, 1-relErr)
		prof.Accuracy = movingAverage(prof.Accuracy, observed, n)
	}

	for _, skill := range task.RequiredSkills {
		// Unbounded accumulation: values above 1 read as "mastered"
		prof.SkillLevels[skill] += s.cfg.SkillIncrement
	}

	completedAt := time.Now().UTC()
	if record.CompletedAt != nil {
		completedAt = *record.CompletedAt
	}
	prof.PerformanceHistory = append(prof.PerformanceHistory, types.PerformanceEntry{
		Date:       completedAt,
		Hours:      actual,
		Quality:    quality,
		Complexity: task.Complexity.Ordinal(),
	})
	if len(prof.PerformanceHistory) > s.cfg.MaxHistorySize {
		prof.PerformanceHistory = prof.PerformanceHistory[len(prof.PerformanceHistory)-s.cfg.MaxHistorySize:]
	}
}

// updatePattern folds the record into the (type, complexity) pattern
func (s *Store) updatePattern(task *types.Task, record *types.TaskRecord) *types.TaskPattern {
	key := types.PatternKey{Type: task.Type, Complexity: task.Complexity}

	s.patternMu.Lock()
	defer s.patternMu.Unlock()

	pattern := s.patterns[key]
	if pattern == nil {
		pattern = &types.TaskPattern{Key: key}
		s.patterns[key] = pattern
	}
	pattern.TotalTasks++

	if record.Completed && task.ActualHours != nil {
		pattern.HoursSamples++
		pattern.AverageHours = movingAverage(pattern.AverageHours, *task.ActualHours, float64(pattern.HoursSamples))

		if task.Quality != nil {
			pattern.QualityScores = append(pattern.QualityScores, *task.Quality)
			if len(pattern.QualityScores) > s.cfg.MaxQualityScores {
				pattern.QualityScores = pattern.QualityScores[len(pattern.QualityScores)-s.cfg.MaxQualityScores:]
			}
			pattern.Variance = populationVariance(pattern.QualityScores)
		}
	}
	pattern.CompletionRate = float64(len(pattern.QualityScores)) / float64(pattern.TotalTasks)
	pattern.UpdatedAt = time.Now().UTC()

	clone := *pattern
	clone.QualityScores = append([]float64(nil), pattern.QualityScores...)
	return &clone
}

// PruneOlderThan drops performance-history entries older than the given
// number of days from every profile. Profiles themselves are retained.
func (s *Store) PruneOlderThan(days int) {
	cutoff := time.Now().AddDate(0, 0, -days)
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, prof := range sh.profiles {
			s.pruneLocked(prof, cutoff)
		}
		sh.mu.Unlock()
	}
}

func (s *Store) pruneLocked(prof *types.DeveloperProfile, cutoff time.Time) {
	if len(prof.PerformanceHistory) == 0 {
		return
	}
	kept := prof.PerformanceHistory[:0]
	for _, entry := range prof.PerformanceHistory {
		if !entry.Date.Before(cutoff) {
			kept = append(kept, entry)
		}
	}
	prof.PerformanceHistory = kept
}

// Profile returns a copy of the developer's profile, or nil if unknown
func (s *Store) Profile(developerID string) *types.DeveloperProfile {
	sh := s.shardFor(developerID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.profiles[developerID].Clone()
}

// Pattern returns a copy of the statistics for a (type, complexity)
// pair, or nil if no tasks with that shape have been seen
func (s *Store) Pattern(taskType types.TaskType, complexity types.Complexity) *types.TaskPattern {
	s.patternMu.RLock()
	defer s.patternMu.RUnlock()

	pattern := s.patterns[types.PatternKey{Type: taskType, Complexity: complexity}]
	if pattern == nil {
		return nil
	}
	clone := *pattern
	clone.QualityScores = append([]float64(nil), pattern.QualityScores...)
	return &clone
}

// DeveloperCount returns the number of known developers
func (s *Store) DeveloperCount() int {
	count := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		count += len(sh.profiles)
		sh.mu.RUnlock()
	}
	return count
}

// PatternCount returns the number of distinct task patterns
func (s *Store) PatternCount() int {
	s.patternMu.RLock()
	defer s.patternMu.RUnlock()
	return len(s.patterns)
}

// Profiles returns a copy of every developer profile, used for exports
func (s *Store) Profiles() []*types.DeveloperProfile {
	var out []*types.DeveloperProfile
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, prof := range sh.profiles {
			out = append(out, prof.Clone())
		}
		sh.mu.RUnlock()
	}
	return out
}

// Patterns returns a copy of every task pattern, used for exports
func (s *Store) Patterns() []*types.TaskPattern {
	s.patternMu.RLock()
	defer s.patternMu.RUnlock()

	out := make([]*types.TaskPattern, 0, len(s.patterns))
	for _, pattern := range s.patterns {
		clone := *pattern
		clone.QualityScores = append([]float64(nil), pattern.QualityScores...)
		out = append(out, &clone)
	}
	return out
}

// RestoreProfile seeds a profile loaded from persistence. Intended for
// warm-up before the store takes live traffic.
func (s *Store) RestoreProfile(prof *types.DeveloperProfile) {
	if prof == nil || prof.ID == "" {
		return
	}
	sh := s.shardFor(prof.ID)
	sh.mu.Lock()
	sh.profiles[prof.ID] = prof.Clone()
	sh.mu.Unlock()
}

// RestorePattern seeds a pattern loaded from persistence
func (s *Store) RestorePattern(pattern *types.TaskPattern) {
	if pattern == nil {
		return
	}
	clone := *pattern
	clone.QualityScores = append([]float64(nil), pattern.QualityScores...)
	s.patternMu.Lock()
	s.patterns[pattern.Key] = &clone
	s.patternMu.Unlock()
}

// movingAverage folds a new observation into a running mean without
// storing full history: new = (old*(n-1) + value)/n
func movingAverage(old, value, n float64) float64 {
	if n <= 1 {
		return value
	}
	return (old*(n-1) + value) / n
}

// populationVariance computes the population variance of the scores
func populationVariance(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range scores {
		mean += v
	}
	mean /= float64(len(scores))

	variance := 0.0
	for _, v := range scores {
		d := v - mean
		variance += d * d
	}
	return variance / float64(len(scores))
}
