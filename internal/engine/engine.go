// Package engine wires the profile store, prediction engine, risk
// assessor, alerting and dashboard into one facade with a small API.
package engine

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"lerian-deadline-engine/internal/alerting"
	"lerian-deadline-engine/internal/config"
	"lerian-deadline-engine/internal/dashboard"
	"lerian-deadline-engine/internal/features"
	"lerian-deadline-engine/internal/logging"
	"lerian-deadline-engine/internal/monitor"
	"lerian-deadline-engine/internal/persistence"
	"lerian-deadline-engine/internal/prediction"
	"lerian-deadline-engine/internal/profile"
	"lerian-deadline-engine/internal/risk"
	"lerian-deadline-engine/pkg/types"
)

// Options carries the external collaborators. Everything is optional
// except Source, which monitoring sweeps cannot run without.
type Options struct {
	Source       risk.TaskSource
	Developers   risk.DeveloperDirectory
	Projects     risk.ProjectDirectory
	Dependencies risk.DependencyChecker
	External     risk.ExternalChecker
	Market       risk.MarketSignal
	Workload     features.WorkloadProvider
	Rules        []types.MonitoringRule
	Cooldowns    alerting.CooldownStore
	Journal      *persistence.AlertJournal
	Snapshots    *persistence.SnapshotStore
}

// Engine is the deadline prediction and risk monitoring facade
type Engine struct {
	cfg        *config.Config
	logger     logging.Logger
	store      *profile.Store
	predictor  *prediction.Engine
	assessor   *risk.Assessor
	alerts     *alerting.Manager
	aggregator *dashboard.Aggregator
	monitor    *monitor.Monitor
	journal    *persistence.AlertJournal
	snapshots  *persistence.SnapshotStore
}

// New assembles the engine. When a snapshot store is supplied, stored
// profiles and patterns are loaded before the engine takes traffic.
func New(cfg *config.Config, logger logging.Logger, opts Options) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := profile.NewStore(cfg.Profile, logger)
	if opts.Snapshots != nil {
		ctx := context.Background()
		if err := opts.Snapshots.LoadProfiles(ctx, store.RestoreProfile); err != nil {
			return nil, fmt.Errorf("restoring profiles: %w", err)
		}
		if err := opts.Snapshots.LoadPatterns(ctx, store.RestorePattern); err != nil {
			return nil, fmt.Errorf("restoring patterns: %w", err)
		}
		store.SetSnapshotSink(opts.Snapshots)
	}

	extractor := features.NewExtractor(opts.Workload)
	predictor := prediction.NewEngine(store, extractor, cfg.Prediction, logger)
	assessor := risk.NewAssessor(opts.Developers, opts.Projects, opts.Dependencies, opts.External, opts.Market, logger)

	alerts := alerting.NewManager(opts.Cooldowns, cfg.Alerting, logger)
	if opts.Journal != nil {
		alerts.AddSink(opts.Journal)
	}
	aggregator := dashboard.NewAggregator(alerts)

	e := &Engine{
		cfg:        cfg,
		logger:     logger.WithComponent("engine"),
		store:      store,
		predictor:  predictor,
		assessor:   assessor,
		alerts:     alerts,
		aggregator: aggregator,
		journal:    opts.Journal,
		snapshots:  opts.Snapshots,
	}
	if opts.Source != nil {
		e.monitor = monitor.New(opts.Source, assessor, alerts, aggregator, opts.Rules, cfg.Monitoring, logger)
	}
	return e, nil
}

// AddHistoricalData ingests completed task records into developer
// profiles and task patterns. One malformed record never blocks the
// rest; the count of successfully ingested records is returned.
func (e *Engine) AddHistoricalData(ctx context.Context, records []types.TaskRecord) (int, error) {
	ingested := 0
	var firstErr error
	for i := range records {
		if err := ctx.Err(); err != nil {
			return ingested, err
		}
		if err := e.store.Ingest(ctx, &records[i]); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("record %d: %w", i, err)
			}
			e.logger.Warn("historical record rejected",
				"index", i, "task_id", records[i].Task.ID, "error", err)
			continue
		}
		ingested++
	}
	if ingested == 0 && firstErr != nil {
		return 0, firstErr
	}
	return ingested, nil
}

// PredictOptions are the loosely-typed knobs accepted by
// PredictDeadline, decoded from a generic map
type PredictOptions struct {
	Method string `mapstructure:"method"`
}

// PredictDeadline estimates completion hours and a deadline date for
// the task when worked by the developer. The options map accepts a
// "method" key selecting the estimation strategy.
func (e *Engine) PredictDeadline(task *types.Task, developerID string, options map[string]any) (*types.Prediction, error) {
	var opts PredictOptions
	if len(options) > 0 {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:      &opts,
			ErrorUnused: true,
		})
		if err != nil {
			return nil, fmt.Errorf("building options decoder: %w", err)
		}
		if err := decoder.Decode(options); err != nil {
			return nil, fmt.Errorf("invalid prediction options: %w", err)
		}
	}
	return e.predictor.Predict(task, developerID, types.PredictionMethod(opts.Method))
}

// RecordOutcome feeds back the actual hours for a completed prediction
func (e *Engine) RecordOutcome(predictedHours, actualHours float64) {
	e.predictor.RecordOutcome(predictedHours, actualHours)
}

// Analytics summarizes engine activity
type Analytics struct {
	Prediction   prediction.Stats `json:"prediction"`
	Developers   int              `json:"developers"`
	Patterns     int              `json:"patterns"`
	AlertsRaised int              `json:"alerts_raised"`
}

// GetAnalytics returns the current analytics counters
func (e *Engine) GetAnalytics() Analytics {
	return Analytics{
		Prediction:   e.predictor.Snapshot(),
		Developers:   e.store.DeveloperCount(),
		Patterns:     e.store.PatternCount(),
		AlertsRaised: e.alerts.Raised(),
	}
}

// GetRiskDashboard renders the risk overview with up to recentAlerts
// recent alerts attached
func (e *Engine) GetRiskDashboard(recentAlerts int) *dashboard.Dashboard {
	return e.aggregator.Dashboard(recentAlerts)
}

// RunSweepOnce runs a single monitoring sweep
func (e *Engine) RunSweepOnce(ctx context.Context) (*monitor.SweepResult, error) {
	if e.monitor == nil {
		return nil, fmt.Errorf("monitoring requires a task source")
	}
	return e.monitor.RunSweepOnce(ctx)
}

// Run sweeps on the configured interval until the context is cancelled
func (e *Engine) Run(ctx context.Context) error {
	if e.monitor == nil {
		return fmt.Errorf("monitoring requires a task source")
	}
	return e.monitor.Run(ctx)
}

// Close flushes and releases the optional persistence stores
func (e *Engine) Close() error {
	var firstErr error
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			firstErr = err
		}
	}
	if e.snapshots != nil {
		if err := e.snapshots.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
