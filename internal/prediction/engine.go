package prediction

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"lerian-deadline-engine/internal/config"
	"lerian-deadline-engine/internal/features"
	"lerian-deadline-engine/internal/logging"
	"lerian-deadline-engine/internal/profile"
	"lerian-deadline-engine/pkg/types"
)

// ensembleWeights are the fixed combination weights over the linear,
// time-series and heuristic members, renormalized over whichever
// strategies succeed
var ensembleWeights = []float64{0.4, 0.4, 0.2}

// Engine produces deadline predictions for task/developer pairs
type Engine struct {
	store     *profile.Store
	extractor *features.Extractor
	cfg       config.PredictionConfig
	logger    logging.Logger
	clock     func() time.Time

	mu          sync.Mutex
	total       int
	byMethod    map[types.PredictionMethod]int
	avgConf     float64
	accuracy    float64
	accuracyObs int
}

// NewEngine creates a prediction engine reading profiles from the store
func NewEngine(store *profile.Store, extractor *features.Extractor, cfg config.PredictionConfig, logger logging.Logger) *Engine {
	return &Engine{
		store:     store,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger.WithComponent("prediction"),
		clock:     time.Now,
		byMethod:  make(map[types.PredictionMethod]int),
	}
}

// SetClock overrides the time source; used by tests to pin weekdays
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
}

// Predict runs the requested estimation method for the task and
// developer and post-processes the result into a full prediction.
// Individual strategy failures degrade to cheaper strategies and are
// never surfaced; only a structurally invalid request errors.
func (e *Engine) Predict(task *types.Task, developerID string, method types.PredictionMethod) (*types.Prediction, error) {
	if task == nil {
		return nil, fmt.Errorf("task is required")
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}
	if method == "" {
		method = types.PredictionMethod(e.cfg.DefaultMethod)
	}

	prof := e.store.Profile(developerID)
	in := Input{
		Vector: e.extractor.Extract(task, prof),
		Now:    e.clock(),
	}
	if prof != nil {
		in.History = prof.PerformanceHistory
	}

	var (
		estimate Estimate
		used     types.PredictionMethod
		err      error
	)
	switch method {
	case types.MethodLinear:
		estimate, err = LinearStrategy(in)
	case types.MethodTimeSeries:
		estimate, err = TimeSeriesStrategy(e.cfg.MinHistoryForTrend)(in)
	case types.MethodHeuristic:
		estimate, err = HeuristicStrategy(in)
	case types.MethodEnsemble:
		estimate, err = e.ensemble(in)
	case types.MethodFallback:
		err = fmt.Errorf("fallback is not directly selectable")
	default:
		return nil, fmt.Errorf("unknown prediction method %q", method)
	}

	used = method
	if err != nil {
		// Degraded mode, not an error: the fixed-multiplier fallback
		// always yields a usable low-confidence estimate.
		e.logger.Debug("strategy degraded to fallback",
			"method", string(method), "task_id", task.ID, "reason", err.Error())
		estimate = e.fallback(task, prof)
		used = types.MethodFallback
	}

	prediction := e.enhance(task, developerID, estimate, used, in)
	e.recordPrediction(used, prediction.Confidence)
	return prediction, nil
}

// ensemble combines whichever of the three members succeed using the
// fixed weights. Failing members are silently dropped; if all fail the
// caller falls back.
func (e *Engine) ensemble(in Input) (Estimate, error) {
	members := []StrategyFunc{
		LinearStrategy,
		TimeSeriesStrategy(e.cfg.MinHistoryForTrend),
		HeuristicStrategy,
	}
	names := []string{"linear", "time-series", "heuristic"}

	var (
		hours, confidence, weightSum float64
		factors                      = make(map[string]types.Factor)
		succeeded                    int
	)
	for i, member := range members {
		estimate, err := member(in)
		if err != nil {
			continue
		}
		weight := ensembleWeights[i]
		hours += estimate.Hours * weight
		confidence += estimate.Confidence * weight
		weightSum += weight
		succeeded++
		factors[names[i]] = types.Factor{
			Weight:      weight,
			Impact:      estimate.Hours,
			Description: "ensemble member estimate",
		}
	}
	if succeeded == 0 {
		return Estimate{}, fmt.Errorf("all ensemble members failed")
	}

	return Estimate{
		Hours:      hours / weightSum,
		Confidence: confidence / weightSum,
		Factors:    factors,
	}, nil
}

// fallback is the designed degraded mode: scale by the developer's
// average completion time when known, else return the raw estimate
func (e *Engine) fallback(task *types.Task, prof *types.DeveloperProfile) Estimate {
	normalized := *task
	normalized.ApplyDefaults()

	hours := normalized.EstimatedHours
	description := "raw task estimate (no history available)"
	switch {
	case prof != nil && prof.AverageCompletionTime > 0:
		hours = normalized.EstimatedHours * (prof.AverageCompletionTime / normalized.EstimatedHours)
		description = "scaled by developer average completion time"
	default:
		// Sparse or unknown developer: generalize from the task pattern
		if pattern := e.store.Pattern(normalized.Type, normalized.Complexity); pattern != nil && pattern.AverageHours > 0 {
			hours = pattern.AverageHours
			description = "task pattern average for this type and complexity"
		}
	}

	return Estimate{
		Hours:      hours,
		Confidence: FallbackConfidence,
		Factors: map[string]types.Factor{
			"fallback": {Weight: 1, Impact: hours, Description: description},
		},
	}
}

// enhance applies the uniform post-processing: embedded risk summary,
// confidence interval, business-day deadline date and recommendations
func (e *Engine) enhance(task *types.Task, developerID string, estimate Estimate, method types.PredictionMethod, in Input) *types.Prediction {
	now := in.Now
	hours := estimate.Hours
	confidence := estimate.Confidence

	risk := types.PredictionRisk{Level: types.RiskLevelLow}
	if confidence < 0.5 {
		risk.Level = types.RiskLevelHigh
		risk.Reasons = append(risk.Reasons, "low-confidence prediction")
	}
	if in.Vector.Complexity > 3 {
		risk.Level = risk.Level.AtLeast(types.RiskLevelMedium)
		risk.Reasons = append(risk.Reasons, "critical complexity")
	}
	if in.Vector.HasDependencies > 0 {
		risk.Level = risk.Level.AtLeast(types.RiskLevelMedium)
		risk.Reasons = append(risk.Reasons, "upstream dependencies present")
	}

	stdDev := hours * (1 - confidence)
	interval := types.ConfidenceInterval{
		Lower: math.Max(hours-2*stdDev, hours*0.5),
		Upper: hours + 2*stdDev,
	}

	var recommendations []string
	if confidence < 0.7 {
		recommendations = append(recommendations,
			"Consider decomposing the task into smaller units",
			"Consider reassigning to a developer with more relevant history")
	}
	if in.Vector.Complexity > 3 {
		recommendations = append(recommendations,
			"Budget extra time for testing and debugging",
			"Consider pairing on the critical sections")
	}
	if in.Vector.HasDependencies > 0 {
		recommendations = append(recommendations,
			"Gate the start on completion of upstream dependencies",
			"Add a delay buffer for dependency slippage")
	}

	return &types.Prediction{
		ID:                 uuid.New().String(),
		TaskID:             task.ID,
		DeveloperID:        developerID,
		EstimatedHours:     hours,
		Confidence:         confidence,
		Method:             method,
		Factors:            estimate.Factors,
		Risk:               risk,
		ConfidenceInterval: interval,
		Recommendations:    recommendations,
		DeadlineDate:       e.deadlineDate(now, hours),
		CreatedAt:          now.UTC(),
	}
}

// deadlineDate converts hours to whole working days and advances the
// calendar from now, skipping Saturdays and Sundays
func (e *Engine) deadlineDate(now time.Time, hours float64) time.Time {
	days := int(math.Ceil(hours / e.cfg.WorkingHoursPerDay))
	if days < 1 {
		days = 1
	}
	date := now
	for added := 0; added < days; {
		date = date.AddDate(0, 0, 1)
		if wd := date.Weekday(); wd != time.Saturday && wd != time.Sunday {
			added++
		}
	}
	return date
}

func (e *Engine) recordPrediction(method types.PredictionMethod, confidence float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.total++
	e.byMethod[method]++
	e.avgConf = (e.avgConf*float64(e.total-1) + confidence) / float64(e.total)
}

// RecordOutcome feeds back the actual hours for a past prediction so
// the analytics track live estimation accuracy
func (e *Engine) RecordOutcome(predictedHours, actualHours float64) {
	if predictedHours <= 0 || actualHours <= 0 {
		return
	}
	observed := math.Max(0, 1-math.Abs(actualHours-predictedHours)/predictedHours)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.accuracyObs++
	e.accuracy = (e.accuracy*float64(e.accuracyObs-1) + observed) / float64(e.accuracyObs)
}

// Stats summarizes prediction activity
type Stats struct {
	TotalPredictions   int            `json:"total_predictions"`
	AverageConfidence  float64        `json:"average_confidence"`
	PredictionAccuracy float64        `json:"prediction_accuracy"`
	ModelPerformance   map[string]int `json:"model_performance"`
}

// Snapshot returns a copy of the engine's analytics counters
func (e *Engine) Snapshot() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	performance := make(map[string]int, len(e.byMethod))
	for method, count := range e.byMethod {
		performance[string(method)] = count
	}
	return Stats{
		TotalPredictions:   e.total,
		AverageConfidence:  e.avgConf,
		PredictionAccuracy: e.accuracy,
		ModelPerformance:   performance,
	}
}
