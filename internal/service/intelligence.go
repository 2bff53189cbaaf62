package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/JonnyWalker81/pulse/backend/internal/analytics"
	"github.com/JonnyWalker81/pulse/backend/internal/logger"
	"github.com/JonnyWalker81/pulse/backend/internal/metrics"
	"github.com/JonnyWalker81/pulse/backend/internal/models"
	"github.com/JonnyWalker81/pulse/backend/internal/patterns"
	"github.com/JonnyWalker81/pulse/backend/internal/repository"
)

const (
	// MaxHorizonDays is the longest prediction or forecast horizon accepted
	MaxHorizonDays = 30

	// Prediction model identifiers stored with each prediction
	ModelAdditiveRisk = "additive_risk_v1"
	ModelLinearTrend  = "linear_trend_v1"

	// Trend factors reported on metric predictions
	FactorTrendRising   = "trend_rising"
	FactorTrendFalling  = "trend_falling"
	FactorTrendFlat     = "trend_flat"
	FactorShortHistory  = "short_history"
	FactorProxyPrefix   = "proxy_of_"
	trendFlatEpsilon    = 1e-9
	riskFullHistoryDays = 2 * analytics.MinTrendPoints
)

// predictionMetrics maps metric prediction types to catalog metrics
var predictionMetrics = map[string]string{
	"recovery":    analytics.MetricRecoveryScore,
	"sleep":       analytics.MetricSleepDuration,
	"hrv":         analytics.MetricHRV,
	"energy":      analytics.MetricEnergy,
	"performance": analytics.MetricPerformance,
}

// DefaultForecastMetrics are forecast when the caller names none
var DefaultForecastMetrics = []string{analytics.MetricRecoveryScore, analytics.MetricHRV, analytics.MetricEnergy}

// Options tune the engine
type Options struct {
	WindowDays    int
	MinConfidence float64
	Confidence    analytics.ConfidenceSchedule
}

// DefaultOptions mirrors the configuration defaults
func DefaultOptions() Options {
	return Options{
		WindowDays:    analytics.DefaultWindowDays,
		MinConfidence: analytics.DefaultMinConfidence,
		Confidence:    analytics.DefaultConfidenceSchedule,
	}
}

type intelligenceService struct {
	timeSeries  repository.TimeSeriesRepository
	patterns    *patterns.Store
	predictions repository.PredictionRepository

	analyzer  *analytics.CorrelationAnalyzer
	projector *analytics.TrendProjector
	risk      *analytics.RiskModel
	forecast  *analytics.ForecastComposer

	opts Options
	now  func() time.Time
}

// NewIntelligenceService wires the engine to its collaborators
func NewIntelligenceService(
	timeSeries repository.TimeSeriesRepository,
	patternStore *patterns.Store,
	predictions repository.PredictionRepository,
	opts Options,
) IntelligenceService {
	defaults := DefaultOptions()
	if opts.WindowDays <= 0 {
		opts.WindowDays = defaults.WindowDays
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = defaults.MinConfidence
	}
	if opts.Confidence == (analytics.ConfidenceSchedule{}) {
		opts.Confidence = defaults.Confidence
	}

	projector := analytics.NewTrendProjector()
	return &intelligenceService{
		timeSeries:  timeSeries,
		patterns:    patternStore,
		predictions: predictions,
		analyzer:    analytics.NewCorrelationAnalyzer(),
		projector:   projector,
		risk:        analytics.NewRiskModel(projector),
		forecast:    analytics.NewForecastComposer(projector, opts.Confidence),
		opts:        opts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *intelligenceService) minConfidence(requested float64) float64 {
	if requested <= 0 {
		return s.opts.MinConfidence
	}
	return requested
}

// Analyze discovers patterns for the pattern types touching domains (all
// types when empty) and upserts each qualifying candidate. When persisting
// fails the computed result is still returned alongside a storage error and
// Persisted is false.
func (s *intelligenceService) Analyze(ctx context.Context, userID string, domains []models.Domain, minConfidence float64) (*models.AnalysisResult, error) {
	ctx = logger.WithOperation(ctx, "analyze")
	log := logger.Ctx(ctx)
	start := time.Now()
	minConfidence = s.minConfidence(minConfidence)

	defs := analytics.DefinitionsForDomains(domains)
	var names []string
	for _, def := range defs {
		names = append(names, def.Primary, def.Secondary)
	}

	inputs, err := s.fetchDaily(ctx, userID, names, trailingWindow(s.now(), s.opts.WindowDays))
	if err != nil {
		metrics.ObserveAnalysis(time.Since(start), metrics.OutcomeError)
		return nil, fmt.Errorf("failed to load analysis inputs: %w", err)
	}

	result := &models.AnalysisResult{
		UserID:          userID,
		Patterns:        []models.PatternSummary{},
		Insights:        []string{},
		Recommendations: []string{},
		Persisted:       true,
		AnalyzedAt:      s.now(),
	}

	var persistErrs []error
	for _, def := range defs {
		primary, secondary := inputs[def.Primary], inputs[def.Secondary]

		candidate := s.analyzer.Analyze(userID, def, primary, secondary, minConfidence)
		if candidate == nil {
			reason := s.analyzer.Evaluate(def, primary, secondary, minConfidence).Reason
			result.Skipped = append(result.Skipped, models.SkippedPattern{PatternType: def.Type, Reason: reason})
			log.Debug("pattern type skipped",
				logger.String("pattern_type", string(def.Type)),
				logger.String("reason", reason),
			)
			continue
		}

		summary := candidate.Summary()
		stored, err := s.patterns.Upsert(ctx, candidate)
		switch {
		case err == nil:
			summary = stored.Summary()
			metrics.PatternUpserted(string(def.Type))
		case isStorageFailure(err):
			metrics.StorageFailure("upsert_pattern")
			log.Warn("failed to persist pattern",
				logger.String("pattern_type", string(def.Type)),
				logger.Err(err),
			)
			persistErrs = append(persistErrs, err)
			result.Persisted = false
		default:
			metrics.ObserveAnalysis(time.Since(start), metrics.OutcomeError)
			return nil, fmt.Errorf("failed to store %s pattern: %w", def.Type, err)
		}

		result.Patterns = append(result.Patterns, summary)
		result.Insights = append(result.Insights, analytics.Explain(*candidate))
		result.Recommendations = append(result.Recommendations, def.Recommendation)
	}

	log.Info("analysis completed",
		logger.Int("pattern_types", len(defs)),
		logger.Int("patterns", len(result.Patterns)),
		logger.Bool("persisted", result.Persisted),
		logger.Duration("elapsed", time.Since(start)),
	)

	if len(persistErrs) > 0 {
		metrics.ObserveAnalysis(time.Since(start), metrics.OutcomePartial)
		return result, fmt.Errorf("failed to persist %d of %d patterns: %w",
			len(persistErrs), len(result.Patterns), errors.Join(persistErrs...))
	}
	metrics.ObserveAnalysis(time.Since(start), metrics.OutcomeSuccess)
	return result, nil
}

// Predict produces and stores a prediction. Risk types (illness, injury,
// burnout) score with the risk model; metric types project the metric's
// trend to the horizon. Thin histories yield a stored insufficient_data
// prediction rather than an error.
func (s *intelligenceService) Predict(ctx context.Context, userID, predictionType string, horizonDays int, minConfidence float64) (*models.Prediction, error) {
	ctx = logger.WithOperation(ctx, "predict")
	if horizonDays < 1 || horizonDays > MaxHorizonDays {
		return nil, fmt.Errorf("%w: %d days", ErrInvalidHorizon, horizonDays)
	}
	minConfidence = s.minConfidence(minConfidence)

	var (
		prediction *models.Prediction
		err        error
	)
	switch {
	case analytics.IsRiskType(predictionType):
		prediction, err = s.predictRisk(ctx, userID, models.RiskType(predictionType), horizonDays)
	case predictionMetrics[predictionType] != "":
		prediction, err = s.predictMetric(ctx, userID, predictionType, horizonDays)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPredictionType, predictionType)
	}
	if err != nil {
		return nil, err
	}

	if prediction.Status != models.PredictionInsufficientData && prediction.ConfidenceLevel < minConfidence {
		logger.Ctx(ctx).Debug("prediction below minimum confidence",
			logger.String("prediction_type", predictionType),
			logger.Float64("confidence", prediction.ConfidenceLevel),
			logger.Float64("min_confidence", minConfidence),
		)
		return nil, ErrBelowMinConfidence
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate prediction id: %w", err)
	}
	prediction.ID = id.String()
	prediction.UserID = userID
	prediction.PredictionType = predictionType
	prediction.HorizonDays = horizonDays
	prediction.PredictionDate = s.now()

	stored, err := s.predictions.Create(ctx, prediction)
	if err != nil {
		metrics.StorageFailure("create_prediction")
		logger.Ctx(ctx).Warn("failed to persist prediction", logger.Err(err))
		return prediction, fmt.Errorf("failed to store prediction: %w", err)
	}

	metrics.PredictionCreated(predictionType, string(stored.Status))
	logger.Ctx(ctx).Info("prediction created",
		logger.String("prediction_id", stored.ID),
		logger.String("prediction_type", predictionType),
		logger.String("status", string(stored.Status)),
		logger.Int("horizon_days", horizonDays),
	)
	return stored, nil
}

func (s *intelligenceService) predictRisk(ctx context.Context, userID string, riskType models.RiskType, horizon int) (*models.Prediction, error) {
	assessment, err := s.assess(ctx, userID, riskType, horizon)
	if err != nil {
		return nil, err
	}

	prediction := &models.Prediction{
		PredictionModel: ModelAdditiveRisk,
		Factors:         assessment.Factors,
	}
	if assessment.Status == models.RiskStatusInsufficientData {
		prediction.Status = models.PredictionInsufficientData
		return prediction, nil
	}

	prediction.Status = models.PredictionPending
	prediction.PredictedValue = *assessment.Score
	prediction.ConfidenceLevel = s.riskConfidence(assessment.SampleSize, horizon)
	return prediction, nil
}

// riskConfidence follows the forecast schedule for the horizon once two
// weeks of the gating metric exist; shorter histories sit at the floor
func (s *intelligenceService) riskConfidence(sampleSize, horizon int) float64 {
	if sampleSize < riskFullHistoryDays {
		return s.opts.Confidence.Floor
	}
	return s.opts.Confidence.At(horizon)
}

func (s *intelligenceService) predictMetric(ctx context.Context, userID, predictionType string, horizon int) (*models.Prediction, error) {
	metric := predictionMetrics[predictionType]
	source, err := analytics.SourceMetric(metric)
	if err != nil {
		return nil, err
	}

	inputs, err := s.fetchDaily(ctx, userID, []string{source}, trailingWindow(s.now(), s.opts.WindowDays))
	if err != nil {
		return nil, fmt.Errorf("failed to load prediction inputs: %w", err)
	}
	history := inputs[source]

	prediction := &models.Prediction{PredictionModel: ModelLinearTrend}
	points, err := s.forecast.Compose(metric, history, horizon, s.now())
	if errors.Is(err, analytics.ErrInsufficientData) {
		prediction.Status = models.PredictionInsufficientData
		prediction.Factors = []string{models.FactorInsufficientData}
		return prediction, nil
	}
	if err != nil {
		return nil, err
	}

	point := points[len(points)-1]
	prediction.Status = models.PredictionPending
	prediction.PredictedValue = point.Value
	prediction.ConfidenceLevel = point.Confidence
	prediction.Factors = s.trendFactors(history, point)
	return prediction, nil
}

func (s *intelligenceService) trendFactors(history []models.DailyValue, point models.ForecastPoint) []string {
	var factors []string
	trend, err := s.projector.Fit(analytics.Values(history), analytics.Unbounded)
	switch {
	case err != nil || math.Abs(trend.Slope) < trendFlatEpsilon:
		factors = append(factors, FactorTrendFlat)
	case trend.Slope > 0:
		factors = append(factors, FactorTrendRising)
	default:
		factors = append(factors, FactorTrendFalling)
	}
	if err == nil && trend.LowConfidence {
		factors = append(factors, FactorShortHistory)
	}
	if point.Proxy {
		factors = append(factors, FactorProxyPrefix+point.ProxyOf)
	}
	return factors
}

// Forecast composes a day-by-day forecast for each metric. Metrics with
// fewer than two days of history get an empty series.
func (s *intelligenceService) Forecast(ctx context.Context, userID string, metricNames []string, days int) (*models.ForecastResponse, error) {
	ctx = logger.WithOperation(ctx, "forecast")
	if days < 1 || days > MaxHorizonDays {
		return nil, fmt.Errorf("%w: %d days", ErrInvalidHorizon, days)
	}
	if len(metricNames) == 0 {
		metricNames = DefaultForecastMetrics
	}

	seen := make(map[string]bool, len(metricNames))
	var names, sources []string
	for _, name := range metricNames {
		if seen[name] {
			continue
		}
		seen[name] = true
		source, err := analytics.SourceMetric(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
		}
		names = append(names, name)
		sources = append(sources, source)
	}

	inputs, err := s.fetchDaily(ctx, userID, sources, trailingWindow(s.now(), s.opts.WindowDays))
	if err != nil {
		return nil, fmt.Errorf("failed to load forecast inputs: %w", err)
	}

	now := s.now()
	resp := &models.ForecastResponse{
		UserID:      userID,
		Days:        days,
		Metrics:     make(map[string][]models.ForecastPoint, len(names)),
		GeneratedAt: now,
	}
	for i, name := range names {
		points, err := s.forecast.Compose(name, inputs[sources[i]], days, now)
		if errors.Is(err, analytics.ErrInsufficientData) {
			logger.Ctx(ctx).Debug("metric has too little history to forecast", logger.String("metric", name))
			resp.Metrics[name] = []models.ForecastPoint{}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to forecast %s: %w", name, err)
		}
		resp.Metrics[name] = points
	}

	logger.Ctx(ctx).Info("forecast composed",
		logger.Int("metrics", len(names)),
		logger.Int("days", days),
	)
	return resp, nil
}

// AssessRisk scores riskType for the immediate horizon
func (s *intelligenceService) AssessRisk(ctx context.Context, userID string, riskType models.RiskType) (*models.RiskAssessment, error) {
	ctx = logger.WithOperation(ctx, "assess_risk")
	assessment, err := s.assess(ctx, userID, riskType, 1)
	if err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Info("risk assessed",
		logger.String("risk_type", string(riskType)),
		logger.String("status", string(assessment.Status)),
		logger.Int("factors", len(assessment.Factors)),
	)
	return assessment, nil
}

func (s *intelligenceService) assess(ctx context.Context, userID string, riskType models.RiskType, horizon int) (*models.RiskAssessment, error) {
	if !analytics.IsRiskType(string(riskType)) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRiskType, riskType)
	}

	inputs, err := s.fetchDaily(ctx, userID, analytics.RequiredMetrics(riskType), trailingWindow(s.now(), s.opts.WindowDays))
	if err != nil {
		return nil, fmt.Errorf("failed to load risk inputs: %w", err)
	}

	assessment, err := s.risk.Assess(riskType, analytics.RiskInputs(inputs), horizon)
	if err != nil {
		return nil, err
	}
	return &assessment, nil
}

// RecordPredictionOutcome completes a pending prediction with the observed value
func (s *intelligenceService) RecordPredictionOutcome(ctx context.Context, userID, predictionID string, actual float64) (*models.Prediction, error) {
	if !finite(actual) {
		return nil, ErrInvalidValue
	}

	prediction, err := s.predictions.GetByID(ctx, userID, predictionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPredictionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prediction: %w", err)
	}
	if prediction.Status != models.PredictionPending {
		return nil, ErrPredictionCompleted
	}

	now := s.now()
	accuracy := models.OutcomeAccuracy(prediction.PredictedValue, actual)
	prediction.Status = models.PredictionCompleted
	prediction.ActualValue = &actual
	prediction.Accuracy = &accuracy
	prediction.CompletedAt = &now

	if err := s.predictions.Complete(ctx, prediction); err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			return nil, ErrPredictionCompleted
		}
		metrics.StorageFailure("complete_prediction")
		return nil, fmt.Errorf("failed to complete prediction: %w", err)
	}

	metrics.PredictionCreated(prediction.PredictionType, string(models.PredictionCompleted))
	logger.Ctx(ctx).Info("prediction completed",
		logger.String("prediction_id", prediction.ID),
		logger.Float64("accuracy", accuracy),
	)
	return prediction, nil
}

// EvaluateSample checks a live sample against every active pattern whose
// primary metric it belongs to and returns the triggers that fired
func (s *intelligenceService) EvaluateSample(ctx context.Context, userID string, sample models.TimeSeriesSample) ([]models.TriggerEvent, error) {
	if _, ok := analytics.LookupMetric(sample.MetricName); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, sample.MetricName)
	}
	if !finite(sample.Value) {
		return nil, ErrInvalidValue
	}
	now := s.now()
	if sample.Timestamp.IsZero() {
		sample.Timestamp = now
	}
	if err := ValidateSampleTime(sample.Timestamp, now); err != nil {
		return nil, err
	}
	sample.UserID = userID

	active, err := s.patterns.List(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}

	fired := []models.TriggerEvent{}
	for i := range active {
		pattern := &active[i]
		if pattern.PrimaryMetric.Name != sample.MetricName {
			continue
		}
		event, err := s.patterns.EvaluateTriggers(ctx, pattern, sample)
		if err != nil {
			return fired, fmt.Errorf("failed to evaluate %s triggers: %w", pattern.PatternType, err)
		}
		if event != nil {
			metrics.TriggerFired(string(event.Trigger.Severity))
			fired = append(fired, *event)
		}
	}
	return fired, nil
}

// ListPatterns returns the public view of the user's patterns
func (s *intelligenceService) ListPatterns(ctx context.Context, userID string, activeOnly bool) ([]models.PatternSummary, error) {
	list, err := s.patterns.List(ctx, userID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	out := make([]models.PatternSummary, 0, len(list))
	for _, p := range list {
		out = append(out, p.Summary())
	}
	return out, nil
}

func (s *intelligenceService) ConfirmPattern(ctx context.Context, userID, patternID string) (*models.PatternSummary, error) {
	return summarize(s.patterns.Confirm(ctx, userID, patternID))
}

func (s *intelligenceService) RejectPattern(ctx context.Context, userID, patternID string) (*models.PatternSummary, error) {
	return summarize(s.patterns.Reject(ctx, userID, patternID))
}

func (s *intelligenceService) DeactivatePattern(ctx context.Context, userID, patternID string) (*models.PatternSummary, error) {
	return summarize(s.patterns.Deactivate(ctx, userID, patternID))
}

// RecordPatternOutcome appends an observed outcome to a pattern's log
func (s *intelligenceService) RecordPatternOutcome(ctx context.Context, userID, patternID string, predicted, actual float64) (*models.PatternSummary, error) {
	if !finite(predicted) || !finite(actual) {
		return nil, ErrInvalidValue
	}
	return summarize(s.patterns.RecordOutcome(ctx, userID, patternID, predicted, actual))
}

func summarize(p *models.CorrelationPattern, err error) (*models.PatternSummary, error) {
	if err != nil {
		return nil, err
	}
	summary := p.Summary()
	return &summary, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
