package service

import (
	"context"

	"github.com/JonnyWalker81/pulse/backend/internal/models"
)

// IntelligenceService is the correlation and prediction engine exposed to
// the transport layer
type IntelligenceService interface {
	Analyze(ctx context.Context, userID string, domains []models.Domain, minConfidence float64) (*models.AnalysisResult, error)
	Predict(ctx context.Context, userID, predictionType string, horizonDays int, minConfidence float64) (*models.Prediction, error)
	Forecast(ctx context.Context, userID string, metricNames []string, days int) (*models.ForecastResponse, error)
	AssessRisk(ctx context.Context, userID string, riskType models.RiskType) (*models.RiskAssessment, error)

	RecordPredictionOutcome(ctx context.Context, userID, predictionID string, actual float64) (*models.Prediction, error)
	EvaluateSample(ctx context.Context, userID string, sample models.TimeSeriesSample) ([]models.TriggerEvent, error)

	ListPatterns(ctx context.Context, userID string, activeOnly bool) ([]models.PatternSummary, error)
	ConfirmPattern(ctx context.Context, userID, patternID string) (*models.PatternSummary, error)
	RejectPattern(ctx context.Context, userID, patternID string) (*models.PatternSummary, error)
	DeactivatePattern(ctx context.Context, userID, patternID string) (*models.PatternSummary, error)
	RecordPatternOutcome(ctx context.Context, userID, patternID string, predicted, actual float64) (*models.PatternSummary, error)
}
