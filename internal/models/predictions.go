package models

import (
	"math"
	"time"
)

// PredictionStatus tracks the lifecycle of a prediction
type PredictionStatus string

const (
	PredictionPending          PredictionStatus = "pending"
	PredictionCompleted        PredictionStatus = "completed"
	PredictionInsufficientData PredictionStatus = "insufficient_data"
)

// Prediction is a forward-looking estimate. It is mutated exactly once, when
// the actual outcome is recorded.
type Prediction struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	PredictionType  string           `json:"prediction_type"`
	HorizonDays     int              `json:"horizon_days"`
	PredictedValue  float64          `json:"predicted_value"`
	ConfidenceLevel float64          `json:"confidence_level"`
	PredictionModel string           `json:"prediction_model"`
	Factors         []string         `json:"factors"`
	PredictionDate  time.Time        `json:"prediction_date"`
	Status          PredictionStatus `json:"status"`
	ActualValue     *float64         `json:"actual_value,omitempty"`
	Accuracy        *float64         `json:"accuracy,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// PredictRequest is the body of POST /api/v1/predictions
type PredictRequest struct {
	PredictionType string  `json:"prediction_type" binding:"required"`
	HorizonDays    int     `json:"horizon_days" binding:"required,min=1,max=30"`
	MinConfidence  float64 `json:"min_confidence" binding:"min=0,max=100"`
}

// AnalyzeRequest is the body of POST /api/v1/analysis
type AnalyzeRequest struct {
	Domains       []Domain `json:"domains"`
	MinConfidence float64  `json:"min_confidence" binding:"min=0,max=100"`
}

// OutcomeRequest records an observed value against a prediction or pattern
type OutcomeRequest struct {
	Predicted *float64 `json:"predicted,omitempty"`
	Actual    *float64 `json:"actual" binding:"required"`
}

// EvaluateSampleRequest submits a live sample for trigger evaluation
type EvaluateSampleRequest struct {
	MetricName string     `json:"metric_name" binding:"required"`
	Value      *float64   `json:"value" binding:"required"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// OutcomeAccuracy scores a prediction against the observed value on a 0-100
// scale: 100 - |predicted-actual|/actual*100, floored at 0. A zero actual
// value scores 100 only for an exact match.
func OutcomeAccuracy(predicted, actual float64) float64 {
	if actual == 0 {
		if predicted == 0 {
			return 100
		}
		return 0
	}
	accuracy := 100 - math.Abs(predicted-actual)/math.Abs(actual)*100
	if accuracy < 0 || math.IsNaN(accuracy) {
		return 0
	}
	return accuracy
}
