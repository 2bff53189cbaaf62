package service

import "errors"

var (
	// ErrUnknownPredictionType is returned for a prediction type that is neither a risk nor a metric
	ErrUnknownPredictionType = errors.New("unknown prediction type")
	// ErrUnknownRiskType is returned for a risk type without a model
	ErrUnknownRiskType = errors.New("unknown risk type")
	// ErrUnknownMetric is returned for a metric missing from the catalog
	ErrUnknownMetric = errors.New("unknown metric")
	// ErrInvalidHorizon is returned for horizons outside 1..MaxHorizonDays
	ErrInvalidHorizon = errors.New("invalid horizon")
	// ErrInvalidValue is returned for NaN or infinite sample and outcome values
	ErrInvalidValue = errors.New("value must be a finite number")
	// ErrBelowMinConfidence is returned when a prediction's confidence is under the caller's minimum
	ErrBelowMinConfidence = errors.New("prediction confidence below minimum")
	// ErrPredictionNotFound is returned when the prediction does not exist for the user
	ErrPredictionNotFound = errors.New("prediction not found")
	// ErrPredictionCompleted is returned when recording an outcome twice
	ErrPredictionCompleted = errors.New("prediction already has an outcome")
)
