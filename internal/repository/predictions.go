package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JonnyWalker81/pulse/backend/internal/models"
	"github.com/JonnyWalker81/pulse/backend/pkg/supabase"
)

type predictionRepository struct {
	client *supabase.Client
}

// NewPredictionRepository creates a prediction repository backed by Supabase
func NewPredictionRepository(client *supabase.Client) PredictionRepository {
	return &predictionRepository{client: client}
}

func (r *predictionRepository) Create(ctx context.Context, prediction *models.Prediction) (*models.Prediction, error) {
	data := map[string]interface{}{
		"id":               prediction.ID,
		"user_id":          prediction.UserID,
		"prediction_type":  prediction.PredictionType,
		"horizon_days":     prediction.HorizonDays,
		"predicted_value":  prediction.PredictedValue,
		"confidence_level": prediction.ConfidenceLevel,
		"prediction_model": prediction.PredictionModel,
		"factors":          prediction.Factors,
		"prediction_date":  prediction.PredictionDate,
		"status":           prediction.Status,
	}

	body, err := r.client.Insert(ctx, "predictions", data)
	if err != nil {
		return nil, NewStorageError("create prediction", err)
	}

	var predictions []models.Prediction
	if err := json.Unmarshal(body, &predictions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(predictions) == 0 {
		return nil, fmt.Errorf("no prediction returned")
	}

	return &predictions[0], nil
}

func (r *predictionRepository) GetByID(ctx context.Context, userID, id string) (*models.Prediction, error) {
	query := map[string]interface{}{
		"id":      fmt.Sprintf("eq.%s", id),
		"user_id": fmt.Sprintf("eq.%s", userID),
		"select":  "*",
		"limit":   1,
	}

	body, err := r.client.Query(ctx, "predictions", query)
	if err != nil {
		return nil, NewStorageError("get prediction", err)
	}

	var predictions []models.Prediction
	if err := json.Unmarshal(body, &predictions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prediction: %w", err)
	}

	if len(predictions) == 0 {
		return nil, ErrNotFound
	}

	return &predictions[0], nil
}

func (r *predictionRepository) Complete(ctx context.Context, prediction *models.Prediction) error {
	// the status filter makes completion a compare-and-set
	query := map[string]interface{}{
		"id":     fmt.Sprintf("eq.%s", prediction.ID),
		"status": fmt.Sprintf("eq.%s", models.PredictionPending),
	}
	data := map[string]interface{}{
		"status":       models.PredictionCompleted,
		"actual_value": prediction.ActualValue,
		"accuracy":     prediction.Accuracy,
		"completed_at": prediction.CompletedAt,
	}

	body, err := r.client.UpdateWhere(ctx, "predictions", query, data)
	if err != nil {
		return NewStorageError("complete prediction", err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotPending
	}

	return nil
}
