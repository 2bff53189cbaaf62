package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonnyWalker81/pulse/backend/internal/models"
	"github.com/JonnyWalker81/pulse/backend/internal/repository"
)

type predictionRepository struct {
	db *sql.DB
}

func (r *predictionRepository) Create(ctx context.Context, prediction *models.Prediction) (*models.Prediction, error) {
	factors, err := json.Marshal(prediction.Factors)
	if err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO predictions (id, user_id, prediction_type, horizon_days, predicted_value,
			confidence_level, prediction_model, factors, prediction_date, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, prediction.ID, prediction.UserID, prediction.PredictionType, prediction.HorizonDays,
		prediction.PredictedValue, prediction.ConfidenceLevel, prediction.PredictionModel,
		string(factors), formatTime(prediction.PredictionDate), string(prediction.Status))
	if err != nil {
		return nil, storageError("create prediction", err)
	}

	return r.GetByID(ctx, prediction.UserID, prediction.ID)
}

func (r *predictionRepository) GetByID(ctx context.Context, userID, id string) (*models.Prediction, error) {
	var (
		p                     models.Prediction
		factors, date, status string
		actual, accuracy      sql.NullFloat64
		completedAt           sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, prediction_type, horizon_days, predicted_value, confidence_level,
			prediction_model, factors, prediction_date, status, actual_value, accuracy, completed_at
		FROM predictions WHERE id = ? AND user_id = ?
	`, id, userID).Scan(&p.ID, &p.UserID, &p.PredictionType, &p.HorizonDays, &p.PredictedValue,
		&p.ConfidenceLevel, &p.PredictionModel, &factors, &date, &status, &actual, &accuracy, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, storageError("get prediction", err)
	}

	if err := json.Unmarshal([]byte(factors), &p.Factors); err != nil {
		return nil, fmt.Errorf("failed to decode prediction factors: %w", err)
	}
	if p.PredictionDate, err = parseTime(date); err != nil {
		return nil, err
	}
	if p.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	p.Status = models.PredictionStatus(status)
	p.ActualValue = floatPtr(actual)
	p.Accuracy = floatPtr(accuracy)

	return &p, nil
}

func (r *predictionRepository) Complete(ctx context.Context, prediction *models.Prediction) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE predictions SET status = ?, actual_value = ?, accuracy = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`, string(models.PredictionCompleted), nullFloat(prediction.ActualValue), nullFloat(prediction.Accuracy),
		formatNullTime(prediction.CompletedAt), prediction.ID, string(models.PredictionPending))
	if err != nil {
		return storageError("complete prediction", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storageError("complete prediction", err)
	}
	if n == 0 {
		return repository.ErrNotPending
	}
	return nil
}
