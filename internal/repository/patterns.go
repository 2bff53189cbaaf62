package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/JonnyWalker81/pulse/backend/internal/models"
	"github.com/JonnyWalker81/pulse/backend/pkg/supabase"
)

// Embeds the outcome log so a single round trip returns the whole pattern
const patternSelect = "*,outcomes:pattern_outcomes(date,predicted,actual,accuracy)"

type patternRepository struct {
	client *supabase.Client
}

// NewPatternRepository creates a pattern repository backed by Supabase
func NewPatternRepository(client *supabase.Client) PatternRepository {
	return &patternRepository{client: client}
}

func (r *patternRepository) Get(ctx context.Context, userID string, patternType models.PatternType) (*models.CorrelationPattern, error) {
	query := map[string]interface{}{
		"user_id":      fmt.Sprintf("eq.%s", userID),
		"pattern_type": fmt.Sprintf("eq.%s", patternType),
		"select":       patternSelect,
		"limit":        1,
	}
	return r.queryOne(ctx, "get pattern", query)
}

func (r *patternRepository) GetByID(ctx context.Context, userID, id string) (*models.CorrelationPattern, error) {
	query := map[string]interface{}{
		"id":      fmt.Sprintf("eq.%s", id),
		"user_id": fmt.Sprintf("eq.%s", userID),
		"select":  patternSelect,
		"limit":   1,
	}
	return r.queryOne(ctx, "get pattern by id", query)
}

func (r *patternRepository) ListByUser(ctx context.Context, userID string, activeOnly bool) ([]models.CorrelationPattern, error) {
	query := map[string]interface{}{
		"user_id": fmt.Sprintf("eq.%s", userID),
		"select":  patternSelect,
		"order":   "pattern_type.asc",
	}
	if activeOnly {
		query["is_active"] = "eq.true"
	}

	body, err := r.client.Query(ctx, "correlation_patterns", query)
	if err != nil {
		return nil, NewStorageError("list patterns", err)
	}

	var patterns []models.CorrelationPattern
	if err := json.Unmarshal(body, &patterns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal patterns: %w", err)
	}
	for i := range patterns {
		sortOutcomes(patterns[i].Outcomes)
	}

	return patterns, nil
}

// Upsert inserts a new pattern row or, for a known pattern, rewrites only its
// correlation block and validation timestamps. Lifecycle columns belong to
// the trigger, outcome and status paths and are never sent on revalidation.
func (r *patternRepository) Upsert(ctx context.Context, pattern *models.CorrelationPattern) (*models.CorrelationPattern, error) {
	if pattern.ID != "" {
		return r.revalidate(ctx, pattern, map[string]interface{}{
			"id":      fmt.Sprintf("eq.%s", pattern.ID),
			"user_id": fmt.Sprintf("eq.%s", pattern.UserID),
		})
	}
	return r.insert(ctx, pattern)
}

func (r *patternRepository) insert(ctx context.Context, pattern *models.CorrelationPattern) (*models.CorrelationPattern, error) {
	data := map[string]interface{}{
		"user_id":           pattern.UserID,
		"pattern_type":      pattern.PatternType,
		"primary_metric":    pattern.PrimaryMetric,
		"secondary_metric":  pattern.SecondaryMetric,
		"correlation":       pattern.Correlation,
		"time_relationship": pattern.TimeRelationship,
		"triggers":          pattern.Triggers,
		"success_rate":      pattern.SuccessRate,
		"is_active":         pattern.IsActive,
		"last_triggered":    pattern.LastTriggered,
		"trigger_count":     pattern.TriggerCount,
		"validation_status": pattern.ValidationStatus,
		"discovered_at":     pattern.DiscoveredAt,
		"last_validated":    pattern.LastValidated,
		"updated_at":        pattern.UpdatedAt,
	}

	body, err := r.client.Insert(ctx, "correlation_patterns", data)
	if supabase.IsConflict(err) {
		// another writer created the (user, type) row first
		return r.revalidate(ctx, pattern, map[string]interface{}{
			"user_id":      fmt.Sprintf("eq.%s", pattern.UserID),
			"pattern_type": fmt.Sprintf("eq.%s", pattern.PatternType),
		})
	}
	if err != nil {
		return nil, NewStorageError("insert pattern", err)
	}

	stored, err := decodePattern(body)
	if err != nil {
		return nil, err
	}
	stored.Outcomes = pattern.Outcomes
	return stored, nil
}

func (r *patternRepository) revalidate(ctx context.Context, pattern *models.CorrelationPattern, query map[string]interface{}) (*models.CorrelationPattern, error) {
	data := map[string]interface{}{
		"correlation":    pattern.Correlation,
		"last_validated": pattern.LastValidated,
		"updated_at":     pattern.UpdatedAt,
	}

	body, err := r.client.UpdateWhere(ctx, "correlation_patterns", query, data)
	if err != nil {
		return nil, NewStorageError("revalidate pattern", err)
	}

	stored, err := decodePattern(body)
	if err != nil {
		return nil, err
	}
	if pattern.ID == "" {
		// the winner's outcome log is not embedded in the representation
		stored.Outcomes = []models.PatternOutcome{}
		return stored, nil
	}
	stored.Outcomes = pattern.Outcomes
	return stored, nil
}

// decodePattern reads the single row of a return=representation response
func decodePattern(body []byte) (*models.CorrelationPattern, error) {
	var patterns []models.CorrelationPattern
	if err := json.Unmarshal(body, &patterns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(patterns) == 0 {
		return nil, ErrNotFound
	}
	return &patterns[0], nil
}

func (r *patternRepository) UpdateTriggerState(ctx context.Context, id string, lastTriggered time.Time, triggerCount int) error {
	query := map[string]interface{}{
		"id": fmt.Sprintf("eq.%s", id),
	}
	data := map[string]interface{}{
		"last_triggered": lastTriggered,
		"trigger_count":  triggerCount,
		"updated_at":     time.Now().UTC(),
	}

	return r.update(ctx, "update trigger state", query, data)
}

func (r *patternRepository) AppendOutcome(ctx context.Context, id string, outcome models.PatternOutcome, successRate float64) error {
	row := map[string]interface{}{
		"pattern_id": id,
		"date":       outcome.Date,
		"predicted":  outcome.Predicted,
		"actual":     outcome.Actual,
		"accuracy":   outcome.Accuracy,
	}
	if _, err := r.client.Insert(ctx, "pattern_outcomes", row); err != nil {
		return NewStorageError("append outcome", err)
	}

	query := map[string]interface{}{
		"id": fmt.Sprintf("eq.%s", id),
	}
	data := map[string]interface{}{
		"success_rate": successRate,
		"updated_at":   time.Now().UTC(),
	}
	return r.update(ctx, "update success rate", query, data)
}

func (r *patternRepository) UpdateStatus(ctx context.Context, id string, status models.ValidationStatus, isActive bool) error {
	query := map[string]interface{}{
		"id": fmt.Sprintf("eq.%s", id),
	}
	data := map[string]interface{}{
		"validation_status": status,
		"is_active":         isActive,
		"updated_at":        time.Now().UTC(),
	}

	return r.update(ctx, "update pattern status", query, data)
}

func (r *patternRepository) queryOne(ctx context.Context, op string, query map[string]interface{}) (*models.CorrelationPattern, error) {
	body, err := r.client.Query(ctx, "correlation_patterns", query)
	if err != nil {
		return nil, NewStorageError(op, err)
	}

	var patterns []models.CorrelationPattern
	if err := json.Unmarshal(body, &patterns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pattern: %w", err)
	}

	if len(patterns) == 0 {
		return nil, ErrNotFound
	}

	sortOutcomes(patterns[0].Outcomes)
	return &patterns[0], nil
}

func (r *patternRepository) update(ctx context.Context, op string, query, data map[string]interface{}) error {
	body, err := r.client.UpdateWhere(ctx, "correlation_patterns", query, data)
	if err != nil {
		return NewStorageError(op, err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(rows) == 0 {
		return ErrNotFound
	}

	return nil
}

func sortOutcomes(outcomes []models.PatternOutcome) {
	sort.SliceStable(outcomes, func(i, j int) bool { return outcomes[i].Date.Before(outcomes[j].Date) })
}
