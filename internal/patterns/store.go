// Package patterns owns the lifecycle of persisted correlation patterns:
// discovery upserts, trigger evaluation, outcome tracking and user-driven
// status changes. It is the only writer of pattern records.
package patterns

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/JonnyWalker81/pulse/backend/internal/logger"
	"github.com/JonnyWalker81/pulse/backend/internal/models"
	"github.com/JonnyWalker81/pulse/backend/internal/repository"
)

var (
	// ErrPatternNotFound is returned when a pattern does not exist for the user
	ErrPatternNotFound = errors.New("pattern not found")
	// ErrInvalidTransition is returned for lifecycle changes the state machine forbids
	ErrInvalidTransition = errors.New("invalid pattern transition")
	// ErrInvalidCorrelation is returned when a candidate carries NaN or out-of-range statistics
	ErrInvalidCorrelation = errors.New("invalid correlation statistics")
)

// SuccessWindow is the number of most recent outcomes that make up the success rate
const SuccessWindow = 20

// Store persists patterns through a PatternRepository. Writes for one user
// are serialized.
type Store struct {
	repo  repository.PatternRepository
	locks *keyedMutex
	now   func() time.Time
}

// NewStore creates a pattern store on top of repo
func NewStore(repo repository.PatternRepository) *Store {
	return &Store{
		repo:  repo,
		locks: newKeyedMutex(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Upsert stores a discovery candidate. An existing (user, type) record keeps
// its identity, thresholds, triggers and lifecycle state; only the correlation
// block is replaced and LastValidated bumped. A new record starts active and
// in monitoring.
func (s *Store) Upsert(ctx context.Context, candidate *models.CorrelationPattern) (*models.CorrelationPattern, error) {
	if err := ValidateCorrelation(candidate.Correlation); err != nil {
		return nil, err
	}
	if candidate.UserID == "" || candidate.PatternType == "" {
		return nil, fmt.Errorf("%w: missing user or pattern type", ErrInvalidCorrelation)
	}

	unlock := s.locks.Lock(candidate.UserID)
	defer unlock()

	now := s.now()
	existing, err := s.repo.Get(ctx, candidate.UserID, candidate.PatternType)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate pattern id: %w", err)
		}
		fresh := *candidate
		fresh.ID = id.String()
		fresh.IsActive = true
		fresh.ValidationStatus = models.ValidationMonitoring
		fresh.Outcomes = []models.PatternOutcome{}
		fresh.SuccessRate = 0
		fresh.TriggerCount = 0
		fresh.LastTriggered = nil
		fresh.DiscoveredAt = now
		fresh.LastValidated = now
		fresh.UpdatedAt = now

		stored, err := s.repo.Upsert(ctx, &fresh)
		if err != nil {
			return nil, err
		}
		logger.Ctx(ctx).Info("pattern discovered",
			logger.String("pattern_id", stored.ID),
			logger.String("pattern_type", string(stored.PatternType)),
			logger.Float64("confidence", stored.Correlation.Confidence),
		)
		return stored, nil

	case err != nil:
		return nil, err
	}

	merged := *existing
	merged.Correlation = candidate.Correlation
	merged.LastValidated = now
	merged.UpdatedAt = now

	stored, err := s.repo.Upsert(ctx, &merged)
	if err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Debug("pattern revalidated",
		logger.String("pattern_id", stored.ID),
		logger.String("pattern_type", string(stored.PatternType)),
		logger.Float64("confidence", stored.Correlation.Confidence),
	)
	return stored, nil
}

// EvaluateTriggers checks a live sample of the pattern's primary metric. It
// returns nil when the pattern is inactive, the sample is for another metric,
// the cooldown window has not elapsed, or no trigger condition holds.
// Otherwise the first matching trigger fires and the trigger state is
// persisted. pattern is updated in place.
func (s *Store) EvaluateTriggers(ctx context.Context, pattern *models.CorrelationPattern, sample models.TimeSeriesSample) (*models.TriggerEvent, error) {
	if !pattern.IsActive || sample.MetricName != pattern.PrimaryMetric.Name {
		return nil, nil
	}
	if math.IsNaN(sample.Value) || math.IsInf(sample.Value, 0) {
		return nil, nil
	}

	unlock := s.locks.Lock(pattern.UserID)
	defer unlock()

	// reload under the lock so concurrent samples cannot both fire
	current, err := s.load(ctx, pattern.UserID, pattern.ID)
	if err != nil {
		return nil, err
	}
	*pattern = *current
	if !current.IsActive {
		return nil, nil
	}

	now := s.now()
	if current.LastTriggered != nil {
		cooldown := time.Duration(current.TimeRelationship.WindowHours) * time.Hour
		if now.Sub(*current.LastTriggered) < cooldown {
			return nil, nil
		}
	}

	for _, trigger := range current.Triggers {
		if !trigger.Matches(sample.Value) {
			continue
		}

		count := current.TriggerCount + 1
		if err := s.repo.UpdateTriggerState(ctx, current.ID, now, count); err != nil {
			return nil, err
		}
		pattern.LastTriggered = &now
		pattern.TriggerCount = count

		logger.Ctx(ctx).Info("pattern trigger fired",
			logger.String("pattern_id", current.ID),
			logger.String("severity", string(trigger.Severity)),
			logger.String("action", trigger.Action),
		)
		return &models.TriggerEvent{
			PatternID:   current.ID,
			PatternType: current.PatternType,
			Trigger:     trigger,
			MetricName:  sample.MetricName,
			Value:       sample.Value,
			FiredAt:     now,
		}, nil
	}

	return nil, nil
}

// RecordOutcome appends a predicted/actual pair and recomputes the success
// rate over the last SuccessWindow outcomes
func (s *Store) RecordOutcome(ctx context.Context, userID, patternID string, predicted, actual float64) (*models.CorrelationPattern, error) {
	if math.IsNaN(predicted) || math.IsNaN(actual) || math.IsInf(predicted, 0) || math.IsInf(actual, 0) {
		return nil, fmt.Errorf("outcome values must be finite")
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	pattern, err := s.load(ctx, userID, patternID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	outcome := models.PatternOutcome{
		Date:      now,
		Predicted: predicted,
		Actual:    actual,
		Accuracy:  models.OutcomeAccuracy(predicted, actual),
	}
	pattern.Outcomes = append(pattern.Outcomes, outcome)
	pattern.SuccessRate = SuccessRate(pattern.Outcomes)
	pattern.UpdatedAt = now

	if err := s.repo.AppendOutcome(ctx, pattern.ID, outcome, pattern.SuccessRate); err != nil {
		return nil, err
	}
	return pattern, nil
}

// SuccessRate is the mean accuracy of the last SuccessWindow outcomes
func SuccessRate(outcomes []models.PatternOutcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	recent := outcomes
	if len(recent) > SuccessWindow {
		recent = recent[len(recent)-SuccessWindow:]
	}
	var sum float64
	for _, o := range recent {
		sum += o.Accuracy
	}
	return sum / float64(len(recent))
}

// Confirm moves a monitored pattern to validated
func (s *Store) Confirm(ctx context.Context, userID, patternID string) (*models.CorrelationPattern, error) {
	return s.transition(ctx, userID, patternID, func(p *models.CorrelationPattern) error {
		if p.ValidationStatus != models.ValidationMonitoring {
			return fmt.Errorf("%w: cannot confirm a %s pattern", ErrInvalidTransition, p.ValidationStatus)
		}
		p.ValidationStatus = models.ValidationValidated
		return nil
	})
}

// Reject moves a monitored pattern to invalidated
func (s *Store) Reject(ctx context.Context, userID, patternID string) (*models.CorrelationPattern, error) {
	return s.transition(ctx, userID, patternID, func(p *models.CorrelationPattern) error {
		if p.ValidationStatus != models.ValidationMonitoring {
			return fmt.Errorf("%w: cannot reject a %s pattern", ErrInvalidTransition, p.ValidationStatus)
		}
		p.ValidationStatus = models.ValidationInvalidated
		return nil
	})
}

// Deactivate stops a pattern from triggering. The record is retained.
func (s *Store) Deactivate(ctx context.Context, userID, patternID string) (*models.CorrelationPattern, error) {
	return s.transition(ctx, userID, patternID, func(p *models.CorrelationPattern) error {
		if !p.IsActive {
			return fmt.Errorf("%w: pattern is already inactive", ErrInvalidTransition)
		}
		p.IsActive = false
		return nil
	})
}

// Get returns one of the user's patterns
func (s *Store) Get(ctx context.Context, userID, patternID string) (*models.CorrelationPattern, error) {
	return s.load(ctx, userID, patternID)
}

// List returns the user's patterns, optionally only the active ones
func (s *Store) List(ctx context.Context, userID string, activeOnly bool) ([]models.CorrelationPattern, error) {
	return s.repo.ListByUser(ctx, userID, activeOnly)
}

func (s *Store) transition(ctx context.Context, userID, patternID string, apply func(p *models.CorrelationPattern) error) (*models.CorrelationPattern, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	pattern, err := s.load(ctx, userID, patternID)
	if err != nil {
		return nil, err
	}
	if err := apply(pattern); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, pattern.ID, pattern.ValidationStatus, pattern.IsActive); err != nil {
		return nil, err
	}
	pattern.UpdatedAt = s.now()

	logger.Ctx(ctx).Info("pattern status changed",
		logger.String("pattern_id", pattern.ID),
		logger.String("validation_status", string(pattern.ValidationStatus)),
		logger.Bool("is_active", pattern.IsActive),
	)
	return pattern, nil
}

func (s *Store) load(ctx context.Context, userID, patternID string) (*models.CorrelationPattern, error) {
	pattern, err := s.repo.GetByID(ctx, userID, patternID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPatternNotFound
	}
	if err != nil {
		return nil, err
	}
	return pattern, nil
}

// ValidateCorrelation rejects statistics that are NaN, infinite or out of range
func ValidateCorrelation(c models.CorrelationStats) error {
	for _, v := range []float64{c.Strength, c.Confidence, c.PValue, c.RSquared} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidCorrelation)
		}
	}
	switch {
	case c.Strength < -1 || c.Strength > 1:
		return fmt.Errorf("%w: strength %.3f outside [-1, 1]", ErrInvalidCorrelation, c.Strength)
	case c.Confidence < 0 || c.Confidence > 100:
		return fmt.Errorf("%w: confidence %.1f outside [0, 100]", ErrInvalidCorrelation, c.Confidence)
	case c.PValue < 0 || c.PValue > 1:
		return fmt.Errorf("%w: p-value outside [0, 1]", ErrInvalidCorrelation)
	case c.RSquared < 0 || c.RSquared > 1:
		return fmt.Errorf("%w: r-squared outside [0, 1]", ErrInvalidCorrelation)
	case c.SampleSize < 0:
		return fmt.Errorf("%w: negative sample size", ErrInvalidCorrelation)
	}
	return nil
}
