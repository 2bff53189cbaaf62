package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonnyWalker81/pulse/backend/internal/models"
	"github.com/JonnyWalker81/pulse/backend/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "pulse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var day0 = time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)

func TestTimeSeries_FetchSeriesWindowAndOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AppendSamples(ctx, []models.TimeSeriesSample{
		{UserID: "u1", MetricName: "hrv", Timestamp: day0.AddDate(0, 0, 2), Value: 52},
		{UserID: "u1", MetricName: "hrv", Timestamp: day0, Value: 50},
		{UserID: "u1", MetricName: "hrv", Timestamp: day0.AddDate(0, 0, 5), Value: 60},
		{UserID: "u1", MetricName: "sleep_duration", Timestamp: day0, Value: 420},
		{UserID: "u2", MetricName: "hrv", Timestamp: day0, Value: 99},
	}))

	samples, err := store.TimeSeries().FetchSeries(ctx, "u1", "hrv", day0, day0.AddDate(0, 0, 5))

	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 50.0, samples[0].Value)
	assert.Equal(t, 52.0, samples[1].Value)
	assert.True(t, samples[0].Timestamp.Equal(day0))
}

func TestTimeSeries_FetchRawEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	end := day0.Add(90 * time.Minute)
	amount := 18.5

	require.NoError(t, store.AppendRawEvents(ctx, []models.RawEvent{
		{UserID: "u1", Domain: models.DomainCalendar, StartTime: day0, EndTime: &end, Title: "standup"},
		{UserID: "u1", Domain: models.DomainFinancial, StartTime: day0, Amount: &amount, Category: "food"},
	}))

	events, err := store.TimeSeries().FetchRawEvents(ctx, "u1", models.DomainCalendar, day0.Add(-time.Hour), day0.Add(time.Hour))

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].ID)
	require.NotNil(t, events[0].EndTime)
	assert.True(t, events[0].EndTime.Equal(end))
	assert.Nil(t, events[0].Amount)

	spend, err := store.TimeSeries().FetchRawEvents(ctx, "u1", models.DomainFinancial, day0, day0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, spend, 1)
	require.NotNil(t, spend[0].Amount)
	assert.Equal(t, 18.5, *spend[0].Amount)
}

func samplePattern(userID string, strength float64) *models.CorrelationPattern {
	now := day0
	return &models.CorrelationPattern{
		UserID:      userID,
		PatternType: models.PatternSleepPerformance,
		PrimaryMetric: models.PatternMetric{
			Name: "sleep_duration", Source: "wearable", Threshold: 360, Direction: models.DirectionLower,
		},
		SecondaryMetric: models.PatternMetric{
			Name: "recovery_score", Source: "wearable", Threshold: 65, Direction: models.DirectionLower,
		},
		Correlation: models.CorrelationStats{
			Strength: strength, Confidence: 70, SampleSize: 30, PValue: 0.01, RSquared: strength * strength,
		},
		TimeRelationship: models.TimeRelationship{LagHours: 24, WindowHours: 24, Periodicity: "daily"},
		Triggers: []models.Trigger{
			{Condition: models.ConditionBelow, Threshold: 300, Action: "prioritize_sleep", Severity: models.SeverityHigh},
		},
		IsActive:         true,
		ValidationStatus: models.ValidationMonitoring,
		DiscoveredAt:     now,
		LastValidated:    now,
		UpdatedAt:        now,
	}
}

func TestPatterns_UpsertIsUniquePerUserAndType(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Patterns()

	first, err := repo.Upsert(ctx, samplePattern("u1", 0.5))
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	update := samplePattern("u1", 0.8)
	update.LastValidated = day0.Add(48 * time.Hour)
	update.Triggers = nil
	second, err := repo.Upsert(ctx, update)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 0.8, second.Correlation.Strength)
	assert.True(t, second.LastValidated.Equal(update.LastValidated))
	// triggers are fixed at discovery
	assert.Len(t, second.Triggers, 1)

	all, err := repo.ListByUser(ctx, "u1", false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPatterns_LifecycleUpdates(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Patterns()

	p, err := repo.Upsert(ctx, samplePattern("u1", 0.6))
	require.NoError(t, err)

	fired := day0.Add(6 * time.Hour)
	require.NoError(t, repo.UpdateTriggerState(ctx, p.ID, fired, 3))
	require.NoError(t, repo.AppendOutcome(ctx, p.ID, models.PatternOutcome{Date: day0, Predicted: 70, Actual: 80, Accuracy: 87.5}, 87.5))
	require.NoError(t, repo.AppendOutcome(ctx, p.ID, models.PatternOutcome{Date: day0.AddDate(0, 0, 1), Predicted: 80, Actual: 80, Accuracy: 100}, 93.75))
	require.NoError(t, repo.UpdateStatus(ctx, p.ID, models.ValidationValidated, true))

	got, err := repo.GetByID(ctx, "u1", p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastTriggered)
	assert.True(t, got.LastTriggered.Equal(fired))
	assert.Equal(t, 3, got.TriggerCount)
	require.Len(t, got.Outcomes, 2)
	assert.Equal(t, 87.5, got.Outcomes[0].Accuracy)
	assert.Equal(t, 93.75, got.SuccessRate)
	assert.Equal(t, models.ValidationValidated, got.ValidationStatus)

	require.NoError(t, repo.UpdateStatus(ctx, p.ID, models.ValidationValidated, false))
	active, err := repo.ListByUser(ctx, "u1", true)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestPatterns_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Patterns()

	_, err := repo.Get(ctx, "u1", models.PatternStressSpending)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.GetByID(ctx, "u1", "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = repo.UpdateStatus(ctx, "missing", models.ValidationValidated, true)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	p, err := repo.Upsert(ctx, samplePattern("u1", 0.6))
	require.NoError(t, err)
	_, err = repo.GetByID(ctx, "someone-else", p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPredictions_CompleteOnce(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Predictions()

	created, err := repo.Create(ctx, &models.Prediction{
		ID:              "0190f000-0000-7000-8000-000000000001",
		UserID:          "u1",
		PredictionType:  "recovery",
		HorizonDays:     3,
		PredictedValue:  72,
		ConfidenceLevel: 86,
		PredictionModel: "linear_trend",
		Factors:         []string{"trend"},
		PredictionDate:  day0,
		Status:          models.PredictionPending,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"trend"}, created.Factors)
	assert.Nil(t, created.ActualValue)

	actual, accuracy, completedAt := 80.0, 90.0, day0.AddDate(0, 0, 3)
	created.ActualValue = &actual
	created.Accuracy = &accuracy
	created.CompletedAt = &completedAt
	require.NoError(t, repo.Complete(ctx, created))

	assert.ErrorIs(t, repo.Complete(ctx, created), repository.ErrNotPending)

	got, err := repo.GetByID(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PredictionCompleted, got.Status)
	require.NotNil(t, got.Accuracy)
	assert.Equal(t, 90.0, *got.Accuracy)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(completedAt))
}
