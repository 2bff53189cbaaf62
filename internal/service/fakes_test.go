package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JonnyWalker81/pulse/backend/internal/models"
	"github.com/JonnyWalker81/pulse/backend/internal/repository"
)

// fakeTimeSeries serves canned samples and raw events, honouring the
// requested [start, end) window
type fakeTimeSeries struct {
	samples  map[string][]models.TimeSeriesSample
	events   map[models.Domain][]models.RawEvent
	failWith error
	mu       sync.Mutex
	fetched  []string
}

func newFakeTimeSeries() *fakeTimeSeries {
	return &fakeTimeSeries{
		samples: make(map[string][]models.TimeSeriesSample),
		events:  make(map[models.Domain][]models.RawEvent),
	}
}

func (f *fakeTimeSeries) add(metric string, start time.Time, values ...float64) {
	for i, v := range values {
		f.samples[metric] = append(f.samples[metric], models.TimeSeriesSample{
			UserID:     testUser,
			MetricName: metric,
			Timestamp:  start.AddDate(0, 0, i).Add(7 * time.Hour),
			Value:      v,
		})
	}
}

func (f *fakeTimeSeries) FetchSeries(_ context.Context, userID, metric string, start, end time.Time) ([]models.TimeSeriesSample, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, metric)
	f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []models.TimeSeriesSample
	for _, s := range f.samples[metric] {
		if s.UserID == userID && !s.Timestamp.Before(start) && s.Timestamp.Before(end) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeTimeSeries) FetchRawEvents(_ context.Context, userID string, domain models.Domain, start, end time.Time) ([]models.RawEvent, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []models.RawEvent
	for _, e := range f.events[domain] {
		if e.UserID == userID && !e.StartTime.Before(start) && e.StartTime.Before(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakePatternRepository struct {
	mu       sync.Mutex
	patterns map[string]models.CorrelationPattern
	failWith error
}

func newFakePatternRepository() *fakePatternRepository {
	return &fakePatternRepository{patterns: make(map[string]models.CorrelationPattern)}
}

func (f *fakePatternRepository) Get(_ context.Context, userID string, patternType models.PatternType) (*models.CorrelationPattern, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.patterns {
		if p.UserID == userID && p.PatternType == patternType {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakePatternRepository) GetByID(_ context.Context, userID, id string) (*models.CorrelationPattern, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patterns[id]
	if !ok || p.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (f *fakePatternRepository) ListByUser(_ context.Context, userID string, activeOnly bool) ([]models.CorrelationPattern, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CorrelationPattern
	for _, p := range f.patterns {
		if p.UserID == userID && (!activeOnly || p.IsActive) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatternType < out[j].PatternType })
	return out, nil
}

func (f *fakePatternRepository) Upsert(_ context.Context, pattern *models.CorrelationPattern) (*models.CorrelationPattern, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.patterns[pattern.ID] = *pattern
	stored := *pattern
	return &stored, nil
}

func (f *fakePatternRepository) UpdateTriggerState(_ context.Context, id string, lastTriggered time.Time, triggerCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patterns[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.LastTriggered = &lastTriggered
	p.TriggerCount = triggerCount
	f.patterns[id] = p
	return nil
}

func (f *fakePatternRepository) AppendOutcome(_ context.Context, id string, outcome models.PatternOutcome, successRate float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patterns[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Outcomes = append(append([]models.PatternOutcome(nil), p.Outcomes...), outcome)
	p.SuccessRate = successRate
	f.patterns[id] = p
	return nil
}

func (f *fakePatternRepository) UpdateStatus(_ context.Context, id string, status models.ValidationStatus, isActive bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patterns[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.ValidationStatus = status
	p.IsActive = isActive
	f.patterns[id] = p
	return nil
}

type fakePredictionRepository struct {
	mu          sync.Mutex
	predictions map[string]models.Prediction
	failWith    error
}

func newFakePredictionRepository() *fakePredictionRepository {
	return &fakePredictionRepository{predictions: make(map[string]models.Prediction)}
}

func (f *fakePredictionRepository) Create(_ context.Context, prediction *models.Prediction) (*models.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.predictions[prediction.ID] = *prediction
	stored := *prediction
	return &stored, nil
}

func (f *fakePredictionRepository) GetByID(_ context.Context, userID, id string) (*models.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.predictions[id]
	if !ok || p.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (f *fakePredictionRepository) Complete(_ context.Context, prediction *models.Prediction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.predictions[prediction.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Status != models.PredictionPending {
		return repository.ErrNotPending
	}
	f.predictions[prediction.ID] = *prediction
	return nil
}
