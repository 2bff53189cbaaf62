package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonnyWalker81/pulse/backend/internal/analytics"
	"github.com/JonnyWalker81/pulse/backend/internal/metrics"
	"github.com/JonnyWalker81/pulse/backend/internal/models"
	"github.com/JonnyWalker81/pulse/backend/internal/repository"
)

// maxParallelFetches bounds concurrent repository reads per request
const maxParallelFetches = 4

// window is the half-open day range [start, end) an operation reads
type window struct {
	start time.Time
	end   time.Time
}

func trailingWindow(now time.Time, days int) window {
	end := now.UTC().Truncate(24*time.Hour).AddDate(0, 0, 1)
	return window{start: end.AddDate(0, 0, -days), end: end}
}

// fetchDaily loads every metric in names as a daily series. Wearable metrics
// come from FetchSeries; calendar and financial metrics are reduced from raw
// events, with each domain fetched once. All reads finish before any
// analysis starts.
func (s *intelligenceService) fetchDaily(ctx context.Context, userID string, names []string, w window) (map[string][]models.DailyValue, error) {
	series := make(map[string]bool)
	domains := make(map[models.Domain][]analytics.MetricSpec)
	for _, name := range names {
		spec, ok := analytics.LookupMetric(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
		}
		if spec.Reducer == analytics.ReduceNone {
			series[name] = true
			continue
		}
		domains[spec.Domain] = append(domains[spec.Domain], spec)
	}

	var mu sync.Mutex
	out := make(map[string][]models.DailyValue, len(names))
	store := func(name string, days []models.DailyValue) {
		mu.Lock()
		out[name] = days
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)

	for _, name := range sortedKeys(series) {
		name := name
		g.Go(func() error {
			samples, err := s.timeSeries.FetchSeries(gctx, userID, name, w.start, w.end)
			if err != nil {
				metrics.StorageFailure("fetch_series")
				return fmt.Errorf("failed to fetch %s: %w", name, err)
			}
			store(name, analytics.DailyValues(samples))
			return nil
		})
	}

	for domain, specs := range domains {
		domain, specs := domain, specs
		g.Go(func() error {
			events, err := s.timeSeries.FetchRawEvents(gctx, userID, domain, w.start, w.end)
			if err != nil {
				metrics.StorageFailure("fetch_raw_events")
				return fmt.Errorf("failed to fetch %s events: %w", domain, err)
			}
			for _, spec := range specs {
				store(spec.Name, analytics.ReduceEvents(events, spec.Reducer, w.start, w.end))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// isStorageFailure reports whether err came from the persistence layer
func isStorageFailure(err error) bool {
	var se *repository.StorageError
	return errors.As(err, &se)
}
