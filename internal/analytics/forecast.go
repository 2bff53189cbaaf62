package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/JonnyWalker81/pulse/backend/internal/models"
)

// ConfidenceSchedule controls how forecast confidence decays over the horizon
type ConfidenceSchedule struct {
	Start float64
	Decay float64
	Floor float64
}

// DefaultConfidenceSchedule starts at 90 and loses 2 points per day down to 40
var DefaultConfidenceSchedule = ConfidenceSchedule{Start: 90, Decay: 2, Floor: 40}

// At returns the confidence for a 1-based day offset
func (s ConfidenceSchedule) At(day int) float64 {
	if day < 1 {
		day = 1
	}
	return math.Max(s.Floor, s.Start-s.Decay*float64(day-1))
}

// ForecastComposer turns metric histories into day-by-day forecasts
type ForecastComposer struct {
	projector *TrendProjector
	schedule  ConfidenceSchedule
}

// NewForecastComposer creates a composer using projector and schedule
func NewForecastComposer(projector *TrendProjector, schedule ConfidenceSchedule) *ForecastComposer {
	if projector == nil {
		projector = NewTrendProjector()
	}
	if schedule == (ConfidenceSchedule{}) {
		schedule = DefaultConfidenceSchedule
	}
	return &ForecastComposer{projector: projector, schedule: schedule}
}

// SourceMetric returns the metric whose history feeds a forecast of name.
// For proxy metrics this is the documented stand-in.
func SourceMetric(name string) (string, error) {
	spec, ok := LookupMetric(name)
	if !ok {
		return "", fmt.Errorf("unknown metric %q", name)
	}
	if spec.Direct() {
		return name, nil
	}
	return spec.ProxyOf, nil
}

// Compose forecasts metric over days using history, the daily series of the
// metric's source (the proxy source for derived metrics). Dates start the day
// after start.
func (c *ForecastComposer) Compose(metric string, history []models.DailyValue, days int, start time.Time) ([]models.ForecastPoint, error) {
	spec, ok := LookupMetric(metric)
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}

	clamp := spec.Clamp
	if !spec.Direct() {
		source, _ := LookupMetric(spec.ProxyOf)
		clamp = source.Clamp
	}

	trend, err := c.projector.Fit(Values(history), clamp)
	if err != nil {
		return nil, err
	}

	base := dayKey(start)
	points := make([]models.ForecastPoint, 0, days)
	for d := 1; d <= days; d++ {
		value := trend.Project(d)
		point := models.ForecastPoint{
			Day:        d,
			Date:       base.AddDate(0, 0, d),
			Confidence: c.confidence(trend, d),
		}
		if spec.Direct() {
			point.Value = value
		} else {
			point.Value = spec.ProxyRange.Scale(value, spec.Range)
			point.Proxy = true
			point.ProxyOf = spec.ProxyOf
		}
		points = append(points, point)
	}
	return points, nil
}

// confidence follows the schedule; short histories sit at the floor for the
// whole horizon
func (c *ForecastComposer) confidence(trend Trend, day int) float64 {
	if trend.LowConfidence {
		return c.schedule.Floor
	}
	return c.schedule.At(day)
}

// Schedule returns the composer's confidence schedule
func (c *ForecastComposer) Schedule() ConfidenceSchedule {
	return c.schedule
}
