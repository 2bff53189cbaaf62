package analytics

import (
	"time"

	"github.com/JonnyWalker81/pulse/backend/internal/models"
)

// ReduceEvents collapses raw events into one daily scalar for every UTC day
// in [start, end) using reducer. Days without events are real zeros. Counts
// and sums land on the event's start day; hours are split across the days an
// event covers. With no events at all the domain has no data and nil is
// returned.
func ReduceEvents(events []models.RawEvent, reducer Reducer, start, end time.Time) []models.DailyValue {
	if len(events) == 0 {
		return nil
	}

	first := dayKey(start)
	if !end.After(first) {
		return nil
	}
	n := int(dayKey(end.Add(-time.Nanosecond)).Sub(first).Hours()/24) + 1
	totals := make([]float64, n)

	index := func(t time.Time) (int, bool) {
		i := int(dayKey(t).Sub(first).Hours() / 24)
		return i, !t.Before(first) && t.Before(end) && i < n
	}

	for _, e := range events {
		switch reducer {
		case ReduceCount:
			if i, ok := index(e.StartTime); ok {
				totals[i]++
			}
		case ReduceHours:
			if e.EndTime == nil || !e.EndTime.After(e.StartTime) {
				continue
			}
			for from := e.StartTime; from.Before(*e.EndTime); {
				to := dayKey(from).AddDate(0, 0, 1)
				if e.EndTime.Before(to) {
					to = *e.EndTime
				}
				if i, ok := index(from); ok {
					totals[i] += to.Sub(from).Hours()
				}
				from = to
			}
		case ReduceSum:
			if e.Amount == nil {
				continue
			}
			if i, ok := index(e.StartTime); ok {
				totals[i] += *e.Amount
			}
		}
	}

	days := make([]models.DailyValue, n)
	for i, v := range totals {
		days[i] = models.DailyValue{Date: first.AddDate(0, 0, i), Value: v}
	}
	return days
}
