package analytics

import (
	"errors"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/JonnyWalker81/pulse/backend/internal/models"
)

// ErrInsufficientData is returned when a series is too short for the requested computation
var ErrInsufficientData = errors.New("insufficient data")

// varianceEpsilon treats near-constant series as having zero variance
const varianceEpsilon = 1e-12

// PearsonCorrelation computes Pearson's r for two equal-length series.
// Series with zero variance yield 0 rather than NaN.
func PearsonCorrelation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	_, vx := stat.MeanVariance(x, nil)
	_, vy := stat.MeanVariance(y, nil)
	if vx < varianceEpsilon || vy < varianceEpsilon {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return math.Max(-1, math.Min(1, r))
}

// TwoTailedPValue returns the two-tailed significance of r over n pairs using
// the Student's t distribution with n-2 degrees of freedom
func TwoTailedPValue(r float64, n int) float64 {
	if n <= 2 {
		return 1
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	t := r * math.Sqrt(float64(n-2)) / math.Sqrt(1-r*r)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	p := 2 * (1 - dist.CDF(math.Abs(t)))
	return math.Max(0, math.Min(1, p))
}

// PatternConfidence blends sample volume and explanatory power into a 0-100
// score. It is non-decreasing in both sampleSize and rSquared.
func PatternConfidence(sampleSize, expectedSamples int, rSquared float64) float64 {
	if expectedSamples <= 0 {
		expectedSamples = 1
	}
	volume := float64(sampleSize) / float64(expectedSamples) * 50
	power := math.Max(0, math.Min(1, rSquared)) * 50
	return math.Min(100, volume+power)
}

// Mean returns the arithmetic mean, or 0 for an empty series
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// dayKey truncates a timestamp to its UTC calendar day
func dayKey(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DailyValues buckets samples by UTC day, averaging days with several
// samples, and returns them in chronological order
func DailyValues(samples []models.TimeSeriesSample) []models.DailyValue {
	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for _, s := range samples {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		k := dayKey(s.Timestamp)
		sums[k] += s.Value
		counts[k]++
	}

	days := make([]models.DailyValue, 0, len(sums))
	for k, sum := range sums {
		days = append(days, models.DailyValue{Date: k, Value: sum / float64(counts[k])})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}

// Values extracts the numeric values of a daily series
func Values(days []models.DailyValue) []float64 {
	out := make([]float64, len(days))
	for i, d := range days {
		out[i] = d.Value
	}
	return out
}

// AlignPairs pairs primary day D with secondary day D+lag. Days without a
// partner are dropped, never imputed.
func AlignPairs(primary, secondary []models.DailyValue, lagHours int) (xs, ys []float64) {
	lagDays := lagHours / 24
	byDay := make(map[time.Time]float64, len(secondary))
	for _, d := range secondary {
		byDay[d.Date] = d.Value
	}
	for _, d := range primary {
		partner := d.Date.AddDate(0, 0, lagDays)
		if v, ok := byDay[partner]; ok {
			xs = append(xs, d.Value)
			ys = append(ys, v)
		}
	}
	return xs, ys
}
