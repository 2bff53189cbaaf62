package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MinTrendPoints is the history length below which a trend is low confidence
const MinTrendPoints = 7

// Trend is an ordinary least-squares fit over index positions 0..n-1
type Trend struct {
	Slope         float64
	Intercept     float64
	LastValue     float64
	Points        int
	LowConfidence bool
	clamp         Range
}

// TrendProjector fits and extrapolates simple linear trends
type TrendProjector struct{}

// NewTrendProjector creates a trend projector
func NewTrendProjector() *TrendProjector {
	return &TrendProjector{}
}

// Fit regresses values against their index. At least two points are
// required; fewer than MinTrendPoints still fit but are flagged low
// confidence. clamp bounds later projections.
func (p *TrendProjector) Fit(values []float64, clamp Range) (Trend, error) {
	n := len(values)
	if n < 2 {
		return Trend{}, ErrInsufficientData
	}

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}

	intercept, slope := stat.LinearRegression(xs, values, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		slope = 0
		intercept = Mean(values)
	}

	return Trend{
		Slope:         slope,
		Intercept:     intercept,
		LastValue:     values[n-1],
		Points:        n,
		LowConfidence: n < MinTrendPoints,
		clamp:         clamp,
	}, nil
}

// Project returns lastValue + slope*h bounded to the trend's clamp range
func (t Trend) Project(h int) float64 {
	v := t.LastValue + t.Slope*float64(h)
	if t.clamp == (Range{}) {
		return v
	}
	return t.clamp.Clamp(v)
}

// Unbounded is a clamp range that leaves projections untouched
var Unbounded = Range{Min: math.Inf(-1), Max: math.Inf(1)}
