package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/JonnyWalker81/pulse/backend/internal/models"
)

const (
	// DefaultWindowDays is the historical window analysed for patterns
	DefaultWindowDays = 90

	// DefaultMinConfidence is used when the caller passes no minimum
	DefaultMinConfidence = 40

	// directionTolerance is the |r| below which a relationship has no
	// meaningful sign and is not rejected for pointing the wrong way
	directionTolerance = 0.1
)

// Rejection reasons reported for pattern types that produced no candidate
const (
	ReasonInsufficientData = "insufficient_data"
	ReasonLowConfidence    = "low_confidence"
	ReasonInvalidDirection = "invalid_direction"
)

// CorrelationAnalyzer decides whether two aligned daily series are meaningfully related
type CorrelationAnalyzer struct {
	now func() time.Time
}

// NewCorrelationAnalyzer creates a correlation analyzer
func NewCorrelationAnalyzer() *CorrelationAnalyzer {
	return &CorrelationAnalyzer{now: time.Now}
}

// Analysis is the raw outcome of a correlation run before it becomes a pattern
type Analysis struct {
	Pairs      int
	Strength   float64
	PValue     float64
	RSquared   float64
	Confidence float64
	Reason     string
}

// Evaluate computes the correlation statistics for def over the two series and
// reports why no pattern would be produced, if so. Reason is empty when the
// statistics qualify as a pattern at minConfidence.
func (a *CorrelationAnalyzer) Evaluate(def PatternDefinition, primary, secondary []models.DailyValue, minConfidence float64) Analysis {
	xs, ys := AlignPairs(primary, secondary, def.LagHours)
	result := Analysis{Pairs: len(xs)}
	if len(xs) < def.MinSamples {
		result.Reason = ReasonInsufficientData
		return result
	}

	r := PearsonCorrelation(xs, ys)
	result.Strength = r
	result.RSquared = r * r
	result.PValue = TwoTailedPValue(r, len(xs))
	result.Confidence = PatternConfidence(len(xs), def.ExpectedSamples, result.RSquared)

	if math.Abs(r) >= directionTolerance && math.Signbit(r) != math.Signbit(def.ExpectedSign) {
		result.Reason = ReasonInvalidDirection
		return result
	}
	if result.Confidence < minConfidence {
		result.Reason = ReasonLowConfidence
	}
	return result
}

// Analyze returns a pattern candidate for userID, or nil when the pairs are
// below the type minimum, confidence is below minConfidence, or the sign
// contradicts the expected direction. The result is not persisted.
func (a *CorrelationAnalyzer) Analyze(userID string, def PatternDefinition, primary, secondary []models.DailyValue, minConfidence float64) *models.CorrelationPattern {
	result := a.Evaluate(def, primary, secondary, minConfidence)
	if result.Reason != "" {
		return nil
	}

	xs, ys := AlignPairs(primary, secondary, def.LagHours)
	primaryMean := Mean(xs)
	secondaryMean := Mean(ys)

	primarySpec, _ := LookupMetric(def.Primary)
	secondarySpec, _ := LookupMetric(def.Secondary)

	// The concerning side of the primary metric is the one that pushes the
	// secondary metric in its adverse direction.
	primaryDir, secondaryDir := concerningDirections(def)

	primaryThreshold := primaryMean - def.ThresholdOffset
	secondaryThreshold := secondaryMean - def.SecondaryOffset
	if primaryDir == models.DirectionHigher {
		primaryThreshold = primaryMean + def.ThresholdOffset
	}
	if secondaryDir == models.DirectionHigher {
		secondaryThreshold = secondaryMean + def.SecondaryOffset
	}

	now := a.now()
	return &models.CorrelationPattern{
		UserID:      userID,
		PatternType: def.Type,
		PrimaryMetric: models.PatternMetric{
			Name:      def.Primary,
			Source:    primarySpec.Source,
			Threshold: primaryThreshold,
			Direction: primaryDir,
		},
		SecondaryMetric: models.PatternMetric{
			Name:      def.Secondary,
			Source:    secondarySpec.Source,
			Threshold: secondaryThreshold,
			Direction: secondaryDir,
		},
		Correlation: models.CorrelationStats{
			Strength:   result.Strength,
			Confidence: result.Confidence,
			SampleSize: result.Pairs,
			PValue:     result.PValue,
			RSquared:   result.RSquared,
		},
		TimeRelationship: models.TimeRelationship{
			LagHours:    def.LagHours,
			WindowHours: def.WindowHours,
			Periodicity: "daily",
		},
		Triggers:         buildTriggers(def, primaryMean, primaryDir),
		Outcomes:         []models.PatternOutcome{},
		IsActive:         true,
		ValidationStatus: models.ValidationMonitoring,
		DiscoveredAt:     now,
		LastValidated:    now,
		UpdatedAt:        now,
	}
}

// concerningDirections returns which side of the primary metric is adverse and
// how the secondary metric is expected to move when it is crossed
func concerningDirections(def PatternDefinition) (primary, secondary models.MetricDirection) {
	switch def.Type {
	case models.PatternStressSpending:
		// more stress, more spending
		return models.DirectionHigher, models.DirectionHigher
	}
	if def.ExpectedSign > 0 {
		return models.DirectionLower, models.DirectionLower
	}
	return models.DirectionHigher, models.DirectionLower
}

// buildTriggers derives ordered triggers from the observed primary mean: the
// high-severity trigger two offsets out is checked before the medium one.
func buildTriggers(def PatternDefinition, mean float64, dir models.MetricDirection) []models.Trigger {
	cond := models.ConditionBelow
	sign := -1.0
	if dir == models.DirectionHigher {
		cond = models.ConditionAbove
		sign = 1.0
	}
	return []models.Trigger{
		{
			Condition: cond,
			Threshold: mean + sign*2*def.ThresholdOffset,
			Action:    def.Action,
			Severity:  models.SeverityHigh,
		},
		{
			Condition: cond,
			Threshold: mean + sign*def.ThresholdOffset,
			Action:    def.Action,
			Severity:  models.SeverityMedium,
		},
	}
}

// Explain renders a plain-language insight for a pattern. It never includes
// p-values or other raw statistics.
func Explain(p models.CorrelationPattern) string {
	strength := "a weak"
	switch abs := math.Abs(p.Correlation.Strength); {
	case abs > 0.7:
		strength = "a strong"
	case abs > 0.4:
		strength = "a moderate"
	}

	movement := "rises"
	if p.Correlation.Strength < 0 {
		movement = "falls"
	}

	when := "the same day"
	if p.TimeRelationship.LagHours >= 24 {
		when = "the next day"
	}

	return fmt.Sprintf("We found %s link between your %s and %s: when %s goes up, %s %s %s (%.0f%% confidence across %d days).",
		strength,
		humanMetric(p.PrimaryMetric.Name),
		humanMetric(p.SecondaryMetric.Name),
		humanMetric(p.PrimaryMetric.Name),
		humanMetric(p.SecondaryMetric.Name),
		movement,
		when,
		p.Correlation.Confidence,
		p.Correlation.SampleSize,
	)
}

func humanMetric(name string) string {
	switch name {
	case MetricSleepDuration:
		return "sleep duration"
	case MetricRecoveryScore:
		return "recovery"
	case MetricHRV:
		return "HRV"
	case MetricTrainingLoad:
		return "training load"
	case MetricStressLevel:
		return "stress"
	case MetricDailySpending:
		return "spending"
	case MetricMeetingHours:
		return "meeting hours"
	case MetricMeetingCount:
		return "meeting count"
	case MetricWorkoutPerformance:
		return "workout performance"
	case MetricRestingHeartRate:
		return "resting heart rate"
	default:
		return name
	}
}
