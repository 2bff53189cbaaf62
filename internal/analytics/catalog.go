// Package analytics implements the correlation and prediction engine: pattern
// discovery between daily metric series, trend projection, additive risk
// scoring and day-by-day forecasting. Every function in this package is a pure
// computation over series the caller has already fetched.
package analytics

import (
	"math"

	"github.com/JonnyWalker81/pulse/backend/internal/models"
)

// Metric names understood by the engine
const (
	MetricSleepDuration      = "sleep_duration"
	MetricRecoveryScore      = "recovery_score"
	MetricHRV                = "hrv"
	MetricRestingHeartRate   = "resting_heart_rate"
	MetricTrainingLoad       = "training_load"
	MetricStressLevel        = "stress_level"
	MetricWorkoutPerformance = "workout_performance"
	MetricMeetingCount       = "meeting_count"
	MetricMeetingHours       = "meeting_hours"
	MetricDailySpending      = "daily_spending"
	MetricEnergy             = "energy"
	MetricPerformance        = "performance"
)

// Metric sources
const (
	SourceWearable  = "wearable"
	SourceCalendar  = "calendar"
	SourceFinancial = "financial"
	SourceDerived   = "derived"
)

// Reducer identifies how raw events collapse into a daily scalar
type Reducer string

const (
	ReduceNone  Reducer = ""
	ReduceCount Reducer = "count"
	ReduceHours Reducer = "hours"
	ReduceSum   Reducer = "sum"
)

// Range is an inclusive numeric interval
type Range struct {
	Min float64
	Max float64
}

// Clamp bounds v to the range
func (r Range) Clamp(v float64) float64 {
	return math.Max(r.Min, math.Min(r.Max, v))
}

// Scale maps v from r onto target linearly, clamped to target
func (r Range) Scale(v float64, target Range) float64 {
	span := r.Max - r.Min
	if span == 0 {
		return target.Min
	}
	return target.Clamp(target.Min + (v-r.Min)/span*(target.Max-target.Min))
}

// MetricSpec describes where a metric comes from and its valid values
type MetricSpec struct {
	Name    string
	Source  string
	Domain  models.Domain
	Reducer Reducer
	// Range is the natural scale of the metric.
	Range Range
	// Clamp bounds projected values to avoid degenerate extrapolation.
	Clamp Range
	// ProxyOf names the metric whose forecast stands in for this one.
	ProxyOf string
	// ProxyRange is the range of ProxyOf used when scaling.
	ProxyRange Range
}

// Direct reports whether the metric has its own history
func (m MetricSpec) Direct() bool {
	return m.ProxyOf == ""
}

var metricCatalog = map[string]MetricSpec{
	MetricSleepDuration: {
		Name: MetricSleepDuration, Source: SourceWearable, Domain: models.DomainSleep,
		Range: Range{0, 960}, Clamp: Range{0, 960},
	},
	MetricRecoveryScore: {
		Name: MetricRecoveryScore, Source: SourceWearable, Domain: models.DomainRecovery,
		Range: Range{0, 100}, Clamp: Range{30, 100},
	},
	MetricHRV: {
		Name: MetricHRV, Source: SourceWearable, Domain: models.DomainRecovery,
		Range: Range{10, 200}, Clamp: Range{10, 200},
	},
	MetricRestingHeartRate: {
		Name: MetricRestingHeartRate, Source: SourceWearable, Domain: models.DomainRecovery,
		Range: Range{30, 120}, Clamp: Range{30, 120},
	},
	MetricTrainingLoad: {
		Name: MetricTrainingLoad, Source: SourceWearable, Domain: models.DomainFitness,
		Range: Range{0, 21}, Clamp: Range{0, 21},
	},
	MetricStressLevel: {
		Name: MetricStressLevel, Source: SourceWearable, Domain: models.DomainRecovery,
		Range: Range{0, 100}, Clamp: Range{0, 100},
	},
	MetricWorkoutPerformance: {
		Name: MetricWorkoutPerformance, Source: SourceWearable, Domain: models.DomainFitness,
		Range: Range{0, 100}, Clamp: Range{0, 100},
	},
	MetricMeetingCount: {
		Name: MetricMeetingCount, Source: SourceCalendar, Domain: models.DomainCalendar,
		Reducer: ReduceCount, Range: Range{0, 24}, Clamp: Range{0, 24},
	},
	MetricMeetingHours: {
		Name: MetricMeetingHours, Source: SourceCalendar, Domain: models.DomainCalendar,
		Reducer: ReduceHours, Range: Range{0, 24}, Clamp: Range{0, 24},
	},
	MetricDailySpending: {
		Name: MetricDailySpending, Source: SourceFinancial, Domain: models.DomainFinancial,
		Reducer: ReduceSum, Range: Range{0, math.Inf(1)}, Clamp: Range{0, math.Inf(1)},
	},
	// energy has no direct history; recovery is its documented proxy
	MetricEnergy: {
		Name: MetricEnergy, Source: SourceDerived, Domain: models.DomainRecovery,
		Range: Range{1, 10}, Clamp: Range{1, 10},
		ProxyOf: MetricRecoveryScore, ProxyRange: Range{0, 100},
	},
	// performance has no direct history; HRV is its documented proxy
	MetricPerformance: {
		Name: MetricPerformance, Source: SourceDerived, Domain: models.DomainFitness,
		Range: Range{0, 100}, Clamp: Range{0, 100},
		ProxyOf: MetricHRV, ProxyRange: Range{20, 120},
	},
}

// LookupMetric returns the catalog entry for name
func LookupMetric(name string) (MetricSpec, bool) {
	spec, ok := metricCatalog[name]
	return spec, ok
}

// PatternDefinition configures analysis of one pattern type
type PatternDefinition struct {
	Type      models.PatternType
	Primary   string
	Secondary string
	Domains   []models.Domain
	// LagHours offsets the secondary sample relative to the primary one.
	LagHours int
	// WindowHours is the trigger cooldown.
	WindowHours int
	// MinSamples is the hard minimum of paired days.
	MinSamples int
	// ExpectedSamples is the sample size that earns the full volume half of confidence.
	ExpectedSamples int
	// ExpectedSign is +1 or -1: the physiologically plausible direction.
	ExpectedSign float64
	// ThresholdOffset is one unit of the primary metric's natural scale.
	ThresholdOffset float64
	// SecondaryOffset is one unit of the secondary metric's natural scale.
	SecondaryOffset float64
	Action          string
	Recommendation  string
}

var patternDefinitions = []PatternDefinition{
	{
		Type:            models.PatternSleepPerformance,
		Primary:         MetricSleepDuration,
		Secondary:       MetricRecoveryScore,
		Domains:         []models.Domain{models.DomainSleep, models.DomainRecovery},
		LagHours:        24,
		WindowHours:     24,
		MinSamples:      14,
		ExpectedSamples: 21,
		ExpectedSign:    1,
		ThresholdOffset: 60,
		SecondaryOffset: 10,
		Action:          "prioritize_sleep",
		Recommendation:  "Protect a consistent sleep window; short nights tend to lower your next-day recovery.",
	},
	{
		Type:            models.PatternTrainingRecovery,
		Primary:         MetricTrainingLoad,
		Secondary:       MetricRecoveryScore,
		Domains:         []models.Domain{models.DomainFitness, models.DomainRecovery},
		LagHours:        24,
		WindowHours:     24,
		MinSamples:      14,
		ExpectedSamples: 21,
		ExpectedSign:    -1,
		ThresholdOffset: 2,
		SecondaryOffset: 10,
		Action:          "schedule_recovery_day",
		Recommendation:  "Follow heavy training days with lighter sessions to let recovery rebound.",
	},
	{
		Type:            models.PatternStressSpending,
		Primary:         MetricStressLevel,
		Secondary:       MetricDailySpending,
		Domains:         []models.Domain{models.DomainRecovery, models.DomainFinancial},
		LagHours:        0,
		WindowHours:     48,
		MinSamples:      20,
		ExpectedSamples: 30,
		ExpectedSign:    1,
		ThresholdOffset: 10,
		SecondaryOffset: 25,
		Action:          "pause_discretionary_spending",
		Recommendation:  "On high-stress days, delay non-essential purchases until the next morning.",
	},
	{
		Type:            models.PatternMeetingRecovery,
		Primary:         MetricMeetingHours,
		Secondary:       MetricRecoveryScore,
		Domains:         []models.Domain{models.DomainCalendar, models.DomainRecovery},
		LagHours:        24,
		WindowHours:     24,
		MinSamples:      14,
		ExpectedSamples: 21,
		ExpectedSign:    -1,
		ThresholdOffset: 1,
		SecondaryOffset: 10,
		Action:          "block_focus_time",
		Recommendation:  "Cap meeting-heavy days and block recovery time after them.",
	},
	{
		Type:            models.PatternHRVPerformance,
		Primary:         MetricHRV,
		Secondary:       MetricWorkoutPerformance,
		Domains:         []models.Domain{models.DomainRecovery, models.DomainFitness},
		LagHours:        0,
		WindowHours:     24,
		MinSamples:      10,
		ExpectedSamples: 14,
		ExpectedSign:    1,
		ThresholdOffset: 5,
		SecondaryOffset: 10,
		Action:          "adjust_workout_intensity",
		Recommendation:  "Match workout intensity to morning HRV; train hard on high-HRV days.",
	},
}

// PatternDefinitions returns the full taxonomy in a stable order
func PatternDefinitions() []PatternDefinition {
	out := make([]PatternDefinition, len(patternDefinitions))
	copy(out, patternDefinitions)
	return out
}

// LookupPattern returns the definition for a pattern type
func LookupPattern(t models.PatternType) (PatternDefinition, bool) {
	for _, def := range patternDefinitions {
		if def.Type == t {
			return def, true
		}
	}
	return PatternDefinition{}, false
}

// DefinitionsForDomains returns the pattern types touching any requested
// domain. An empty request selects every pattern type.
func DefinitionsForDomains(domains []models.Domain) []PatternDefinition {
	if len(domains) == 0 {
		return PatternDefinitions()
	}
	want := make(map[models.Domain]bool, len(domains))
	for _, d := range domains {
		want[d] = true
	}
	var out []PatternDefinition
	for _, def := range patternDefinitions {
		for _, d := range def.Domains {
			if want[d] {
				out = append(out, def)
				break
			}
		}
	}
	return out
}
