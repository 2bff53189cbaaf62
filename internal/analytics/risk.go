package analytics

import (
	"fmt"
	"math"

	"github.com/JonnyWalker81/pulse/backend/internal/models"
)

// Risk factor names. These labels are the only explanation a caller sees;
// thresholds stay internal.
const (
	FactorDecliningHRV           = "declining_hrv"
	FactorElevatedRestingHR      = "elevated_resting_hr"
	FactorPoorSleep              = "poor_sleep"
	FactorLowRecovery            = "low_recovery"
	FactorHRVDowntrend           = "hrv_downtrend"
	FactorLoadSpike              = "load_spike"
	FactorHighTrainingFrequency  = "high_training_frequency"
	FactorRisingLoadTrend        = "rising_load_trend"
	FactorSustainedLowRecovery   = "sustained_low_recovery"
	FactorHighMeetingLoad        = "high_meeting_load"
	FactorShortSleep             = "short_sleep"
	FactorDecliningRecoveryTrend = "declining_recovery_trend"
	FactorElevatedSpending       = "elevated_spending"
)

// horizonDiscountPerDay is the share of the score removed per day beyond the first
const horizonDiscountPerDay = 0.05

// RiskInputs are the daily series available to a risk model, keyed by metric name
type RiskInputs map[string][]models.DailyValue

func (in RiskInputs) values(metric string) []float64 {
	return Values(in[metric])
}

type riskFactor struct {
	name   string
	points float64
	fires  func(in RiskInputs, horizon int) bool
}

type riskDefinition struct {
	gate       string
	minSamples int
	factors    []riskFactor
}

// RiskModel scores illness, injury and burnout risk with additive rules
type RiskModel struct {
	projector   *TrendProjector
	definitions map[models.RiskType]riskDefinition
}

// NewRiskModel creates a risk model backed by projector
func NewRiskModel(projector *TrendProjector) *RiskModel {
	if projector == nil {
		projector = NewTrendProjector()
	}
	m := &RiskModel{projector: projector}
	m.definitions = map[models.RiskType]riskDefinition{
		models.RiskTypeIllness: {
			gate:       MetricHRV,
			minSamples: 7,
			factors: []riskFactor{
				{FactorDecliningHRV, 30, decliningHRV},
				{FactorElevatedRestingHR, 20, elevatedRestingHR},
				{FactorPoorSleep, 20, func(in RiskInputs, _ int) bool {
					return recentMeanBelow(in.values(MetricSleepDuration), 3, 360)
				}},
				{FactorLowRecovery, 15, func(in RiskInputs, _ int) bool {
					return recentMeanBelow(in.values(MetricRecoveryScore), 3, 50)
				}},
				{FactorHRVDowntrend, 15, m.hrvDowntrend},
			},
		},
		models.RiskTypeInjury: {
			gate:       MetricTrainingLoad,
			minSamples: 7,
			factors: []riskFactor{
				{FactorLoadSpike, 30, loadSpike},
				{FactorHighTrainingFrequency, 25, highTrainingFrequency},
				{FactorLowRecovery, 20, func(in RiskInputs, _ int) bool {
					return recentMeanBelow(in.values(MetricRecoveryScore), 3, 40)
				}},
				{FactorDecliningHRV, 15, decliningHRV},
				{FactorRisingLoadTrend, 10, m.risingLoadTrend},
			},
		},
		models.RiskTypeBurnout: {
			gate:       MetricRecoveryScore,
			minSamples: 14,
			factors: []riskFactor{
				{FactorSustainedLowRecovery, 25, func(in RiskInputs, _ int) bool {
					return recentMeanBelow(in.values(MetricRecoveryScore), 14, 55)
				}},
				{FactorHighMeetingLoad, 20, func(in RiskInputs, _ int) bool {
					return recentMeanAbove(in.values(MetricMeetingHours), 7, 5)
				}},
				{FactorShortSleep, 20, func(in RiskInputs, _ int) bool {
					return recentMeanBelow(in.values(MetricSleepDuration), 7, 390)
				}},
				{FactorDecliningRecoveryTrend, 20, m.decliningRecoveryTrend},
				{FactorElevatedSpending, 15, elevatedSpending},
			},
		},
	}
	return m
}

// RequiredMetrics lists the metrics a risk type reads
func RequiredMetrics(riskType models.RiskType) []string {
	switch riskType {
	case models.RiskTypeIllness:
		return []string{MetricHRV, MetricRestingHeartRate, MetricSleepDuration, MetricRecoveryScore}
	case models.RiskTypeInjury:
		return []string{MetricTrainingLoad, MetricRecoveryScore, MetricHRV}
	case models.RiskTypeBurnout:
		return []string{MetricRecoveryScore, MetricMeetingHours, MetricSleepDuration, MetricDailySpending}
	default:
		return nil
	}
}

// IsRiskType reports whether s names a known risk model
func IsRiskType(s string) bool {
	switch models.RiskType(s) {
	case models.RiskTypeIllness, models.RiskTypeInjury, models.RiskTypeBurnout:
		return true
	}
	return false
}

// Assess scores riskType over inputs for a horizon in days (1 = immediate).
// When the gating metric is too short the result carries the
// insufficient_data sentinel and no score.
func (m *RiskModel) Assess(riskType models.RiskType, inputs RiskInputs, horizon int) (models.RiskAssessment, error) {
	def, ok := m.definitions[riskType]
	if !ok {
		return models.RiskAssessment{}, fmt.Errorf("unknown risk type %q", riskType)
	}
	if horizon < 1 {
		horizon = 1
	}

	n := len(inputs[def.gate])
	result := models.RiskAssessment{
		RiskType:    riskType,
		HorizonDays: horizon,
		SampleSize:  n,
	}
	if n < def.minSamples {
		result.Status = models.RiskStatusInsufficientData
		result.Factors = []string{models.FactorInsufficientData}
		result.Recommendations = []string{riskRecommendations[models.FactorInsufficientData]}
		return result, nil
	}

	var score float64
	factors := make([]string, 0, len(def.factors))
	for _, f := range def.factors {
		if f.fires(inputs, horizon) {
			score += f.points
			factors = append(factors, f.name)
		}
	}
	score = DiscountForHorizon(math.Min(100, score), horizon)

	result.Status = models.RiskStatusOK
	result.Score = &score
	result.Factors = factors
	result.Recommendations = recommendationsFor(factors)
	return result, nil
}

// DiscountForHorizon linearly lowers a 0-100 score as the horizon grows. The
// result stays within [0, 100].
func DiscountForHorizon(score float64, horizon int) float64 {
	if horizon < 1 {
		horizon = 1
	}
	factor := math.Max(0, 1-horizonDiscountPerDay*float64(horizon-1))
	return math.Max(0, math.Min(100, score*factor))
}

func lastN(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func recentMeanBelow(values []float64, n int, limit float64) bool {
	if len(values) < min(n, 3) {
		return false
	}
	return Mean(lastN(values, n)) < limit
}

func recentMeanAbove(values []float64, n int, limit float64) bool {
	if len(values) < min(n, 3) {
		return false
	}
	return Mean(lastN(values, n)) > limit
}

// recentVsBaseline splits a series into the last `recent` points and up to
// two weeks of points before them
func recentVsBaseline(values []float64, recent int) (recentMean, baselineMean float64, ok bool) {
	if len(values) < recent+3 {
		return 0, 0, false
	}
	split := len(values) - recent
	start := max(0, split-14)
	return Mean(values[split:]), Mean(values[start:split]), true
}

func decliningHRV(in RiskInputs, _ int) bool {
	recent, baseline, ok := recentVsBaseline(in.values(MetricHRV), 3)
	return ok && baseline > 0 && recent < 0.9*baseline
}

func elevatedRestingHR(in RiskInputs, _ int) bool {
	recent, baseline, ok := recentVsBaseline(in.values(MetricRestingHeartRate), 3)
	return ok && recent > baseline+5
}

func (m *RiskModel) hrvDowntrend(in RiskInputs, horizon int) bool {
	hrv := in.values(MetricHRV)
	_, baseline, ok := recentVsBaseline(hrv, 3)
	if !ok {
		return false
	}
	spec, _ := LookupMetric(MetricHRV)
	trend, err := m.projector.Fit(lastN(hrv, 14), spec.Clamp)
	if err != nil {
		return false
	}
	return trend.Slope < 0 && trend.Project(horizon) < 0.85*baseline
}

func loadSpike(in RiskInputs, _ int) bool {
	load := in.values(MetricTrainingLoad)
	acute := Mean(lastN(load, 7))
	chronic := Mean(lastN(load, 28))
	return chronic > 0 && acute/chronic > 1.5
}

func highTrainingFrequency(in RiskInputs, _ int) bool {
	days := in[MetricTrainingLoad]
	if len(days) == 0 {
		return false
	}
	cutoff := days[len(days)-1].Date.AddDate(0, 0, -7)
	trainingDays := 0
	for _, d := range days {
		if d.Date.After(cutoff) && d.Value > 0 {
			trainingDays++
		}
	}
	recovery := in.values(MetricRecoveryScore)
	if len(recovery) == 0 {
		return false
	}
	return trainingDays > 6 && Mean(lastN(recovery, 7)) < 65
}

func (m *RiskModel) risingLoadTrend(in RiskInputs, horizon int) bool {
	load := in.values(MetricTrainingLoad)
	spec, _ := LookupMetric(MetricTrainingLoad)
	trend, err := m.projector.Fit(lastN(load, 14), spec.Clamp)
	if err != nil {
		return false
	}
	chronic := Mean(lastN(load, 28))
	return trend.Slope > 0 && trend.Project(horizon) > 1.2*chronic
}

func (m *RiskModel) decliningRecoveryTrend(in RiskInputs, _ int) bool {
	recovery := in.values(MetricRecoveryScore)
	trend, err := m.projector.Fit(lastN(recovery, 14), Unbounded)
	if err != nil {
		return false
	}
	return trend.Slope < -0.5
}

func elevatedSpending(in RiskInputs, _ int) bool {
	spending := in.values(MetricDailySpending)
	if len(spending) < 14 {
		return false
	}
	split := len(spending) - 7
	prior := spending[max(0, split-21):split]
	priorMean := Mean(prior)
	return priorMean > 0 && Mean(spending[split:]) > 1.3*priorMean
}

var riskRecommendations = map[string]string{
	models.FactorInsufficientData: "Keep syncing your wearable; at least a week of data is needed for this assessment.",
	FactorDecliningHRV:            "Your HRV is below your two-week baseline; favor rest and hydration today.",
	FactorElevatedRestingHR:       "Resting heart rate is elevated; consider an easy day and monitor for symptoms.",
	FactorPoorSleep:               "Aim for at least seven hours of sleep over the next few nights.",
	FactorLowRecovery:             "Recovery is low; swap intense training for mobility or a walk.",
	FactorHRVDowntrend:            "HRV has been trending down; reduce training stress until it stabilizes.",
	FactorLoadSpike:               "This week's load is well above your usual; taper intensity to avoid overreaching.",
	FactorHighTrainingFrequency:   "You have trained every day this week; schedule a full rest day.",
	FactorRisingLoadTrend:         "Training load keeps climbing; plan a deload week.",
	FactorSustainedLowRecovery:    "Recovery has stayed low for two weeks; review workload and sleep habits.",
	FactorHighMeetingLoad:         "Meeting load is heavy; block focus and recovery time in your calendar.",
	FactorShortSleep:              "Average sleep this week is short; move bedtime earlier.",
	FactorDecliningRecoveryTrend:  "Recovery is steadily declining; lighten commitments where you can.",
	FactorElevatedSpending:        "Spending is above your usual pattern; it often tracks stress.",
}

func recommendationsFor(factors []string) []string {
	out := make([]string, 0, len(factors))
	for _, f := range factors {
		if rec, ok := riskRecommendations[f]; ok {
			out = append(out, rec)
		}
	}
	return out
}
