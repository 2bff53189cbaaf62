package models

import "time"

// Domain identifies the life domain a metric or raw event belongs to
type Domain string

const (
	DomainSleep     Domain = "sleep"
	DomainFitness   Domain = "fitness"
	DomainRecovery  Domain = "recovery"
	DomainCalendar  Domain = "calendar"
	DomainFinancial Domain = "financial"
)

// TimeSeriesSample is a single recorded value of a named metric.
// Samples are produced by ingestion collaborators and never mutated here.
type TimeSeriesSample struct {
	UserID     string    `json:"user_id" yaml:"user_id"`
	MetricName string    `json:"metric_name" yaml:"metric_name"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	Value      float64   `json:"value" yaml:"value"`
}

// RawEvent is a non-scalar input (calendar event, transaction) that is reduced
// to daily scalar aggregates before analysis
type RawEvent struct {
	ID        string     `json:"id" yaml:"id"`
	UserID    string     `json:"user_id" yaml:"user_id"`
	Domain    Domain     `json:"domain" yaml:"domain"`
	StartTime time.Time  `json:"start_time" yaml:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" yaml:"end_time"`
	Amount    *float64   `json:"amount,omitempty" yaml:"amount"`
	Category  string     `json:"category,omitempty" yaml:"category"`
	Title     string     `json:"title,omitempty" yaml:"title"`
}

// DailyValue is one day's scalar value for a metric
type DailyValue struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ForecastPoint is one day of a forecast series
type ForecastPoint struct {
	Day        int       `json:"day"`
	Date       time.Time `json:"date"`
	Value      float64   `json:"value"`
	Confidence float64   `json:"confidence"`
	Proxy      bool      `json:"proxy,omitempty"`
	ProxyOf    string    `json:"proxy_of,omitempty"`
}

// ForecastResponse maps metric names to their day-by-day forecast
type ForecastResponse struct {
	UserID      string                     `json:"user_id"`
	Days        int                        `json:"days"`
	Metrics     map[string][]ForecastPoint `json:"metrics"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// RiskType names a risk model
type RiskType string

const (
	RiskTypeIllness RiskType = "illness"
	RiskTypeInjury  RiskType = "injury"
	RiskTypeBurnout RiskType = "burnout"
)

// RiskStatus reports whether a risk score could be computed
type RiskStatus string

const (
	RiskStatusOK               RiskStatus = "ok"
	RiskStatusInsufficientData RiskStatus = "insufficient_data"
)

// FactorInsufficientData is the only factor reported when a risk model lacks data
const FactorInsufficientData = "insufficient_data"

// RiskAssessment is the explainable result of a risk model evaluation.
// Score is nil when Status is insufficient_data.
type RiskAssessment struct {
	RiskType        RiskType   `json:"risk_type"`
	Status          RiskStatus `json:"status"`
	Score           *float64   `json:"score"`
	Factors         []string   `json:"factors"`
	Recommendations []string   `json:"recommendations"`
	HorizonDays     int        `json:"horizon_days"`
	SampleSize      int        `json:"sample_size"`
}

// AnalysisResult is returned by a correlation analysis run
type AnalysisResult struct {
	UserID          string           `json:"user_id"`
	Patterns        []PatternSummary `json:"patterns"`
	Insights        []string         `json:"insights"`
	Recommendations []string         `json:"recommendations"`
	Skipped         []SkippedPattern `json:"skipped,omitempty"`
	Persisted       bool             `json:"persisted"`
	AnalyzedAt      time.Time        `json:"analyzed_at"`
}

// SkippedPattern explains why a pattern type produced no pattern
type SkippedPattern struct {
	PatternType PatternType `json:"pattern_type"`
	Reason      string      `json:"reason"`
}
