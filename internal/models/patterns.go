package models

import "time"

// PatternType is the fixed taxonomy of cross-domain relationships
type PatternType string

const (
	PatternSleepPerformance PatternType = "sleep_performance"
	PatternTrainingRecovery PatternType = "training_recovery"
	PatternStressSpending   PatternType = "stress_spending"
	PatternMeetingRecovery  PatternType = "meeting_recovery"
	PatternHRVPerformance   PatternType = "hrv_performance"
)

// ValidationStatus tracks external confirmation of a pattern
type ValidationStatus string

const (
	ValidationPending     ValidationStatus = "pending"
	ValidationMonitoring  ValidationStatus = "monitoring"
	ValidationValidated   ValidationStatus = "validated"
	ValidationInvalidated ValidationStatus = "invalidated"
)

// MetricDirection is the side of a threshold that matters for a metric
type MetricDirection string

const (
	DirectionHigher MetricDirection = "higher"
	DirectionLower  MetricDirection = "lower"
)

// TriggerCondition compares a live sample against a trigger threshold
type TriggerCondition string

const (
	ConditionBelow TriggerCondition = "below"
	ConditionAbove TriggerCondition = "above"
)

// Severity of a fired trigger
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// PatternMetric describes one side of a correlation pattern
type PatternMetric struct {
	Name      string          `json:"name"`
	Source    string          `json:"source"`
	Threshold float64         `json:"threshold"`
	Direction MetricDirection `json:"direction"`
}

// CorrelationStats holds the statistical summary of a pattern.
// Strength is always within [-1, 1] and Confidence within [0, 100].
type CorrelationStats struct {
	Strength   float64 `json:"strength"`
	Confidence float64 `json:"confidence"`
	SampleSize int     `json:"sample_size"`
	PValue     float64 `json:"p_value"`
	RSquared   float64 `json:"r_squared"`
}

// TimeRelationship describes lag and cooldown window in hours
type TimeRelationship struct {
	LagHours    int    `json:"lag_hours"`
	WindowHours int    `json:"window_hours"`
	Periodicity string `json:"periodicity"`
}

// Trigger fires an action when the primary metric crosses its threshold
type Trigger struct {
	Condition TriggerCondition `json:"condition"`
	Threshold float64          `json:"threshold"`
	Action    string           `json:"action"`
	Severity  Severity         `json:"severity"`
}

// Matches reports whether value satisfies the trigger condition
func (t Trigger) Matches(value float64) bool {
	switch t.Condition {
	case ConditionBelow:
		return value < t.Threshold
	case ConditionAbove:
		return value > t.Threshold
	default:
		return false
	}
}

// PatternOutcome is one recorded prediction outcome for a pattern
type PatternOutcome struct {
	Date      time.Time `json:"date"`
	Predicted float64   `json:"predicted"`
	Actual    float64   `json:"actual"`
	Accuracy  float64   `json:"accuracy"`
}

// CorrelationPattern is a persisted, scored relationship between two metrics
type CorrelationPattern struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	PatternType      PatternType      `json:"pattern_type"`
	PrimaryMetric    PatternMetric    `json:"primary_metric"`
	SecondaryMetric  PatternMetric    `json:"secondary_metric"`
	Correlation      CorrelationStats `json:"correlation"`
	TimeRelationship TimeRelationship `json:"time_relationship"`
	Triggers         []Trigger        `json:"triggers"`
	Outcomes         []PatternOutcome `json:"outcomes"`
	SuccessRate      float64          `json:"success_rate"`
	IsActive         bool             `json:"is_active"`
	LastTriggered    *time.Time       `json:"last_triggered,omitempty"`
	TriggerCount     int              `json:"trigger_count"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	DiscoveredAt     time.Time        `json:"discovered_at"`
	LastValidated    time.Time        `json:"last_validated"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TriggerEvent is emitted when a pattern trigger fires
type TriggerEvent struct {
	PatternID   string      `json:"pattern_id"`
	PatternType PatternType `json:"pattern_type"`
	Trigger     Trigger     `json:"trigger"`
	MetricName  string      `json:"metric_name"`
	Value       float64     `json:"value"`
	FiredAt     time.Time   `json:"fired_at"`
}

// PatternSummary is the public view of a pattern. It omits raw statistics
// such as p-values that must not reach end users.
type PatternSummary struct {
	ID               string           `json:"id"`
	PatternType      PatternType      `json:"pattern_type"`
	PrimaryMetric    string           `json:"primary_metric"`
	SecondaryMetric  string           `json:"secondary_metric"`
	Strength         float64          `json:"strength"`
	Confidence       float64          `json:"confidence"`
	SampleSize       int              `json:"sample_size"`
	SuccessRate      float64          `json:"success_rate"`
	IsActive         bool             `json:"is_active"`
	TriggerCount     int              `json:"trigger_count"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	LastValidated    time.Time        `json:"last_validated"`
}

// Summary converts a pattern to its public view
func (p CorrelationPattern) Summary() PatternSummary {
	return PatternSummary{
		ID:               p.ID,
		PatternType:      p.PatternType,
		PrimaryMetric:    p.PrimaryMetric.Name,
		SecondaryMetric:  p.SecondaryMetric.Name,
		Strength:         p.Correlation.Strength,
		Confidence:       p.Correlation.Confidence,
		SampleSize:       p.Correlation.SampleSize,
		SuccessRate:      p.SuccessRate,
		IsActive:         p.IsActive,
		TriggerCount:     p.TriggerCount,
		ValidationStatus: p.ValidationStatus,
		LastValidated:    p.LastValidated,
	}
}
