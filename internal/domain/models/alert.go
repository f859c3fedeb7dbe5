package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Priority ranks an alert's urgency. P1 is most severe.
type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// Comparison is the primary-threshold comparison operator for an alert
// definition. abs_gt/abs_lt are evaluated with strict inequality, uniformly.
type Comparison string

const (
	ComparisonGT     Comparison = "gt"
	ComparisonLT     Comparison = "lt"
	ComparisonAbsGT  Comparison = "abs_gt"
	ComparisonAbsLT  Comparison = "abs_lt"
)

// ResolutionType records how an alert reached the resolved state.
type ResolutionType string

const (
	ResolutionAuto    ResolutionType = "auto"
	ResolutionTimeout ResolutionType = "timeout"
	ResolutionManual  ResolutionType = "manual"
)

// AlertDefinition is the static description of one alert type, loaded once
// from configuration.
type AlertDefinition struct {
	AlertType          string
	MetricName         string
	DefaultPriority    Priority
	DefaultSeverity    string
	Comparison         Comparison
	RequiresZScore     bool
	PersistenceSeconds time.Duration
	ThrottleSeconds    time.Duration
	EscalationSeconds  time.Duration // zero means escalation disabled
	EscalatesTo        string        // target alert-type, only meaningful if EscalationSeconds > 0
	Channels           []string      // dispatcher channel identifiers, e.g. "console", "slack"
	Enabled            bool
}

// Threshold resolves an AlertDefinition's numeric trigger for one instrument,
// or for the wildcard "*" fallback.
type Threshold struct {
	AlertType        string
	Instrument       string // "*" for wildcard
	PrimaryThreshold decimal.Decimal
	ZScoreThreshold  *decimal.Decimal
	PriorityOverride *Priority
	Enabled          bool
}

// AlertStatus is the lifecycle state of an Alert.
type AlertStatus string

const (
	AlertPending  AlertStatus = "pending"
	AlertActive   AlertStatus = "active"
	AlertResolved AlertStatus = "resolved"
)

// Alert is one fired/firing condition-episode. An alert id is stable for the
// duration of a single episode; re-triggering after resolution mints a new
// id.
type Alert struct {
	ID               string
	AlertType        string
	Status           AlertStatus
	Priority         Priority
	Severity         string
	Venue            string
	Instrument       string
	TriggerMetric    string
	TriggerValue     decimal.Decimal
	TriggerThreshold decimal.Decimal
	Comparison       Comparison
	ZScoreValue      *decimal.Decimal
	ZScoreThreshold  *decimal.Decimal
	TriggeredAt      time.Time
	AcknowledgedAt   *time.Time
	ResolvedAt       *time.Time
	DurationSeconds  float64
	PeakValue        decimal.Decimal
	PeakAt           time.Time
	Escalated        bool
	EscalatedAt      *time.Time
	OriginalPriority *Priority
	Context          map[string]string
	ResolutionType   *ResolutionType
	ResolutionValue  *decimal.Decimal
}

// ConditionKey identifies the (alert_type, venue, instrument) tuple used by
// persistence cells, the active-alerts map, and the throttle/dedup map.
type ConditionKey struct {
	AlertType  string
	Venue      string
	Instrument string
}

// betterThanPeak reports whether candidate is a worse (more extreme) reading
// than the current peak, under the given comparison semantics.
func betterThanPeak(comparison Comparison, candidate, peak decimal.Decimal) bool {
	switch comparison {
	case ComparisonGT, ComparisonAbsGT:
		return candidate.GreaterThan(peak)
	case ComparisonLT, ComparisonAbsLT:
		return candidate.LessThan(peak)
	default:
		return false
	}
}

// UpdatePeak updates PeakValue/PeakAt if value is worse than the current peak
// under the alert's comparison semantics.
func (a *Alert) UpdatePeak(value decimal.Decimal, at time.Time) {
	compareValue := value
	peakValue := a.PeakValue
	if a.Comparison == ComparisonAbsGT || a.Comparison == ComparisonAbsLT {
		compareValue = value.Abs()
		peakValue = a.PeakValue.Abs()
	}
	if betterThanPeak(a.Comparison, compareValue, peakValue) {
		a.PeakValue = value
		a.PeakAt = at
	}
}
