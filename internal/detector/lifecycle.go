package detector

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"MarketSentry/internal/domain/models"
)

// fireAlert mints a new Alert for a condition that has just satisfied every
// gate in the evaluation contract. This is the pending → active transition;
// the detector never holds an alert in a separate pending state once all
// gates pass, since persistence already gated the "pending(persisting)"
// window via the persistence cell.
func fireAlert(def models.AlertDefinition, threshold models.Threshold, sample models.MetricSample, now time.Time) *models.Alert {
	priority := def.DefaultPriority
	if threshold.PriorityOverride != nil {
		priority = *threshold.PriorityOverride
	}
	return &models.Alert{
		ID:               uuid.NewString(),
		AlertType:        def.AlertType,
		Status:           models.AlertActive,
		Priority:         priority,
		Severity:         def.DefaultSeverity,
		Venue:            sample.Venue,
		Instrument:       sample.Instrument,
		TriggerMetric:    sample.MetricName,
		TriggerValue:     sample.Value,
		TriggerThreshold: threshold.PrimaryThreshold,
		Comparison:       def.Comparison,
		ZScoreValue:      sample.ZScore,
		ZScoreThreshold:  threshold.ZScoreThreshold,
		TriggeredAt:      now,
		PeakValue:        sample.Value,
		PeakAt:           now,
		Context:          map[string]string{},
	}
}

// resolveAlert implements the active → resolved transition.
func resolveAlert(alert *models.Alert, now time.Time, reason models.ResolutionType, value *decimal.Decimal) {
	alert.Status = models.AlertResolved
	alert.ResolvedAt = &now
	alert.DurationSeconds = now.Sub(alert.TriggeredAt).Seconds()
	alert.ResolutionType = &reason
	alert.ResolutionValue = value
}

// escalateAlert implements the active → escalated transition. The original
// priority is retained so downstream consumers can show "P2 escalated to
// P1" rather than losing the alert's starting severity.
func escalateAlert(alert *models.Alert, targetPriority models.Priority, now time.Time) {
	original := alert.Priority
	alert.OriginalPriority = &original
	alert.Priority = targetPriority
	alert.Escalated = true
	alert.EscalatedAt = &now
}
