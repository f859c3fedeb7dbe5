package detector

import (
	"context"
	"time"

	"MarketSentry/internal/domain/models"
	"MarketSentry/pkg/logger"
)

// scanEscalations applies the active → escalated transition to every
// active, non-escalated alert whose definition has escalation enabled and
// has been active long enough. Called once per tick from Run's single
// ticker; never a per-alert timer.
func (d *Detector) scanEscalations(ctx context.Context, now time.Time) {
	for _, alert := range d.activeAlerts {
		if alert.Escalated || alert.Status != models.AlertActive {
			continue
		}
		def, ok := d.registry.Definition(alert.AlertType)
		if !ok || def.EscalationSeconds <= 0 {
			continue
		}
		if now.Sub(alert.TriggeredAt) < def.EscalationSeconds {
			continue
		}
		targetPriority := models.PriorityP1
		if targetDef, ok := d.registry.Definition(def.EscalatesTo); ok {
			targetPriority = targetDef.DefaultPriority
		}
		escalateAlert(alert, targetPriority, now)
		if d.log != nil {
			d.log.Warn("alert escalated",
				logger.String("alert_id", alert.ID),
				logger.String("alert_type", alert.AlertType),
				logger.String("priority", string(alert.Priority)),
			)
		}
		d.onEscalated(ctx, alert)
	}
}
