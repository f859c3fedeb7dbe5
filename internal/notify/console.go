package notify

import (
	"context"

	"MarketSentry/internal/domain/models"
	"MarketSentry/pkg/logger"
)

// ConsoleChannel renders an alert as a structured log line. It never fails,
// so it is always safe to list as a fallback channel in an alert definition.
type ConsoleChannel struct {
	log *logger.Logger
}

// NewConsoleChannel builds the console channel.
func NewConsoleChannel(log *logger.Logger) *ConsoleChannel {
	return &ConsoleChannel{log: log}
}

// Name implements Channel.
func (c *ConsoleChannel) Name() string { return "console" }

// Send implements Channel.
func (c *ConsoleChannel) Send(_ context.Context, alert *models.Alert) error {
	fields := []logger.Field{
		logger.String("alert_id", alert.ID),
		logger.String("alert_type", alert.AlertType),
		logger.String("status", string(alert.Status)),
		logger.String("priority", string(alert.Priority)),
		logger.String("venue", alert.Venue),
		logger.String("instrument", alert.Instrument),
		logger.String("metric", alert.TriggerMetric),
		logger.String("trigger_value", alert.TriggerValue.String()),
		logger.String("trigger_threshold", alert.TriggerThreshold.String()),
	}
	if alert.ZScoreValue != nil {
		fields = append(fields, logger.String("zscore_value", alert.ZScoreValue.String()))
	}
	if alert.Escalated {
		fields = append(fields, logger.Bool("escalated", true))
	}

	switch alert.Priority {
	case models.PriorityP1:
		c.log.Error("alert", fields...)
	case models.PriorityP2:
		c.log.Warn("alert", fields...)
	default:
		c.log.Info("alert", fields...)
	}
	return nil
}

var _ Channel = (*ConsoleChannel)(nil)
