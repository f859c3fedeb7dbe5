// Package notify implements the abstract outbound dispatcher described by
// spec section 6: dispatch(alert, channels). The core never knows about a
// specific transport; it only knows the Dispatcher interface defined in
// internal/domain/repository.
package notify

import (
	"context"
	"fmt"

	"MarketSentry/internal/domain/models"
	"MarketSentry/pkg/logger"
)

// Channel delivers one rendered alert to one outbound transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert *models.Alert) error
}

// MultiDispatcher fans an alert out to every named channel that has a
// registered Channel implementation. An alert definition naming a channel
// with no registered implementation is logged and otherwise ignored —
// a missing Slack webhook must never block the console channel from firing.
type MultiDispatcher struct {
	channels map[string]Channel
	log      *logger.Logger
}

// NewMultiDispatcher builds a dispatcher from its registered channels.
func NewMultiDispatcher(log *logger.Logger, channels ...Channel) *MultiDispatcher {
	byName := make(map[string]Channel, len(channels))
	for _, c := range channels {
		byName[c.Name()] = c
	}
	return &MultiDispatcher{channels: byName, log: log}
}

// Dispatch implements repository.Dispatcher.
func (d *MultiDispatcher) Dispatch(ctx context.Context, alert *models.Alert, channelNames []string) error {
	var firstErr error
	for _, name := range channelNames {
		ch, ok := d.channels[name]
		if !ok {
			if d.log != nil {
				d.log.Warn("no notification channel registered", logger.String("channel", name), logger.String("alert_id", alert.ID))
			}
			continue
		}
		if err := ch.Send(ctx, alert); err != nil {
			if d.log != nil {
				d.log.Error("notification channel send failed", logger.Error(err), logger.String("channel", name), logger.String("alert_id", alert.ID))
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("channel %s: %w", name, err)
			}
			continue
		}
	}
	return firstErr
}
