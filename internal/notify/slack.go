package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"MarketSentry/internal/domain/models"
	"MarketSentry/pkg/logger"
)

// SlackChannel posts a rendered alert to an incoming webhook URL.
type SlackChannel struct {
	webhookURL string
	client     *http.Client
	log        *logger.Logger
}

// NewSlackChannel builds the Slack webhook channel. timeout defaults to 5s
// when zero.
func NewSlackChannel(webhookURL string, timeout time.Duration, log *logger.Logger) *SlackChannel {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SlackChannel{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Name implements Channel.
func (s *SlackChannel) Name() string { return "slack" }

// Send implements Channel. A missing webhook URL is a configuration error,
// not a transient failure; it is reported as such rather than silently
// dropped.
func (s *SlackChannel) Send(ctx context.Context, alert *models.Alert) error {
	if s.webhookURL == "" {
		return fmt.Errorf("slack channel: no webhook url configured")
	}

	payload := map[string]string{"text": renderAlertMessage(alert)}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}

	if s.log != nil {
		s.log.Info("slack alert delivered", logger.String("alert_id", alert.ID), logger.String("alert_type", alert.AlertType))
	}
	return nil
}

func renderAlertMessage(alert *models.Alert) string {
	var b strings.Builder
	status := "FIRED"
	switch {
	case alert.Escalated:
		status = "ESCALATED"
	case alert.Status == models.AlertResolved:
		status = "RESOLVED"
	}

	fmt.Fprintf(&b, "[%s] %s (%s)\n", status, alert.AlertType, alert.Priority)
	fmt.Fprintf(&b, "Venue: %s  Instrument: %s\n", alert.Venue, alert.Instrument)
	fmt.Fprintf(&b, "Metric %s: %s (threshold %s)\n", alert.TriggerMetric, alert.TriggerValue.String(), alert.TriggerThreshold.String())
	if alert.ZScoreValue != nil {
		fmt.Fprintf(&b, "Z-score: %s\n", alert.ZScoreValue.String())
	}
	fmt.Fprintf(&b, "Triggered at: %s\n", alert.TriggeredAt.UTC().Format(time.RFC3339))
	if alert.ResolvedAt != nil {
		fmt.Fprintf(&b, "Resolved at: %s\n", alert.ResolvedAt.UTC().Format(time.RFC3339))
	}
	return b.String()
}

var _ Channel = (*SlackChannel)(nil)
