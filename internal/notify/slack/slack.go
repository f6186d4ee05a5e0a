// Package slack posts alert lifecycle events to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/haul/internal/alert"
)

const (
	maxDescriptionLen = 300
	httpTimeout       = 10 * time.Second
)

// Notifier sends lifecycle events to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

var _ alert.Notifier = (*Notifier)(nil)

// New creates a new Slack notifier. If webhookURL is empty, Notify is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// Notify posts ev to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Notify(ctx context.Context, ev *alert.Event) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(ev))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "slack notification sent", "alert_id", ev.Alert.ID, "status", ev.Alert.Status)
	return nil
}

func buildMessage(ev *alert.Event) map[string]any {
	return map[string]any{
		"text": summary(ev),
		"blocks": []map[string]any{
			headerBlock(ev),
			fieldsBlock(ev),
			descriptionBlock(ev),
			contextBlock(ev),
		},
	}
}

// summary is the plain-text fallback shown in notifications.
func summary(ev *alert.Event) string {
	return fmt.Sprintf("%s pickup %s: %s -> %s", ev.Alert.WasteType, ev.Alert.ID, ev.From, ev.Alert.Status)
}

func headerBlock(ev *alert.Event) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s Pickup %s", statusEmoji(ev.Alert.Status), title(ev.Alert.Status)),
		},
	}
}

func fieldsBlock(ev *alert.Event) map[string]any {
	a := &ev.Alert
	collector := a.ClaimantID
	if collector == "" {
		collector = "-"
	}
	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Status:* %s → %s", ev.From, a.Status)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Waste:* %s", a.WasteType)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Time slot:* %s", a.TimeSlot)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Collector:* %s", collector)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Address:* %s", a.Address)},
	}
	if a.WeightKg > 0 {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Weight:* %.1f kg", a.WeightKg)})
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func descriptionBlock(ev *alert.Event) map[string]any {
	text := truncate(ev.Alert.Description, maxDescriptionLen)
	if text == "" {
		text = "_No description._"
	}
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": text,
		},
	}
}

func contextBlock(ev *alert.Event) map[string]any {
	ts := ev.At
	if ts.IsZero() {
		ts = ev.Alert.UpdatedAt
	}
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("haul • alert %s • %s", ev.Alert.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

func title(s alert.Status) string {
	switch s {
	case alert.StatusClaimed:
		return "Claimed"
	case alert.StatusInTransit:
		return "In Transit"
	case alert.StatusCompleted:
		return "Completed"
	case alert.StatusCancelled:
		return "Cancelled"
	default:
		return "Updated"
	}
}

func statusEmoji(s alert.Status) string {
	switch s {
	case alert.StatusCompleted:
		return "\U0001f7e2" // green circle
	case alert.StatusCancelled:
		return "\U0001f534" // red circle
	default:
		return "\U0001f7e1" // yellow circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
