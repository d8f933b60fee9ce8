package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookNotifier posts a JSON payload of the alert fields to a
// configured URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a WebhookNotifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Type      string    `json:"type"`
	RuleID    string    `json:"rule_id"`
	RuleName  string    `json:"rule_name"`
	ProjectID string    `json:"project_id"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type,omitempty"`
	Triggered time.Time `json:"triggered_at"`
}

func (n *WebhookNotifier) Send(ctx context.Context, alert Alert) Result {
	payload := webhookPayload{
		Type:      "alert",
		RuleID:    alert.RuleID,
		RuleName:  alert.RuleName,
		ProjectID: alert.ProjectID,
		Severity:  alert.Severity,
		Message:   alert.Message,
		EventID:   alert.EventID,
		EventType: alert.EventType,
		Triggered: alert.TriggeredAt,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Channel: "webhook", Error: fmt.Sprintf("marshaling payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return Result{Channel: "webhook", Error: fmt.Sprintf("building request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return Result{Channel: "webhook", Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return Result{Channel: "webhook", Error: fmt.Sprintf("http %d", resp.StatusCode)}
	}

	return Result{Success: true, Channel: "webhook"}
}

func (n *WebhookNotifier) Close() error { return nil }
