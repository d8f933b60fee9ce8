package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhookNotifierSendsPayload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	alert := Alert{RuleID: "r1", RuleName: "error spike", ProjectID: "proj_1", Severity: "critical", Message: "too many errors", EventID: "evt_1", TriggeredAt: time.Now()}

	result := n.Send(context.Background(), alert)

	if !result.Success {
		t.Fatalf("Send() failed: %s", result.Error)
	}
	if got.RuleID != "r1" || got.Message != "too many errors" {
		t.Errorf("payload = %+v, missing expected fields", got)
	}
}

func TestWebhookNotifierReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	result := n.Send(context.Background(), Alert{RuleID: "r1"})

	if result.Success {
		t.Fatal("Send() succeeded, want failure on HTTP 500")
	}
}

func TestWebhookNotifierReportsUnreachableHost(t *testing.T) {
	n := NewWebhookNotifier("http://127.0.0.1:0")
	result := n.Send(context.Background(), Alert{RuleID: "r1"})

	if result.Success {
		t.Fatal("Send() succeeded, want failure on connection error")
	}
	if result.Channel != "webhook" {
		t.Errorf("Channel = %q, want webhook", result.Channel)
	}
}
