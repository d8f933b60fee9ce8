package notifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatNotifierSendsBlocks(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n := NewChatNotifier(srv.URL)
	result := n.Send(context.Background(), Alert{RuleID: "r1", RuleName: "latency spike", Severity: "warning", ProjectID: "proj_1", Message: "p99 latency high", EventID: "evt_1"})

	if !result.Success {
		t.Fatalf("Send() failed: %s", result.Error)
	}
	if !hit {
		t.Fatal("webhook endpoint was not called")
	}
}

func TestChatNotifierReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewChatNotifier(srv.URL)
	result := n.Send(context.Background(), Alert{RuleID: "r1"})

	if result.Success {
		t.Fatal("Send() succeeded, want failure on HTTP 500")
	}
}

func TestChatSeverityEmoji(t *testing.T) {
	cases := map[string]string{"critical": "🚨", "warning": "⚠️", "info": "ℹ️", "unknown": "📢"}
	for severity, want := range cases {
		if got := chatSeverityEmoji(severity); got != want {
			t.Errorf("chatSeverityEmoji(%q) = %q, want %q", severity, got, want)
		}
	}
}
