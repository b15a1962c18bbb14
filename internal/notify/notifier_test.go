package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"log-triage/internal/types"
)

type recorder struct {
	mu       sync.Mutex
	contents []string
}

func (r *recorder) handler(t *testing.T, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var msg struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		r.mu.Lock()
		r.contents = append(r.contents, msg.Content)
		r.mu.Unlock()
		w.WriteHeader(status)
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contents)
}

func TestNotifier_Send(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(t, http.StatusNoContent))
	defer srv.Close()

	n := NewNotifier(srv.URL, nil, 10, zerolog.Nop())
	err := n.Send(context.Background(), types.Alert{Rule: types.RuleSQLiPattern, IP: "6.6.6.6", Path: "/x?id=1 union select"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if rec.count() != 1 {
		t.Fatalf("Expected 1 delivery, got %d", rec.count())
	}
	if !strings.Contains(rec.contents[0], "sqli_pattern") || !strings.Contains(rec.contents[0], "6.6.6.6") {
		t.Errorf("Unexpected message %q", rec.contents[0])
	}
}

func TestNotifier_SendReportsHTTPErrors(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(t, http.StatusInternalServerError))
	defer srv.Close()

	n := NewNotifier(srv.URL, nil, 10, zerolog.Nop())
	if err := n.Send(context.Background(), types.Alert{Rule: types.RuleXSSPattern, IP: "1.1.1.1"}); err == nil {
		t.Fatal("Expected error for 500 response")
	}
}

func TestNotifier_AllowlistAndThrottle(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(t, http.StatusOK))
	defer srv.Close()

	n := NewNotifier(srv.URL, []string{"10.0.0.1"}, 2, zerolog.Nop())

	if n.Notify(types.Alert{Rule: types.RuleHighRequestRate, IP: "10.0.0.1"}) {
		t.Error("Expected allowlisted IP to be skipped")
	}

	sent := 0
	for i := 0; i < 5; i++ {
		if n.Notify(types.Alert{Rule: types.RuleHighRequestRate, IP: "10.0.0.2", Count: 100 + i, WindowSeconds: 60}) {
			sent++
		}
	}
	n.Wait()

	if sent != 2 {
		t.Errorf("Expected burst of 2 deliveries, got %d", sent)
	}
	if rec.count() != 2 {
		t.Errorf("Expected webhook to receive 2 messages, got %d", rec.count())
	}
}

func TestNotifier_NoWebhook(t *testing.T) {
	n := NewNotifier("", nil, 10, zerolog.Nop())
	if n.Notify(types.Alert{Rule: types.RuleXSSPattern, IP: "1.1.1.1"}) {
		t.Error("Expected no delivery without a webhook")
	}
}
