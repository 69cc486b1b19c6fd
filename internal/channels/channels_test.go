package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/structuredesk/riskwatch/internal/alert"
)

type nopSink struct{ name string }

func (*nopSink) Send(context.Context, string, *alert.Alert) error { return nil }

func TestRegistryLookup(t *testing.T) {
	fallback := &nopSink{name: "fallback"}
	dedicated := &nopSink{name: "chat"}
	r := NewRegistry(fallback)
	r.Register("chat", dedicated)

	if s, err := r.Get("chat"); err != nil || s != Sink(dedicated) {
		t.Errorf("Get(chat) = %v, %v, want dedicated sink", s, err)
	}
	if s, err := r.Get("voice_call"); err != nil || s != Sink(fallback) {
		t.Errorf("Get(voice_call) = %v, %v, want fallback", s, err)
	}
}

func TestRegistryNoFallback(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.Get("chat"); err == nil {
		t.Error("expected error for unregistered channel without fallback")
	}
}

func TestWebhookSinkSend(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := &alert.Alert{
		AlertID:  "abc",
		Audience: alert.AudienceTrading,
		Priority: alert.PriorityHigh,
	}
	if err := NewWebhookSink(srv.URL).Send(context.Background(), "chat", a); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if got.Channel != "chat" || got.Alert == nil || got.Alert.AlertID != "abc" {
		t.Errorf("payload = %+v, want channel chat and alert abc", got)
	}
}

func TestWebhookSinkRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookSink(srv.URL).Send(context.Background(), "chat", &alert.Alert{AlertID: "abc"})
	if err == nil {
		t.Error("expected error for 502 response")
	}
}
