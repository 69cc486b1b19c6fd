package feed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/structuredesk/riskwatch/internal/config"
	"github.com/structuredesk/riskwatch/internal/event"
)

type memState struct {
	mu   sync.Mutex
	vals map[string]string
}

func (s *memState) GetState(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vals[key], nil
}

func (s *memState) SetState(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vals == nil {
		s.vals = make(map[string]string)
	}
	s.vals[key] = value
	return nil
}

type memSubmitter struct {
	mu       sync.Mutex
	events   []*event.RawEvent
	capacity int // 0 = unlimited
}

func (s *memSubmitter) Submit(raw *event.RawEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capacity > 0 && len(s.events) >= s.capacity {
		return false
	}
	s.events = append(s.events, raw)
	return true
}

func feedServer(t *testing.T, events []event.RawEvent, sinceSeen *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sinceSeen != nil {
			*sinceSeen = r.URL.Query().Get("since")
		}
		if err := json.NewEncoder(w).Encode(events); err != nil {
			t.Errorf("encode events: %v", err)
		}
	}))
}

func testPoller(srv *httptest.Server, state Checkpointer, sub Submitter) *Poller {
	log := logrus.New()
	log.SetOutput(io.Discard)
	client := NewClient(&config.Config{FeedBaseURL: srv.URL, FeedRPS: 100})
	return NewPoller(client, state, sub, time.Minute, log)
}

func TestPollSubmitsAndCheckpoints(t *testing.T) {
	ts := time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC)
	events := []event.RawEvent{
		{EventID: "evt-1", Source: "feed", Timestamp: ts},
		{EventID: "evt-2", Source: "feed", Timestamp: ts.Add(time.Minute)},
	}
	srv := feedServer(t, events, nil)
	defer srv.Close()

	state := &memState{}
	sub := &memSubmitter{}
	p := testPoller(srv, state, sub)

	p.poll(context.Background())

	if len(sub.events) != 2 {
		t.Fatalf("submitted %d events, want 2", len(sub.events))
	}
	want := strconv.FormatInt(ts.Add(time.Minute).Unix(), 10)
	if got := state.vals[checkpointKey]; got != want {
		t.Errorf("checkpoint = %q, want %q", got, want)
	}
}

func TestPollSendsCheckpointAsSince(t *testing.T) {
	var sinceSeen string
	srv := feedServer(t, nil, &sinceSeen)
	defer srv.Close()

	state := &memState{}
	state.SetState(context.Background(), checkpointKey, "1755163800")
	p := testPoller(srv, state, &memSubmitter{})

	p.poll(context.Background())

	if sinceSeen != "1755163800" {
		t.Errorf("since param = %q, want checkpoint value", sinceSeen)
	}
}

func TestPollQueueFullLeavesCheckpointBehind(t *testing.T) {
	ts := time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC)
	events := []event.RawEvent{
		{EventID: "evt-1", Source: "feed", Timestamp: ts},
		{EventID: "evt-2", Source: "feed", Timestamp: ts.Add(time.Minute)},
		{EventID: "evt-3", Source: "feed", Timestamp: ts.Add(2 * time.Minute)},
	}
	srv := feedServer(t, events, nil)
	defer srv.Close()

	state := &memState{}
	sub := &memSubmitter{capacity: 1}
	p := testPoller(srv, state, sub)

	p.poll(context.Background())

	if len(sub.events) != 1 {
		t.Fatalf("submitted %d events, want 1", len(sub.events))
	}
	// Checkpoint covers only what was submitted, so evt-2 and evt-3 are
	// fetched again next poll.
	want := strconv.FormatInt(ts.Unix(), 10)
	if got := state.vals[checkpointKey]; got != want {
		t.Errorf("checkpoint = %q, want %q", got, want)
	}
}

func TestPollUnorderedBatchCheckpointStaysBehindDeferred(t *testing.T) {
	ts := time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC)
	// The batch is not timestamp-ordered: the newest event submits first, then
	// the queue fills and two older events are deferred.
	events := []event.RawEvent{
		{EventID: "evt-newest", Source: "feed", Timestamp: ts.Add(2 * time.Minute)},
		{EventID: "evt-oldest", Source: "feed", Timestamp: ts},
		{EventID: "evt-mid", Source: "feed", Timestamp: ts.Add(time.Minute)},
	}
	srv := feedServer(t, events, nil)
	defer srv.Close()

	state := &memState{}
	sub := &memSubmitter{capacity: 1}
	p := testPoller(srv, state, sub)

	p.poll(context.Background())

	if len(sub.events) != 1 {
		t.Fatalf("submitted %d events, want 1", len(sub.events))
	}
	// The checkpoint must stay strictly below the oldest deferred event even
	// though a newer event was submitted, or the deferred ones would never be
	// fetched again.
	want := strconv.FormatInt(ts.Add(-time.Second).Unix(), 10)
	if got := state.vals[checkpointKey]; got != want {
		t.Errorf("checkpoint = %q, want %q", got, want)
	}
}

func TestPollFetchErrorKeepsCheckpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	state := &memState{}
	state.SetState(context.Background(), checkpointKey, "1755163800")
	sub := &memSubmitter{}
	p := testPoller(srv, state, sub)

	p.poll(context.Background())

	if len(sub.events) != 0 {
		t.Error("failed fetch must not submit events")
	}
	if got := state.vals[checkpointKey]; got != "1755163800" {
		t.Errorf("checkpoint = %q, want unchanged", got)
	}
}
