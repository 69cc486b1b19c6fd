package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/structuredesk/riskwatch/internal/alert"
)

// Sink delivers an alert over one named channel. Implementations must return
// a non-nil error on failure so the router's retry logic can distinguish
// outcomes.
type Sink interface {
	Send(ctx context.Context, channel string, a *alert.Alert) error
}

// Registry maps channel names to sinks. Channels without a dedicated sink fall
// back to the default sink when one is set.
type Registry struct {
	mu       sync.RWMutex
	sinks    map[string]Sink
	fallback Sink
}

// NewRegistry creates a Registry with an optional fallback sink.
func NewRegistry(fallback Sink) *Registry {
	return &Registry{
		sinks:    make(map[string]Sink),
		fallback: fallback,
	}
}

// Register binds a sink to a channel name.
func (r *Registry) Register(channel string, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[channel] = s
}

// Get returns the sink for a channel, or the fallback.
func (r *Registry) Get(channel string) (Sink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sinks[channel]; ok {
		return s, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("no sink registered for channel %q", channel)
}
