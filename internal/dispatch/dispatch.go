package dispatch

import (
	"context"
	"time"
)

// Status is the lifecycle state of one (alert, channel) delivery.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusDelivered Status = "DELIVERED"
	StatusFailed    Status = "FAILED"
	StatusEscalated Status = "ESCALATED"
)

// Record tracks delivery of one alert over one channel. Owned exclusively by
// the router; mutated only by its retry and escalation logic.
type Record struct {
	AlertID       string
	Channel       string
	Attempts      int
	LastAttemptAt time.Time
	Status        Status
	Error         string
}

// RecordStore persists distribution records. Writes are best-effort: a store
// failure never blocks delivery.
type RecordStore interface {
	SaveRecord(ctx context.Context, rec *Record) error
}

// Policy is the retry policy applied per channel.
type Policy struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// DefaultPolicy is used when no policy is configured.
var DefaultPolicy = Policy{MaxAttempts: 3, BackoffBase: 500 * time.Millisecond}
