package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Status is the terminal state recorded for an event.
type Status string

const (
	StatusProcessed             Status = "PROCESSED"
	StatusQuarantined           Status = "QUARANTINED"
	StatusRepositoryUnavailable Status = "REPOSITORY_UNAVAILABLE"
)

// Entry is one append-only audit record. Every event that enters the pipeline
// produces exactly one terminal entry; there is no silent failure path.
type Entry struct {
	EventID         string
	Status          Status
	Reason          string
	Source          string
	Category        string
	Severity        string
	NeedsReview     bool
	Degraded        bool
	CandidateTrades int
	ImpactedTrades  int
	AlertCount      int
	RecordedAt      time.Time
}

// Log is the write-only audit boundary the pipeline taps at each stage.
// Implementations are best-effort: write failures are logged locally and never
// propagate into event processing.
type Log interface {
	Record(ctx context.Context, e *Entry)
}

// LoggerLog writes audit entries to the structured logger only. Used when no
// database is configured and as the inner fallback of the DB-backed log.
type LoggerLog struct {
	log *logrus.Logger
}

// NewLoggerLog creates a LoggerLog.
func NewLoggerLog(log *logrus.Logger) *LoggerLog {
	return &LoggerLog{log: log}
}

// Record logs the entry.
func (l *LoggerLog) Record(_ context.Context, e *Entry) {
	l.log.WithFields(logrus.Fields{
		"event_id":         e.EventID,
		"status":           e.Status,
		"reason":           e.Reason,
		"category":         e.Category,
		"severity":         e.Severity,
		"needs_review":     e.NeedsReview,
		"degraded":         e.Degraded,
		"candidate_trades": e.CandidateTrades,
		"impacted_trades":  e.ImpactedTrades,
		"alert_count":      e.AlertCount,
	}).Info("Audit entry")
}
