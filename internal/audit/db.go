package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/structuredesk/riskwatch/internal/metrics"
)

// EntryWriter persists audit entries. Implemented by the storage layer.
type EntryWriter interface {
	InsertAuditEntry(ctx context.Context, e *Entry) error
}

// DBLog writes audit entries to the database, falling back to the local
// logger when the write fails. The pipeline never blocks on the audit tap.
type DBLog struct {
	writer EntryWriter
	inner  *LoggerLog
	log    *logrus.Logger
}

// NewDBLog creates a DBLog.
func NewDBLog(w EntryWriter, log *logrus.Logger) *DBLog {
	return &DBLog{writer: w, inner: NewLoggerLog(log), log: log}
}

// Record persists the entry best-effort and always logs it.
func (d *DBLog) Record(ctx context.Context, e *Entry) {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	d.inner.Record(ctx, e)
	if err := d.writer.InsertAuditEntry(ctx, e); err != nil {
		metrics.AuditWriteFailures.Inc()
		d.log.WithError(err).WithField("event_id", e.EventID).Warn("Audit write failed")
	}
}
