package channels

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/structuredesk/riskwatch/internal/alert"
)

// LogSink writes alerts to the logger. Default sink in development and the
// fallback for channels without a concrete integration.
type LogSink struct {
	log *logrus.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log *logrus.Logger) *LogSink {
	return &LogSink{log: log}
}

// Send logs the alert.
func (s *LogSink) Send(ctx context.Context, channel string, a *alert.Alert) error {
	s.log.WithFields(logrus.Fields{
		"channel":  channel,
		"alert_id": a.AlertID,
		"event_id": a.EventID,
		"trade_id": a.TradeID,
		"audience": a.Audience,
		"priority": a.Priority,
		"summary":  a.Content.Summary,
	}).Info("Alert delivered")
	return nil
}
