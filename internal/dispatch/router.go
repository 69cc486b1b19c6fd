package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/structuredesk/riskwatch/internal/alert"
	"github.com/structuredesk/riskwatch/internal/channels"
	"github.com/structuredesk/riskwatch/internal/metrics"
	"github.com/structuredesk/riskwatch/internal/rules"
)

// Router maps (audience, priority) to an ordered channel list and drives
// delivery with retry, escalation and per-alert deduplication.
type Router struct {
	rules  *rules.Provider
	sinks  *channels.Registry
	store  RecordStore
	policy Policy
	log    *logrus.Logger

	// dedup state keyed by alert_id|channel; guards against duplicate sends
	// under concurrent retries of the same alert.
	seen sync.Map // string -> *entry

	sleep func(ctx context.Context, d time.Duration) error
}

type entry struct {
	mu  sync.Mutex
	rec *Record
}

// NewRouter creates a Router. store may be nil for in-memory-only operation.
func NewRouter(r *rules.Provider, sinks *channels.Registry, store RecordStore, policy Policy, log *logrus.Logger) *Router {
	if policy.MaxAttempts <= 0 {
		policy = DefaultPolicy
	}
	return &Router{
		rules:  r,
		sinks:  sinks,
		store:  store,
		policy: policy,
		log:    log,
		sleep:  sleepCtx,
	}
}

// Route delivers an alert over every channel configured for its audience and
// priority. A repeat request for an (alert, channel) pair already PENDING or
// DELIVERED is a no-op. Returns the records touched by this call.
func (r *Router) Route(ctx context.Context, a *alert.Alert) []*Record {
	ruleset := r.rules.Current()
	key := rules.RouteKey(string(a.Audience), string(a.Priority))

	channelList := ruleset.Routing.Table[key]
	if len(channelList) == 0 {
		// A hole in the routing table must not drop a risk signal.
		r.log.WithField("route_key", key).Warn("No channels configured, falling back to log channel")
		channelList = []string{"log"}
	}

	var records []*Record
	anyFailed := false

	for _, ch := range channelList {
		rec, fresh := r.claim(a.AlertID, ch)
		if !fresh {
			records = append(records, rec)
			continue
		}
		if !r.deliver(ctx, rec, ch, a, r.policy.MaxAttempts) {
			anyFailed = true
		}
		records = append(records, rec)
	}

	if anyFailed {
		records = append(records, r.escalate(ctx, ruleset, key, a)...)
	}

	return records
}

// claim returns the dedup entry's record for (alertID, channel). fresh is
// false when a previous route already delivered or is delivering it.
func (r *Router) claim(alertID, channel string) (*Record, bool) {
	key := alertID + "|" + channel
	e := &entry{rec: &Record{AlertID: alertID, Channel: channel, Status: StatusPending}}
	actual, loaded := r.seen.LoadOrStore(key, e)
	e = actual.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()
	if loaded {
		switch e.rec.Status {
		case StatusPending, StatusDelivered:
			metrics.RecordDelivery(channel, "deduplicated", 0)
			return e.rec, false
		}
		// FAILED or ESCALATED: a fresh route request may retry the channel.
		e.rec.Status = StatusPending
	}
	return e.rec, true
}

// deliver attempts a channel up to maxAttempts times with exponential backoff.
// Returns true on success.
func (r *Router) deliver(ctx context.Context, rec *Record, channel string, a *alert.Alert, maxAttempts int) bool {
	e := r.entryFor(rec)
	e.mu.Lock()
	defer e.mu.Unlock()

	sink, err := r.sinks.Get(channel)
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
		rec.LastAttemptAt = time.Now().UTC()
		r.persist(ctx, rec)
		metrics.RecordDelivery(channel, "failed", 0)
		return false
	}

	backoff := r.policy.BackoffBase
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		rec.Attempts++
		rec.LastAttemptAt = time.Now().UTC()

		err = sink.Send(ctx, channel, a)
		if err == nil {
			rec.Status = StatusDelivered
			rec.Error = ""
			r.persist(ctx, rec)
			metrics.RecordDelivery(channel, "delivered", rec.Attempts)
			return true
		}

		rec.Error = err.Error()
		r.log.WithError(err).WithFields(logrus.Fields{
			"alert_id": rec.AlertID,
			"channel":  channel,
			"attempt":  attempt,
		}).Warn("Channel delivery failed")

		if attempt < maxAttempts {
			if r.sleep(ctx, backoff) != nil {
				break
			}
			backoff *= 2
		}
	}

	rec.Status = StatusFailed
	r.persist(ctx, rec)
	metrics.RecordDelivery(channel, "failed", rec.Attempts)
	return false
}

// escalate attempts the next-higher-urgency channel set once after a primary
// channel exhausted its retries. Escalation records carry ESCALATED status so
// the failure path stays discoverable; nothing is silently dropped.
func (r *Router) escalate(ctx context.Context, ruleset *rules.Rules, key string, a *alert.Alert) []*Record {
	escChannels := ruleset.Routing.Escalation[key]
	if len(escChannels) == 0 {
		return nil
	}
	metrics.Escalations.WithLabelValues(string(a.Audience), string(a.Priority)).Inc()

	var records []*Record
	for _, ch := range escChannels {
		rec, fresh := r.claim(a.AlertID, ch)
		if !fresh {
			records = append(records, rec)
			continue
		}

		e := r.entryFor(rec)
		e.mu.Lock()
		rec.Attempts++
		rec.LastAttemptAt = time.Now().UTC()
		rec.Status = StatusEscalated

		sink, err := r.sinks.Get(ch)
		if err == nil {
			err = sink.Send(ctx, ch, a)
		}
		if err != nil {
			rec.Error = err.Error()
			r.log.WithError(err).WithFields(logrus.Fields{
				"alert_id": rec.AlertID,
				"channel":  ch,
			}).Error("Escalation delivery failed")
			metrics.RecordDelivery(ch, "failed", rec.Attempts)
		} else {
			metrics.RecordDelivery(ch, "delivered", rec.Attempts)
		}
		r.persist(ctx, rec)
		e.mu.Unlock()

		records = append(records, rec)
	}
	return records
}

func (r *Router) entryFor(rec *Record) *entry {
	key := rec.AlertID + "|" + rec.Channel
	actual, _ := r.seen.LoadOrStore(key, &entry{rec: rec})
	return actual.(*entry)
}

func (r *Router) persist(ctx context.Context, rec *Record) {
	if r.store == nil {
		return
	}
	snapshot := *rec
	if err := r.store.SaveRecord(ctx, &snapshot); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"alert_id": rec.AlertID,
			"channel":  rec.Channel,
		}).Warn("Distribution record persist failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
