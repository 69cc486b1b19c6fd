package feed

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/structuredesk/riskwatch/internal/event"
)

const checkpointKey = "feed_last_polled_ts"

// Submitter accepts raw events into the pipeline. Submit reports false when
// the queue is full.
type Submitter interface {
	Submit(raw *event.RawEvent) bool
}

// Checkpointer persists the poll high-water mark between restarts.
type Checkpointer interface {
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
}

// Poller drives the pull ingress: it periodically fetches new raw events from
// the upstream feed and submits them to the pipeline.
type Poller struct {
	client   *Client
	state    Checkpointer
	pipeline Submitter
	interval time.Duration
	log      *logrus.Logger
}

// NewPoller creates a Poller.
func NewPoller(client *Client, state Checkpointer, pipeline Submitter, interval time.Duration, log *logrus.Logger) *Poller {
	return &Poller{
		client:   client,
		state:    state,
		pipeline: pipeline,
		interval: interval,
		log:      log,
	}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ticker.C:
			p.poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	since := p.loadCheckpoint(ctx)

	events, err := p.client.FetchEvents(ctx, since)
	if err != nil {
		p.log.WithError(err).Error("Feed poll failed")
		return
	}

	var submitted int
	newest := since
	var deferred time.Time // earliest timestamp among unsubmitted events
	for i := range events {
		raw := &events[i]
		if !p.pipeline.Submit(raw) {
			// Queue full: defer the rest of the batch to the next poll.
			for j := i; j < len(events); j++ {
				if deferred.IsZero() || events[j].Timestamp.Before(deferred) {
					deferred = events[j].Timestamp
				}
			}
			p.log.WithField("dropped_from", raw.EventID).Warn("Pipeline queue full, deferring remaining feed events")
			break
		}
		submitted++
		if raw.Timestamp.After(newest) {
			newest = raw.Timestamp
		}
	}

	if submitted > 0 {
		// The feed gives no ordering guarantee inside a batch, so the
		// checkpoint must stay strictly below every deferred event or the next
		// poll would skip them. Refetching already-submitted events is safe:
		// the pipeline dedupes deliveries by alert id.
		if !deferred.IsZero() && !newest.Before(deferred) {
			newest = deferred.Add(-time.Second)
		}
		p.log.WithFields(logrus.Fields{
			"fetched":   len(events),
			"submitted": submitted,
		}).Info("Feed poll complete")
		p.saveCheckpoint(ctx, newest)
	}
}

func (p *Poller) loadCheckpoint(ctx context.Context) time.Time {
	if p.state == nil {
		return time.Time{}
	}
	val, err := p.state.GetState(ctx, checkpointKey)
	if err != nil || val == "" {
		return time.Time{}
	}
	ts, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

func (p *Poller) saveCheckpoint(ctx context.Context, t time.Time) {
	if p.state == nil || t.IsZero() {
		return
	}
	if err := p.state.SetState(ctx, checkpointKey, strconv.FormatInt(t.Unix(), 10)); err != nil {
		p.log.WithError(err).Warn("Feed checkpoint save failed")
	}
}
