package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/structuredesk/riskwatch/internal/alert"
	"github.com/structuredesk/riskwatch/internal/audit"
	"github.com/structuredesk/riskwatch/internal/classifier"
	"github.com/structuredesk/riskwatch/internal/config"
	"github.com/structuredesk/riskwatch/internal/dispatch"
	"github.com/structuredesk/riskwatch/internal/event"
	"github.com/structuredesk/riskwatch/internal/impact"
	"github.com/structuredesk/riskwatch/internal/metrics"
	"github.com/structuredesk/riskwatch/internal/portfolio"
)

// Pipeline processes each event as one atomic unit of work: classify, scan,
// assess, generate, audit, then hand alerts to the router asynchronously.
// Either a complete, consistent alert set is produced and logged, or the
// event is quarantined; there is no partial silent drop.
type Pipeline struct {
	cfg        *config.Config
	classifier *classifier.Classifier
	repo       portfolio.Repository
	engine     *impact.Engine
	generator  *alert.Generator
	router     *dispatch.Router
	audit      audit.Log
	log        *logrus.Logger

	queue    chan *queuedEvent
	tokens   chan struct{} // bounds per-event trade assessment parallelism
	workers  sync.WaitGroup
	routing  sync.WaitGroup
	requeues sync.WaitGroup

	mu     sync.RWMutex // guards closed and the queue send in enqueue
	closed bool
}

type queuedEvent struct {
	raw      *event.RawEvent
	attempts int
}

// New creates a Pipeline.
func New(
	cfg *config.Config,
	cls *classifier.Classifier,
	repo portfolio.Repository,
	engine *impact.Engine,
	gen *alert.Generator,
	router *dispatch.Router,
	auditLog audit.Log,
	log *logrus.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		classifier: cls,
		repo:       repo,
		engine:     engine,
		generator:  gen,
		router:     router,
		audit:      auditLog,
		log:        log,
		queue:      make(chan *queuedEvent, cfg.QueueDepth),
		tokens:     make(chan struct{}, cfg.AssessWorkers),
	}
}

// Start launches the worker pool. Workers run until Stop drains the queue.
// Cancellation of ctx stops new submissions but in-flight events complete
// their atomic unit; no mid-event cancellation is permitted.
func (p *Pipeline) Start(ctx context.Context) {
	// Events in flight must finish even after ctx is cancelled.
	workCtx := context.WithoutCancel(ctx)

	for i := 0; i < p.cfg.EventWorkers; i++ {
		p.workers.Add(1)
		go func() {
			defer p.workers.Done()
			for qe := range p.queue {
				metrics.QueueDepth.Set(float64(len(p.queue)))
				p.process(workCtx, qe)
			}
		}()
	}
}

// Submit enqueues a raw event without blocking. Returns false when the queue
// is full or the pipeline is shutting down.
func (p *Pipeline) Submit(raw *event.RawEvent) bool {
	return p.enqueue(&queuedEvent{raw: raw})
}

func (p *Pipeline) enqueue(qe *queuedEvent) bool {
	// The lock spans the closed check and the send: Stop cannot close the
	// queue between them, so a Submit racing shutdown is rejected instead of
	// panicking on a closed channel.
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.queue <- qe:
		metrics.QueueDepth.Set(float64(len(p.queue)))
		return true
	default:
		return false
	}
}

// Stop drains the pipeline: pending requeues resolve, queued and in-flight
// events complete, and outstanding distribution work finishes.
func (p *Pipeline) Stop() {
	// Taking the write lock waits out any enqueue already past its closed
	// check; everything after sees closed and rejects.
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.requeues.Wait()
	close(p.queue)
	p.workers.Wait()
	p.routing.Wait()
}

func (p *Pipeline) process(ctx context.Context, qe *queuedEvent) {
	start := time.Now()

	ev, err := p.classifier.Classify(qe.raw)
	if err != nil {
		var malformed *classifier.MalformedEventError
		if errors.As(err, &malformed) {
			p.quarantine(ctx, qe.raw, err.Error())
			metrics.RecordEvent("quarantined", time.Since(start), false)
			return
		}
		// The classifier contract admits no other failure; treat anything
		// unexpected as malformed rather than dropping it silently.
		p.quarantine(ctx, qe.raw, "unexpected classification failure: "+err.Error())
		metrics.RecordEvent("quarantined", time.Since(start), false)
		return
	}
	metrics.RecordClassification(string(ev.Category), string(ev.Severity), ev.NeedsReview)

	trades, err := p.gatherTrades(ctx, ev)
	if err != nil {
		p.handleRepositoryFailure(ctx, ev, qe, err, start)
		return
	}

	assessments := p.assess(ev, trades)
	alertsByAudience := p.generator.Generate(ev, assessments)

	impacted := 0
	for _, as := range assessments {
		if as.Analysis.Impacted {
			impacted++
		}
	}
	alertCount := 0
	for _, list := range alertsByAudience {
		alertCount += len(list)
	}

	// Latency overruns degrade, never cancel: dropping a real risk signal is
	// worse than delivering it late.
	degraded := time.Since(start) > p.cfg.ProcessingBudget

	p.audit.Record(ctx, &audit.Entry{
		EventID:         ev.EventID,
		Status:          audit.StatusProcessed,
		Source:          ev.Source,
		Category:        string(ev.Category),
		Severity:        string(ev.Severity),
		NeedsReview:     ev.NeedsReview,
		Degraded:        degraded,
		CandidateTrades: len(trades),
		ImpactedTrades:  impacted,
		AlertCount:      alertCount,
	})
	metrics.RecordEvent("processed", time.Since(start), degraded)

	if alertCount == 0 {
		return
	}

	// Distribution runs asynchronously after the event's alerts are logged;
	// retries must not hold an event worker.
	p.routing.Add(1)
	go func() {
		defer p.routing.Done()
		for _, aud := range alert.Audiences {
			for _, a := range alertsByAudience[aud] {
				p.router.Route(ctx, a)
			}
		}
	}()
}

// gatherTrades scans every underlying the event references, deduplicating
// trades that reference more than one of them.
func (p *Pipeline) gatherTrades(ctx context.Context, ev *event.Event) ([]portfolio.Trade, error) {
	seen := make(map[string]bool)
	var out []portfolio.Trade
	for _, underlying := range ev.UnderlyingRefs {
		trades, err := p.repo.TradesByUnderlying(ctx, underlying)
		if err != nil {
			return nil, err
		}
		for _, t := range trades {
			if seen[t.TradeID] {
				continue
			}
			seen[t.TradeID] = true
			out = append(out, t)
		}
	}
	return out, nil
}

// assess scores candidate trades in parallel. Results are index-aligned with
// the input so alert generation stays deterministic.
func (p *Pipeline) assess(ev *event.Event, trades []portfolio.Trade) []alert.Assessment {
	out := make([]alert.Assessment, len(trades))
	var wg sync.WaitGroup
	for i := range trades {
		wg.Add(1)
		p.tokens <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-p.tokens }()
			t := trades[i]
			a := p.engine.Assess(ev, t)
			if a.Impacted {
				metrics.RecordImpact(string(a.Type))
			}
			if a.Type == impact.TypeAssessmentError {
				metrics.AssessmentErrors.Inc()
			}
			out[i] = alert.Assessment{Trade: t, Analysis: a}
		}(i)
	}
	wg.Wait()
	return out
}

// handleRepositoryFailure fails the event closed: with the repository down it
// is not safe to assume zero impacted trades, so the event is requeued with
// backoff and quarantined only after the retry budget is exhausted.
func (p *Pipeline) handleRepositoryFailure(ctx context.Context, ev *event.Event, qe *queuedEvent, cause error, start time.Time) {
	if qe.attempts >= p.cfg.MaxEventRetries {
		p.log.WithError(cause).WithFields(logrus.Fields{
			"event_id": ev.EventID,
			"attempts": qe.attempts,
		}).Error("Repository unavailable, retries exhausted")
		p.audit.Record(ctx, &audit.Entry{
			EventID:  ev.EventID,
			Status:   audit.StatusRepositoryUnavailable,
			Reason:   cause.Error(),
			Source:   ev.Source,
			Category: string(ev.Category),
			Severity: string(ev.Severity),
		})
		// The processed-events counter tracks terminal states only; retries
		// that will be attempted again count via EventsRequeued.
		metrics.RecordEvent("repository_unavailable", time.Since(start), false)
		return
	}

	next := &queuedEvent{raw: qe.raw, attempts: qe.attempts + 1}
	backoff := p.cfg.EventRetryBackoff << uint(qe.attempts)
	metrics.EventsRequeued.Inc()
	p.log.WithError(cause).WithFields(logrus.Fields{
		"event_id": ev.EventID,
		"attempt":  next.attempts,
		"backoff":  backoff.String(),
	}).Warn("Repository unavailable, requeueing event")

	p.requeues.Add(1)
	time.AfterFunc(backoff, func() {
		defer p.requeues.Done()
		if !p.enqueue(next) {
			p.audit.Record(ctx, &audit.Entry{
				EventID:  ev.EventID,
				Status:   audit.StatusRepositoryUnavailable,
				Reason:   "requeue rejected: pipeline shutting down or queue full",
				Source:   ev.Source,
				Category: string(ev.Category),
				Severity: string(ev.Severity),
			})
		}
	})
}

func (p *Pipeline) quarantine(ctx context.Context, raw *event.RawEvent, reason string) {
	p.log.WithFields(logrus.Fields{
		"source": raw.Source,
		"reason": reason,
	}).Warn("Event quarantined")
	p.audit.Record(ctx, &audit.Entry{
		EventID: raw.EventID,
		Status:  audit.StatusQuarantined,
		Reason:  reason,
		Source:  raw.Source,
	})
}
