package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskwatch_events_processed_total",
			Help: "Total number of events that reached a terminal state",
		},
		[]string{"status"}, // processed, quarantined, repository_unavailable
	)

	EventsRequeued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riskwatch_events_requeued_total",
			Help: "Total number of events requeued after repository failures",
		},
	)

	EventsDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riskwatch_events_degraded_total",
			Help: "Total number of events that exceeded the processing budget",
		},
	)

	EventProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riskwatch_event_processing_duration_seconds",
			Help:    "Duration from classification to alert generation",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10},
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "riskwatch_event_queue_depth",
			Help: "Number of events waiting in the pipeline queue",
		},
	)

	// Classification metrics
	EventsClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskwatch_events_classified_total",
			Help: "Total number of events classified",
		},
		[]string{"category", "severity"},
	)

	LowConfidenceEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riskwatch_low_confidence_events_total",
			Help: "Total number of events flagged needs_review",
		},
	)

	// Impact metrics
	ImpactsFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskwatch_impacts_found_total",
			Help: "Total number of impacted (event, trade) pairs",
		},
		[]string{"impact_type"},
	)

	AssessmentErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riskwatch_assessment_errors_total",
			Help: "Total number of per-trade assessments converted to ASSESSMENT_ERROR",
		},
	)

	// Alert metrics
	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskwatch_alerts_generated_total",
			Help: "Total number of alerts generated",
		},
		[]string{"audience", "priority"},
	)

	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskwatch_alerts_suppressed_total",
			Help: "Total number of alerts suppressed by an audience view",
		},
		[]string{"audience"},
	)

	// Distribution metrics
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskwatch_deliveries_total",
			Help: "Total number of channel delivery outcomes",
		},
		[]string{"channel", "status"}, // delivered, failed, deduplicated
	)

	DeliveryAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskwatch_delivery_attempts",
			Help:    "Attempts used per channel delivery",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
		[]string{"channel"},
	)

	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskwatch_escalations_total",
			Help: "Total number of alert escalations after channel exhaustion",
		},
		[]string{"audience", "priority"},
	)

	// Audit metrics
	AuditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riskwatch_audit_write_failures_total",
			Help: "Total number of best-effort audit writes that failed",
		},
	)

	// Feed metrics
	FeedPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskwatch_feed_polls_total",
			Help: "Total number of upstream feed polls",
		},
		[]string{"status"},
	)

	FeedPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riskwatch_feed_poll_duration_seconds",
			Help:    "Duration of upstream feed polls",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// System health
	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskwatch_health_checks_total",
			Help: "Total number of health check requests",
		},
		[]string{"status"},
	)
)

// RecordEvent records an event terminal state with its processing duration.
func RecordEvent(status string, duration time.Duration, degraded bool) {
	EventsProcessed.WithLabelValues(status).Inc()
	EventProcessingDuration.Observe(duration.Seconds())
	if degraded {
		EventsDegraded.Inc()
	}
}

// RecordClassification records a classification outcome.
func RecordClassification(category, severity string, needsReview bool) {
	EventsClassified.WithLabelValues(category, severity).Inc()
	if needsReview {
		LowConfidenceEvents.Inc()
	}
}

// RecordImpact records an impacted (event, trade) pair.
func RecordImpact(impactType string) {
	ImpactsFound.WithLabelValues(impactType).Inc()
}

// RecordAlertGenerated records a generated alert.
func RecordAlertGenerated(audience, priority string) {
	AlertsGenerated.WithLabelValues(audience, priority).Inc()
}

// RecordAlertSuppressed records an alert suppressed by an audience view.
func RecordAlertSuppressed(audience string) {
	AlertsSuppressed.WithLabelValues(audience).Inc()
}

// RecordDelivery records a channel delivery outcome with attempts used.
func RecordDelivery(channel, status string, attempts int) {
	Deliveries.WithLabelValues(channel, status).Inc()
	if attempts > 0 {
		DeliveryAttempts.WithLabelValues(channel).Observe(float64(attempts))
	}
}

// RecordFeedPoll records an upstream feed poll.
func RecordFeedPoll(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	FeedPolls.WithLabelValues(status).Inc()
	FeedPollDuration.Observe(duration.Seconds())
}

// RecordHealthCheck records health check status.
func RecordHealthCheck(healthy bool) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	HealthChecks.WithLabelValues(status).Inc()
}
