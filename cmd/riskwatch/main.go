package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/structuredesk/riskwatch/internal/alert"
	"github.com/structuredesk/riskwatch/internal/audit"
	"github.com/structuredesk/riskwatch/internal/channels"
	"github.com/structuredesk/riskwatch/internal/classifier"
	"github.com/structuredesk/riskwatch/internal/config"
	"github.com/structuredesk/riskwatch/internal/dispatch"
	"github.com/structuredesk/riskwatch/internal/event"
	"github.com/structuredesk/riskwatch/internal/feed"
	"github.com/structuredesk/riskwatch/internal/impact"
	"github.com/structuredesk/riskwatch/internal/metrics"
	"github.com/structuredesk/riskwatch/internal/pipeline"
	"github.com/structuredesk/riskwatch/internal/rules"
	"github.com/structuredesk/riskwatch/internal/storage"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	log.Info("Starting riskwatch service...")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.WithFields(logrus.Fields{
		"environment":       cfg.Environment,
		"event_workers":     cfg.EventWorkers,
		"assess_workers":    cfg.AssessWorkers,
		"processing_budget": cfg.ProcessingBudget.String(),
		"channel_mode":      cfg.ChannelMode,
	}).Info("Configuration loaded")

	// Business rules: built-in defaults, optionally overridden by a YAML file
	// with hot reload.
	ruleset := rules.Default()
	if cfg.RulesPath != "" {
		ruleset, err = rules.Load(cfg.RulesPath)
		if err != nil {
			log.WithError(err).Fatal("Failed to load rules")
		}
	}
	provider := rules.NewProvider(ruleset)
	if cfg.RulesPath != "" {
		stop, err := provider.Watch(cfg.RulesPath, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to watch rules file")
		}
		defer stop()
		log.WithField("path", cfg.RulesPath).Info("Rules loaded, hot reload enabled")
	}

	db, err := storage.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.AutoMigrate(); err != nil {
		log.WithError(err).Fatal("Failed to run database migrations")
	}
	log.Info("Database connected, migrations complete")

	sinks := buildSinkRegistry(cfg, log)
	auditLog := audit.NewDBLog(db, log)

	router := dispatch.NewRouter(provider, sinks, db, dispatch.Policy{
		MaxAttempts: cfg.DeliveryMaxAttempts,
		BackoffBase: cfg.DeliveryBackoffBase,
	}, log)

	pipe := pipeline.New(
		cfg,
		classifier.New(provider, log),
		db,
		impact.NewEngine(provider, log),
		alert.NewGenerator(provider, log),
		router,
		auditLog,
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipe.Start(ctx)
	log.Info("Pipeline started")

	// Pull ingress: poll the upstream feed when configured.
	if cfg.FeedBaseURL != "" {
		poller := feed.NewPoller(feed.NewClient(cfg), db, pipe, cfg.FeedPollInterval, log)
		go poller.Run(ctx)
		log.WithField("base_url", cfg.FeedBaseURL).Info("Feed polling started")
	}

	// Push ingress + health + metrics.
	server := newHTTPServer(cfg.HTTPPort, pipe)
	go func() {
		log.WithField("port", cfg.HTTPPort).Info("Starting HTTP server (ingress + health + metrics)")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithField("signal", sig).Info("Received shutdown signal, draining pipeline")
	cancel()

	// Ingress closes first so nothing submits into a draining pipeline.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown incomplete")
	}
	shutdownCancel()

	pipe.Stop()
	log.Info("Graceful shutdown complete")
}

func buildSinkRegistry(cfg *config.Config, log *logrus.Logger) *channels.Registry {
	// Every routed channel needs a sink; the log sink is the fallback so a
	// missing integration degrades loudly instead of dropping deliveries.
	registry := channels.NewRegistry(channels.NewLogSink(log))

	for _, mode := range strings.Split(cfg.ChannelMode, ",") {
		switch strings.TrimSpace(mode) {
		case "log":
			// Fallback already covers it.
		case "webhook":
			sink := channels.NewWebhookSink(cfg.WebhookURL)
			for _, ch := range []string{"chat", "ticketing", "mobile_push", "trading_dashboard", "ops_system", "crm"} {
				registry.Register(ch, sink)
			}
		case "smtp":
			registry.Register("email", channels.NewSMTPSink(
				cfg.SMTPHost,
				cfg.SMTPPort,
				cfg.SMTPUser,
				cfg.SMTPPassword,
				cfg.SMTPFrom,
				cfg.SMTPTo,
			))
		default:
			log.WithField("mode", mode).Warn("Unknown channel mode, skipping")
		}
	}
	return registry
}

func newHTTPServer(port int, pipe *pipeline.Pipeline) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		metrics.RecordHealthCheck(true)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy"}`)
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		metrics.RecordHealthCheck(true)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ready"}`)
	})

	mux.HandleFunc("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var raw event.RawEvent
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"error":%q}`, "invalid event payload: "+err.Error())
			return
		}
		if !pipe.Submit(&raw) {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"error":"event queue full"}`)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprintf(w, `{"status":"accepted"}`)
	})

	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
}
