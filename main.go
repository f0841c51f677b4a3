package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scholarflow/orchestrator/internal/activities"
	"github.com/scholarflow/orchestrator/internal/agents"
	"github.com/scholarflow/orchestrator/internal/config"
	"github.com/scholarflow/orchestrator/internal/constants"
	"github.com/scholarflow/orchestrator/internal/db"
	"github.com/scholarflow/orchestrator/internal/enrich"
	"github.com/scholarflow/orchestrator/internal/health"
	"github.com/scholarflow/orchestrator/internal/httpapi"
	"github.com/scholarflow/orchestrator/internal/registry"
	"github.com/scholarflow/orchestrator/internal/session"
	temporallog "github.com/scholarflow/orchestrator/internal/temporal"
	"github.com/scholarflow/orchestrator/internal/tracing"
)

func main() {
	cfg, err := config.Load(os.Getenv("SCHOLARFLOW_CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, logLevel, err := newLogger(cfg.Observability.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	if cfg.Observability.Tracing.Enabled {
		shutdown, err := tracing.Initialize(cfg.Observability.Tracing, logger)
		if err != nil {
			logger.Warn("Tracing initialization failed, continuing without it", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					logger.Warn("Tracing shutdown failed", zap.Error(err))
				}
			}()
		}
	}

	// Optional collaborators. A missing Redis or Postgres degrades
	// observability, never the research itself.
	var stateStore *session.StateStore
	if cfg.Redis.Addr != "" {
		stateStore, err = session.NewStateStore(cfg.Redis.Addr, cfg.Redis.TTL(), logger)
		if err != nil {
			logger.Warn("State store unavailable, snapshots disabled", zap.Error(err))
			stateStore = nil
		} else {
			defer stateStore.Close()
		}
	}

	var runStore *db.Client
	if cfg.Postgres.Host != "" {
		runStore, err = db.NewClient(cfg.Postgres.DSN(), logger)
		if err != nil {
			logger.Warn("Run history database unavailable, history disabled", zap.Error(err))
			runStore = nil
		} else {
			defer runStore.Close()
		}
	}

	catalog, err := agents.LoadCatalog()
	if err != nil {
		logger.Fatal("Failed to load agent role catalog", zap.Error(err))
	}
	agentClient := agents.NewClient(cfg.AgentService.BaseURL, catalog, logger,
		agents.WithTimeout(cfg.AgentService.Timeout()))

	var resolver enrich.IDResolver
	if cfg.SemanticScholar.BaseURL != "" {
		opts := []enrich.ResolverOption{enrich.WithRateLimit(cfg.SemanticScholar.RequestsPerSecond)}
		if key := cfg.SemanticScholar.APIKey(); key != "" {
			opts = append(opts, enrich.WithAPIKey(key))
		}
		resolver = enrich.NewSemanticScholarResolver(cfg.SemanticScholar.BaseURL, logger, opts...)
	}
	enricher := enrich.NewEnricher(cfg.Storage.Bucket, resolver, logger)

	acts := activities.New(agentClient, enricher, logger, activities.Options{
		States:        stateStore,
		Runs:          runStore,
		EnrichWorkers: cfg.Research.EnrichWorkers,
	})

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporallog.NewZapAdapter(logger.Named("temporal")),
	})
	if err != nil {
		logger.Fatal("Failed to connect to Temporal", zap.Error(err))
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, constants.ResearchTaskQueue, worker.Options{})
	reg := registry.New(acts, logger)
	reg.RegisterWorkflows(w)
	reg.RegisterActivities(w)

	if err := w.Start(); err != nil {
		logger.Fatal("Failed to start worker", zap.Error(err))
	}
	defer w.Stop()
	logger.Info("Worker started", zap.String("task_queue", constants.ResearchTaskQueue))

	// Admin HTTP: research API, health, metrics.
	healthManager := health.NewManager(5 * time.Second)
	healthManager.Register(&health.AgentServiceChecker{BaseURL: cfg.AgentService.BaseURL})
	if stateStore != nil {
		healthManager.Register(&health.PingChecker{Component: "redis", Ping: stateStore.Ping})
	}
	if runStore != nil {
		healthManager.Register(&health.PingChecker{Component: "postgres", Ping: runStore.Ping})
	}

	mux := http.NewServeMux()
	health.NewHTTPHandler(healthManager, logger).RegisterRoutes(mux)
	var runHistory httpapi.RunHistory
	if runStore != nil {
		runHistory = runStore
	}
	httpapi.NewResearchHandler(temporalClient, runHistory, logger, 30*time.Minute).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Observability.MetricsPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 31 * time.Minute, // synchronous research requests block until the report
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// Hot-reload applies the logging level; everything else needs a restart.
	if path := os.Getenv("SCHOLARFLOW_CONFIG_PATH"); path != "" {
		if err := config.Watch(path, logger, func(next *config.Config) {
			lvl, err := zapcore.ParseLevel(next.Observability.Logging.Level)
			if err != nil {
				logger.Warn("Reloaded log level is invalid, keeping current",
					zap.String("level", next.Observability.Logging.Level))
				return
			}
			logLevel.SetLevel(lvl)
			logger.Info("Log level updated", zap.String("level", lvl.String()))
		}); err != nil {
			logger.Warn("Config watch disabled", zap.Error(err))
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", zap.Error(err))
	}
}

// newLogger builds the process logger. The returned atomic level is the
// hot-reload hook: config changes adjust it without rebuilding the logger.
func newLogger(level string) (*zap.Logger, zap.AtomicLevel, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	return logger, cfg.Level, err
}
