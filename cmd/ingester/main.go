// Package main is the entry point for the zone feed ingester.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/zonefeed/internal/config"
	"github.com/onnwee/zonefeed/internal/feed"
	"github.com/onnwee/zonefeed/internal/health"
	"github.com/onnwee/zonefeed/internal/ingest"
	"github.com/onnwee/zonefeed/internal/middleware"
	"github.com/onnwee/zonefeed/internal/store"
	"github.com/onnwee/zonefeed/internal/tracing"
	"github.com/onnwee/zonefeed/internal/zone"
)

// shutdownTimeout bounds the HTTP server drain and the trace flush.
const shutdownTimeout = 10 * time.Second

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "optional YAML config file")
	envFile := flag.String("env-file", config.DefaultEnvFile, "optional .env file; missing files are ignored")
	flag.Parse()

	if *help {
		fmt.Println("Zone feed ingester")
		fmt.Println()
		fmt.Println("Usage: ingester [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		slog.Error("failed to load env file", "error", err)
		os.Exit(1)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			slog.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("ingester stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("ingester stopped")
}

// run wires the pipeline, feed client and operations server and blocks until
// ctx is cancelled or a component fails.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	provider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  tracing.ServiceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.OTelExporterType,
		OTLPEndpoint: cfg.OTelEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.TracingInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}

	zones, err := zone.LoadFile(cfg.ZonesPath, logger)
	if err != nil {
		return fmt.Errorf("zones: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	feedMetrics := feed.NewMetrics()
	if err := feedMetrics.Register(registry); err != nil {
		return fmt.Errorf("register feed metrics: %w", err)
	}
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	detailed := store.New(ingest.DetailedStore, store.NewFileStore(cfg.DetailedStorePath), store.DetailedKey, cfg.WindowSize, logger)
	simple := store.New(ingest.SimpleStore, store.NewFileStore(cfg.SimpleStorePath), store.LineKey, cfg.WindowSize, logger)

	probes := health.NewHandlers(logger)
	probes.Register("detailed_store", health.NewDirChecker(cfg.DetailedStorePath))
	probes.Register("simple_store", health.NewDirChecker(cfg.SimpleStorePath))

	sinks, closeSinks, err := buildSinks(ctx, cfg, probes, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	pipeline := ingest.New(zones, feed.NewRecordFilter(cfg.Criteria(), feedMetrics), detailed, simple, ingest.Options{
		Annotate: cfg.AnnotateDistance,
		Location: loc,
		Sinks:    sinks,
		Metrics:  feedMetrics,
		Logger:   logger,
	})

	client, err := feed.NewClient(cfg.FeedConfig(), messageHandler(pipeline, logger), logger)
	if err != nil {
		return fmt.Errorf("feed client: %w", err)
	}
	client.SetReconnectObserver(feedMetrics)
	probes.Register("feed", health.NewFeedChecker(client))

	server := &http.Server{
		Addr:         cfg.MetricsAddr,
		Handler:      newHandler(registry, httpMetrics, probes, pipeline, cfg.InternalAuthToken, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("ingester starting",
		"zones", zones.Len(),
		"sinks", len(sinks),
		"metrics_addr", cfg.MetricsAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.Info("starting operations server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("operations server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down operations server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// messageHandler adapts the pipeline to the feed client. A persist failure is
// logged and does not close the session.
func messageHandler(p *ingest.Pipeline, logger *slog.Logger) feed.MessageHandler {
	return func(ctx context.Context, body []byte) error {
		err := p.HandleMessage(ctx, body)
		if errors.Is(err, store.ErrPersist) {
			logger.Error("batch not persisted", "error", err)
			return nil
		}
		return err
	}
}

// newHandler builds the operations server routes and middleware chain.
func newHandler(reg *prometheus.Registry, m *middleware.Metrics, probes *health.Handlers, p *ingest.Pipeline, token string, logger *slog.Logger) http.Handler {
	internal := feed.InternalAuthMiddleware(token)

	mux := http.NewServeMux()
	mux.Handle("GET "+middleware.RouteMetrics, internal(feed.MetricsHandler(reg)))
	mux.HandleFunc("GET "+middleware.RouteHealth, probes.Health)
	mux.HandleFunc("GET "+middleware.RouteReady, probes.Ready)
	mux.Handle("GET "+middleware.RouteWindow, internal(p.WindowHandler()))

	// Tracing -> RequestID -> Logging -> HTTPMetrics -> routes
	var h http.Handler = mux
	h = middleware.HTTPMetrics(m)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.RequestID(h)
	h = middleware.Tracing(tracing.ServiceName)(h)
	return h
}
