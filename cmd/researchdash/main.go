// Command researchdash serves the department research-tracking dashboard:
// record submission and status APIs over a remote table store, a combined
// overview with async exports, and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"researchdash/internal/adapters/records"
	"researchdash/internal/blob"
	"researchdash/internal/core"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "researchdash:", err)
		os.Exit(1)
	}
}

func run() error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := sugarLogger{logger.Sugar()}

	store, err := core.OpenTableStore()
	if err != nil {
		return fmt.Errorf("open table store: %w", err)
	}

	metrics, err := core.NewPrometheusMetricsRecorder(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	accessor, err := core.NewAccessor(core.AccessorConfig{
		Opener:   store,
		SheetKey: os.Getenv("RESEARCHDASH_SHEET_KEY"),
		CacheTTL: durationEnv("RESEARCHDASH_CACHE_TTL", 0),
		Logger:   log,
		Metrics:  metrics,
	})
	if err != nil {
		return err
	}

	service, err := core.NewService(accessor, core.WithServiceLogger(log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	artifacts, err := blob.Open(ctx)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	worker := records.NewWorker(service, artifacts, zapAuditLog{logger})
	worker.Start()

	handler := records.NewHandler(service)
	handler.Exports = worker
	handler.Driver = storeDriver()

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", handler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := os.Getenv("RESEARCHDASH_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("driver", handler.Driver))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	if err := worker.Stop(shutdownCtx); err != nil {
		logger.Warn("export worker shutdown", zap.Error(err))
	}
	return nil
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level := os.Getenv("RESEARCHDASH_LOG_LEVEL"); level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse RESEARCHDASH_LOG_LEVEL: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}
	return cfg.Build()
}

func storeDriver() string {
	if driver := os.Getenv("RESEARCHDASH_STORE_DRIVER"); driver != "" {
		return driver
	}
	return string(core.StorageSQLite)
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

// sugarLogger adapts zap's sugared logger to the key/value logging surface
// the core package expects.
type sugarLogger struct {
	s *zap.SugaredLogger
}

func (l sugarLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l sugarLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l sugarLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l sugarLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }

// zapAuditLog writes export audit entries to the structured log.
type zapAuditLog struct {
	logger *zap.Logger
}

func (a zapAuditLog) Record(_ context.Context, entry records.AuditEntry) {
	a.logger.Info("export audit",
		zap.String("id", entry.ID),
		zap.String("action", entry.Action),
		zap.String("actor", entry.Actor),
		zap.String("status", string(entry.Status)),
		zap.String("reason", entry.Reason),
		zap.String("note", entry.Note),
		zap.Time("occurred_at", entry.OccurredAt))
}
