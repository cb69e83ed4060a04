package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/coachpo/leasepool/internal/config"
	"github.com/coachpo/leasepool/internal/observability"
	"github.com/coachpo/leasepool/internal/pool"
	"github.com/coachpo/leasepool/internal/telemetry"
)

const (
	metricsServerShutdownTimeout = 5 * time.Second
	poolManagerShutdownTimeout   = 5 * time.Second
	telemetryShutdownTimeout     = 5 * time.Second
)

// app holds the process-wide pieces every subcommand shares.
type app struct {
	cfg       config.AppConfig
	log       *zap.Logger
	manager   *pool.Manager
	telemetry *telemetry.Provider
	metrics   *http.Server
	observer  *telemetry.PoolMetrics
}

func newApp(ctx context.Context, flags *globalFlags, overrides ...config.Option) (*app, error) {
	cfg, err := config.LoadOrDefault(ctx, flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	opts := append([]config.Option{
		config.WithLogLevel(flags.logLevel),
		config.WithMetricsAddr(flags.metricsAddr),
	}, overrides...)
	cfg, err = config.Apply(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("apply flags: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	observability.SetLogger(logger)

	provider, err := telemetry.NewProvider(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	a := &app{
		cfg:       cfg,
		log:       logger,
		manager:   pool.NewManager(pool.WithManagerLogger(logger)),
		telemetry: provider,
	}
	observer, err := a.poolMetrics()
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, fmt.Errorf("init pool metrics: %w", err)
	}
	a.observer = observer
	if cfg.Metrics.Addr != "" {
		srv, err := a.startMetricsServer(cfg.Metrics.Addr)
		if err != nil {
			_ = provider.Shutdown(ctx)
			return nil, err
		}
		a.metrics = srv
	}
	return a, nil
}

// poolMetrics builds the observer for the configured pool. It doubles as the
// status source for /metrics, which is scraped on another goroutine.
func (a *app) poolMetrics() (*telemetry.PoolMetrics, error) {
	return telemetry.NewPoolMetrics(
		a.telemetry.Meter("leasepool/pool"),
		a.telemetry.Environment(),
		a.cfg.Pool.Policy(),
		a.cfg.Pool.Name,
	)
}

func (a *app) startMetricsServer(addr string) (*http.Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if _, err := telemetry.RegisterStatusCollector(reg, a.observer.Statuses); err != nil {
		return nil, fmt.Errorf("register pool collector: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server", zap.Error(err))
		}
	}()
	a.log.Info("metrics endpoint listening", zap.String("addr", listener.Addr().String()))
	return srv, nil
}

func (a *app) shutdown(ctx context.Context) {
	shutdownStep := func(name string, timeout time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		a.log.Debug("shutdown step", zap.String("step", name))
		if err := fn(stepCtx); err != nil {
			a.log.Warn("shutdown step failed", zap.String("step", name), zap.Error(err))
		}
	}

	if a.metrics != nil {
		shutdownStep("stopping metrics server", metricsServerShutdownTimeout, a.metrics.Shutdown)
	}
	shutdownStep("shutting down pool manager", poolManagerShutdownTimeout, a.manager.Shutdown)
	shutdownStep("shutting down telemetry", telemetryShutdownTimeout, a.telemetry.Shutdown)
	_ = a.log.Sync()
}
