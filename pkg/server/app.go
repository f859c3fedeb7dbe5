// Package server implements the process lifecycle: start the pipeline and
// the HTTP surface, block until an interrupt, then shut both down within
// the configured deadline.
package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MarketSentry/internal/pipeline"
	"MarketSentry/pkg/config"
	xhttp "MarketSentry/pkg/http"
	"MarketSentry/pkg/logger"
)

// Closer is satisfied by the infrastructure clients the DI layer opens
// (Redis, ClickHouse, Kafka, the fallback queue). App closes them in the
// order given, after the pipeline has drained.
type Closer interface {
	Close() error
}

// App encapsulates the running process: the surveillance pipeline and the
// HTTP server exposing health probes and Prometheus metrics.
type App struct {
	cfg         *config.Config
	pipeline    *pipeline.Pipeline
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	log         *logger.Logger
	closers     []Closer
}

// New builds an App from its already-constructed dependencies. closers are
// closed in order during shutdown, after the pipeline has drained.
func New(cfg *config.Config, p *pipeline.Pipeline, httpHandler xhttp.Handler, log *logger.Logger, closers ...Closer) *App {
	return &App{cfg: cfg, pipeline: p, httpHandler: httpHandler, log: log, closers: closers}
}

// Run starts the pipeline and HTTP server and blocks until SIGINT/SIGTERM,
// then runs a graceful shutdown.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.pipeline.Start(ctx); err != nil {
		a.log.Error("pipeline start failed", logger.Error(err))
		return err
	}
	a.log.Info("pipeline started")

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(a.log, a.cfg.Server.SlowRequestThreshold),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start failed", logger.Error(err))
		return err
	}
	a.log.Info("http server started", logger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(context.Background())
}

// shutdown stops the HTTP server and drains the pipeline within the
// configured deadline.
func (a *App) shutdown(ctx context.Context) error {
	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http server shutdown error", logger.Error(err))
		}
	}

	if err := a.pipeline.Shutdown(ctx); err != nil {
		a.log.Error("pipeline shutdown error", logger.Error(err))
		return err
	}

	for _, c := range a.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			a.log.Error("infrastructure client close error", logger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
