package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ChartDash/pkg/cache"
	"ChartDash/pkg/config"
	xhttp "ChartDash/pkg/http"
	pkgkafka "ChartDash/pkg/kafka"
	applogger "ChartDash/pkg/logger"
	"ChartDash/pkg/query"
)

type closer interface {
	Close() error
}

// Components are the long-lived parts the App starts and stops.
// Consumer and Events are nil when Kafka is disabled.
type Components struct {
	Handlers  []xhttp.Handler
	Hub       closer
	Query     *query.Client
	Consumer  *pkgkafka.Consumer
	Events    pkgkafka.MessageHandler
	Publisher closer
	Cache     cache.Service
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	c          Components
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	a := &App{cfg: cfg, logger: l, c: c}
	a.httpServer = xhttp.NewServer(l.With("http"), c.Handlers,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true, cfg.Server.AllowOrigins...),
		xhttp.WithMetricsPath(metricsPath(cfg)),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
	)
	return a
}

func metricsPath(cfg *config.Config) string {
	if !cfg.Metrics.Enabled {
		return ""
	}
	return cfg.Metrics.Path
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Start starts the event consumer and the HTTP server without blocking.
func (a *App) Start() error {
	if a.c.Consumer != nil && a.c.Events != nil {
		a.c.Consumer.RegisterHandler(a.c.Events)
		if err := a.c.Consumer.Start(); err != nil {
			a.logger.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.logger.Info("kafka consumer started", applogger.String("topic", a.c.Events.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("chart dashboard started",
		applogger.String("instance", a.cfg.InstanceID),
		applogger.String("backend", a.cfg.Backend.BaseURL),
	)
	return nil
}

// Shutdown stops every component, front to back: no new requests, no new
// events, then in-flight fetches, then the outbound clients.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.httpServer.ShutdownTimeout())
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}
	if a.c.Hub != nil {
		if err := a.c.Hub.Close(); err != nil {
			a.logger.Warn("websocket hub close error", applogger.Error(err))
		}
	}
	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.c.Query != nil {
		if err := a.c.Query.Close(); err != nil {
			a.logger.Warn("query client close error", applogger.Error(err))
		}
	}

	// flush aggregated logs while the producer is still open
	a.logger.RemoveCollector()

	if a.c.Publisher != nil {
		if err := a.c.Publisher.Close(); err != nil {
			a.logger.Warn("event publisher close error", applogger.Error(err))
		}
	}
	if a.c.Cache != nil {
		if err := a.c.Cache.Close(); err != nil {
			a.logger.Warn("cache close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
