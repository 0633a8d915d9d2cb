package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CoinCast/internal/usecase"
	xhttp "CoinCast/pkg/http"
	pkgkafka "CoinCast/pkg/kafka"
	applogger "CoinCast/pkg/logger"
)

// Closer is an infrastructure resource released on shutdown, in registration order.
type Closer struct {
	Name string
	io.Closer
}

// Components are the pieces App drives. Scheduler and Consumer are optional.
type Components struct {
	Log             *applogger.Logger
	Pollers         []usecase.Poller
	Orchestrator    *usecase.PredictionOrchestrator
	Scheduler       *usecase.RefreshScheduler
	HTTP            *xhttp.Server
	Consumer        *pkgkafka.Consumer
	ConsumerHandler []pkgkafka.MessageHandler
	Closers         []Closer
	ShutdownTimeout time.Duration
}

// App encapsulates the entire application lifecycle.
type App struct {
	c   Components
	log *applogger.Logger
}

func New(c Components) *App {
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
	return &App{c: c, log: c.Log.With("app")}
}

// Run starts everything and blocks until SIGINT/SIGTERM or an HTTP listener failure.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext is Run with the caller owning cancellation.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.start(ctx); err != nil {
		a.shutdown()
		return err
	}

	var runErr error
	var httpErrs <-chan error
	if a.c.HTTP != nil {
		httpErrs = a.c.HTTP.Errors()
	}
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err := <-httpErrs:
		runErr = fmt.Errorf("http server: %w", err)
	}

	a.shutdown()
	return runErr
}

func (a *App) start(ctx context.Context) error {
	if a.c.Orchestrator != nil {
		a.c.Orchestrator.Restore(ctx)
	}

	for _, p := range a.c.Pollers {
		// pollers outlive the signal context; Stop ends them
		if err := p.Start(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("start poller %s: %w", p.Name(), err)
		}
		a.log.Info("poller started", applogger.String("stream", p.Name()))
	}

	if a.c.HTTP != nil {
		if err := a.c.HTTP.Start(); err != nil {
			return fmt.Errorf("start http: %w", err)
		}
	}

	if a.c.Scheduler != nil {
		a.c.Scheduler.Start()
	}

	if a.c.Consumer != nil && len(a.c.ConsumerHandler) > 0 {
		for _, h := range a.c.ConsumerHandler {
			a.c.Consumer.RegisterHandler(h)
		}
		if err := a.c.Consumer.Start(); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
		for _, h := range a.c.ConsumerHandler {
			a.log.Info("kafka consumer started", applogger.String("topic", h.Topic()))
		}
	}
	return nil
}

// shutdown stops producers of work first, then the transports, then closes infrastructure.
func (a *App) shutdown() {
	a.log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), a.c.ShutdownTimeout)
	defer cancel()

	for _, p := range a.c.Pollers {
		p.Stop()
		a.log.Info("poller stopped", applogger.String("stream", p.Name()))
	}

	if a.c.Scheduler != nil {
		a.c.Scheduler.Stop()
	}

	if a.c.HTTP != nil {
		if err := a.c.HTTP.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.c.Consumer != nil && len(a.c.ConsumerHandler) > 0 {
		if err := a.c.Consumer.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	for _, c := range a.c.Closers {
		if c.Closer == nil {
			continue
		}
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.Name), applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}
