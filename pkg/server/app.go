package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	applogger "RiskDesk/pkg/logger"
)

// Component is one long-lived part of the application. Start must not block;
// either func may be nil.
type Component struct {
	Name  string
	Start func(ctx context.Context) error
	Stop  func(ctx context.Context) error
}

// App encapsulates the entire application lifecycle. Components start in the
// order given and stop in reverse.
type App struct {
	log             *applogger.Logger
	components      []Component
	shutdownTimeout time.Duration
	signals         []os.Signal
}

// New creates a new App instance with all components.
func New(log *applogger.Logger, shutdownTimeout time.Duration, components ...Component) *App {
	if log == nil {
		log = applogger.NewNop()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &App{
		log:             log,
		components:      components,
		shutdownTimeout: shutdownTimeout,
		signals:         []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), a.signals...)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component, waits for ctx to end and shuts down.
// If a component fails to start, the ones already running are stopped.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	started := 0
	for _, c := range a.components {
		if c.Start != nil {
			if err := c.Start(runCtx); err != nil {
				a.log.Error("component start failed", applogger.String("component", c.Name), applogger.Error(err))
				stopErr := a.shutdown(started, cancel)
				return errors.Join(fmt.Errorf("start %s: %w", c.Name, err), stopErr)
			}
		}
		started++
		a.log.Info("component started", applogger.String("component", c.Name))
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown(started, cancel)
}

// shutdown stops the first n components in reverse order, then cancels the
// run context.
func (a *App) shutdown(n int, cancel context.CancelFunc) error {
	ctx, done := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer done()

	var errs []error
	for i := n - 1; i >= 0; i-- {
		c := a.components[i]
		if c.Stop == nil {
			continue
		}
		if err := c.Stop(ctx); err != nil {
			a.log.Warn("component stop error", applogger.String("component", c.Name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("stop %s: %w", c.Name, err))
		}
	}
	cancel()
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

// Closer adapts a Close method to a stop-only component.
func Closer(name string, closeFn func() error) Component {
	return Component{
		Name: name,
		Stop: func(context.Context) error { return closeFn() },
	}
}
