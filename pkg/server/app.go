package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"EnergyPull/internal/domain/models"
	"EnergyPull/internal/usecase"
	"EnergyPull/pkg/config"
	xhttp "EnergyPull/pkg/http"
	applogger "EnergyPull/pkg/logger"
)

// Resource is an infrastructure client closed on shutdown.
type Resource struct {
	Name   string
	Closer io.Closer
}

// Pipeline runs processing cycles. Wait returns once no run is active.
type Pipeline interface {
	Run(ctx context.Context, opts usecase.RunOptions) (*models.RunReport, error)
	Start(ctx context.Context, opts usecase.RunOptions) (string, <-chan *models.RunReport, error)
	Wait(ctx context.Context) error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	runner     Pipeline
	scheduler  *usecase.Scheduler
	httpServer *xhttp.Server
	resources  []Resource
}

// New creates a new App instance with all dependencies. httpServer may be nil.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	runner Pipeline,
	scheduler *usecase.Scheduler,
	httpServer *xhttp.Server,
	resources []Resource,
) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		runner:     runner,
		scheduler:  scheduler,
		httpServer: httpServer,
		resources:  resources,
	}
}

// Run starts the scheduler and the ops API and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var httpErr <-chan error
	if a.httpServer != nil {
		httpErr = a.httpServer.Start()
	}

	a.scheduler.Start()

	if a.cfg.Pipeline.RunOnStart {
		a.startupRun(ctx)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case err, ok := <-httpErr:
		if ok && err != nil {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout+a.cfg.Pipeline.RunTimeout)
	defer cancel()
	return errors.Join(runErr, a.shutdown(shutdownCtx))
}

// startupRun starts a cycle in the background; shutdown waits for it.
func (a *App) startupRun(ctx context.Context) {
	_, done, err := a.runner.Start(ctx, usecase.RunOptions{Trigger: models.TriggerSchedule})
	if err != nil {
		a.l.Warn("startup run not started", applogger.String("code", models.ErrorCode(err)), applogger.Error(err))
		return
	}
	go func() {
		if report := <-done; report != nil && report.Status != models.RunSucceeded {
			a.l.Warn("startup run did not succeed", applogger.String("code", report.ErrorCode))
		}
	}()
}

// RunOnce executes a single cycle and releases every resource.
func (a *App) RunOnce(ctx context.Context, opts usecase.RunOptions) (*models.RunReport, error) {
	report, err := a.runner.Run(ctx, opts)

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if werr := a.runner.Wait(closeCtx); werr != nil {
		a.l.Warn("pipeline run still active", applogger.Error(werr))
	}
	if cerr := a.close(closeCtx); cerr != nil {
		a.l.Warn("resource close error", applogger.Error(cerr))
	}
	return report, err
}

// shutdown gracefully stops all services. Active runs, whether scheduled,
// triggered over HTTP or started at boot, are awaited until ctx expires.
func (a *App) shutdown(ctx context.Context) error {
	a.l.Info("shutting down")

	var errs []error
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if err := a.scheduler.Stop(ctx); err != nil {
		a.l.Warn("scheduler stop timed out", applogger.Error(err))
		errs = append(errs, err)
	}
	if err := a.runner.Wait(ctx); err != nil {
		a.l.Warn("pipeline run still active", applogger.Error(err))
		errs = append(errs, err)
	}
	if err := a.close(ctx); err != nil {
		errs = append(errs, err)
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}

// close flushes aggregated logs and closes resources in reverse order.
func (a *App) close(ctx context.Context) error {
	var errs []error
	if err := a.l.Flush(ctx); err != nil {
		a.l.Warn("log flush error", applogger.Error(err))
	}
	a.l.RemoveCollector()
	for i := len(a.resources) - 1; i >= 0; i-- {
		r := a.resources[i]
		if err := r.Closer.Close(); err != nil {
			a.l.Warn("close error", applogger.String("resource", r.Name), applogger.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
