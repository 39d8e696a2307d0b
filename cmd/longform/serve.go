package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/phrazzld/longform/internal/api"
	"github.com/phrazzld/longform/internal/api/middleware"
	"github.com/phrazzld/longform/internal/config"
	"github.com/phrazzld/longform/internal/metrics"
	"github.com/phrazzld/longform/internal/pipeline"
	"github.com/phrazzld/longform/internal/service"
	"github.com/phrazzld/longform/internal/service/auth"
	"github.com/phrazzld/longform/internal/session"
	"github.com/phrazzld/longform/internal/store"
	"github.com/phrazzld/longform/internal/task"
	"github.com/prometheus/client_golang/prometheus"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Port    int `short:"p" help:"Override the configured listen port"`
	Workers int `help:"Number of runs generated concurrently" default:"2"`
}

// application holds the dependencies of the HTTP service so they can be shut
// down in order.
type application struct {
	config     *config.Config
	logger     *slog.Logger
	janitor    *session.Janitor
	taskRunner *task.TaskRunner
	router     http.Handler
}

func (s *ServeCmd) Run(root *CLI) error {
	cfg, log, err := root.load(root.stdout)
	if err != nil {
		return err
	}
	if s.Port != 0 {
		cfg.Server.Port = s.Port
	}

	app, err := newApplication(cfg, log, s.Workers)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return app.run(ctx)
}

// newApplication wires the stores, the pipeline, the task runner and the
// router.
func newApplication(cfg *config.Config, log *slog.Logger, workers int) (*application, error) {
	registry := prometheus.NewRegistry()
	rec := metrics.NewPrometheusRecorder(registry)

	sessions, err := session.NewStore(cfg.Session.RootDir, log, session.WithMetrics(rec))
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	runner, err := pipeline.NewRunner(cfg, sessions, pipeline.NewServiceFactory(cfg.LLM, log), rec, log)
	if err != nil {
		return nil, err
	}

	runs := store.NewMemoryRunStore(0)
	janitor, err := session.NewJanitor(sessions, cfg.Session.TTL, cfg.Session.SweepInterval, log,
		session.WithRunEvictor(runs))
	if err != nil {
		return nil, err
	}

	runnerConfig := task.DefaultTaskRunnerConfig()
	if workers > 0 {
		runnerConfig.WorkerCount = workers
	}
	taskRunner, err := task.NewTaskRunner(task.NewMemoryTaskStore(), runnerConfig, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create task runner: %w", err)
	}

	generator, err := service.NewArticleGenerator(runner, runs, log)
	if err != nil {
		return nil, err
	}
	runService, err := service.NewRunService(runs, taskRunner, generator, log)
	if err != nil {
		return nil, err
	}

	var tokens middleware.TokenValidator
	if cfg.Auth.JWTSecret != "" {
		tokenService, err := auth.NewTokenService(cfg.Auth.JWTSecret)
		if err != nil {
			return nil, err
		}
		tokens = tokenService
	} else {
		log.Warn("auth.jwt_secret is empty, the API is unauthenticated")
	}

	return &application{
		config:     cfg,
		logger:     log,
		janitor:    janitor,
		taskRunner: taskRunner,
		router: api.NewRouter(api.RouterDeps{
			RunService: runService,
			Tokens:     tokens,
			Metrics:    rec.Handler(),
			Logger:     log,
		}),
	}, nil
}

// run serves HTTP until ctx is cancelled or the listener fails, then shuts
// everything down.
func (app *application) run(ctx context.Context) error {
	if err := app.janitor.Start(ctx); err != nil {
		return err
	}
	app.taskRunner.Start(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info("shutting down server")
	case err := <-serverErr:
		if err != nil {
			app.logger.Error("server failed", "error", err)
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server shutdown failed", "error", err)
		runErr = errors.Join(runErr, fmt.Errorf("server shutdown failed: %w", err))
	}

	app.cleanup()
	app.logger.Info("server shutdown completed")
	return runErr
}

// cleanup stops background work. Running generations are cancelled.
func (app *application) cleanup() {
	app.taskRunner.Stop()
	if err := app.janitor.Stop(); err != nil {
		app.logger.Error("failed to stop janitor", "error", err)
	}
}
