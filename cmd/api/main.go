package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/app"
	"github.com/cmlabs-hris/attendance-engine/internal/config"
	appHTTP "github.com/cmlabs-hris/attendance-engine/internal/handler/http"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/cron"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	slog.SetDefault(newLogger(cfg.App))

	engine, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("error building engine: %w", err)
	}
	defer engine.Close()

	if err := engine.Migrate(ctx); err != nil {
		return fmt.Errorf("error applying schema: %w", err)
	}

	// Stale open-record monitor
	scheduler := cron.NewScheduler(ctx)
	attendanceJobs := cron.NewAttendanceJobs(engine.Records, cfg.Monitor.StaleAfter, engine.Metrics)
	attendanceJobs.RegisterJobs(scheduler, cfg.Monitor.Interval)
	scheduler.Start()
	defer scheduler.Stop()

	attendanceHandler := appHTTP.NewAttendanceHandler(engine.Attendance, engine.Aggregator, engine.JWT, engine.Hub)
	reportHandler := appHTTP.NewReportHandler(engine.Reports)

	router := appHTTP.NewRouter(
		appHTTP.RouterConfig{
			App:       cfg.App,
			RateLimit: cfg.RateLimit,
			Metrics:   engine.Metrics.Handler(),
		},
		engine.JWT,
		attendanceHandler,
		reportHandler,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server running", "addr", srv.Addr, "store", cfg.Store.Driver, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	// Status streams never go idle on their own.
	srv.RegisterOnShutdown(engine.Hub.CloseAll)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func newLogger(cfg config.AppConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With(
		slog.String("app", cfg.Name),
		slog.String("version", cfg.Version),
	)
}
