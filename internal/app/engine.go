// Package app wires the attendance engine from configuration. Both the API
// server and the operator CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/attendance-engine/internal/config"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/cache"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/retry"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/memory"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/postgresql"
	attendanceService "github.com/cmlabs-hris/attendance-engine/internal/service/attendance"
	reportService "github.com/cmlabs-hris/attendance-engine/internal/service/report"
	"github.com/cmlabs-hris/attendance-engine/internal/service/summary"
	"github.com/redis/go-redis/v9"
)

// EmployeeStore is a directory that can also be written to.
type EmployeeStore interface {
	employee.Directory
	Upsert(ctx context.Context, e employee.Employee) error
}

type Engine struct {
	Config *config.Config

	DB      *database.DB // nil for the memory store
	Records attendance.RecordRepository
	// Employees is nil for the memory store.
	Employees EmployeeStore
	Cache     summary.Cache

	Metrics    *metrics.Manager
	Hub        *sse.Hub
	JWT        jwt.Service
	Attendance *attendanceService.AttendanceServiceImpl
	Aggregator *summary.AggregatorImpl
	Reports    *reportService.ReportServiceImpl

	closers []func()
}

// New connects the configured stores and builds the services. Close releases
// every connection New opened.
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	e := &Engine{
		Config:  cfg,
		Metrics: metrics.NewManager(),
		Hub:     sse.NewHub(),
		JWT:     jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration),
	}

	if err := e.openStore(ctx); err != nil {
		e.Close()
		return nil, err
	}
	if err := e.openCache(ctx); err != nil {
		e.Close()
		return nil, err
	}

	loc := cfg.Location()
	// Reads share the state machine's retry budget.
	policy := retry.Policy{
		Attempts:  cfg.Engine.RetryAttempts,
		BaseDelay: cfg.Engine.RetryBaseDelay,
		Timeout:   cfg.Engine.StoreTimeout,
		OnRetry:   e.Metrics.StoreRetry,
	}
	e.Aggregator = summary.NewAggregator(
		e.Records,
		e.Employees,
		e.Cache,
		summary.Config{
			DefaultLocation:   loc,
			ValidateEmployees: cfg.Engine.ValidateEmployees,
			Retry:             policy,
		},
		e.Metrics,
	)
	e.Attendance = attendanceService.NewAttendanceService(
		e.Records,
		e.Employees,
		attendanceService.Config{
			RetryAttempts:     cfg.Engine.RetryAttempts,
			RetryBaseDelay:    cfg.Engine.RetryBaseDelay,
			StoreTimeout:      cfg.Engine.StoreTimeout,
			ValidateEmployees: cfg.Engine.ValidateEmployees,
			DefaultLocation:   loc,
		},
		e.Metrics,
	)
	e.Reports = reportService.NewReportService(
		e.Aggregator,
		e.Records,
		e.Employees,
		reportService.Config{
			Concurrency:       cfg.Engine.ReportConcurrency,
			ValidateEmployees: cfg.Engine.ValidateEmployees,
			DefaultLocation:   loc,
			Retry:             policy,
		},
		e.Metrics,
	)

	// Cached summaries must be dropped before live subscribers re-read them.
	e.Attendance.Subscribe(e.Aggregator)
	e.Attendance.Subscribe(e.Hub)

	return e, nil
}

func (e *Engine) openStore(ctx context.Context) error {
	switch e.Config.Store.Driver {
	case config.StoreMemory:
		slog.Warn("using in-memory attendance store; records are lost on restart")
		e.Records = memory.NewRecordStore()
		// No directory: reports enumerate employees from their records and
		// every employee uses the default location.
		return nil

	case config.StorePostgres:
		db, err := database.NewPostgreSQLDB(ctx, e.Config.DatabaseURL(), database.PoolConfig{
			MaxConns: e.Config.Database.MaxConns,
			MinConns: e.Config.Database.MinConns,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", attendance.ErrStoreUnavailable, err)
		}
		e.DB = db
		e.closers = append(e.closers, db.Close)
		e.Records = postgresql.NewAttendanceRepository(db)
		e.Employees = postgresql.NewEmployeeRepository(db)
		return nil
	}
	return fmt.Errorf("unsupported store driver %q", e.Config.Store.Driver)
}

// openCache picks the summary cache. The in-process cache only sees writes
// made through this engine, so it is reserved for the memory store; a shared
// store without redis runs uncached.
func (e *Engine) openCache(ctx context.Context) error {
	if e.Config.Redis.URL == "" {
		if e.Config.Store.Driver == config.StoreMemory {
			e.Cache = cache.NewMemory(e.Config.Redis.CacheTTL)
			return nil
		}
		slog.Info("redis not configured, summary cache disabled", "store", e.Config.Store.Driver)
		e.Cache = nil
		return nil
	}

	client, err := cache.Connect(ctx, e.Config.Redis.URL)
	if err != nil {
		return err
	}
	e.closers = append(e.closers, func() {
		if err := client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			slog.Warn("failed to close redis client", "error", err)
		}
	})
	e.Cache = cache.NewRedis(client, e.Config.Redis.CacheTTL)
	return nil
}

// Migrate applies the postgres schema. It is a no-op for the memory store.
func (e *Engine) Migrate(ctx context.Context) error {
	if e.DB == nil {
		return nil
	}
	return postgresql.EnsureSchema(ctx, e.DB)
}

func (e *Engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}
