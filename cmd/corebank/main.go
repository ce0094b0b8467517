package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corebank-io/corebank-go/internal/config"
	"github.com/corebank-io/corebank-go/internal/handler"
	"github.com/corebank-io/corebank-go/internal/infra/cache"
	"github.com/corebank-io/corebank-go/internal/infra/memory"
	"github.com/corebank-io/corebank-go/internal/infra/observability"
	"github.com/corebank-io/corebank-go/internal/infra/postgres"
	"github.com/corebank-io/corebank-go/internal/infra/resilience"
	"github.com/corebank-io/corebank-go/internal/infra/sqlite"
	"github.com/corebank-io/corebank-go/internal/port"
	"github.com/corebank-io/corebank-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("db_driver", cfg.DBDriver),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Bool("accrual_scheduler", cfg.AccrualSchedulerEnabled),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "corebank")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	store, err := newStore(cfg)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	// --- Resilience + cache ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	numberCache := cache.New[string](cfg.CacheTTL)

	// --- Services ---
	penaltyRate := decimal.NewFromFloat(cfg.DefaultPenaltyRate)
	accrualSvc := service.NewAccrualService(store, resilienceCfg, metrics, logger)
	svcs := handler.Services{
		Accounts:  service.NewAccountService(store, metrics, logger),
		Transfers: service.NewTransferService(store, numberCache, metrics, logger),
		Loans:     service.NewLoanService(store, penaltyRate, metrics, logger),
		Savings:   service.NewSavingsService(store, metrics, logger),
		Accrual:   accrualSvc,
	}

	// --- Router + server ---
	router := handler.NewRouter(svcs, store, metrics, logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if cfg.AccrualSchedulerEnabled {
		scheduler := service.NewScheduler(accrualSvc, logger)
		g.Go(func() error {
			return scheduler.Run(ctx)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// newStore opens the ledger store selected by DB_DRIVER.
func newStore(cfg *config.Config) (port.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		return postgres.New(cfg.PostgresDSN)
	case "memory":
		return memory.New(), nil
	default:
		return sqlite.New(cfg.SQLitePath)
	}
}
