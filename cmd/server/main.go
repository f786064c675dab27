package main

import (
	"assignment-wizard-service/internal/adapters/backend"
	"assignment-wizard-service/internal/adapters/cache"
	"assignment-wizard-service/internal/adapters/sessions"
	"assignment-wizard-service/internal/api"
	"assignment-wizard-service/internal/config"
	"assignment-wizard-service/internal/domain"
	"assignment-wizard-service/internal/platform/db"
	"assignment-wizard-service/internal/platform/obs"
	"assignment-wizard-service/internal/ports"
	"assignment-wizard-service/internal/services"
	"assignment-wizard-service/internal/wizard"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// main is the application composition root.
// It wires concrete adapters (backend REST client, leg cache, session store)
// behind ports and starts the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := obs.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy, err := wizard.ParseCapacityPolicy(cfg.CapacityPolicy)
	if err != nil {
		return err
	}

	metrics := obs.NewMetrics()

	client, err := backend.NewClient(backend.Options{
		BaseURL:         cfg.BackendURL,
		Token:           cfg.BackendToken,
		Logger:          logger,
		OnBreakerChange: metrics.ObserveBreaker,
	})
	if err != nil {
		return err
	}

	legDB, legCache, err := openLegCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer legDB.Close()

	store, closeStore, err := openSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctrl := services.NewController(services.Deps{
		Recipients: client,
		Couriers:   client,
		Optimizer:  client,
		Legs:       cache.NewCachedLegCalculator(client, legCache, metrics),
		Writer:     client,
		Store:      store,
	}, services.Options{
		Policy:         policy,
		QuietPeriod:    cfg.SearchQuietPeriod,
		TSPConcurrency: cfg.TSPConcurrency,
		CallTimeout:    cfg.CallTimeout,
		Depot:          &domain.Location{Lat: cfg.DepotLatitude, Lng: cfg.DepotLongitude},
		Metrics:        metrics,
		Logger:         logger,
	})

	// Timeouts are tuned for CVRP solves, which the backend may take a minute on.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(ctrl, metrics, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("backend", cfg.BackendURL),
			zap.String("session_store", cfg.SessionStore),
			zap.String("capacity_policy", string(policy)),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openLegCache uses Postgres when DATABASE_URL is set and a local SQLite file
// otherwise. The schema is created on startup.
func openLegCache(ctx context.Context, cfg config.Config) (*sql.DB, ports.LegCache, error) {
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := cache.InitSchema(ctx, conn, cache.DialectPostgres); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return conn, cache.NewSQLLegCache(conn, cfg.LegCacheTTL), nil
	}

	conn, err := db.OpenSQLite(cfg.LegCachePath)
	if err != nil {
		return nil, nil, err
	}
	if err := cache.InitSchema(ctx, conn, cache.DialectSQLite); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, cache.NewSqliteLegCache(conn, cfg.LegCacheTTL), nil
}

func openSessionStore(ctx context.Context, cfg config.Config) (ports.SessionStore, func(), error) {
	if cfg.SessionStore != "redis" {
		return sessions.NewMemoryStore(cfg.SessionTTL), func() {}, nil
	}

	store := sessions.NewRedisStore(cfg.RedisAddr, "", 0, sessions.WithTTL(cfg.SessionTTL))
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	return store, func() { _ = store.Close() }, nil
}
