package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lutefd/draftpoints-api/internal/config"
	"github.com/lutefd/draftpoints-api/internal/events"
	httpserver "github.com/lutefd/draftpoints-api/internal/http"
	"github.com/lutefd/draftpoints-api/internal/logger"
	"github.com/lutefd/draftpoints-api/internal/pointscache"
	"github.com/lutefd/draftpoints-api/internal/progress"
	"github.com/lutefd/draftpoints-api/internal/projections"
	"github.com/lutefd/draftpoints-api/internal/recompute"
	"github.com/lutefd/draftpoints-api/internal/rules"
	"github.com/lutefd/draftpoints-api/internal/scheduler"
	"github.com/lutefd/draftpoints-api/internal/storage/postgres"
	"github.com/lutefd/draftpoints-api/internal/storage/sqlite"
)

// store is everything the services need from persistence. Both the postgres
// and sqlite stores satisfy it.
type store interface {
	httpserver.Store
	rules.Store
	pointscache.Store
	projections.Store
	recompute.Store
	Close()
}

func main() {
	cfgPath := os.Getenv("DRAFT_CONFIG")
	envOnly := os.Getenv("DRAFT_ENV_ONLY") == "true"
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
		if _, err := os.Stat(cfgPath); err != nil {
			envOnly = true
		}
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.DB)
	if err != nil {
		log.Fatal("open store failed", zap.String("driver", cfg.DB.Driver), zap.Error(err))
	}
	defer st.Close()

	var engineOpts []recompute.Option
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal("parse redis url failed", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, progress stream disabled", zap.Error(err))
		} else {
			engineOpts = append(engineOpts, recompute.WithSink(progress.NewRedisSink(rdb)))
		}
	}

	bus := events.NewBus()
	ruleSvc := rules.NewService(st, log)
	cache := pointscache.New(st, log)
	engine := recompute.NewEngine(st, recompute.Config{
		BatchSize: cfg.Recompute.BatchSize,
		Retry: recompute.RetryPolicy{
			MaxAttempts:  cfg.Recompute.MaxAttempts,
			InitialDelay: cfg.Recompute.InitialBackoff,
			MaxDelay:     cfg.Recompute.MaxBackoff,
		},
	}, log, engineOpts...)
	projSvc := projections.NewService(st, bus, log)
	recompute.Subscribe(bus, engine)

	if _, err := ruleSvc.Default(ctx); err != nil {
		log.Fatal("bootstrap default rule failed", zap.Error(err))
	}

	var sched *scheduler.Runner
	if cfg.Cron.Enabled {
		sched = scheduler.New(log, ctx)
		if _, err := sched.Add(cfg.Cron.Recompute, func(ctx context.Context) {
			runs, err := engine.RecomputeAll(ctx)
			if err != nil {
				log.Error("scheduled recompute failed", zap.Error(err))
				return
			}
			log.Info("scheduled recompute started", zap.Int("runs", len(runs)))
		}); err != nil {
			log.Fatal("register cron job failed", zap.String("spec", cfg.Cron.Recompute), zap.Error(err))
		}
		sched.Start()
	}

	srv := httpserver.NewServer(httpserver.Dependencies{
		Store:          st,
		Rules:          ruleSvc,
		Cache:          cache,
		Engine:         engine,
		Projections:    projSvc,
		Bus:            bus,
		APIToken:       cfg.Auth.APIToken,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", zap.String("addr", cfg.Server.HTTPAddr), zap.String("env", cfg.App.Env))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("listen and serve failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown error", zap.Error(err))
	}
	if sched != nil {
		sched.Stop()
	}
	if err := engine.Shutdown(shutdownCtx); err != nil {
		log.Warn("recompute shutdown error", zap.Error(err))
	}
	log.Info("api stopped")
}

func openStore(ctx context.Context, cfg config.DBConfig) (store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.NewStore(ctx, cfg.DSN)
	case config.DriverSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}
}
