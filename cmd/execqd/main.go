// Command execqd runs the execq daemon: the HTTP gateway plus an
// optional in-process worker pool, backed by the configured store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/execq/execq/api"
	"github.com/execq/execq/backoff"
	"github.com/execq/execq/engine"
	"github.com/execq/execq/middleware"
	"github.com/execq/execq/observability"
	"github.com/execq/execq/store"
	"github.com/execq/execq/store/memory"
	mongostore "github.com/execq/execq/store/mongo"
	"github.com/execq/execq/store/postgres"
	redisstore "github.com/execq/execq/store/redis"
	"github.com/execq/execq/store/sqlite"
	"github.com/execq/execq/worker"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("execqd: %v", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("execqd exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}

	eng, err := engine.New(st,
		engine.WithLogger(logger),
		engine.WithHistory(st),
		engine.WithExtension(observability.NewMetricsExtension()),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.New(eng, api.WithLogger(logger)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var pool *worker.Pool
	if cfg.Worker.Enabled {
		mws := []middleware.Middleware{
			middleware.Recover(logger),
			middleware.Logging(logger),
		}
		if cfg.Worker.JobTimeout > 0 {
			mws = append(mws, middleware.Timeout(cfg.Worker.JobTimeout.Std()))
		}
		executor := worker.NewExecutor(eng, backoff.DefaultStrategy(),
			cfg.Worker.CompleteRetries, logger, mws...)

		poolOpts := []worker.PoolOption{
			worker.WithPoolConcurrency(cfg.Worker.Concurrency),
			worker.WithPollInterval(cfg.Worker.PollInterval.Std()),
			worker.WithPoolLogger(logger),
		}
		if cfg.Worker.ClaimRate > 0 {
			poolOpts = append(poolOpts, worker.WithClaimLimit(cfg.Worker.ClaimRate, cfg.Worker.ClaimBurst))
		}
		pool = worker.NewPool(eng, executor, poolOpts...)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http gateway listening",
			slog.String("addr", cfg.Listen),
			slog.String("store", cfg.Store.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if pool != nil {
		g.Go(func() error {
			return pool.Start(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", slog.Duration("timeout", cfg.Worker.ShutdownTimeout.Std()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout.Std())
		defer cancel()

		if pool != nil {
			if err := pool.Stop(shutdownCtx); err != nil {
				logger.Error("worker pool stop", slog.String("error", err.Error()))
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", slog.String("error", err.Error()))
		}
		eng.Shutdown(shutdownCtx)
		return nil
	})

	return g.Wait()
}

// openStore builds the configured backend. The returned cleanup closes
// whatever the store itself does not own (clients handed in from here).
func openStore(ctx context.Context, cfg StoreConfig, logger *slog.Logger) (store.Store, func(), error) {
	noop := func() {}

	switch cfg.Driver {
	case "", "memory":
		return memory.New(), noop, nil

	case "sqlite":
		if cfg.DSN == "" {
			return nil, noop, fmt.Errorf("sqlite store requires a dsn (file path)")
		}
		st, err := sqlite.New(cfg.DSN, sqlite.WithLogger(logger))
		if err != nil {
			return nil, noop, err
		}
		return st, func() { st.Close() }, nil

	case "redis":
		client, err := newRedisClient(cfg.DSN)
		if err != nil {
			return nil, noop, err
		}
		st := redisstore.New(client, redisstore.WithLogger(logger))
		return st, func() { client.Close() }, nil

	case "postgres":
		st, err := postgres.New(ctx, cfg.DSN, postgres.WithLogger(logger))
		if err != nil {
			return nil, noop, err
		}
		return st, func() { st.Close() }, nil

	case "mongo":
		client, err := mongod.Connect(mongoopts.Client().ApplyURI(cfg.DSN))
		if err != nil {
			return nil, noop, fmt.Errorf("connect mongo: %w", err)
		}
		dbName := cfg.Database
		if dbName == "" {
			dbName = "execq"
		}
		st := mongostore.New(client.Database(dbName), mongostore.WithLogger(logger))
		cleanup := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logger.Error("mongo disconnect", slog.String("error", err.Error()))
			}
		}
		return st, cleanup, nil

	default:
		return nil, noop, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// newRedisClient accepts either a redis:// URL or a bare host:port.
func newRedisClient(dsn string) (*goredis.Client, error) {
	if dsn == "" {
		dsn = "localhost:6379"
	}
	if strings.Contains(dsn, "://") {
		opts, err := goredis.ParseURL(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return goredis.NewClient(opts), nil
	}
	return goredis.NewClient(&goredis.Options{Addr: dsn}), nil
}

func newLogger(cfg LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
