package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/oriys/mqs/internal/api"
	"github.com/oriys/mqs/internal/cache"
	"github.com/oriys/mqs/internal/config"
	"github.com/oriys/mqs/internal/engine"
	"github.com/oriys/mqs/internal/logging"
	"github.com/oriys/mqs/internal/metrics"
	"github.com/oriys/mqs/internal/queue"
	"github.com/oriys/mqs/internal/store"
	"github.com/oriys/mqs/internal/tracing"
	"github.com/spf13/cobra"
)

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mqsd HTTP daemon",
		Long:  "Run mqsd as an HTTP daemon serving queue CRUD, publish, receive, and delete.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http") {
				cfg.Daemon.HTTPAddr = httpAddr
			}

			logging.SetLevelFromString(cfg.Daemon.LogLevel)

			ctx := context.Background()

			if err := tracing.Init(ctx, tracing.Config{
				Enabled:     cfg.Tracing.Enabled,
				Endpoint:    cfg.Tracing.Endpoint,
				ServiceName: cfg.Tracing.ServiceName,
				SampleRate:  cfg.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer tracing.Shutdown(context.Background())

			repo, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN, store.PoolConfig{
				MinConns: cfg.Postgres.MinConns,
				MaxConns: cfg.Postgres.MaxConns,
			})
			if err != nil {
				return fmt.Errorf("connect to postgres: %w", err)
			}
			defer repo.Close()

			qc := cache.NewQueueCache()
			registry := queue.NewRegistry()

			var notifier engine.Notifier = engine.NewRegistrySignaler(registry)
			var redisClient *redis.Client
			if cfg.Redis.URL != "" {
				opts, err := redis.ParseURL(cfg.Redis.URL)
				if err != nil {
					return fmt.Errorf("parse redis url: %w", err)
				}
				redisClient = redis.NewClient(opts)
				fanout := queue.NewRedisFanout(registry, redisClient, logging.Op())
				notifier = fanout
				logging.Op().Info("redis notify fan-out enabled", "url", cfg.Redis.URL)
			}

			qe := engine.NewQueueEngine(repo)
			me := engine.NewMessageEngine(repo, qc, registry, notifier, logging.Op())

			if cfg.Metrics.Enabled {
				metrics.InitPrometheus(cfg.Metrics.Namespace, func() float64 {
					n, err := repo.CountQueues(context.Background())
					if err != nil {
						return 0
					}
					return float64(n)
				})
			}

			httpServer := api.StartHTTPServer(cfg.Daemon.HTTPAddr, api.ServerConfig{
				Repo:           repo,
				QueueEngine:    qe,
				MessageEngine:  me,
				MaxMessageSize: cfg.Daemon.MaxMessageSize,
			})
			logging.Op().Info("HTTP API started", "addr", cfg.Daemon.HTTPAddr)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			logging.Op().Info("shutdown signal received")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
				logging.Op().Error("error shutting down HTTP server", "error", err)
			}
			if redisClient != nil {
				redisClient.Close()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address (overrides config)")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		Long:  "Connect to Postgres, create the queues and messages tables and indexes if missing, then exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logging.SetLevelFromString(cfg.Daemon.LogLevel)

			repo, err := store.NewPostgresStore(context.Background(), cfg.Postgres.DSN, store.PoolConfig{
				MinConns: cfg.Postgres.MinConns,
				MaxConns: cfg.Postgres.MaxConns,
			})
			if err != nil {
				return fmt.Errorf("connect to postgres: %w", err)
			}
			defer repo.Close()

			logging.Op().Info("schema is up to date")
			return nil
		},
	}
	return cmd
}
