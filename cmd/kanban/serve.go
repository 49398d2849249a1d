package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"kanban/internal/config"
	"kanban/internal/logging"
	"kanban/internal/server"
	"kanban/internal/storage"
)

type serveFlags struct {
	listen string
	db     string
	redis  string
	seed   string
}

func serveCmd(configPath *string) *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the task persistence service",
		Long: `Run the task persistence service.

Examples:
  kanban serve
  kanban serve --listen :9090 --db ./tasks.db
  kanban serve --redis redis://localhost:6379/0 --seed tasks.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath, flags)
		},
	}
	cmd.Flags().StringVar(&flags.listen, "listen", "", "listen address (default from config)")
	cmd.Flags().StringVar(&flags.db, "db", "", "SQLite database path")
	cmd.Flags().StringVar(&flags.redis, "redis", "", "Redis URL for the list cache and idempotent creates")
	cmd.Flags().StringVar(&flags.seed, "seed", "", "JSON file of tasks to import before serving")
	return cmd
}

func importCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import tasks from a JSON file into the service database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}
			lanes, err := cfg.LaneSet()
			if err != nil {
				return err
			}
			store, err := storage.NewSQLiteStore(cfg.DBFile())
			if err != nil {
				return err
			}
			defer store.Close()
			n, err := storage.ImportTasks(cmd.Context(), args[0], store, lanes, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d task(s) into %s\n", n, store.Path())
			return nil
		},
	}
}

func runServe(ctx context.Context, configPath string, flags serveFlags) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	applyServeFlags(&cfg, flags)

	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	lanes, err := cfg.LaneSet()
	if err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("shutdown tracer provider")
		}
	}()

	db, err := storage.NewSQLiteStore(cfg.DBFile())
	if err != nil {
		return err
	}
	defer db.Close()

	if flags.seed != "" {
		n, err := storage.ImportTasks(ctx, flags.seed, db, lanes, logger)
		if err != nil {
			return err
		}
		logger.WithFields(log.Fields{"seed": flags.seed, "imported": n}).Info("seed imported")
	}

	var (
		store   storage.Store = db
		deduper server.Deduper
	)
	if cfg.Service.RedisURL != "" {
		client, err := openRedis(ctx, cfg.Service.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		store = storage.NewCache(db, client, time.Duration(cfg.Service.CacheTTLSeconds)*time.Second)
		deduper = storage.NewRedisDeduper(client, time.Duration(cfg.Service.IdempotencyTTLSeconds)*time.Second)
	}

	svc := server.NewTaskService(store, lanes, deduper, logger)
	e := server.New(svc, cfg.Service, logger)
	logger.WithFields(log.Fields{
		"listen": cfg.Service.Listen,
		"db":     db.Path(),
		"redis":  cfg.Service.RedisURL != "",
	}).Info("kanban service starting")
	return server.Serve(ctx, e, cfg.Service.Listen)
}

func applyServeFlags(cfg *config.Config, flags serveFlags) {
	if v := strings.TrimSpace(flags.listen); v != "" {
		cfg.Service.Listen = v
	}
	if v := strings.TrimSpace(flags.db); v != "" {
		cfg.Service.DBPath = v
	}
	if v := strings.TrimSpace(flags.redis); v != "" {
		cfg.Service.RedisURL = v
	}
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
