// Package main provides the collection engine server: worker pool,
// correlator, pending sweeper, and optionally an embedded reference agent.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/agritrace/collection-model/internal/agent"
	"github.com/agritrace/collection-model/internal/blob"
	"github.com/agritrace/collection-model/internal/bus"
	"github.com/agritrace/collection-model/internal/config"
	"github.com/agritrace/collection-model/internal/correlator"
	"github.com/agritrace/collection-model/internal/jobqueue"
	"github.com/agritrace/collection-model/internal/pipeline"
	"github.com/agritrace/collection-model/internal/repository"
	"github.com/agritrace/collection-model/internal/sourceconfig"
	"github.com/agritrace/collection-model/internal/worker"
)

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()
	cfg := config.Load()

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()
	slog.SetDefault(logger)

	logger.Info("starting collection-server",
		"queue_backend", cfg.QueueBackend, "workers", cfg.WorkerCount, "source_config_dir", cfg.SourceConfigDir)

	if err := run(cfg, logger, *wipeDB); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, wipeDB bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	repoClient, err := repository.NewClient(connectCtx, repository.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := repoClient.Close(context.Background()); err != nil {
			logger.Error("failed to close repository", "error", err)
		}
	}()

	if err := repoClient.InitSchema(ctx); err != nil {
		return err
	}
	if wipeDB || os.Getenv("COLLECTION_WIPE_DB") == "true" {
		if err := repoClient.WipeData(ctx); err != nil {
			return err
		}
	}

	configs, err := sourceconfig.NewDirProvider(cfg.SourceConfigDir)
	if err != nil {
		return err
	}

	blobs, err := blob.NewMinIOStore(blob.MinIOConfig{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		UseSSL:    cfg.MinIOUseSSL,
	}, logger)
	if err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	eventBus := bus.NewRedisBus(redisClient, logger)
	defer eventBus.Close()

	var queue jobqueue.Queue
	switch cfg.QueueBackend {
	case "sqs":
		queue, err = jobqueue.NewSQSQueue(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
		if err != nil {
			return err
		}
	default:
		hostname, _ := os.Hostname()
		queue = jobqueue.NewRedisQueue(redisClient, cfg.QueueName, hostname, logger)
	}

	deps := pipeline.Dependencies{
		Repo:   repoClient,
		Blobs:  blobs,
		Bus:    eventBus,
		Logger: logger,
	}
	registry := pipeline.NewRegistry(deps)
	pipeline.RegisterBuiltins(registry)

	manager := worker.NewManager(repoClient, queue, cfg.RetryBackoff, logger)
	pool := worker.NewPool(manager, queue, registry, configs, cfg.WorkerCount, logger)
	sweeper := worker.NewSweeper(manager, repoClient, cfg.AgentPendingTimeout, cfg.SweepInterval, logger)

	agentIDs, err := configs.AgentIDs(ctx)
	if err != nil {
		return err
	}
	corr := correlator.New(deps, configs, manager, eventBus, logger)
	if err := corr.Start(agentIDs); err != nil {
		return err
	}

	// Embedded reference agent, for development without an agent fleet.
	if cfg.AgentID != "" {
		model, err := agent.NewModel(cfg)
		if err != nil {
			return err
		}
		if err := agent.New(cfg.AgentID, model, eventBus, logger).Start(); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pool.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
	return nil
}
