package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"sigdesk.app/server/common/id"
	"sigdesk.app/server/common/logger"
	"sigdesk.app/server/common/otel"
	"sigdesk.app/server/core/config"
	"sigdesk.app/server/core/crypto"
	"sigdesk.app/server/core/db"
	"sigdesk.app/server/internal/azure"
	"sigdesk.app/server/internal/queue"
	"sigdesk.app/server/internal/service"
	"sigdesk.app/server/internal/store"
	"sigdesk.app/server/internal/worker"
)

const janitorInterval = 15 * time.Minute

func main() {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Setup(cfg)

	slog.InfoContext(ctx, "sigdesk worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Pipeline.RedisGroup,
		"consumer_name", cfg.Pipeline.RedisConsumer)

	// Different node ID than the server so snowflakes never collide.
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Pipeline.RedisStream,
		Group:        cfg.Pipeline.RedisGroup,
		Consumer:     cfg.Pipeline.RedisConsumer,
		DLQStream:    cfg.Pipeline.RedisDLQStream,
		BatchSize:    1,
		Block:        5 * time.Second,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, slog.Default())

	sealer, err := crypto.NewSealer(cfg.SecretKey)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize secret sealer", "error", err)
		os.Exit(1)
	}

	stores := store.NewStores(database.Conn())
	services := service.NewServices(service.Deps{
		Stores:   stores,
		TxRunner: service.NewTxRunner(database),
		Identity: service.NewWorkOSIdentityProvider(cfg.WorkOS),
		Sealer:   sealer,
		AzureClients: azure.NewClientFactory(azure.Options{
			PageSize: cfg.Azure.GraphPageSize,
			Timeout:  cfg.Azure.RequestTimeout,
		}),
		Producer:     producer,
		AzureConfig:  cfg.Azure,
		DashboardURL: cfg.DashboardURL,
	})

	processor := worker.NewDeploymentProcessor(stores, &workerTxRunnerAdapter{db: database}, services.Directory(),
		worker.DeploymentProcessorConfig{RenderWorkers: cfg.Pipeline.RenderWorkers})

	w := worker.New(consumer, processor, services.Directory(), worker.Config{
		MaxAttempts: cfg.Pipeline.MaxAttempts,
	})

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Pipeline.RedisStream,
		Group:     cfg.Pipeline.RedisGroup,
		Consumer:  cfg.Pipeline.RedisConsumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  time.Minute,
		BatchSize: 10,
	}, consumer, w)

	janitor := worker.NewJanitor(services.Auth(), services.Invitations(), janitorInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go reclaimer.Run(ctx)
	go janitor.Run(ctx)

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	workerDone := false
	select {
	case <-quit:
	case err := <-errCh:
		workerDone = true
		if err != nil {
			slog.ErrorContext(ctx, "worker stopped unexpectedly", "error", err)
		}
	}

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reclaimer.Stop()
	janitor.Stop()
	w.Stop()
	stop()

	if !workerDone {
		select {
		case <-shutdownCtx.Done():
			slog.WarnContext(shutdownCtx, "shutdown timeout exceeded")
		case err := <-errCh:
			if err != nil {
				slog.ErrorContext(shutdownCtx, "worker error during shutdown", "error", err)
			}
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "worker shutdown complete")
}

// workerTxRunnerAdapter bridges db.DB to worker.TxRunner.
type workerTxRunnerAdapter struct {
	db *db.DB
}

func (a *workerTxRunnerAdapter) WithTx(ctx context.Context, fn func(stores worker.StoreProvider) error) error {
	return a.db.WithTx(ctx, func(tx db.DBTX) error {
		return fn(store.NewStores(tx))
	})
}

const banner = `
███████╗██╗ ██████╗ ██████╗ ███████╗███████╗██╗  ██╗    ██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗
██╔════╝██║██╔════╝ ██╔══██╗██╔════╝██╔════╝██║ ██╔╝    ██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
███████╗██║██║  ███╗██║  ██║█████╗  ███████╗█████╔╝     ██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
╚════██║██║██║   ██║██║  ██║██╔══╝  ╚════██║██╔═██╗     ██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
███████║██║╚██████╔╝██████╔╝███████╗███████║██║  ██╗    ╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██████╔╝
╚══════╝╚═╝ ╚═════╝ ╚═════╝ ╚══════╝╚══════╝╚═╝  ╚═╝     ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
