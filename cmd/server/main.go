package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"sigdesk.app/server/common/id"
	"sigdesk.app/server/common/logger"
	"sigdesk.app/server/common/otel"
	"sigdesk.app/server/core/config"
	"sigdesk.app/server/core/crypto"
	"sigdesk.app/server/core/db"
	"sigdesk.app/server/internal/azure"
	"sigdesk.app/server/internal/http/middleware"
	httprouter "sigdesk.app/server/internal/http/router"
	"sigdesk.app/server/internal/queue"
	"sigdesk.app/server/internal/ratelimit"
	"sigdesk.app/server/internal/service"
	"sigdesk.app/server/internal/store"
	"sigdesk.app/server/internal/validate"
)

const maxBodyBytes = 256 << 10

func main() {
	fmt.Printf("%s\n", banner)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "sigdesk server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
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
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, slog.Default())
	defer producer.Close()

	sealer, err := crypto.NewSealer(cfg.SecretKey)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize secret sealer", "error", err)
		os.Exit(1)
	}

	services := service.NewServices(service.Deps{
		Stores:   store.NewStores(database.Conn()),
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

	limiters, err := httprouter.NewLimiters(rateLimitStore(ctx, cfg, redisClient))
	if err != nil {
		slog.ErrorContext(ctx, "failed to configure rate limiters", "error", err)
		os.Exit(1)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validate.RegisterGinValidators(); err != nil {
		slog.ErrorContext(ctx, "failed to register validators", "error", err)
		os.Exit(1)
	}

	router := setupRouter(cfg, services, limiters)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

// rateLimitStore picks the limiter backend. The memory store is swept until
// ctx is cancelled.
func rateLimitStore(ctx context.Context, cfg config.Config, client *redis.Client) ratelimit.Store {
	if cfg.RateLimit.Store == "redis" {
		slog.InfoContext(ctx, "rate limiting backed by redis", "prefix", cfg.RateLimit.Prefix)
		return ratelimit.NewRedisStore(client, cfg.RateLimit.Prefix, nil)
	}

	mem := ratelimit.NewMemoryStore(nil)
	go mem.Run(ctx, time.Minute)
	slog.InfoContext(ctx, "rate limiting backed by process memory")
	return mem
}

func setupRouter(cfg config.Config, services *service.Services, limiters httprouter.Limiters) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(maxBodyBytes))

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		DashboardURL: cfg.DashboardURL,
		Limiters:     limiters,
	})

	return router
}

const banner = `
███████╗██╗ ██████╗ ██████╗ ███████╗███████╗██╗  ██╗
██╔════╝██║██╔════╝ ██╔══██╗██╔════╝██╔════╝██║ ██╔╝
███████╗██║██║  ███╗██║  ██║█████╗  ███████╗█████╔╝
╚════██║██║██║   ██║██║  ██║██╔══╝  ╚════██║██╔═██╗
███████║██║╚██████╔╝██████╔╝███████╗███████║██║  ██╗
╚══════╝╚═╝ ╚═════╝ ╚═════╝ ╚══════╝╚══════╝╚═╝  ╚═╝
`
