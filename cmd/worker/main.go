package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/centuary/backend-dealer/internal/config"
	"github.com/centuary/backend-dealer/internal/crm"
	"github.com/centuary/backend-dealer/internal/grn"
	"github.com/centuary/backend-dealer/internal/inventory"
	"github.com/centuary/backend-dealer/internal/obs"
	"github.com/centuary/backend-dealer/internal/queue"
)

// The worker drains the inventory update queue: accepted goods receipt
// quantities are pushed to the CRM outside the request path so a slow or
// unreachable CRM never blocks the portal.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	var crmClient crm.Client
	switch cfg.CRMMode {
	case "mock":
		logger.Warn().Msg("running against the in-memory CRM mock")
		crmClient = crm.NewMock()
	default:
		tokens := &crm.TokenSource{
			HTTP:         &http.Client{Timeout: cfg.CRMTimeout},
			TokenURL:     cfg.CRMTokenURL,
			ClientID:     cfg.CRMClientID,
			ClientSecret: cfg.CRMClientSecret,
		}
		crmClient = crm.NewREST(cfg.CRMBaseURL, tokens, cfg.CRMTimeout, logger)
	}

	pusher := inventory.Pusher{CRM: crmClient, Logger: logger}

	inventoryWorker := queue.Worker{
		R:                 redisClient,
		Prefix:            "dealer",
		Kind:              grn.TaskKindInventoryUpdate,
		Concurrency:       envInt("QUEUE_CONCURRENCY_INVENTORY", 2),
		VisibilityTimeout: envDurationMillis("QUEUE_VISIBILITY_TIMEOUT_MS", 30_000),
		RetryBase:         envDurationMillis("QUEUE_BACKOFF_BASE_MS", 2_000),
		RetryJitter:       0.2,
		Logger:            &logger,
		Handler:           pusher.Handle,
	}

	logger.Info().Str("kind", grn.TaskKindInventoryUpdate).Msg("worker starting")
	if err := inventoryWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
	} else {
		logger.Info().Msg("worker shutdown complete")
	}
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}
