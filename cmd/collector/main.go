package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"repa-backend/internal/adapters/repo"
	"repa-backend/internal/infra/clock"
	"repa-backend/internal/infra/config"
	"repa-backend/internal/infra/db"
	applog "repa-backend/internal/infra/log"
	"repa-backend/internal/infra/metrics"
	"repa-backend/internal/infra/queue"
	collectusecase "repa-backend/internal/usecase/collect"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("collector: нет подключения к БД")
	}
	defer pool.Close()

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("collector: не указан адрес Redis (REDIS_ADDR)")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	repoAdapter := repo.NewPostgres(pool)
	collectQueue := queue.NewRedisCollectQueue(redisClient, cfg.Queues.Collect)
	collectSvc := collectusecase.NewService(repoAdapter, repoAdapter, clock.System{}, cfg.Collect.StepDelay, cfg.Collect.BatchSize)

	worker := collectusecase.NewWorker(logger, collectQueue, repoAdapter, collectSvc, cfg.Collect.MaxAttempts)

	logger.Info().Msg("collector: запуск обработки очереди")
	worker.Run(ctx)
	logger.Info().Msg("collector: остановлен")
}
