package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"repa-backend/internal/adapters/httpapi"
	"repa-backend/internal/adapters/repo"
	"repa-backend/internal/infra/clock"
	"repa-backend/internal/infra/config"
	"repa-backend/internal/infra/db"
	httpinfra "repa-backend/internal/infra/http"
	"repa-backend/internal/infra/idgen"
	applog "repa-backend/internal/infra/log"
	"repa-backend/internal/infra/metrics"
	"repa-backend/internal/infra/queue"
	authusecase "repa-backend/internal/usecase/auth"
	demousecase "repa-backend/internal/usecase/demo"
	paymentsusecase "repa-backend/internal/usecase/payments"
	promousecase "repa-backend/internal/usecase/promo"
	publicationsusecase "repa-backend/internal/usecase/publications"
	requestsusecase "repa-backend/internal/usecase/requests"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("api: не указан адрес Redis (REDIS_ADDR)")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	repoAdapter := repo.NewPostgres(pool)
	collectQueue := queue.NewRedisCollectQueue(redisClient, cfg.Queues.Collect)
	systemClock := clock.System{}
	ids := idgen.Hex{}

	requestsSvc := requestsusecase.NewService(repoAdapter, collectQueue, systemClock, ids, cfg.Business.Currency)
	promosSvc := promousecase.NewService(repoAdapter, systemClock, cfg.Business.PromoDefaultPercent, cfg.Business.PromoTTLDays)
	demosSvc := demousecase.NewService(repoAdapter, systemClock, ids, cfg.Business.DemoTTL, cfg.Business.DemoMaxItems)
	paymentsSvc := paymentsusecase.NewService(repoAdapter, repoAdapter)
	pubsSvc := publicationsusecase.NewService(repoAdapter, repoAdapter, demosSvc)
	authSvc := authusecase.NewService(repoAdapter, cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.Expiration, systemClock)

	api := httpapi.NewServer(requestsSvc, promosSvc, demosSvc, paymentsSvc, pubsSvc, authSvc, cfg.Business.Currency,
		httpapi.WithLogger(logger.With().Str("component", "httpapi").Logger()))

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	api.Mount(server.Router)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("api: ошибка остановки сервера")
		}
	}()

	if err := server.Start(":" + strconv.Itoa(cfg.Port)); err != nil {
		logger.Fatal().Err(err).Msg("api: сервер остановился с ошибкой")
	}
	logger.Info().Msg("api: остановлен")
}
