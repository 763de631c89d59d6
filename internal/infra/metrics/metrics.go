package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	RequestsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "requests_submitted_total",
		Help: "Количество созданных заявок по тарифам",
	}, []string{"tariff"})

	CollectJobSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "collect_job_seconds",
		Help:    "Время полной обработки задачи сбора",
		Buckets: prometheus.DefBuckets,
	})

	CollectJobFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collect_job_failures_total",
		Help: "Ошибки обработки задач сбора",
	})

	CollectJobRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "collect_job_retries_total",
		Help: "Повторные доставки задач сбора",
	})

	PromoIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "promo_issued_total",
		Help: "Количество выданных промокодов",
	})

	PromoRedeemed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "promo_redeemed_total",
		Help: "Количество погашенных промокодов",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		RequestsSubmitted,
		CollectJobSeconds,
		CollectJobFailures,
		CollectJobRetries,
		PromoIssued,
		PromoRedeemed,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest фиксирует длительность и статус сетевого вызова.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	status := strconv.FormatBool(err == nil)
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(time.Since(start).Seconds())
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}
