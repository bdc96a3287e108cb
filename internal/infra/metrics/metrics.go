package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ChallengeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "challenge_requests_total",
		Help: "Количество запросов по операциям",
	}, []string{"operation"})

	ChallengeRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "challenge_rejections_total",
		Help: "Отказы по бизнес-правилам по кодам",
	}, []string{"code"})

	StoreRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_request_duration_seconds",
		Help:    "Длительность обращений к документному хранилищу",
		Buckets: prometheus.DefBuckets,
	}, []string{"driver", "operation", "collection", "status"})

	StoreRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_request_total",
		Help: "Количество обращений к документному хранилищу",
	}, []string{"driver", "operation", "collection", "status"})

	BotSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_send_errors_total",
		Help: "Ошибки отправки сообщений ботом",
	})

	EventPublishErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "event_publish_errors_total",
		Help: "Ошибки публикации доменных событий",
	})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ChallengeRequestsTotal,
		ChallengeRejectionsTotal,
		StoreRequestDuration,
		StoreRequestTotal,
		BotSendErrors,
		EventPublishErrors,
	)
}

// ObserveStoreOp записывает длительность и статус обращения к хранилищу.
func ObserveStoreOp(driver, operation, collection string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	StoreRequestDuration.WithLabelValues(driver, operation, collection, status).Observe(duration)
	StoreRequestTotal.WithLabelValues(driver, operation, collection, status).Inc()
}

// IncRequest увеличивает счётчик запросов операции.
func IncRequest(operation string) {
	ChallengeRequestsTotal.WithLabelValues(operation).Inc()
}

// IncRejection увеличивает счётчик отказов по коду.
func IncRejection(code string) {
	ChallengeRejectionsTotal.WithLabelValues(code).Inc()
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
