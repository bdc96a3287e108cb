package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tg-challenge-backend/internal/adapters/docstore"
	"tg-challenge-backend/internal/adapters/events"
	"tg-challenge-backend/internal/adapters/httpapi"
	"tg-challenge-backend/internal/domain"
	"tg-challenge-backend/internal/infra/config"
	"tg-challenge-backend/internal/infra/db"
	httpinfra "tg-challenge-backend/internal/infra/http"
	"tg-challenge-backend/internal/infra/lock"
	loginfra "tg-challenge-backend/internal/infra/log"
	"tg-challenge-backend/internal/infra/metrics"
	"tg-challenge-backend/internal/usecase/challenges"
	"tg-challenge-backend/internal/usecase/profile"
)

func main() {
	cfg := config.Load()
	logger := loginfra.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store domain.DocStore
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := db.ConnectPostgres(cfg.Store.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: нет подключения к Postgres")
		}
		defer pool.Close()
		pgStore, err := docstore.NewPostgres(pool)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: не удалось подготовить Postgres")
		}
		store = pgStore
	case "mongo":
		client, err := db.ConnectMongo(cfg.Store.MongoURI)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: нет подключения к Mongo")
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		store = docstore.NewMongo(client.Database(cfg.Store.MongoDB))
	default:
		logger.Fatal().Str("driver", cfg.Store.Driver).Msg("api: неизвестный драйвер хранилища")
	}

	var locker domain.Locker = lock.NoopLocker{}
	if cfg.RedisAddr != "" {
		locker = lock.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
		logger.Info().Msg("api: лимиты сериализуются через Redis")
	}

	var publisher domain.EventPublisher = events.NoopPublisher{}
	if cfg.AMQP.URL != "" {
		rabbit, err := events.NewRabbitPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger.With().Str("component", "events").Logger())
		if err != nil {
			logger.Fatal().Err(err).Msg("api: нет подключения к RabbitMQ")
		}
		defer rabbit.Close()
		publisher = rabbit
	}

	limits := domain.Limits{
		FreeJoin:      cfg.Limits.FreeJoin,
		FreeCreate:    cfg.Limits.FreeCreate,
		PremiumCreate: cfg.Limits.PremiumCreate,
	}
	challengeUC := challenges.NewService(store, publisher, locker, limits, cfg.AdminUserID, logger.With().Str("component", "challenges").Logger())
	profileUC := profile.NewService(store)

	srv := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	httpapi.NewHandler(challengeUC, profileUC, logger.With().Str("component", "api").Logger()).Register(srv.Router)

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
