package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abakymuk/nsl-sub001/config"
	"github.com/abakymuk/nsl-sub001/internal/broker/kafka"
	"github.com/abakymuk/nsl-sub001/internal/broker/messages"
	"github.com/abakymuk/nsl-sub001/internal/cache/rediscache"
	"github.com/abakymuk/nsl-sub001/internal/services/tracking"
	"github.com/abakymuk/nsl-sub001/internal/storage/pgloads"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.Tracking.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.Kafka.TrackingConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "track-api"
	}
	topic := cfg.Kafka.LoadSyncedTopicName
	if topic == "" {
		topic = messages.TopicLoadSynced
	}
	cacheTTL := time.Duration(cfg.Tracking.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st := mustOpenPostgresWithRetry(ctx, cfg.Database.ConnString(), 60*time.Second)
	defer st.Close()

	rc := rediscache.New(rediscache.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rc.Close() }()

	svc := tracking.New(st, rc, cacheTTL)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)
	defer func() { _ = consumer.Close() }()

	err = runTrackAPI(ctx, trackAPIOpts{
		httpAddr:      httpAddr,
		swaggerPath:   cfg.Tracking.SwaggerPath,
		topic:         topic,
		consumerGroup: consumerGroup,
	}, svc, consumer)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

// mustOpenPostgresWithRetry waits for postgres started alongside the API.
func mustOpenPostgresWithRetry(ctx context.Context, connString string, wait time.Duration) *pgloads.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgloads.New(ctx, connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}
