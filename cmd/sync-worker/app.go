package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abakymuk/nsl-sub001/config"
	"github.com/abakymuk/nsl-sub001/internal/api/sync_api"
	"github.com/abakymuk/nsl-sub001/internal/auth"
	"github.com/abakymuk/nsl-sub001/internal/broker/kafka"
	"github.com/abakymuk/nsl-sub001/internal/broker/messages"
	"github.com/abakymuk/nsl-sub001/internal/cache/rediscache"
	"github.com/abakymuk/nsl-sub001/internal/integrations/portpro"
	"github.com/abakymuk/nsl-sub001/internal/integrations/portpro/fake"
	"github.com/abakymuk/nsl-sub001/internal/integrations/portpro/portprohttp"
	"github.com/abakymuk/nsl-sub001/internal/services/poller"
	"github.com/abakymuk/nsl-sub001/internal/services/portprosync"
	"github.com/abakymuk/nsl-sub001/internal/storage/pgloads"
	"github.com/abakymuk/nsl-sub001/internal/webhook"
)

type readyCheck struct {
	name  string
	check func(ctx context.Context) error
}

type workerFactories struct {
	newStorage       func(ctx context.Context, cfg *config.Config) (repo portprosync.Repository, ready readyCheck, closeFn func(), err error)
	newRedis         func(cfg *config.Config) *rediscache.RedisCache
	newProducer      func(cfg *config.Config) portprosync.Producer
	newPortProClient func(cfg *config.Config, limiter portprohttp.Limiter) portpro.Client
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(ctx context.Context, cfg *config.Config) (portprosync.Repository, readyCheck, func(), error) {
			st, err := pgloads.New(ctx, cfg.Database.ConnString())
			if err != nil {
				return nil, readyCheck{}, nil, err
			}
			return st, readyCheck{name: "postgres", check: st.Ping}, st.Close, nil
		},
		newRedis: func(cfg *config.Config) *rediscache.RedisCache {
			if cfg.Redis.Host == "" {
				return nil
			}
			return rediscache.New(rediscache.Options{
				Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
		},
		newProducer: func(cfg *config.Config) portprosync.Producer {
			if cfg.Kafka.Host == "" {
				return nil
			}
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newPortProClient: func(cfg *config.Config, limiter portprohttp.Limiter) portpro.Client {
			if cfg.PortPro.UseFake {
				return fake.New()
			}
			opts := []portprohttp.Option{
				portprohttp.WithTimeout(time.Duration(cfg.PortPro.TimeoutSeconds) * time.Second),
			}
			if limiter != nil && cfg.PortPro.RateLimitPerMinute > 0 {
				opts = append(opts, portprohttp.WithRateLimit(limiter, int64(cfg.PortPro.RateLimitPerMinute)))
			}
			return portprohttp.New(cfg.PortPro.BaseURL, cfg.PortPro.AccessToken, opts...)
		},
	}
}

func syncSettings(cfg *config.Config) portprosync.Settings {
	return portprosync.Settings{
		DefaultLimit:      cfg.Sync.DefaultLimit,
		MaxLimit:          cfg.Sync.MaxLimit,
		MaxPages:          cfg.Sync.MaxPages,
		MaxDuration:       time.Duration(cfg.Sync.MaxDurationSeconds) * time.Second,
		ErrorDetailsLimit: cfg.Sync.ErrorDetailsLimit,
		LockTTL:           time.Duration(cfg.Sync.LockTTLSeconds) * time.Second,
	}
}

func plannerConfig(cfg *config.Config) poller.PlannerConfig {
	sec := func(n int) time.Duration { return time.Duration(n) * time.Second }
	return poller.PlannerConfig{
		IdleMinDelay:  sec(cfg.Worker.IdleMinSeconds),
		IdleMaxDelay:  sec(cfg.Worker.IdleMaxSeconds),
		ContinueDelay: sec(cfg.Worker.ContinueSeconds),
		Backoff1:      sec(cfg.Worker.Backoff1Seconds),
		Backoff2:      sec(cfg.Worker.Backoff2Seconds),
		Backoff3:      sec(cfg.Worker.Backoff3Seconds),
		Backoff4:      sec(cfg.Worker.Backoff4Seconds),
	}
}

func authorizer(cfg *config.Config) auth.Authorizer {
	if cfg.Sync.AllowAnonymous {
		slog.Warn("sync routes open to anonymous callers")
		return auth.AllowAll{}
	}
	return auth.NewStaticTokens(cfg.Sync.AccessTokens...)
}

// RunSyncWorker wires the sync service and serves it until ctx is done.
func RunSyncWorker(ctx context.Context, cfg *config.Config, f workerFactories, onListen func(addr string)) error {
	repo, pgReady, closeFn, err := f.newStorage(ctx, cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	checks := []readyCheck{}
	if pgReady.check != nil {
		checks = append(checks, pgReady)
	}

	var limiter portprohttp.Limiter
	rc := f.newRedis(cfg)
	if rc != nil {
		defer func() { _ = rc.Close() }()
		limiter = rediscache.NewRateLimiter(rc.Client())
		checks = append(checks, readyCheck{name: "redis", check: rc.Ping})
	}

	breaker := portpro.NewBreakerClient(f.newPortProClient(cfg, limiter), portpro.BreakerSettings{
		ConsecutiveFailures: uint32(cfg.PortPro.BreakerFailures),
		OpenTimeout:         time.Duration(cfg.PortPro.BreakerTimeoutSeconds) * time.Second,
	})

	svc := portprosync.New(breaker, repo, syncSettings(cfg))
	if p := f.newProducer(cfg); p != nil {
		topic := cfg.Kafka.LoadSyncedTopicName
		if topic == "" {
			topic = messages.TopicLoadSynced
		}
		svc.WithProducer(p, topic)
		if c, ok := p.(interface{ Close() error }); ok {
			defer func() { _ = c.Close() }()
		}
	}
	if rc != nil {
		svc.WithLocker(rediscache.NewLocker(rc.Client())).WithSummaryStore(rc)
	}

	authz := authorizer(cfg)
	api := sync_api.New(svc, authz, webhook.NewVerifier(cfg.Sync.SigningKey, cfg.Sync.NextSigningKey)).
		WithPublicURL(cfg.Sync.PublicURL).
		WithRateLimit(cfg.Sync.TriggerRateLimitPerMinute)

	var p *poller.Poller
	if cfg.Worker.Enabled {
		p = poller.New(svc).
			WithSettings(time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second).
			WithPlanner(plannerConfig(cfg))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    cfg.Sync.HTTPAddr,
			swaggerPath: cfg.Sync.SwaggerPath,
			onListen:    onListen,
			api:         api,
			authz:       authz,
			poller:      p,
			breaker:     breaker,
			settings:    svc.Settings(),
			cfg:         cfg,
			ready:       checks,
		})
	}()
	if p != nil {
		slog.Info("scheduled sync poller started", "poll_interval_seconds", cfg.Worker.PollIntervalSeconds)
		go func() { errCh <- p.Run(ctx) }()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
