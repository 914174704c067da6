package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/abakymuk/nsl-sub001/config"
	"github.com/abakymuk/nsl-sub001/internal/api/sync_api"
	"github.com/abakymuk/nsl-sub001/internal/auth"
	"github.com/abakymuk/nsl-sub001/internal/integrations/portpro"
	"github.com/abakymuk/nsl-sub001/internal/services/poller"
	"github.com/abakymuk/nsl-sub001/internal/services/portprosync"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	api      *sync_api.SyncAPI
	authz    auth.Authorizer
	poller   *poller.Poller
	breaker  *portpro.BreakerClient
	settings portprosync.Settings
	cfg      *config.Config
	ready    []readyCheck
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.swaggerPath != "" {
		if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
			return fmt.Errorf("worker swagger file not found: %s", opts.swaggerPath)
		}
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: newWorkerRouter(opts), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	return srv.Serve(lis)
}

func newWorkerRouter(opts workerHTTPOpts) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		failed := map[string]string{}
		for _, c := range opts.ready {
			if err := c.check(ctx); err != nil {
				failed[c.name] = err.Error()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if len(failed) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "not ready", "failed": failed})
			return
		}
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		out := map[string]any{}
		if opts.poller != nil {
			out["poller"] = opts.poller.Stats()
		} else {
			out["poller"] = "disabled"
		}
		if opts.breaker != nil {
			out["circuitBreaker"] = opts.breaker.State()
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// без секретов: только рабочие параметры
		out := map[string]any{
			"defaultLimit":           opts.settings.DefaultLimit,
			"maxLimit":               opts.settings.MaxLimit,
			"maxPages":               opts.settings.MaxPages,
			"maxDurationSeconds":     int(opts.settings.MaxDuration.Seconds()),
			"portproConfigured":      opts.cfg.PortPro.AccessToken != "" || opts.cfg.PortPro.UseFake,
			"portproRateLimit":       opts.cfg.PortPro.RateLimitPerMinute,
			"signatureCheck":         opts.cfg.Sync.SigningKey != "" || opts.cfg.Sync.NextSigningKey != "",
			"workerEnabled":          opts.cfg.Worker.Enabled,
			"pollIntervalSeconds":    opts.cfg.Worker.PollIntervalSeconds,
			"triggerRateLimitPerMin": opts.cfg.Sync.TriggerRateLimitPerMinute,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.authz == nil || opts.authz.AuthorizeSync(r) != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"sync module access required"}`))
			return
		}
		if opts.poller == nil {
			_, _ = w.Write([]byte(`{"error":"poller not wired"}`))
			return
		}
		opts.poller.Trigger()
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	if opts.api != nil {
		opts.api.Register(r)
	}

	if opts.swaggerPath != "" {
		swaggerPath := opts.swaggerPath
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, swaggerPath)
		})

		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(swaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}

	return r
}
