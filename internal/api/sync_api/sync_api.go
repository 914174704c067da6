package sync_api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/abakymuk/nsl-sub001/internal/auth"
	"github.com/abakymuk/nsl-sub001/internal/integrations/portpro"
	"github.com/abakymuk/nsl-sub001/internal/models"
	"github.com/abakymuk/nsl-sub001/internal/services/portprosync"
	"github.com/abakymuk/nsl-sub001/internal/webhook"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const maxBodyBytes = 1 << 20

type Syncer interface {
	SyncPage(ctx context.Context, skip, limit int) (portprosync.Summary, error)
	Poll(ctx context.Context, trigger portprosync.Trigger, skip, limit int) (portprosync.Summary, error)
	LastSummary(ctx context.Context) (portprosync.Summary, error)
}

type SignatureVerifier interface {
	Enabled() bool
	Verify(token, url string, body []byte) error
}

type SyncAPI struct {
	svc      Syncer
	authz    auth.Authorizer
	verifier SignatureVerifier

	publicURL          string
	rateLimitPerMinute int
}

func New(svc Syncer, authz auth.Authorizer, verifier SignatureVerifier) *SyncAPI {
	return &SyncAPI{svc: svc, authz: authz, verifier: verifier, rateLimitPerMinute: 30}
}

// WithPublicURL pins the URL the cron signature is checked against. Without
// it the URL is rebuilt from the request.
func (a *SyncAPI) WithPublicURL(u string) *SyncAPI {
	a.publicURL = strings.TrimSpace(u)
	return a
}

func (a *SyncAPI) WithRateLimit(perMinute int) *SyncAPI {
	if perMinute > 0 {
		a.rateLimitPerMinute = perMinute
	}
	return a
}

func (a *SyncAPI) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(a.rateLimitPerMinute, time.Minute))
		r.Post("/api/portpro/sync", a.handleManualSync)
		r.Post("/api/cron/portpro-poll", a.handleCronPoll)
	})
	r.Get("/api/portpro/sync/last", a.handleLastSummary)
}

type manualSyncRequest struct {
	Limit int `json:"limit"`
	Skip  int `json:"skip"`
}

type cronPollRequest struct {
	Limit int `json:"limit"`
	Skip  int `json:"skip"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (a *SyncAPI) handleManualSync(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	var req manualSyncRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	sum, err := a.svc.SyncPage(r.Context(), req.Skip, req.Limit)
	writeSummary(w, sum, err)
}

func (a *SyncAPI) handleCronPoll(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	if a.verifier != nil && a.verifier.Enabled() {
		if err := a.verifier.Verify(r.Header.Get(webhook.HeaderSignature), a.requestURL(r), body); err != nil {
			slog.Warn("cron poll rejected", "error", err.Error())
			writeError(w, http.StatusUnauthorized, webhook.ErrInvalidSignature.Error())
			return
		}
	} else {
		slog.Warn("cron poll accepted without signature check, no signing keys configured")
	}

	var req cronPollRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		// тело от планировщика не обязано быть JSON
		_ = json.Unmarshal(body, &req)
	}

	sum, err := a.svc.Poll(r.Context(), portprosync.TriggerCron, req.Skip, req.Limit)
	writeSummary(w, sum, err)
}

func (a *SyncAPI) handleLastSummary(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r) {
		return
	}
	sum, err := a.svc.LastSummary(r.Context())
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no sync run recorded")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *SyncAPI) authorize(w http.ResponseWriter, r *http.Request) bool {
	if a.authz == nil {
		writeError(w, http.StatusForbidden, auth.ErrForbidden.Error())
		return false
	}
	err := a.authz.AuthorizeSync(r)
	switch {
	case err == nil:
		return true
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, http.StatusForbidden, err.Error())
	}
	return false
}

func (a *SyncAPI) requestURL(r *http.Request) string {
	if a.publicURL != "" {
		return a.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	host := r.Host
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = h
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

// StatusFor maps a run error onto the trigger response code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, portprosync.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, portpro.ErrNotConfigured):
		return http.StatusInternalServerError
	default:
		// транспорт, 429 от PortPro, открытый breaker
		return http.StatusBadGateway
	}
}

func writeSummary(w http.ResponseWriter, sum portprosync.Summary, err error) {
	if err != nil {
		sum.Success = false
		if sum.Error == "" {
			sum.Error = err.Error()
		}
	}
	writeJSON(w, StatusFor(err), sum)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
