package sync_api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abakymuk/nsl-sub001/internal/auth"
	"github.com/abakymuk/nsl-sub001/internal/integrations/portpro"
	"github.com/abakymuk/nsl-sub001/internal/models"
	"github.com/abakymuk/nsl-sub001/internal/services/portprosync"
	"github.com/abakymuk/nsl-sub001/internal/webhook"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	skip, limit int
	trigger     portprosync.Trigger
	pageCalls   int
	pollCalls   int

	sum  portprosync.Summary
	err  error
	last *portprosync.Summary
}

func (f *fakeSyncer) SyncPage(ctx context.Context, skip, limit int) (portprosync.Summary, error) {
	f.pageCalls++
	f.skip, f.limit = skip, limit
	return f.sum, f.err
}

func (f *fakeSyncer) Poll(ctx context.Context, trigger portprosync.Trigger, skip, limit int) (portprosync.Summary, error) {
	f.pollCalls++
	f.trigger, f.skip, f.limit = trigger, skip, limit
	return f.sum, f.err
}

func (f *fakeSyncer) LastSummary(ctx context.Context) (portprosync.Summary, error) {
	if f.last == nil {
		return portprosync.Summary{}, models.ErrNotFound
	}
	return *f.last, nil
}

const cronURL = "https://nsl.example.com/api/cron/portpro-poll"

func newRouter(api *SyncAPI) http.Handler {
	r := chi.NewRouter()
	api.Register(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, token string, body []byte, hdr map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	out := map[string]any{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestManualSync_PassesBodyAndReturnsSummary(t *testing.T) {
	fs := &fakeSyncer{sum: portprosync.Summary{Success: true, Total: 50, Synced: 10, Updated: 40, HasMore: true, NextSkip: 150}}
	h := newRouter(New(fs, auth.NewStaticTokens("ops"), nil))

	rec, out := do(t, h, http.MethodPost, "/api/portpro/sync", "ops", []byte(`{"limit":50,"skip":100}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 100, fs.skip)
	require.Equal(t, 50, fs.limit)
	require.Equal(t, true, out["success"])
	require.Equal(t, float64(50), out["total"])
	require.Equal(t, float64(150), out["nextSkip"])
	require.Equal(t, true, out["hasMore"])
}

func TestManualSync_EmptyBodyUsesDefaults(t *testing.T) {
	fs := &fakeSyncer{sum: portprosync.Summary{Success: true}}
	h := newRouter(New(fs, auth.NewStaticTokens("ops"), nil))

	rec, _ := do(t, h, http.MethodPost, "/api/portpro/sync", "ops", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, fs.skip)
	require.Equal(t, 0, fs.limit)
}

func TestManualSync_Access(t *testing.T) {
	fs := &fakeSyncer{}
	h := newRouter(New(fs, auth.NewStaticTokens("ops"), nil))

	rec, out := do(t, h, http.MethodPost, "/api/portpro/sync", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, false, out["success"])

	rec, _ = do(t, h, http.MethodPost, "/api/portpro/sync", "intruder", nil, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Zero(t, fs.pageCalls)
}

func TestManualSync_BadJSON(t *testing.T) {
	fs := &fakeSyncer{}
	h := newRouter(New(fs, auth.AllowAll{}, nil))
	rec, _ := do(t, h, http.MethodPost, "/api/portpro/sync", "", []byte(`{"limit":`), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, fs.pageCalls)
}

func TestManualSync_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"conflict", portprosync.ErrRunInProgress, http.StatusConflict},
		{"not configured", errors.Wrap(portpro.ErrNotConfigured, "fetch page"), http.StatusInternalServerError},
		{"rate limited", errors.Wrap(portpro.ErrRateLimited, "portpro http 429"), http.StatusBadGateway},
		{"transport", errors.New("dial tcp: connection refused"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := &fakeSyncer{err: tc.err}
			h := newRouter(New(fs, auth.AllowAll{}, nil))
			rec, out := do(t, h, http.MethodPost, "/api/portpro/sync", "", nil, nil)
			require.Equal(t, tc.code, rec.Code)
			require.Equal(t, false, out["success"])
			require.NotEmpty(t, out["error"])
		})
	}
}

func TestCronPoll_Signed(t *testing.T) {
	now := time.Now()
	fs := &fakeSyncer{sum: portprosync.Summary{Success: true}}
	v := webhook.NewVerifier("signing-key", "next-key")
	h := newRouter(New(fs, nil, v).WithPublicURL(cronURL))

	body := []byte(`{"skip":200}`)
	tok, err := webhook.Sign("next-key", "", cronURL, body, now, time.Minute)
	require.NoError(t, err)

	rec, _ := do(t, h, http.MethodPost, "/api/cron/portpro-poll", "", body, map[string]string{webhook.HeaderSignature: tok})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, portprosync.TriggerCron, fs.trigger)
	require.Equal(t, 200, fs.skip)

	rec, out := do(t, h, http.MethodPost, "/api/cron/portpro-poll", "", []byte(`{"skip":0}`), map[string]string{webhook.HeaderSignature: tok})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, false, out["success"])
	require.Equal(t, 1, fs.pollCalls)
}

func TestCronPoll_URLFromRequest(t *testing.T) {
	fs := &fakeSyncer{sum: portprosync.Summary{Success: true}}
	v := webhook.NewVerifier("signing-key", "")
	h := newRouter(New(fs, nil, v))

	url := "https://nsl.example.com/api/cron/portpro-poll"
	tok, err := webhook.Sign("signing-key", "", url, nil, time.Now(), time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/cron/portpro-poll", nil)
	req.Host = "nsl.example.com"
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set(webhook.HeaderSignature, tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCronPoll_NoKeysAcceptsUnsigned(t *testing.T) {
	fs := &fakeSyncer{sum: portprosync.Summary{Success: true}}
	h := newRouter(New(fs, nil, webhook.NewVerifier("", "")))

	rec, _ := do(t, h, http.MethodPost, "/api/cron/portpro-poll", "", []byte("ping"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, fs.skip)
	require.Equal(t, 0, fs.limit)
}

func TestCronPoll_PassesLimitAndSkip(t *testing.T) {
	fs := &fakeSyncer{sum: portprosync.Summary{Success: true}}
	v := webhook.NewVerifier("signing-key", "")
	h := newRouter(New(fs, nil, v).WithPublicURL(cronURL))

	body := []byte(`{"limit":5,"skip":10}`)
	tok, err := webhook.Sign("signing-key", "", cronURL, body, time.Now(), time.Minute)
	require.NoError(t, err)

	rec, _ := do(t, h, http.MethodPost, "/api/cron/portpro-poll", "", body, map[string]string{webhook.HeaderSignature: tok})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, fs.pollCalls)
	require.Equal(t, 0, fs.pageCalls)
	require.Equal(t, 10, fs.skip)
	require.Equal(t, 5, fs.limit)
}

func TestLastSummary(t *testing.T) {
	fs := &fakeSyncer{}
	h := newRouter(New(fs, auth.NewStaticTokens("ops"), nil))

	rec, _ := do(t, h, http.MethodGet, "/api/portpro/sync/last", "ops", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	fs.last = &portprosync.Summary{Success: true, RunID: "run-1", Synced: 3}
	rec, out := do(t, h, http.MethodGet, "/api/portpro/sync/last", "ops", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "run-1", out["runId"])
}

func TestTriggerRoutes_RateLimited(t *testing.T) {
	fs := &fakeSyncer{sum: portprosync.Summary{Success: true}}
	h := newRouter(New(fs, auth.AllowAll{}, nil).WithRateLimit(2))

	for i := 0; i < 2; i++ {
		rec, _ := do(t, h, http.MethodPost, "/api/portpro/sync", "", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, _ := do(t, h, http.MethodPost, "/api/portpro/sync", "", nil, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, 2, fs.pageCalls)
}
