package tracking_api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abakymuk/nsl-sub001/internal/models"
	"github.com/abakymuk/nsl-sub001/internal/services/tracking"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeTracker struct {
	load   *models.Load
	events []*models.TrackingEvent
	err    error
	asked  string
}

func (f *fakeTracker) GetLoad(ctx context.Context, tn string) (*models.Load, error) {
	f.asked = tn
	if f.err != nil {
		return nil, f.err
	}
	return f.load, nil
}

func (f *fakeTracker) ListEvents(ctx context.Context, tn string) ([]*models.TrackingEvent, error) {
	f.asked = tn
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func serve(t *testing.T, f *fakeTracker, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	New(f).Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func strp(s string) *string { return &s }

func TestGetLoad_OK_HidesMoney(t *testing.T) {
	rev := decimal.RequireFromString("1250.50")
	f := &fakeTracker{load: &models.Load{
		ID:              1,
		TrackingNumber:  "NSL-MFX2K9QZ-7Q1Z",
		ContainerNumber: "MSCU1234567",
		Status:          models.LoadStatusInTransit,
		Origin:          strp("APM Terminal, Elizabeth, NJ"),
		Revenue:         &rev,
	}}
	rec := serve(t, f, "/api/tracking/NSL-MFX2K9QZ-7Q1Z")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "NSL-MFX2K9QZ-7Q1Z", f.asked)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "in_transit", out["status"])
	require.Equal(t, "MSCU1234567", out["containerNumber"])
	require.Equal(t, "APM Terminal, Elizabeth, NJ", out["origin"])
	require.NotContains(t, out, "revenue")
	require.NotContains(t, out, "destination")
}

func TestGetLoad_Errors(t *testing.T) {
	rec := serve(t, &fakeTracker{err: models.ErrNotFound}, "/api/tracking/NSL-NOPE-0000")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, &fakeTracker{err: tracking.ErrTrackingNumberRequired}, "/api/tracking/%20")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, &fakeTracker{err: errors.New("db down")}, "/api/tracking/NSL-X-0000")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "db down")
}

func TestListEvents(t *testing.T) {
	arrived := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	departed := arrived.Add(90 * time.Minute)
	dur := 90 * time.Minute
	f := &fakeTracker{events: []*models.TrackingEvent{
		{MoveNumber: 1, StopNumber: 0, EventType: models.EventTypeMoveStarted, Status: models.EventStatusCompleted},
		{MoveNumber: 1, StopNumber: 1, EventType: models.EventTypePickup, EventTypeRaw: "PULLCONTAINER",
			Status: models.EventStatusCompleted, ArrivedAt: &arrived, DepartedAt: &departed, Duration: &dur},
	}}
	rec := serve(t, f, "/api/tracking/nsl-mfx2k9qz-7q1z/events")
	require.Equal(t, http.StatusOK, rec.Code)

	var out EventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "NSL-MFX2K9QZ-7Q1Z", out.TrackingNumber)
	require.Len(t, out.Events, 2)
	require.Equal(t, "move_started", out.Events[0].Type)
	require.Nil(t, out.Events[0].DurationMinutes)
	require.Equal(t, int64(90), *out.Events[1].DurationMinutes)
	require.True(t, out.Events[1].ArrivedAt.Equal(arrived))
}

func TestListEvents_EmptyIsArray(t *testing.T) {
	rec := serve(t, &fakeTracker{}, "/api/tracking/NSL-A-0000/events")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"events":[]`)
}
