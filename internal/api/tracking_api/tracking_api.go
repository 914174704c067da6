package tracking_api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/abakymuk/nsl-sub001/internal/models"
	"github.com/abakymuk/nsl-sub001/internal/services/tracking"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

type Tracker interface {
	GetLoad(ctx context.Context, trackingNumber string) (*models.Load, error)
	ListEvents(ctx context.Context, trackingNumber string) ([]*models.TrackingEvent, error)
}

type TrackingAPI struct {
	svc Tracker
}

func New(svc Tracker) *TrackingAPI {
	return &TrackingAPI{svc: svc}
}

func (a *TrackingAPI) Register(r chi.Router) {
	r.Get("/api/tracking/{trackingNumber}", a.handleGetLoad)
	r.Get("/api/tracking/{trackingNumber}/events", a.handleListEvents)
}

// Load is the customer view of a shipment. Revenue and margin stay internal.
type Load struct {
	TrackingNumber  string     `json:"trackingNumber"`
	ContainerNumber string     `json:"containerNumber"`
	ReferenceNumber *string    `json:"referenceNumber,omitempty"`
	Status          string     `json:"status"`
	Origin          *string    `json:"origin,omitempty"`
	Destination     *string    `json:"destination,omitempty"`
	ShipperName     *string    `json:"shipperName,omitempty"`
	ConsigneeName   *string    `json:"consigneeName,omitempty"`
	ContainerSize   *string    `json:"containerSize,omitempty"`
	ContainerType   *string    `json:"containerType,omitempty"`
	BookingNumber   *string    `json:"bookingNumber,omitempty"`
	BillOfLading    *string    `json:"billOfLading,omitempty"`
	LastFreeDay     *time.Time `json:"lastFreeDay,omitempty"`
	SyncedAt        time.Time  `json:"syncedAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type Event struct {
	MoveNumber      int        `json:"moveNumber"`
	StopNumber      int        `json:"stopNumber"`
	Type            string     `json:"type"`
	TypeRaw         string     `json:"typeRaw,omitempty"`
	Status          string     `json:"status"`
	Location        *string    `json:"location,omitempty"`
	ArrivedAt       *time.Time `json:"arrivedAt,omitempty"`
	DepartedAt      *time.Time `json:"departedAt,omitempty"`
	DurationMinutes *int64     `json:"durationMinutes,omitempty"`
}

type EventsResponse struct {
	TrackingNumber string  `json:"trackingNumber"`
	Events         []Event `json:"events"`
}

func (a *TrackingAPI) handleGetLoad(w http.ResponseWriter, r *http.Request) {
	l, err := a.svc.GetLoad(r.Context(), chi.URLParam(r, "trackingNumber"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoad(l))
}

func (a *TrackingAPI) handleListEvents(w http.ResponseWriter, r *http.Request) {
	tn := chi.URLParam(r, "trackingNumber")
	evs, err := a.svc.ListEvents(r.Context(), tn)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	out := EventsResponse{
		TrackingNumber: strings.ToUpper(strings.TrimSpace(tn)),
		Events:         make([]Event, 0, len(evs)),
	}
	for _, e := range evs {
		out.Events = append(out.Events, toEvent(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "tracking number not found"})
	case errors.Is(err, tracking.ErrTrackingNumberRequired):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("tracking lookup", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func toLoad(l *models.Load) Load {
	return Load{
		TrackingNumber:  l.TrackingNumber,
		ContainerNumber: l.ContainerNumber,
		ReferenceNumber: l.ReferenceNumber,
		Status:          string(l.Status),
		Origin:          l.Origin,
		Destination:     l.Destination,
		ShipperName:     l.ShipperName,
		ConsigneeName:   l.ConsigneeName,
		ContainerSize:   l.ContainerSize,
		ContainerType:   l.ContainerType,
		BookingNumber:   l.BookingNumber,
		BillOfLading:    l.BillOfLading,
		LastFreeDay:     l.LastFreeDay,
		SyncedAt:        l.SyncedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

func toEvent(e *models.TrackingEvent) Event {
	out := Event{
		MoveNumber: e.MoveNumber,
		StopNumber: e.StopNumber,
		Type:       e.EventType,
		TypeRaw:    e.EventTypeRaw,
		Status:     string(e.Status),
		Location:   e.Location,
		ArrivedAt:  e.ArrivedAt,
		DepartedAt: e.DepartedAt,
	}
	if e.Duration != nil {
		m := int64(e.Duration.Minutes())
		out.DurationMinutes = &m
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
