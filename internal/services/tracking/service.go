package tracking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abakymuk/nsl-sub001/internal/broker/messages"
	"github.com/abakymuk/nsl-sub001/internal/cache"
	"github.com/abakymuk/nsl-sub001/internal/metrics"
	"github.com/abakymuk/nsl-sub001/internal/models"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

var ErrTrackingNumberRequired = errors.New("tracking number is required")

//go:generate mockery --name=Repository --output=./mocks --outpkg=mocks --filename=repository.go --structname=MockRepository
type Repository interface {
	GetLoadByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Load, error)
	GetLoadByID(ctx context.Context, id uint64) (*models.Load, error)
	ListLoadEvents(ctx context.Context, loadID uint64) ([]*models.TrackingEvent, error)
}

type Service struct {
	repo  Repository
	cache cache.BytesCache
	ttl   time.Duration
}

func New(repo Repository, c cache.BytesCache, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: c, ttl: ttl}
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.ttl > 0
}

// GetLoad returns the shipment behind a customer tracking number.
func (s *Service) GetLoad(ctx context.Context, trackingNumber string) (*models.Load, error) {
	tn, err := normalize(trackingNumber)
	if err != nil {
		return nil, err
	}

	var l models.Load
	if s.fromCache(ctx, "load", loadKey(tn), &l) {
		return &l, nil
	}

	got, err := s.repo.GetLoadByTrackingNumber(ctx, tn)
	if err != nil {
		return nil, err
	}
	s.toCache(ctx, loadKey(tn), got)
	return got, nil
}

// ListEvents returns the load timeline ordered by move then stop.
func (s *Service) ListEvents(ctx context.Context, trackingNumber string) ([]*models.TrackingEvent, error) {
	l, err := s.GetLoad(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}

	var events []*models.TrackingEvent
	if s.fromCache(ctx, "events", eventsKey(l.TrackingNumber), &events) {
		return events, nil
	}

	events, err = s.repo.ListLoadEvents(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*models.TrackingEvent{}
	}
	s.toCache(ctx, eventsKey(l.TrackingNumber), events)
	return events, nil
}

// ApplyLoadSynced refreshes the cached load and timeline after a sync wrote
// the load.
func (s *Service) ApplyLoadSynced(ctx context.Context, msg messages.LoadSynced) error {
	if msg.LoadID == 0 {
		return errors.New("load_id is required")
	}
	if !s.cacheEnabled() {
		return nil
	}

	l, err := s.repo.GetLoadByID(ctx, msg.LoadID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "reload load")
	}
	s.toCache(ctx, loadKey(l.TrackingNumber), l)

	events, err := s.repo.ListLoadEvents(ctx, l.ID)
	if err != nil {
		// устаревший таймлайн хуже пустого кэша
		_ = s.cache.Delete(ctx, eventsKey(l.TrackingNumber))
		return errors.Wrap(err, "reload events")
	}
	if events == nil {
		events = []*models.TrackingEvent{}
	}
	s.toCache(ctx, eventsKey(l.TrackingNumber), events)
	return nil
}

func (s *Service) fromCache(ctx context.Context, kind, key string, dst any) bool {
	if !s.cacheEnabled() {
		return false
	}
	b, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok || json.Unmarshal(b, dst) != nil {
		metrics.TrackingCacheRequests.WithLabelValues(kind, "miss").Inc()
		return false
	}
	metrics.TrackingCacheRequests.WithLabelValues(kind, "hit").Inc()
	return true
}

func (s *Service) toCache(ctx context.Context, key string, v any) {
	if !s.cacheEnabled() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, key, b, s.ttl)
}

func normalize(trackingNumber string) (string, error) {
	tn := strings.ToUpper(strings.TrimSpace(trackingNumber))
	if tn == "" {
		return "", ErrTrackingNumberRequired
	}
	return tn, nil
}

func loadKey(tn string) string {
	return fmt.Sprintf("tracking:%s:load", tn)
}

func eventsKey(tn string) string {
	return fmt.Sprintf("tracking:%s:events", tn)
}
