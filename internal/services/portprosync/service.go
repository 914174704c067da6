package portprosync

import (
	"context"
	"log/slog"
	"time"

	"github.com/abakymuk/nsl-sub001/internal/broker/messages"
	"github.com/abakymuk/nsl-sub001/internal/cache"
	"github.com/abakymuk/nsl-sub001/internal/integrations/portpro"
	"github.com/abakymuk/nsl-sub001/internal/metrics"
	"github.com/abakymuk/nsl-sub001/internal/models"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrRunInProgress is returned when another run holds the sync lock.
var ErrRunInProgress = errors.New("portpro sync already in progress")

type Repository interface {
	GetLoadByContainerNumber(ctx context.Context, containerNumber string) (*models.Load, error)
	InsertLoad(ctx context.Context, trackingNumber string, in models.LoadUpsert) (*models.Load, error)
	UpdateLoad(ctx context.Context, id uint64, in models.LoadUpsert) (*models.Load, error)
	ReplaceSyncedEvents(ctx context.Context, loadID uint64, events []models.TrackingEvent) error
	// ConvertQuote reports false when no open quote has that number.
	ConvertQuote(ctx context.Context, quoteNumber string, loadID uint64, at time.Time) (bool, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error)
}

type Settings struct {
	DefaultLimit      int
	MaxLimit          int
	MaxPages          int
	MaxDuration       time.Duration
	ErrorDetailsLimit int

	LockKey string
	LockTTL time.Duration

	LastSummaryKey string
	LastSummaryTTL time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		DefaultLimit:      50,
		MaxLimit:          200,
		MaxPages:          20,
		MaxDuration:       50 * time.Second,
		ErrorDetailsLimit: 10,
		LockKey:           "lock:portpro-sync",
		LastSummaryKey:    "portpro:sync:last",
		LastSummaryTTL:    7 * 24 * time.Hour,
	}
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.DefaultLimit <= 0 {
		s.DefaultLimit = def.DefaultLimit
	}
	if s.MaxLimit <= 0 {
		s.MaxLimit = def.MaxLimit
	}
	if s.MaxPages <= 0 {
		s.MaxPages = def.MaxPages
	}
	if s.MaxDuration <= 0 {
		s.MaxDuration = def.MaxDuration
	}
	if s.ErrorDetailsLimit <= 0 {
		s.ErrorDetailsLimit = def.ErrorDetailsLimit
	}
	if s.LockKey == "" {
		s.LockKey = def.LockKey
	}
	if s.LockTTL <= 0 {
		s.LockTTL = s.MaxDuration + 30*time.Second
	}
	if s.LastSummaryKey == "" {
		s.LastSummaryKey = def.LastSummaryKey
	}
	if s.LastSummaryTTL <= 0 {
		s.LastSummaryTTL = def.LastSummaryTTL
	}
	return s
}

// Request bounds one run.
type Request struct {
	Trigger Trigger
	Skip    int
	Limit   int
	// Pages is the number of pages to walk; 0 means one page.
	Pages int
	// SkipUnchanged leaves loads alone when PortPro's updatedAt is not newer
	// than the stored one.
	SkipUnchanged bool
}

type Service struct {
	client   portpro.Client
	repo     Repository
	settings Settings

	producer Producer
	topic    string
	locker   Locker
	store    cache.BytesCache

	now func() time.Time
}

func New(client portpro.Client, repo Repository, settings Settings) *Service {
	return &Service{
		client:   client,
		repo:     repo,
		settings: settings.withDefaults(),
		topic:    messages.TopicLoadSynced,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithProducer(p Producer, topic string) *Service {
	s.producer = p
	if topic != "" {
		s.topic = topic
	}
	return s
}

func (s *Service) WithLocker(l Locker) *Service {
	s.locker = l
	return s
}

// WithSummaryStore keeps the last run summary for GET /api/portpro/sync/last.
func (s *Service) WithSummaryStore(c cache.BytesCache) *Service {
	s.store = c
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Settings() Settings {
	return s.settings
}

// SyncPage runs the manual variant: one page, every load written.
func (s *Service) SyncPage(ctx context.Context, skip, limit int) (Summary, error) {
	return s.Run(ctx, Request{Trigger: TriggerManual, Skip: skip, Limit: limit, Pages: 1})
}

// Poll runs the scheduled variant: pages of limit loads from skip until
// PortPro runs out, the page cap or the time budget, skipping loads unchanged
// upstream. limit 0 means the default page size.
func (s *Service) Poll(ctx context.Context, trigger Trigger, skip, limit int) (Summary, error) {
	return s.Run(ctx, Request{Trigger: trigger, Skip: skip, Limit: limit, Pages: s.settings.MaxPages, SkipUnchanged: true})
}

func (s *Service) normalize(req Request) Request {
	if req.Trigger == "" {
		req.Trigger = TriggerManual
	}
	if req.Skip < 0 {
		req.Skip = 0
	}
	if req.Limit <= 0 {
		req.Limit = s.settings.DefaultLimit
	}
	if req.Limit > s.settings.MaxLimit {
		req.Limit = s.settings.MaxLimit
	}
	if req.Pages <= 0 {
		req.Pages = 1
	}
	if req.Pages > s.settings.MaxPages {
		req.Pages = s.settings.MaxPages
	}
	return req
}

// run is the per-invocation state.
type run struct {
	req     Request
	sum     *Summary
	seen    map[string]struct{}
	numbers *trackingNumbers
}

func (s *Service) Run(ctx context.Context, req Request) (Summary, error) {
	req = s.normalize(req)
	start := s.now()
	sum := Summary{
		RunID:     uuid.NewString(),
		Trigger:   req.Trigger,
		StartedAt: start,
		NextSkip:  req.Skip,
	}

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, s.settings.LockKey, s.settings.LockTTL)
		switch {
		case err != nil:
			slog.Warn("sync lock unavailable, running without it", "run_id", sum.RunID, "error", err.Error())
		case !ok:
			metrics.SyncRunsTotal.WithLabelValues(string(req.Trigger), "conflict").Inc()
			sum.Error = ErrRunInProgress.Error()
			return sum, ErrRunInProgress
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					slog.Warn("release sync lock", "run_id", sum.RunID, "error", err.Error())
				}
			}()
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, s.settings.MaxDuration)
	defer cancel()

	r := &run{
		req:     req,
		sum:     &sum,
		seen:    make(map[string]struct{}),
		numbers: newTrackingNumbers(s.now),
	}
	err := s.walk(runCtx, r)

	sum.DurationMs = s.now().Sub(start).Milliseconds()
	result := "ok"
	if err != nil {
		result = "failed"
		sum.Error = err.Error()
	} else {
		sum.Success = true
	}
	metrics.SyncRunsTotal.WithLabelValues(string(req.Trigger), result).Inc()
	metrics.SyncRunDuration.WithLabelValues(string(req.Trigger)).Observe(float64(sum.DurationMs) / 1000)

	slog.Info("portpro sync finished",
		"run_id", sum.RunID,
		"trigger", sum.Trigger,
		"success", sum.Success,
		"total", sum.Total,
		"synced", sum.Synced,
		"updated", sum.Updated,
		"unchanged", sum.Unchanged,
		"skipped", sum.Skipped,
		"errors", sum.Errors,
		"has_more", sum.HasMore,
		"next_skip", sum.NextSkip,
		"duration_ms", sum.DurationMs,
	)
	s.storeSummary(context.WithoutCancel(ctx), sum)
	return sum, err
}

func (s *Service) walk(ctx context.Context, r *run) error {
	skip := r.req.Skip
	for page := 0; page < r.req.Pages; page++ {
		if ctx.Err() != nil {
			// budget spent between pages
			r.sum.HasMore = true
			return nil
		}

		p, err := s.client.FetchLoads(ctx, skip, r.req.Limit)
		if err != nil {
			if page > 0 && errors.Is(err, context.DeadlineExceeded) {
				r.sum.HasMore = true
				return nil
			}
			return errors.Wrap(err, "fetch portpro loads")
		}
		r.sum.Pages++
		r.sum.Total += len(p.Loads)

		done := s.processPage(ctx, r, p.Loads)
		skip += done
		r.sum.NextSkip = skip
		if done < len(p.Loads) {
			r.sum.HasMore = true
			return nil
		}
		r.sum.HasMore = hasMore(p, skip, r.req.Limit)
		if !r.sum.HasMore {
			return nil
		}
	}
	return nil
}

// hasMore trusts PortPro's count when it sends one, otherwise a full page
// means there may be another.
func hasMore(p portpro.Page, next, limit int) bool {
	if p.Count > 0 {
		return next < p.Count
	}
	return len(p.Loads) >= limit
}

// processPage returns how many loads were handled before the budget ran out.
func (s *Service) processPage(ctx context.Context, r *run, loads []portpro.Load) int {
	for i, l := range loads {
		if ctx.Err() != nil {
			return i
		}
		s.processOne(ctx, r, l)
	}
	return len(loads)
}

type outcome string

const (
	outcomeSynced    outcome = "synced"
	outcomeUpdated   outcome = "updated"
	outcomeUnchanged outcome = "unchanged"
	outcomeSkipped   outcome = "skipped"
	outcomeError     outcome = "error"
)

func (s *Service) processOne(ctx context.Context, r *run, l portpro.Load) {
	res := outcomeSkipped
	defer func() { metrics.SyncRecordsTotal.WithLabelValues(string(res)).Inc() }()

	cn := l.ContainerNo
	if cn == "" {
		r.sum.Skipped++
		return
	}
	if _, dup := r.seen[cn]; dup {
		r.sum.Skipped++
		return
	}
	r.seen[cn] = struct{}{}

	res, err := s.upsert(ctx, r, l)
	if err != nil {
		res = outcomeError
		r.sum.addError(cn+": "+err.Error(), s.settings.ErrorDetailsLimit)
		slog.Warn("portpro load sync failed", "run_id", r.sum.RunID, "container", cn, "portpro_id", l.ID, "error", err.Error())
		return
	}
	switch res {
	case outcomeSynced:
		r.sum.Synced++
	case outcomeUpdated:
		r.sum.Updated++
	case outcomeUnchanged:
		r.sum.Unchanged++
	}
}

func (s *Service) upsert(ctx context.Context, r *run, l portpro.Load) (outcome, error) {
	now := s.now()

	existing, err := s.repo.GetLoadByContainerNumber(ctx, l.ContainerNo)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return outcomeError, errors.Wrap(err, "lookup load")
	}
	if err != nil {
		existing = nil
	}

	if existing != nil && r.req.SkipUnchanged && unchangedUpstream(existing, l) {
		return outcomeUnchanged, nil
	}

	in := BuildUpsert(l, existing, now)

	var (
		load *models.Load
		res  outcome
	)
	if existing != nil {
		load, err = s.repo.UpdateLoad(ctx, existing.ID, in)
		if err != nil {
			return outcomeError, errors.Wrap(err, "update load")
		}
		res = outcomeUpdated
	} else {
		tn, err := r.numbers.next()
		if err != nil {
			return outcomeError, err
		}
		load, err = s.repo.InsertLoad(ctx, tn, in)
		if err != nil {
			return outcomeError, errors.Wrap(err, "insert load")
		}
		res = outcomeSynced
		s.convertQuote(ctx, r, l.ReferenceNumber, load, now)
	}

	events := FlattenEvents(l.DriverOrders)
	if err := s.repo.ReplaceSyncedEvents(ctx, load.ID, events); err != nil {
		return outcomeError, errors.Wrap(err, "replace events")
	}

	s.publish(ctx, r, load, res == outcomeSynced, len(events), now)
	return res, nil
}

// unchangedUpstream needs both timestamps; a load PortPro sends without
// updatedAt is rewritten on every poll.
func unchangedUpstream(existing *models.Load, l portpro.Load) bool {
	return existing.PortProUpdatedAt != nil && l.UpdatedAt != nil && !l.UpdatedAt.After(*existing.PortProUpdatedAt)
}

// BuildUpsert maps a PortPro load onto the stored columns. An unknown
// status keeps the stored one, or pending for a new load.
func BuildUpsert(l portpro.Load, existing *models.Load, now time.Time) models.LoadUpsert {
	status := models.LoadStatusPending
	if existing != nil && existing.Status != "" {
		status = existing.Status
	}
	if st := MapStatus(l.Status); st != nil {
		status = *st
	}

	return models.LoadUpsert{
		ContainerNumber:  l.ContainerNo,
		ReferenceNumber:  strPtr(l.ReferenceNumber),
		PortProID:        strPtr(l.ID),
		Status:           status,
		StatusRaw:        l.Status,
		Origin:           FormatLocation(l.Shipper),
		Destination:      FormatLocation(l.Consignee),
		CustomerName:     partyName(l.Customer),
		ShipperName:      partyName(l.Shipper),
		ConsigneeName:    partyName(l.Consignee),
		ContainerSize:    ExtractLookupValue(l.ContainerSize),
		ContainerType:    ExtractLookupValue(l.ContainerType),
		ContainerOwner:   ExtractLookupValue(l.ContainerOwner),
		BookingNumber:    strPtr(l.BookingNo),
		BillOfLading:     strPtr(l.BillOfLading),
		Revenue:          moneyTotal(l.Revenue),
		Margin:           CalculateMargin(l),
		LastFreeDay:      l.LastFreeDay,
		PortProUpdatedAt: l.UpdatedAt,
		SyncedAt:         now,
	}
}

func (s *Service) convertQuote(ctx context.Context, r *run, ref string, load *models.Load, now time.Time) {
	if ref == "" {
		return
	}
	ok, err := s.repo.ConvertQuote(ctx, ref, load.ID, now)
	if err != nil {
		slog.Warn("convert quote", "run_id", r.sum.RunID, "quote_number", ref, "load_id", load.ID, "error", err.Error())
		return
	}
	if ok {
		r.sum.Converted++
		slog.Info("quote converted", "run_id", r.sum.RunID, "quote_number", ref, "load_id", load.ID)
	}
}

func (s *Service) publish(ctx context.Context, r *run, load *models.Load, created bool, eventCount int, now time.Time) {
	if s.producer == nil {
		return
	}
	b, err := json.Marshal(messages.LoadSynced{
		RunID:           r.sum.RunID,
		LoadID:          load.ID,
		TrackingNumber:  load.TrackingNumber,
		ContainerNumber: load.ContainerNumber,
		Status:          string(load.Status),
		Created:         created,
		EventCount:      eventCount,
		SyncedAt:        now,
	})
	if err != nil {
		slog.Error("marshal load synced", "load_id", load.ID, "error", err.Error())
		return
	}
	if err := s.producer.Publish(ctx, s.topic, []byte(load.ContainerNumber), b); err != nil {
		metrics.BrokerPublishErrors.WithLabelValues(s.topic).Inc()
		slog.Warn("publish load synced", "run_id", r.sum.RunID, "load_id", load.ID, "error", err.Error())
	}
}

func (s *Service) storeSummary(ctx context.Context, sum Summary) {
	if s.store == nil {
		return
	}
	b, err := json.Marshal(sum)
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, s.settings.LastSummaryKey, b, s.settings.LastSummaryTTL); err != nil {
		slog.Warn("store sync summary", "run_id", sum.RunID, "error", err.Error())
	}
}

// LastSummary returns the summary of the most recent finished run.
func (s *Service) LastSummary(ctx context.Context) (Summary, error) {
	if s.store == nil {
		return Summary{}, models.ErrNotFound
	}
	b, ok, err := s.store.Get(ctx, s.settings.LastSummaryKey)
	if err != nil {
		return Summary{}, err
	}
	if !ok {
		return Summary{}, models.ErrNotFound
	}
	var sum Summary
	if err := json.Unmarshal(b, &sum); err != nil {
		return Summary{}, errors.Wrap(err, "decode sync summary")
	}
	return sum, nil
}
