package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abakymuk/nsl-sub001/internal/services/portprosync"
	"github.com/pkg/errors"
)

type Syncer interface {
	Poll(ctx context.Context, trigger portprosync.Trigger, skip, limit int) (portprosync.Summary, error)
}

// Poller drives the scheduled sync inside the worker process. It keeps the
// page cursor between runs and backs off after failed runs.
type Poller struct {
	syncer  Syncer
	planner *Planner

	pollInterval time.Duration
	now          func() time.Time

	triggerCh chan struct{}

	nextSkip  atomic.Int64
	nextRunAt atomic.Int64
	failCount atomic.Int32

	startedAtUnixNano   int64
	lastRunUnixNano     atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalRuns           atomic.Int64
	totalFailures       atomic.Int64
	totalConflicts      atomic.Int64
	totalSynced         atomic.Int64
	totalUpdated        atomic.Int64
	totalRecordErrors   atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(syncer Syncer) *Poller {
	return &Poller{
		syncer:            syncer,
		planner:           DefaultPlanner(),
		pollInterval:      5 * time.Second,
		now:               func() time.Time { return time.Now().UTC() },
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func DefaultPlanner() *Planner {
	return NewPlanner(DefaultPlannerConfig(), nil)
}

// WithSettings sets how often the loop checks whether a run is due.
func (p *Poller) WithSettings(pollInterval time.Duration) *Poller {
	if pollInterval > 0 {
		p.pollInterval = pollInterval
	}
	return p
}

func (p *Poller) WithPlanner(cfg PlannerConfig) *Poller {
	p.planner = NewPlanner(cfg, nil)
	return p
}

func (p *Poller) WithClock(now func() time.Time) *Poller {
	if now != nil {
		p.now = now
	}
	return p
}

// Trigger forces an immediate run, ignoring backoff (best-effort, non-blocking).
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt           time.Time  `json:"startedAt"`
	LastRunAt           *time.Time `json:"lastRunAt,omitempty"`
	LastTriggerAt       *time.Time `json:"lastTriggerAt,omitempty"`
	NextRunAt           *time.Time `json:"nextRunAt,omitempty"`
	NextSkip            int64      `json:"nextSkip"`
	TotalRuns           int64      `json:"totalRuns"`
	TotalFailures       int64      `json:"totalFailures"`
	TotalConflicts      int64      `json:"totalConflicts"`
	TotalSynced         int64      `json:"totalSynced"`
	TotalUpdated        int64      `json:"totalUpdated"`
	TotalRecordErrors   int64      `json:"totalRecordErrors"`
	ConsecutiveFailures int32      `json:"consecutiveFailures"`
	LastError           string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:           time.Unix(0, p.startedAtUnixNano).UTC(),
		NextSkip:            p.nextSkip.Load(),
		TotalRuns:           p.totalRuns.Load(),
		TotalFailures:       p.totalFailures.Load(),
		TotalConflicts:      p.totalConflicts.Load(),
		TotalSynced:         p.totalSynced.Load(),
		TotalUpdated:        p.totalUpdated.Load(),
		TotalRecordErrors:   p.totalRecordErrors.Load(),
		ConsecutiveFailures: p.failCount.Load(),
	}
	if n := p.lastRunUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastRunAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	if n := p.nextRunAt.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.NextRunAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if p.due() {
				p.runOnce(ctx)
			}
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) due() bool {
	next := p.nextRunAt.Load()
	return next == 0 || p.now().UnixNano() >= next
}

func (p *Poller) runOnce(ctx context.Context) {
	now := p.now()
	p.lastRunUnixNano.Store(now.UnixNano())
	p.totalRuns.Add(1)

	skip := int(p.nextSkip.Load())
	sum, err := p.syncer.Poll(ctx, portprosync.TriggerPoller, skip, 0)
	switch {
	case errors.Is(err, portprosync.ErrRunInProgress):
		// другой запуск (cron или ручной) уже идет, это не сбой
		p.totalConflicts.Add(1)
		p.schedule(now, p.planner.cfg.ContinueDelay)
		slog.Info("scheduled sync skipped, run in progress", "skip", skip)
		return
	case err != nil:
		fails := p.failCount.Add(1)
		p.totalFailures.Add(1)
		p.setLastError(err)
		delay := p.planner.BackoffDelay(fails)
		p.schedule(now, delay)
		slog.Error("scheduled sync failed",
			"skip", skip,
			"fail_count", fails,
			"retry_in", delay.String(),
			"error", err.Error(),
		)
		return
	}

	p.failCount.Store(0)
	p.totalSynced.Add(int64(sum.Synced))
	p.totalUpdated.Add(int64(sum.Updated))
	p.totalRecordErrors.Add(int64(sum.Errors))
	if sum.HasMore {
		p.nextSkip.Store(int64(sum.NextSkip))
	} else {
		p.nextSkip.Store(0)
	}
	p.schedule(now, p.planner.NextDelay(sum.HasMore))
}

func (p *Poller) schedule(from time.Time, delay time.Duration) {
	p.nextRunAt.Store(from.Add(delay).UnixNano())
}

func (p *Poller) setLastError(err error) {
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}
