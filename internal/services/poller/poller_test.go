package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/abakymuk/nsl-sub001/internal/integrations/portpro"
	"github.com/abakymuk/nsl-sub001/internal/services/portprosync"
	"github.com/stretchr/testify/require"
)

type pollCall struct {
	trigger portprosync.Trigger
	skip    int
}

type fakeSyncer struct {
	mu      sync.Mutex
	calls   []pollCall
	results []portprosync.Summary
	errs    []error
}

func (f *fakeSyncer) Poll(ctx context.Context, trigger portprosync.Trigger, skip, limit int) (portprosync.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.calls)
	f.calls = append(f.calls, pollCall{trigger: trigger, skip: skip})
	var sum portprosync.Summary
	var err error
	if i < len(f.results) {
		sum = f.results[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return sum, err
}

func (f *fakeSyncer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestPoller_runOnce_AdvancesCursorWhileHasMore(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	fs := &fakeSyncer{results: []portprosync.Summary{
		{Success: true, Synced: 3, HasMore: true, NextSkip: 200},
		{Success: true, Updated: 2, Errors: 1, HasMore: false, NextSkip: 250},
	}}
	p := New(fs).WithClock(fixedClock(now))

	p.runOnce(context.Background())
	st := p.Stats()
	require.Equal(t, int64(200), st.NextSkip)
	require.Equal(t, now.Add(10*time.Second), *st.NextRunAt)

	p.runOnce(context.Background())
	st = p.Stats()
	require.Equal(t, int64(0), st.NextSkip)
	require.Equal(t, now.Add(15*time.Minute), *st.NextRunAt)
	require.Equal(t, int64(3), st.TotalSynced)
	require.Equal(t, int64(2), st.TotalUpdated)
	require.Equal(t, int64(1), st.TotalRecordErrors)

	require.Equal(t, []pollCall{
		{trigger: portprosync.TriggerPoller, skip: 0},
		{trigger: portprosync.TriggerPoller, skip: 200},
	}, fs.calls)
}

func TestPoller_runOnce_BackoffOnFailure(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	fs := &fakeSyncer{
		results: []portprosync.Summary{{}, {}, {Success: true}},
		errs:    []error{portpro.ErrRateLimited, portpro.ErrRateLimited, nil},
	}
	p := New(fs).WithClock(fixedClock(now))

	p.runOnce(context.Background())
	st := p.Stats()
	require.Equal(t, int32(1), st.ConsecutiveFailures)
	require.Equal(t, now.Add(5*time.Minute), *st.NextRunAt)
	require.Contains(t, st.LastError, "rate limited")

	p.runOnce(context.Background())
	st = p.Stats()
	require.Equal(t, int32(2), st.ConsecutiveFailures)
	require.Equal(t, now.Add(15*time.Minute), *st.NextRunAt)

	p.runOnce(context.Background())
	st = p.Stats()
	require.Equal(t, int32(0), st.ConsecutiveFailures)
	require.Equal(t, int64(2), st.TotalFailures)
	require.Equal(t, int64(3), st.TotalRuns)
}

func TestPoller_runOnce_ConflictIsNotFailure(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	fs := &fakeSyncer{errs: []error{portprosync.ErrRunInProgress}}
	p := New(fs).WithClock(fixedClock(now))

	p.runOnce(context.Background())
	st := p.Stats()
	require.Equal(t, int32(0), st.ConsecutiveFailures)
	require.Equal(t, int64(1), st.TotalConflicts)
	require.Empty(t, st.LastError)
}

func TestPoller_due(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	cur := now
	p := New(&fakeSyncer{}).WithClock(func() time.Time { return cur })
	require.True(t, p.due())

	p.schedule(now, time.Minute)
	require.False(t, p.due())
	cur = now.Add(time.Minute)
	require.True(t, p.due())
}

func TestPoller_Run_StopsOnContextCancel(t *testing.T) {
	fs := &fakeSyncer{}
	p := New(fs).WithSettings(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	// после первого запуска следующий назначен через 15 минут
	require.Equal(t, 1, fs.count())
}

func TestPoller_Trigger_IgnoresBackoff(t *testing.T) {
	fs := &fakeSyncer{errs: []error{portpro.ErrRateLimited}}
	p := New(fs).WithSettings(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	p.Trigger()
	require.Eventually(t, func() bool { return fs.count() == 1 }, time.Second, 5*time.Millisecond)
	p.Trigger()
	require.Eventually(t, func() bool { return fs.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.NotNil(t, p.Stats().LastTriggerAt)
}

func TestPoller_WithSettings(t *testing.T) {
	p := New(&fakeSyncer{}).WithSettings(7 * time.Second)
	require.Equal(t, 7*time.Second, p.pollInterval)
	p.WithSettings(0)
	require.Equal(t, 7*time.Second, p.pollInterval)
}
