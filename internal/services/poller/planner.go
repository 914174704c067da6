package poller

import (
	"math/rand"
	"time"
)

//go:generate mockery --name=Rand --output=./mocks --outpkg=mocks --filename=rand.go --structname=Rand
type Rand interface {
	Intn(n int) int
}

type PlannerConfig struct {
	IdleMinDelay time.Duration // default: 15 minutes
	IdleMaxDelay time.Duration // default: 15 minutes

	// ContinueDelay is used while PortPro still reports more pages.
	ContinueDelay time.Duration // default: 10 seconds

	Backoff1 time.Duration // default: 5 minutes
	Backoff2 time.Duration // default: 15 minutes
	Backoff3 time.Duration // default: 30 minutes
	Backoff4 time.Duration // default: 60 minutes
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		IdleMinDelay: 15 * time.Minute,
		IdleMaxDelay: 15 * time.Minute,

		ContinueDelay: 10 * time.Second,

		Backoff1: 5 * time.Minute,
		Backoff2: 15 * time.Minute,
		Backoff3: 30 * time.Minute,
		Backoff4: 60 * time.Minute,
	}
}

type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	if cfg.IdleMinDelay <= 0 {
		cfg.IdleMinDelay = def.IdleMinDelay
	}
	if cfg.IdleMaxDelay <= 0 {
		cfg.IdleMaxDelay = cfg.IdleMinDelay
	}
	if cfg.IdleMaxDelay < cfg.IdleMinDelay {
		cfg.IdleMaxDelay = cfg.IdleMinDelay
	}
	if cfg.ContinueDelay <= 0 {
		cfg.ContinueDelay = def.ContinueDelay
	}
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

// NextDelay is the pause after a successful run. Pending pages are fetched
// soon; otherwise the idle window applies, jittered between min and max.
func (p *Planner) NextDelay(hasMore bool) time.Duration {
	if hasMore {
		return p.cfg.ContinueDelay
	}
	min := p.cfg.IdleMinDelay
	max := p.cfg.IdleMaxDelay
	if max == min {
		return min
	}
	secMin := int(min.Seconds())
	secMax := int(max.Seconds())
	if secMax < secMin {
		secMax = secMin
	}
	return time.Duration(secMin+p.r.Intn(secMax-secMin+1)) * time.Second
}

func (p *Planner) BackoffDelay(failCount int32) time.Duration {
	switch {
	case failCount <= 1:
		return p.cfg.Backoff1
	case failCount == 2:
		return p.cfg.Backoff2
	case failCount == 3:
		return p.cfg.Backoff3
	default:
		return p.cfg.Backoff4
	}
}
