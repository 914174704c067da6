package portpro

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotConfigured is returned when PortPro credentials are missing. It is a
// configuration error and aborts the whole sync run.
var ErrNotConfigured = errors.New("portpro credentials are not configured")

// ErrRateLimited is returned when PortPro answers 429 or the local request
// budget is spent.
var ErrRateLimited = errors.New("portpro rate limited")

// Page is one page of upstream loads, already decoded into strict records.
type Page struct {
	Loads []Load
	// Count is the total number of loads reported by PortPro, 0 when unknown.
	Count int
}

type Client interface {
	FetchLoads(ctx context.Context, skip, limit int) (Page, error)
}
