package fake

import (
	"context"
	"sync"

	"github.com/abakymuk/nsl-sub001/internal/integrations/portpro"
)

// Client serves a fixed set of loads page by page. Used for local runs
// without PortPro credentials and in tests.
type Client struct {
	mu    sync.Mutex
	loads []portpro.Load
	err   error
	calls int
}

func New(loads ...portpro.Load) *Client {
	return &Client{loads: loads}
}

// SetLoads replaces the upstream data set.
func (c *Client) SetLoads(loads ...portpro.Load) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads = loads
}

// FailWith makes every following call return err.
func (c *Client) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *Client) FetchLoads(ctx context.Context, skip, limit int) (portpro.Page, error) {
	if err := ctx.Err(); err != nil {
		return portpro.Page{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return portpro.Page{}, c.err
	}

	if skip < 0 {
		skip = 0
	}
	if skip > len(c.loads) {
		skip = len(c.loads)
	}
	end := len(c.loads)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	out := make([]portpro.Load, end-skip)
	copy(out, c.loads[skip:end])
	return portpro.Page{Loads: out, Count: len(c.loads)}, nil
}
