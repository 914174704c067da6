package portprohttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/abakymuk/nsl-sub001/internal/integrations/portpro"
	"github.com/abakymuk/nsl-sub001/internal/metrics"
	"github.com/pkg/errors"
)

const (
	defaultBaseURL = "https://api1.app.portpro.io"
	loadsPath      = "/v1/loads"
	rateKey        = "portpro:requests"
)

// Limiter is a counter-based budget, see rediscache.RateLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Client struct {
	baseURL     string
	accessToken string
	httpc       *http.Client

	limiter   Limiter
	perMinute int64
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpc.Timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests per minute across all workers that
// share the limiter.
func WithRateLimit(l Limiter, perMinute int64) Option {
	return func(c *Client) {
		c.limiter = l
		c.perMinute = perMinute
	}
}

func New(baseURL, accessToken string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) FetchLoads(ctx context.Context, skip, limit int) (portpro.Page, error) {
	if c.accessToken == "" {
		return portpro.Page{}, portpro.ErrNotConfigured
	}
	if err := c.allow(ctx); err != nil {
		return portpro.Page{}, err
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return portpro.Page{}, errors.Wrap(err, "parse base url")
	}
	u.Path = strings.TrimRight(u.Path, "/") + loadsPath

	q := u.Query()
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return portpro.Page{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		metrics.PortProRequestDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return portpro.Page{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()
	metrics.PortProRequestDuration.WithLabelValues(strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.PortProRateLimited.Inc()
		return portpro.Page{}, errors.Wrap(portpro.ErrRateLimited, "portpro http 429")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return portpro.Page{}, fmt.Errorf("portpro http %d: access token rejected", resp.StatusCode)
	case resp.StatusCode/100 != 2:
		return portpro.Page{}, fmt.Errorf("portpro http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return portpro.Page{}, errors.Wrap(err, "read body")
	}
	return portpro.DecodePage(body)
}

func (c *Client) allow(ctx context.Context) error {
	if c.limiter == nil || c.perMinute <= 0 {
		return nil
	}
	ok, _, err := c.limiter.Allow(ctx, rateKey, c.perMinute, time.Minute)
	if err != nil {
		// лимитер недоступен: не блокируем синк
		return nil
	}
	if !ok {
		metrics.PortProRateLimited.Inc()
		return errors.Wrap(portpro.ErrRateLimited, "local budget")
	}
	return nil
}
