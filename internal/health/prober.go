package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// TimeoutError is returned when the awaited reachability state was not
// observed within the budget. ExpectUp records which direction was awaited.
type TimeoutError struct {
	ExpectUp bool
}

func (e *TimeoutError) Error() string {
	if e.ExpectUp {
		return "local server did not start in time"
	}
	return "local server is still running"
}

// Prober polls the managed server's health endpoint. Reachability is
// defined by this probe alone: exactly HTTP 200 counts as healthy, any
// transport error, timeout, or other status counts as not healthy.
type Prober struct {
	url      string
	client   *http.Client
	interval time.Duration
	// budget when waiting for the server to come up (model load is slow)
	upTimeout time.Duration
	// budget when waiting for a graceful stop
	downTimeout time.Duration
}

// Options tunes the prober; zero values take the defaults.
type Options struct {
	Interval     time.Duration
	UpTimeout    time.Duration
	DownTimeout  time.Duration
	ProbeTimeout time.Duration
}

const (
	defaultInterval     = 2 * time.Second
	defaultUpTimeout    = 120 * time.Second
	defaultDownTimeout  = 30 * time.Second
	defaultProbeTimeout = 5 * time.Second
)

// New creates a prober for the given health URL.
func New(url string, opts Options) *Prober {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.UpTimeout <= 0 {
		opts.UpTimeout = defaultUpTimeout
	}
	if opts.DownTimeout <= 0 {
		opts.DownTimeout = defaultDownTimeout
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	return &Prober{
		url: url,
		// Per-request timeout keeps one hung probe from consuming the
		// whole waiting budget without retrying.
		client:      &http.Client{Timeout: opts.ProbeTimeout},
		interval:    opts.Interval,
		upTimeout:   opts.UpTimeout,
		downTimeout: opts.DownTimeout,
	}
}

// URL returns the probed endpoint.
func (p *Prober) URL() string { return p.url }

// Check performs a single probe.
func (p *Prober) Check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// WaitFor polls until observed healthiness equals expectUp, bounded by the
// direction's budget. Returns *TimeoutError on budget exhaustion.
func (p *Prober) WaitFor(ctx context.Context, expectUp bool) error {
	budget := p.downTimeout
	if expectUp {
		budget = p.upTimeout
	}
	started := time.Now()
	for {
		if p.Check(ctx) == expectUp {
			return nil
		}
		if time.Since(started) > budget {
			return &TimeoutError{ExpectUp: expectUp}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("health wait canceled: %w", ctx.Err())
		case <-time.After(p.interval):
		}
	}
}
