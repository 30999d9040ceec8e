// Package keepalive pings the service's own health endpoint so that hosts
// which idle out quiet instances keep it warm.
package keepalive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultInterval sits under the common 15 minute idle cutoff.
const DefaultInterval = 14 * time.Minute

// Pinger issues GET <base>/healthz on a ticker.
type Pinger struct {
	url      string
	interval time.Duration
	client   *http.Client
}

// New returns a pinger for baseURL. interval <= 0 uses DefaultInterval.
func New(baseURL string, interval time.Duration, client *http.Client) *Pinger {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Pinger{
		url:      strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/healthz",
		interval: interval,
		client:   client,
	}
}

// Run pings until ctx is done. Failures are logged, never returned.
func (p *Pinger) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	slog.Info("keepalive started", "url", p.url, "interval", p.interval.String())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Ping(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("keepalive ping failed", "url", p.url, "error", err)
			}
		}
	}
}

// Ping performs a single health request.
func (p *Pinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	slog.Debug("keepalive ping ok", "url", p.url)
	return nil
}
