// Package upstream fetches documents from the external forecast and alert
// sources with a bounded wait, and caches successful responses for a short
// revalidation window.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/couchcryptid/weather-station-api/internal/domain"
	"github.com/couchcryptid/weather-station-api/internal/observability"
)

// maxBodyBytes caps a single upstream document.
const maxBodyBytes = 8 << 20

// Fetcher retrieves the body of a URL.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Client is a Fetcher over net/http. Every request is bounded by the client
// timeout; failures are reported as domain.ErrUpstreamTimeout or
// domain.ErrUpstreamError.
type Client struct {
	source     string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a client labelled with source for logs and metrics.
func NewClient(source string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		source: source,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	body, err := c.get(ctx, url)
	c.metrics.UpstreamDuration.WithLabelValues(c.source).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		c.metrics.UpstreamRequests.WithLabelValues(c.source, "success").Inc()
	case errors.Is(err, domain.ErrUpstreamTimeout):
		c.metrics.UpstreamRequests.WithLabelValues(c.source, "timeout").Inc()
	default:
		c.metrics.UpstreamRequests.WithLabelValues(c.source, "error").Inc()
	}
	if err != nil {
		c.logger.Debug("upstream request failed", "source", c.source, "url", url, "error", err)
	}
	return body, err
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w: %w", c.source, domain.ErrUpstreamError, err)
	}
	req.Header.Set("User-Agent", "weather-station-api/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%s request: %w: %w", c.source, domain.ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%s request: %w: %w", c.source, domain.ErrUpstreamError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s API error: status %d: %s: %w", c.source, resp.StatusCode, snippet, domain.ErrUpstreamError)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("read %s body: %w: %w", c.source, domain.ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("read %s body: %w: %w", c.source, domain.ErrUpstreamError, err)
	}
	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
