// Package statusfeed consumes the upstream job status feed: an HTTP
// endpoint returning the current status of every monitored job. The
// poller keeps a last-known snapshot so transient feed outages degrade
// to stale reads instead of failures.
package statusfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bissquit/jobwatch/internal/domain"
)

// ErrFeedUnavailable indicates the upstream status feed could not be
// reached or returned garbage. The poller keeps serving last-known
// state when this happens.
var ErrFeedUnavailable = errors.New("status feed unavailable")

// Client fetches job statuses from the upstream feed.
type Client struct {
	url        string
	httpClient *http.Client
}

// ClientConfig contains feed client configuration.
type ClientConfig struct {
	URL     string
	Timeout time.Duration
}

// NewClient creates a new feed client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the current status of all monitored jobs.
func (c *Client) Fetch(ctx context.Context) ([]domain.JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFeedUnavailable, resp.StatusCode)
	}

	var jobs []domain.JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return nil, fmt.Errorf("%w: decode response: %s", ErrFeedUnavailable, err)
	}
	return jobs, nil
}
