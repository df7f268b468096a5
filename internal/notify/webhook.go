// Package notify delivers best-effort response lifecycle notifications
// to an external system. Deliveries are fire-and-forget: a failure is
// logged by the caller and never blocks or rolls back an incident
// state transition.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const defaultTimeout = 10 * time.Second

// Config holds webhook sender configuration.
type Config struct {
	Enabled bool
	// BaseURL is the receiver root; events post to
	// {BaseURL}/response/started and {BaseURL}/response/resolved.
	BaseURL string
	// RateLimit caps outbound deliveries per second. Zero means no cap.
	RateLimit float64
	Timeout   time.Duration
}

// WebhookSender posts response lifecycle events to an HTTP receiver.
type WebhookSender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewWebhookSender creates a new webhook sender.
// Returns an error if enabled but no base URL is configured.
func NewWebhookSender(config Config) (*WebhookSender, error) {
	if config.Enabled && config.BaseURL == "" {
		return nil, fmt.Errorf("webhook sender: base url is required when enabled")
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	slog.Info("webhook notifier configured",
		"enabled", config.Enabled,
		"rate_limit", config.RateLimit,
	)

	return &WebhookSender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}, nil
}

// ResponseStarted notifies the receiver that a responder claimed the
// incident.
func (s *WebhookSender) ResponseStarted(ctx context.Context, jobName string, incidentID int64) error {
	return s.post(ctx, "response/started", jobName, incidentID)
}

// ResponseResolved notifies the receiver that the incident was resolved.
func (s *WebhookSender) ResponseResolved(ctx context.Context, jobName string, incidentID int64) error {
	return s.post(ctx, "response/resolved", jobName, incidentID)
}

type eventPayload struct {
	JobName    string    `json:"job_name"`
	IncidentID int64     `json:"incident_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *WebhookSender) post(ctx context.Context, path, jobName string, incidentID int64) error {
	if !s.config.Enabled {
		slog.Debug("webhook notifier disabled, skipping", "job", jobName)
		return nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(eventPayload{
		JobName:    jobName,
		IncidentID: incidentID,
		OccurredAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := s.config.BaseURL + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Delivery id lets the receiver deduplicate retried events.
	req.Header.Set("X-Delivery-ID", uuid.New().String())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode, snippet)
	}
	return nil
}

// NoopNotifier discards all notifications. Used in tests and when no
// receiver is configured.
type NoopNotifier struct{}

// ResponseStarted implements the notifier port as a no-op.
func (NoopNotifier) ResponseStarted(context.Context, string, int64) error { return nil }

// ResponseResolved implements the notifier port as a no-op.
func (NoopNotifier) ResponseResolved(context.Context, string, int64) error { return nil }
