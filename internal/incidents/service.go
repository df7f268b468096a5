// Package incidents implements the incident lifecycle engine: the
// rules for opening incidents against monitored jobs, arbitrating
// concurrent claims, recording resolution and deriving the active set.
package incidents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/jobwatch/internal/domain"
	"github.com/bissquit/jobwatch/internal/pkg/ctxlog"
	"github.com/bissquit/jobwatch/internal/ranking"
)

// StatusSource provides the last-known raw status of a job, as
// maintained by the status feed poller.
type StatusSource interface {
	StatusFor(name string) (string, bool)
}

// Notifier receives best-effort response lifecycle notifications.
// Failures are logged and never block or roll back a state transition.
type Notifier interface {
	ResponseStarted(ctx context.Context, jobName string, incidentID int64) error
	ResponseResolved(ctx context.Context, jobName string, incidentID int64) error
}

// Config contains engine tunables.
type Config struct {
	// SlowResponseThreshold is how long an open incident may sit
	// unclaimed before it is flagged for urgent attention.
	SlowResponseThreshold time.Duration
}

// DefaultConfig returns default engine configuration.
func DefaultConfig() Config {
	return Config{SlowResponseThreshold: 20 * time.Second}
}

// Service implements incident lifecycle business logic. It is the sole
// mutator of the incident store; all other components read derived
// views.
type Service struct {
	store    Store
	statuses StatusSource
	notifier Notifier
	config   Config

	now func() time.Time
}

// NewService creates a new lifecycle engine. statuses may be nil when
// no feed is wired (incidents are then recorded with an unknown
// detection status); notifier may be nil to disable notifications.
func NewService(store Store, statuses StatusSource, notifier Notifier, config Config) *Service {
	if config.SlowResponseThreshold <= 0 {
		config.SlowResponseThreshold = DefaultConfig().SlowResponseThreshold
	}
	return &Service{
		store:    store,
		statuses: statuses,
		notifier: notifier,
		config:   config,
		now:      time.Now,
	}
}

// SyncStatuses reconciles a poll cycle against the open-incident set:
// every job whose severity tier requires response and has no open
// incident gets one opened, unclaimed, detection-stamped now. A
// concurrent open by another caller is adopted, not treated as an
// error.
func (s *Service) SyncStatuses(ctx context.Context, jobs []domain.JobStatus) error {
	open, err := s.store.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("list open incidents: %w", err)
	}

	logger := ctxlog.FromContext(ctx)
	detectedAt := s.now()

	for _, job := range jobs {
		severity := ranking.Classify(ctx, job.Status)
		if !severity.RequiresResponse() {
			continue
		}
		if _, ok := open[job.Name]; ok {
			continue
		}

		res, err := s.store.OpenIncident(ctx, job.Name, job.Status, detectedAt)
		if err != nil {
			return fmt.Errorf("open incident for %s: %w", job.Name, err)
		}
		if res.AlreadyOpen {
			// Lost the open race to a concurrent caller; their
			// incident is just as good as ours.
			continue
		}

		incidentsOpened.Inc()
		logger.Info("incident opened",
			"job", job.Name,
			"status", job.Status,
			"incident_id", res.IncidentID,
		)
	}

	return nil
}

// Respond opens an incident for the job if none is open and claims it
// for the named responder in one operation. If the job already has an
// open incident claimed by someone else, the claim is rejected with an
// *AlreadyClaimedError naming the current holder; first claim wins.
func (s *Service) Respond(ctx context.Context, jobName, responder string, priority domain.Priority) (int64, error) {
	if !priority.IsValid() {
		priority = domain.DefaultPriority
	}

	status := "Unknown"
	if s.statuses != nil {
		if known, ok := s.statuses.StatusFor(jobName); ok {
			status = known
		}
	}

	now := s.now()
	res, err := s.store.OpenIncident(ctx, jobName, status, now)
	if err != nil {
		return 0, fmt.Errorf("open incident: %w", err)
	}
	if !res.AlreadyOpen {
		incidentsOpened.Inc()
	}

	if err := s.Claim(ctx, res.IncidentID, responder, priority); err != nil {
		return 0, err
	}
	return res.IncidentID, nil
}

// Claim assigns the responder and priority to an open incident. The
// store performs the compare-and-set, but the state is re-read first so
// that a lost race reports the winning responder instead of a bare
// constraint failure.
func (s *Service) Claim(ctx context.Context, id int64, responder string, priority domain.Priority) error {
	if !priority.IsValid() {
		priority = domain.DefaultPriority
	}

	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return err
	}
	if !inc.IsOpen() {
		return ErrAlreadyResolved
	}
	if inc.Responder != nil && *inc.Responder != responder {
		claimConflicts.Inc()
		return &AlreadyClaimedError{IncidentID: id, Responder: *inc.Responder}
	}
	if inc.Responder != nil {
		// Same responder re-claiming is a no-op.
		return nil
	}

	if err := s.store.ClaimIncident(ctx, id, responder, priority, s.now()); err != nil {
		var claimed *AlreadyClaimedError
		if errors.As(err, &claimed) {
			claimConflicts.Inc()
		}
		return err
	}

	incidentsClaimed.Inc()
	ctxlog.FromContext(ctx).Info("incident claimed",
		"incident_id", id,
		"job", inc.JobName,
		"responder", responder,
		"priority", priority,
	)

	s.notifyStarted(ctx, inc.JobName, id)
	return nil
}

// Resolve closes an open incident and returns the resolution duration
// in seconds. Resolving an already resolved incident returns
// ErrAlreadyResolved; nothing changed, the caller simply had stale
// state.
func (s *Service) Resolve(ctx context.Context, id int64) (int64, error) {
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return 0, err
	}

	duration, err := s.store.ResolveIncident(ctx, id, s.now())
	if err != nil {
		return 0, err
	}

	incidentsResolved.Inc()
	ctxlog.FromContext(ctx).Info("incident resolved",
		"incident_id", id,
		"job", inc.JobName,
		"duration_seconds", duration,
	)

	s.notifyResolved(ctx, inc.JobName, id)
	return duration, nil
}

// SetPriority changes the priority of an open incident. Edits after
// resolution are rejected with ErrIncidentClosed.
func (s *Service) SetPriority(ctx context.Context, id int64, priority domain.Priority) error {
	if !priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", priority)
	}
	return s.store.UpdatePriority(ctx, id, priority)
}

// GetIncident fetches a single incident by id.
func (s *Service) GetIncident(ctx context.Context, id int64) (*domain.Incident, error) {
	return s.store.GetIncident(ctx, id)
}

// ActiveIncident is the read-side view of one open incident.
type ActiveIncident struct {
	IncidentID        int64           `json:"incident_id"`
	Responder         *string         `json:"responder"`
	Priority          domain.Priority `json:"priority"`
	DetectionTime     time.Time       `json:"detection_time"`
	ResponseStartTime *time.Time      `json:"response_start_time"`
	// SlowResponse flags an incident that has sat unclaimed past the
	// configured threshold.
	SlowResponse bool `json:"slow_response"`
}

// ActiveIncidents returns the current open-incident set keyed by job
// name, with slow-response flags computed against the engine clock.
func (s *Service) ActiveIncidents(ctx context.Context) (map[string]ActiveIncident, error) {
	open, err := s.store.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open incidents: %w", err)
	}

	now := s.now()
	out := make(map[string]ActiveIncident, len(open))
	for job, inc := range open {
		out[job] = ActiveIncident{
			IncidentID:        inc.ID,
			Responder:         inc.Responder,
			Priority:          inc.Priority,
			DetectionTime:     inc.DetectionTime,
			ResponseStartTime: inc.ResponseStartTime,
			SlowResponse:      s.isSlowResponse(inc, now),
		}
	}
	return out, nil
}

// isSlowResponse: open, unclaimed, and older than the threshold.
func (s *Service) isSlowResponse(inc *domain.Incident, now time.Time) bool {
	if inc.Responder != nil {
		return false
	}
	return now.Sub(inc.DetectionTime) > s.config.SlowResponseThreshold
}

func (s *Service) notifyStarted(ctx context.Context, jobName string, id int64) {
	if s.notifier == nil {
		return
	}
	logger := ctxlog.FromContext(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.notifier.ResponseStarted(ctx, jobName, id); err != nil {
			notifyFailures.Inc()
			logger.Warn("response-started notification failed",
				"job", jobName, "incident_id", id, "error", err)
		}
	}()
}

func (s *Service) notifyResolved(ctx context.Context, jobName string, id int64) {
	if s.notifier == nil {
		return
	}
	logger := ctxlog.FromContext(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.notifier.ResponseResolved(ctx, jobName, id); err != nil {
			notifyFailures.Inc()
			logger.Warn("response-resolved notification failed",
				"job", jobName, "incident_id", id, "error", err)
		}
	}()
}
