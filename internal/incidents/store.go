package incidents

import (
	"context"
	"time"

	"github.com/bissquit/jobwatch/internal/domain"
)

// OpenResult is the outcome of an OpenIncident call.
type OpenResult struct {
	IncidentID int64
	// AlreadyOpen is true when an open incident for the job already
	// existed; IncidentID then refers to the existing incident and
	// nothing was inserted.
	AlreadyOpen bool
}

// Store defines the persistence interface for incident records.
//
// Every mutating operation is an atomic compare-and-act primitive:
// implementations must never expose read-then-write sequences to
// callers, because concurrent opens, claims and resolves against the
// same job are the normal case, not the exception.
type Store interface {
	// OpenIncident inserts a new open incident for the job unless one
	// is already open, in which case it returns the existing id with
	// AlreadyOpen set. The check-and-insert is atomic.
	OpenIncident(ctx context.Context, jobName, status string, detectionTime time.Time) (OpenResult, error)

	// ClaimIncident assigns responder and priority to an open,
	// unclaimed incident and stamps its response start time. Returns
	// *AlreadyClaimedError if a responder is already set,
	// ErrAlreadyResolved if the incident is closed, or
	// ErrIncidentNotFound.
	ClaimIncident(ctx context.Context, id int64, responder string, priority domain.Priority, startTime time.Time) error

	// ResolveIncident closes an open incident, setting resolution time
	// and derived duration in one atomic step. The returned duration is
	// resolutionTime - response_start_time in whole seconds. A second
	// resolve of the same id returns ErrAlreadyResolved and changes
	// nothing.
	ResolveIncident(ctx context.Context, id int64, resolutionTime time.Time) (durationSeconds int64, err error)

	// UpdatePriority changes the priority of an open incident. Returns
	// ErrIncidentClosed once the incident is resolved.
	UpdatePriority(ctx context.Context, id int64, priority domain.Priority) error

	// GetIncident fetches a single incident by id.
	GetIncident(ctx context.Context, id int64) (*domain.Incident, error)

	// ListOpen returns a consistent point-in-time snapshot of all open
	// incidents keyed by job name.
	ListOpen(ctx context.Context) (map[string]*domain.Incident, error)

	// ListHistory returns incidents (open and resolved), most recent
	// first, optionally bounded by count and a lower time bound on
	// response start.
	ListHistory(ctx context.Context, limit int, since time.Time) ([]*domain.Incident, error)
}
