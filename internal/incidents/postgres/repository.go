// Package postgres provides the PostgreSQL implementation of incidents.Store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bissquit/jobwatch/internal/domain"
	"github.com/bissquit/jobwatch/internal/incidents"
)

// queryTimeout bounds every store operation so storage unavailability
// surfaces as a failure, not a hang.
const queryTimeout = 5 * time.Second

// Repository implements incidents.Store using PostgreSQL.
//
// Atomicity relies on the partial unique index on (job_name) WHERE
// resolution_time IS NULL and on conditional single-statement updates;
// no operation does a read-then-write across statements.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const incidentColumns = `incident_id, job_name, status_at_detection, detection_time,
	response_start_time, responder, priority, resolution_time, resolution_duration_seconds`

// OpenIncident inserts a new open incident for the job unless one is
// already open. The partial unique index arbitrates concurrent opens;
// the loser of the race adopts the winner's incident id.
func (r *Repository) OpenIncident(ctx context.Context, jobName, status string, detectionTime time.Time) (incidents.OpenResult, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	insertQuery := `
		INSERT INTO incidents (job_name, status_at_detection, detection_time, priority)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_name) WHERE resolution_time IS NULL DO NOTHING
		RETURNING incident_id
	`
	existingQuery := `
		SELECT incident_id FROM incidents
		WHERE job_name = $1 AND resolution_time IS NULL
	`

	// The conflicting incident can resolve between our failed insert
	// and the follow-up read; retry the pair a bounded number of times.
	for attempt := 0; attempt < 3; attempt++ {
		var id int64
		err := r.db.QueryRow(ctx, insertQuery, jobName, status, detectionTime, domain.DefaultPriority).Scan(&id)
		if err == nil {
			return incidents.OpenResult{IncidentID: id}, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return incidents.OpenResult{}, fmt.Errorf("open incident: %w", mapStorageErr(err))
		}

		err = r.db.QueryRow(ctx, existingQuery, jobName).Scan(&id)
		if err == nil {
			return incidents.OpenResult{IncidentID: id, AlreadyOpen: true}, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return incidents.OpenResult{}, fmt.Errorf("read open incident: %w", mapStorageErr(err))
		}
	}

	return incidents.OpenResult{}, fmt.Errorf("open incident for %s: conflicting incident kept resolving", jobName)
}

// ClaimIncident sets responder, priority and response start on an open,
// unclaimed incident in a single conditional update.
func (r *Repository) ClaimIncident(ctx context.Context, id int64, responder string, priority domain.Priority, startTime time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE incidents
		SET responder = $2, priority = $3, response_start_time = $4
		WHERE incident_id = $1 AND resolution_time IS NULL AND responder IS NULL
	`
	tag, err := r.db.Exec(ctx, query, id, responder, priority, startTime)
	if err != nil {
		return fmt.Errorf("claim incident: %w", mapStorageErr(err))
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows: figure out which precondition failed.
	var holder *string
	var resolutionTime *time.Time
	err = r.db.QueryRow(ctx,
		`SELECT responder, resolution_time FROM incidents WHERE incident_id = $1`, id,
	).Scan(&holder, &resolutionTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return incidents.ErrIncidentNotFound
	}
	if err != nil {
		return fmt.Errorf("read incident after claim: %w", mapStorageErr(err))
	}
	if resolutionTime != nil {
		return incidents.ErrAlreadyResolved
	}
	if holder != nil {
		return &incidents.AlreadyClaimedError{IncidentID: id, Responder: *holder}
	}
	// Unclaimed and open but the update matched nothing: a concurrent
	// resolve slipped in between the two statements.
	return incidents.ErrAlreadyResolved
}

// ResolveIncident closes an open incident, deriving the duration from
// response start (or detection when never claimed) in the same
// statement that sets resolution_time.
func (r *Repository) ResolveIncident(ctx context.Context, id int64, resolutionTime time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE incidents
		SET resolution_time = $2,
		    resolution_duration_seconds =
		        FLOOR(EXTRACT(EPOCH FROM ($2::timestamptz - COALESCE(response_start_time, detection_time))))::BIGINT
		WHERE incident_id = $1 AND resolution_time IS NULL
		RETURNING resolution_duration_seconds
	`
	var duration int64
	err := r.db.QueryRow(ctx, query, id, resolutionTime).Scan(&duration)
	if err == nil {
		return duration, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("resolve incident: %w", mapStorageErr(err))
	}

	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM incidents WHERE incident_id = $1)`, id,
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("read incident after resolve: %w", mapStorageErr(err))
	}
	if !exists {
		return 0, incidents.ErrIncidentNotFound
	}
	return 0, incidents.ErrAlreadyResolved
}

// UpdatePriority changes the priority of an open incident.
func (r *Repository) UpdatePriority(ctx context.Context, id int64, priority domain.Priority) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE incidents SET priority = $2
		WHERE incident_id = $1 AND resolution_time IS NULL
	`
	tag, err := r.db.Exec(ctx, query, id, priority)
	if err != nil {
		return fmt.Errorf("update priority: %w", mapStorageErr(err))
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM incidents WHERE incident_id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("read incident after priority update: %w", mapStorageErr(err))
	}
	if !exists {
		return incidents.ErrIncidentNotFound
	}
	return incidents.ErrIncidentClosed
}

// GetIncident fetches a single incident by id.
func (r *Repository) GetIncident(ctx context.Context, id int64) (*domain.Incident, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE incident_id = $1`
	inc, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("get incident: %w", mapStorageErr(err))
	}
	return inc, nil
}

// ListOpen returns all open incidents keyed by job name. A single
// statement gives a consistent point-in-time snapshot.
func (r *Repository) ListOpen(ctx context.Context) (map[string]*domain.Incident, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE resolution_time IS NULL`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list open incidents: %w", mapStorageErr(err))
	}
	defer rows.Close()

	open := make(map[string]*domain.Incident)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		open[inc.JobName] = inc
	}
	return open, rows.Err()
}

// ListHistory returns incidents most recent first, bounded by limit and
// an optional lower bound on response start.
func (r *Repository) ListHistory(ctx context.Context, limit int, since time.Time) ([]*domain.Incident, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + incidentColumns + ` FROM incidents`
	args := []any{}
	argNum := 1

	if !since.IsZero() {
		query += fmt.Sprintf(" WHERE COALESCE(response_start_time, detection_time) >= $%d", argNum)
		args = append(args, since)
		argNum++
	}

	query += " ORDER BY COALESCE(response_start_time, detection_time) DESC, incident_id DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", mapStorageErr(err))
	}
	defer rows.Close()

	history := make([]*domain.Incident, 0)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		history = append(history, inc)
	}
	return history, rows.Err()
}

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var inc domain.Incident
	err := row.Scan(
		&inc.ID,
		&inc.JobName,
		&inc.StatusAtDetection,
		&inc.DetectionTime,
		&inc.ResponseStartTime,
		&inc.Responder,
		&inc.Priority,
		&inc.ResolutionTime,
		&inc.ResolutionDurationSeconds,
	)
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

// mapStorageErr folds timeouts into the storage-timeout sentinel so
// callers can retry with backoff without inspecting driver errors.
func mapStorageErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", incidents.ErrStorageTimeout, err)
	}
	return err
}
