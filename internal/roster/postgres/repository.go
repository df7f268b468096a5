// Package postgres provides the PostgreSQL implementation of roster.Repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bissquit/jobwatch/internal/domain"
	"github.com/bissquit/jobwatch/internal/roster"
)

// uniqueViolation is the postgres error code for unique constraint violations.
const uniqueViolation = "23505"

// Repository implements roster.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListEngineers retrieves all engineers ordered by level, then name.
func (r *Repository) ListEngineers(ctx context.Context) ([]domain.Engineer, error) {
	query := `SELECT name, level FROM engineers ORDER BY level, name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list engineers: %w", err)
	}
	defer rows.Close()

	engineers := make([]domain.Engineer, 0)
	for rows.Next() {
		var engineer domain.Engineer
		if err := rows.Scan(&engineer.Name, &engineer.Level); err != nil {
			return nil, fmt.Errorf("scan engineer: %w", err)
		}
		engineers = append(engineers, engineer)
	}
	return engineers, rows.Err()
}

// AddEngineer inserts a new engineer.
func (r *Repository) AddEngineer(ctx context.Context, engineer domain.Engineer) error {
	query := `INSERT INTO engineers (name, level) VALUES ($1, $2)`
	_, err := r.db.Exec(ctx, query, engineer.Name, engineer.Level)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return roster.ErrEngineerAlreadyExists
		}
		return fmt.Errorf("add engineer: %w", err)
	}
	return nil
}

// RemoveEngineer deletes an engineer by name.
func (r *Repository) RemoveEngineer(ctx context.Context, name string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM engineers WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("remove engineer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return roster.ErrEngineerNotFound
	}
	return nil
}

// UpsertJobLink inserts or replaces the link for an incident.
func (r *Repository) UpsertJobLink(ctx context.Context, link *domain.JobLink) error {
	query := `
		INSERT INTO job_links (incident_id, url, link_text)
		VALUES ($1, $2, $3)
		ON CONFLICT (incident_id)
		DO UPDATE SET url = EXCLUDED.url, link_text = EXCLUDED.link_text
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query, link.IncidentID, link.URL, link.Text).Scan(&link.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert job link: %w", err)
	}
	return nil
}

// GetJobLink retrieves the link for an incident.
func (r *Repository) GetJobLink(ctx context.Context, incidentID int64) (*domain.JobLink, error) {
	query := `
		SELECT incident_id, url, COALESCE(link_text, url), created_at
		FROM job_links
		WHERE incident_id = $1
	`
	var link domain.JobLink
	err := r.db.QueryRow(ctx, query, incidentID).Scan(
		&link.IncidentID,
		&link.URL,
		&link.Text,
		&link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, roster.ErrLinkNotFound
		}
		return nil, fmt.Errorf("get job link: %w", err)
	}
	return &link, nil
}

// ListJobLinks retrieves all job links.
func (r *Repository) ListJobLinks(ctx context.Context) ([]domain.JobLink, error) {
	query := `SELECT incident_id, url, COALESCE(link_text, url), created_at FROM job_links`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list job links: %w", err)
	}
	defer rows.Close()

	links := make([]domain.JobLink, 0)
	for rows.Next() {
		var link domain.JobLink
		if err := rows.Scan(&link.IncidentID, &link.URL, &link.Text, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// RemoveJobLink deletes the link for an incident.
func (r *Repository) RemoveJobLink(ctx context.Context, incidentID int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM job_links WHERE incident_id = $1`, incidentID)
	if err != nil {
		return fmt.Errorf("remove job link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return roster.ErrLinkNotFound
	}
	return nil
}
