// Package roster manages the engineer roster and incident link
// annotations. Simple reference data: no lifecycle rules live here.
package roster

import (
	"context"
	"errors"

	"github.com/bissquit/jobwatch/internal/domain"
)

// Roster domain errors.
var (
	ErrEngineerNotFound      = errors.New("engineer not found")
	ErrEngineerAlreadyExists = errors.New("engineer already exists")
	ErrLinkNotFound          = errors.New("job link not found")
)

// Repository defines the interface for roster storage.
type Repository interface {
	ListEngineers(ctx context.Context) ([]domain.Engineer, error)
	AddEngineer(ctx context.Context, engineer domain.Engineer) error
	RemoveEngineer(ctx context.Context, name string) error

	UpsertJobLink(ctx context.Context, link *domain.JobLink) error
	GetJobLink(ctx context.Context, incidentID int64) (*domain.JobLink, error)
	ListJobLinks(ctx context.Context) ([]domain.JobLink, error)
	RemoveJobLink(ctx context.Context, incidentID int64) error
}
