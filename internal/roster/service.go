package roster

import (
	"context"
	"fmt"

	"github.com/bissquit/jobwatch/internal/domain"
)

// Service implements roster business logic.
type Service struct {
	repo Repository
}

// NewService creates a new roster service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// EngineersByLevel groups the roster by support tier.
type EngineersByLevel struct {
	L1 []string `json:"L1"`
	L2 []string `json:"L2"`
}

// ListEngineers returns the roster grouped by level, names sorted by
// the repository's (level, name) ordering.
func (s *Service) ListEngineers(ctx context.Context) (EngineersByLevel, error) {
	engineers, err := s.repo.ListEngineers(ctx)
	if err != nil {
		return EngineersByLevel{}, fmt.Errorf("list engineers: %w", err)
	}

	grouped := EngineersByLevel{L1: []string{}, L2: []string{}}
	for _, engineer := range engineers {
		switch engineer.Level {
		case domain.EngineerLevelL1:
			grouped.L1 = append(grouped.L1, engineer.Name)
		case domain.EngineerLevelL2:
			grouped.L2 = append(grouped.L2, engineer.Name)
		}
	}
	return grouped, nil
}

// AddEngineer adds an engineer to the roster.
func (s *Service) AddEngineer(ctx context.Context, engineer domain.Engineer) error {
	if !engineer.Level.IsValid() {
		return fmt.Errorf("invalid engineer level: %s", engineer.Level)
	}
	return s.repo.AddEngineer(ctx, engineer)
}

// RemoveEngineer removes an engineer from the roster.
func (s *Service) RemoveEngineer(ctx context.Context, name string) error {
	return s.repo.RemoveEngineer(ctx, name)
}

// SetJobLink attaches or replaces the link annotation on an incident.
func (s *Service) SetJobLink(ctx context.Context, link *domain.JobLink) error {
	if link.Text == "" {
		link.Text = link.URL
	}
	return s.repo.UpsertJobLink(ctx, link)
}

// GetJobLink fetches the link annotation for an incident.
func (s *Service) GetJobLink(ctx context.Context, incidentID int64) (*domain.JobLink, error) {
	return s.repo.GetJobLink(ctx, incidentID)
}

// ListJobLinks returns all link annotations keyed by incident id.
func (s *Service) ListJobLinks(ctx context.Context) (map[int64]domain.JobLink, error) {
	links, err := s.repo.ListJobLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list job links: %w", err)
	}

	out := make(map[int64]domain.JobLink, len(links))
	for _, link := range links {
		out[link.IncidentID] = link
	}
	return out, nil
}

// RemoveJobLink removes the link annotation from an incident.
func (s *Service) RemoveJobLink(ctx context.Context, incidentID int64) error {
	return s.repo.RemoveJobLink(ctx, incidentID)
}
