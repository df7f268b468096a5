// Package history provides the read-only reporting view over resolved
// and open incidents. It never mutates incident state.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/jobwatch/internal/domain"
)

// Lister is the slice of the incident store the projection reads from.
type Lister interface {
	ListHistory(ctx context.Context, limit int, since time.Time) ([]*domain.Incident, error)
}

// Record is one incident in the report, with the resolution duration
// pre-formatted for display.
type Record struct {
	IncidentID        int64      `json:"incident_id"`
	JobName           string     `json:"job_name"`
	StatusAtDetection string     `json:"status_at_detection"`
	Priority          string     `json:"priority"`
	Responder         *string    `json:"responder"`
	DetectionTime     time.Time  `json:"detection_time"`
	ResponseStartTime *time.Time `json:"response_start_time"`
	ResolutionTime    *time.Time `json:"resolution_time"`
	// Duration is resolution_duration_seconds as HH:MM:SS; empty while
	// the incident is still open.
	Duration string `json:"duration"`
}

// Service projects incident history.
type Service struct {
	store Lister
}

// NewService creates a new history projection.
func NewService(store Lister) *Service {
	return &Service{store: store}
}

// List returns up to limit incidents most recent first, restricted to
// those whose response started within the window beginning at since
// (zero since means unbounded).
func (s *Service) List(ctx context.Context, limit int, since time.Time) ([]Record, error) {
	incs, err := s.store.ListHistory(ctx, limit, since)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	records := make([]Record, 0, len(incs))
	for _, inc := range incs {
		record := Record{
			IncidentID:        inc.ID,
			JobName:           inc.JobName,
			StatusAtDetection: inc.StatusAtDetection,
			Priority:          string(inc.Priority),
			Responder:         inc.Responder,
			DetectionTime:     inc.DetectionTime,
			ResponseStartTime: inc.ResponseStartTime,
			ResolutionTime:    inc.ResolutionTime,
		}
		if inc.ResolutionDurationSeconds != nil {
			record.Duration = FormatDuration(*inc.ResolutionDurationSeconds)
		}
		records = append(records, record)
	}
	return records, nil
}

// FormatDuration renders whole seconds as HH:MM:SS. Hours grow past two
// digits for very long incidents rather than wrapping.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
