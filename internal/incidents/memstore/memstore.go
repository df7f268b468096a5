// Package memstore provides an in-memory implementation of incidents.Store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bissquit/jobwatch/internal/domain"
	"github.com/bissquit/jobwatch/internal/incidents"
)

// Store holds incident records in memory. Suitable for dev/testing.
//
// A single mutex serializes all mutations, which makes every
// compare-and-act primitive trivially atomic. Reads take the same lock;
// with in-memory latency that never becomes a bottleneck.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*domain.Incident
	// open maps job name -> open incident id. Invariant: at most one
	// entry per job, removed on resolve.
	open map[string]int64
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		nextID: 1,
		byID:   make(map[int64]*domain.Incident),
		open:   make(map[string]int64),
	}
}

// OpenIncident inserts a new open incident unless one already exists
// for the job.
func (s *Store) OpenIncident(_ context.Context, jobName, status string, detectionTime time.Time) (incidents.OpenResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.open[jobName]; ok {
		return incidents.OpenResult{IncidentID: id, AlreadyOpen: true}, nil
	}

	id := s.nextID
	s.nextID++

	s.byID[id] = &domain.Incident{
		ID:                id,
		JobName:           jobName,
		StatusAtDetection: status,
		DetectionTime:     detectionTime,
		Priority:          domain.DefaultPriority,
	}
	s.open[jobName] = id

	return incidents.OpenResult{IncidentID: id}, nil
}

// ClaimIncident assigns responder and priority to an open, unclaimed incident.
func (s *Store) ClaimIncident(_ context.Context, id int64, responder string, priority domain.Priority, startTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.byID[id]
	if !ok {
		return incidents.ErrIncidentNotFound
	}
	if !inc.IsOpen() {
		return incidents.ErrAlreadyResolved
	}
	if inc.Responder != nil {
		return &incidents.AlreadyClaimedError{IncidentID: id, Responder: *inc.Responder}
	}

	inc.Responder = &responder
	inc.Priority = priority
	inc.ResponseStartTime = &startTime
	return nil
}

// ResolveIncident closes an open incident and computes its duration.
func (s *Store) ResolveIncident(_ context.Context, id int64, resolutionTime time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.byID[id]
	if !ok {
		return 0, incidents.ErrIncidentNotFound
	}
	if !inc.IsOpen() {
		return 0, incidents.ErrAlreadyResolved
	}

	start := inc.DetectionTime
	if inc.ResponseStartTime != nil {
		start = *inc.ResponseStartTime
	}
	duration := int64(resolutionTime.Sub(start).Seconds())

	inc.ResolutionTime = &resolutionTime
	inc.ResolutionDurationSeconds = &duration
	delete(s.open, inc.JobName)

	return duration, nil
}

// UpdatePriority changes the priority of an open incident.
func (s *Store) UpdatePriority(_ context.Context, id int64, priority domain.Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.byID[id]
	if !ok {
		return incidents.ErrIncidentNotFound
	}
	if !inc.IsOpen() {
		return incidents.ErrIncidentClosed
	}

	inc.Priority = priority
	return nil
}

// GetIncident fetches an incident by id. Returns a copy.
func (s *Store) GetIncident(_ context.Context, id int64) (*domain.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.byID[id]
	if !ok {
		return nil, incidents.ErrIncidentNotFound
	}
	cp := *inc
	return &cp, nil
}

// ListOpen returns a snapshot of open incidents keyed by job name.
func (s *Store) ListOpen(_ context.Context) (map[string]*domain.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*domain.Incident, len(s.open))
	for job, id := range s.open {
		cp := *s.byID[id]
		out[job] = &cp
	}
	return out, nil
}

// ListHistory returns incidents most recent first.
func (s *Store) ListHistory(_ context.Context, limit int, since time.Time) ([]*domain.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Incident, 0, len(s.byID))
	for _, inc := range s.byID {
		if !since.IsZero() && historyTime(inc).Before(since) {
			continue
		}
		cp := *inc
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		ti, tj := historyTime(out[i]), historyTime(out[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID > out[j].ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// historyTime is the ordering key for history listings: response start
// when claimed, detection time otherwise.
func historyTime(inc *domain.Incident) time.Time {
	if inc.ResponseStartTime != nil {
		return *inc.ResponseStartTime
	}
	return inc.DetectionTime
}
