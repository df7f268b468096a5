package domain

import "time"

// Priority represents the urgency assigned to an incident by the responder.
type Priority string

// Priority levels, ordered from most to least urgent.
const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
	PriorityP4 Priority = "P4"
)

// DefaultPriority is assigned when an incident is created without an
// explicit priority.
const DefaultPriority = PriorityP3

// IsValid checks if the priority is valid.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityP1, PriorityP2, PriorityP3, PriorityP4:
		return true
	}
	return false
}

// Incident represents a single incident against a monitored job.
// An incident is open while ResolutionTime is nil; at most one open
// incident exists per job at any instant.
type Incident struct {
	ID                int64      `json:"incident_id"`
	JobName           string     `json:"job_name"`
	StatusAtDetection string     `json:"status_at_detection"`
	DetectionTime     time.Time  `json:"detection_time"`
	ResponseStartTime *time.Time `json:"response_start_time"`
	Responder         *string    `json:"responder"`
	Priority          Priority   `json:"priority"`
	ResolutionTime    *time.Time `json:"resolution_time"`
	// ResolutionDurationSeconds is ResolutionTime - ResponseStartTime,
	// set atomically with ResolutionTime.
	ResolutionDurationSeconds *int64 `json:"resolution_duration_seconds"`
}

// IsOpen reports whether the incident has not been resolved yet.
func (i *Incident) IsOpen() bool {
	return i.ResolutionTime == nil
}

// IsClaimed reports whether a responder has claimed the incident.
func (i *Incident) IsClaimed() bool {
	return i.Responder != nil
}
