package domain

import "time"

// EngineerLevel is the support tier an engineer belongs to.
type EngineerLevel string

// Engineer levels.
const (
	EngineerLevelL1 EngineerLevel = "L1"
	EngineerLevelL2 EngineerLevel = "L2"
)

// IsValid checks if the engineer level is valid.
func (l EngineerLevel) IsValid() bool {
	return l == EngineerLevelL1 || l == EngineerLevelL2
}

// Engineer represents an on-call engineer eligible to claim incidents.
type Engineer struct {
	Name  string        `json:"name"`
	Level EngineerLevel `json:"level"`
}

// JobLink is a link annotation attached to an incident, for example a
// runbook or dashboard URL.
type JobLink struct {
	IncidentID int64     `json:"incident_id"`
	URL        string    `json:"url"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}
