package domain

// Severity is the ordered classification of a raw job status. Lower
// values are more urgent.
type Severity int

// Severity tiers, most urgent first.
const (
	SeverityCritical Severity = iota
	SeverityError
	SeverityWarning
	SeverityInformational
)

// String returns the canonical name of the severity tier.
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformational:
		return "informational"
	}
	return "informational"
}

// RequiresResponse reports whether the severity tier should open an
// incident automatically.
func (s Severity) RequiresResponse() bool {
	return s == SeverityCritical || s == SeverityError
}

// JobStatus is one (job, raw status) pair as reported by the upstream
// status feed.
type JobStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}
