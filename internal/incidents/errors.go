package incidents

import (
	"errors"
	"fmt"
)

// Incident domain errors. Conflict-class errors report a lost race and
// are never fatal: the correct caller action is to re-read state.
var (
	ErrIncidentNotFound = errors.New("incident not found")
	ErrAlreadyResolved  = errors.New("incident already resolved")
	ErrAlreadyClaimed   = errors.New("incident already claimed")
	ErrIncidentClosed   = errors.New("incident is closed")
	ErrStorageTimeout   = errors.New("storage operation timed out")
)

// AlreadyClaimedError reports a claim rejected because another responder
// got there first. It names the current holder so the caller can see who
// is already responding.
type AlreadyClaimedError struct {
	IncidentID int64
	Responder  string
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("incident %d already claimed by %s", e.IncidentID, e.Responder)
}

// Is makes the error match ErrAlreadyClaimed in errors.Is checks.
func (e *AlreadyClaimedError) Is(target error) bool {
	return target == ErrAlreadyClaimed
}
