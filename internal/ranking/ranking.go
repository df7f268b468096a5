// Package ranking classifies raw job statuses into severity tiers and
// orders the job list for display: jobs with an open incident pinned
// first, the rest by severity.
package ranking

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/bissquit/jobwatch/internal/domain"
	"github.com/bissquit/jobwatch/internal/pkg/ctxlog"
)

// titleCaser canonicalizes raw status spellings ("critical", "CRITICAL")
// before lookup.
var titleCaser = cases.Title(language.English)

var severityByStatus = map[string]domain.Severity{
	"Critical": domain.SeverityCritical,
	"Error":    domain.SeverityError,
	"Warning":  domain.SeverityWarning,
	"Log":      domain.SeverityInformational,
}

// Classify maps a raw job status to a severity tier. Unrecognized
// statuses land in the informational tier with a logged anomaly; an
// unknown status from the feed must never be fatal.
func Classify(ctx context.Context, rawStatus string) domain.Severity {
	canonical := titleCaser.String(strings.ToLower(strings.TrimSpace(rawStatus)))
	if severity, ok := severityByStatus[canonical]; ok {
		return severity
	}

	ctxlog.FromContext(ctx).Warn("unrecognized job status, treating as informational",
		"status", rawStatus,
	)
	return domain.SeverityInformational
}

// RankedJob is one entry in the display order.
type RankedJob struct {
	Name     string          `json:"name"`
	Status   string          `json:"status"`
	Severity domain.Severity `json:"severity"`
	// IncidentID is set when the job has an open incident.
	IncidentID int64 `json:"incident_id,omitempty"`
}

// Rank orders jobs for display. openIDs maps job name to its open
// incident id. Jobs with an open incident come first, in incident-open
// order (incident ids are monotonic, so id order is insertion order);
// remaining jobs ascend by severity rank, ties broken by name so the
// order is deterministic.
func Rank(ctx context.Context, jobs []domain.JobStatus, openIDs map[string]int64) []RankedJob {
	responding := make([]RankedJob, 0, len(openIDs))
	others := make([]RankedJob, 0, len(jobs))

	for _, job := range jobs {
		ranked := RankedJob{
			Name:     job.Name,
			Status:   job.Status,
			Severity: Classify(ctx, job.Status),
		}
		if id, ok := openIDs[job.Name]; ok {
			ranked.IncidentID = id
			responding = append(responding, ranked)
		} else {
			others = append(others, ranked)
		}
	}

	sort.SliceStable(responding, func(i, j int) bool {
		return responding[i].IncidentID < responding[j].IncidentID
	})

	sort.SliceStable(others, func(i, j int) bool {
		if others[i].Severity != others[j].Severity {
			return others[i].Severity < others[j].Severity
		}
		return others[i].Name < others[j].Name
	})

	return append(responding, others...)
}
