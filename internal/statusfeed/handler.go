package statusfeed

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bissquit/jobwatch/internal/incidents"
	"github.com/bissquit/jobwatch/internal/pkg/httputil"
	"github.com/bissquit/jobwatch/internal/ranking"
)

// EngineReader is the read-side of the incident lifecycle engine used
// by the job board.
type EngineReader interface {
	ActiveIncidents(ctx context.Context) (map[string]incidents.ActiveIncident, error)
}

// Handler serves the ranked job board.
type Handler struct {
	poller *Poller
	engine EngineReader
}

// NewHandler creates a new job board handler.
func NewHandler(poller *Poller, engine EngineReader) *Handler {
	return &Handler{poller: poller, engine: engine}
}

// RegisterRoutes registers job board routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/jobs", h.ListJobs)
}

// JobView is one row of the ranked job board.
type JobView struct {
	Name     string                    `json:"name"`
	Status   string                    `json:"status"`
	Severity string                    `json:"severity"`
	Incident *incidents.ActiveIncident `json:"incident,omitempty"`
}

// JobBoard is the full board response.
type JobBoard struct {
	Jobs []JobView `json:"jobs"`
	// Stale marks data served from the last successful poll because
	// the feed is currently unreachable.
	Stale       bool      `json:"stale"`
	LastUpdated time.Time `json:"last_updated"`
}

// ListJobs handles GET /jobs: jobs with open incidents pinned first in
// incident order, remaining jobs by ascending severity.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, stale := h.poller.Snapshot()

	active, err := h.engine.ActiveIncidents(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	openIDs := make(map[string]int64, len(active))
	for job, inc := range active {
		openIDs[job] = inc.IncidentID
	}

	ranked := ranking.Rank(r.Context(), jobs, openIDs)

	views := make([]JobView, 0, len(ranked))
	for _, job := range ranked {
		view := JobView{
			Name:     job.Name,
			Status:   job.Status,
			Severity: job.Severity.String(),
		}
		if inc, ok := active[job.Name]; ok {
			cp := inc
			view.Incident = &cp
		}
		views = append(views, view)
	}

	httputil.Success(w, http.StatusOK, JobBoard{
		Jobs:        views,
		Stale:       stale,
		LastUpdated: h.poller.LastUpdated(),
	})
}
