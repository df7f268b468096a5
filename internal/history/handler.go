package history

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bissquit/jobwatch/internal/pkg/httputil"
)

// Pagination constants.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// Handler serves the incident history report.
type Handler struct {
	service *Service
}

// NewHandler creates a new history handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers history routes. The router is expected to be
// mounted under /incidents.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/history", h.ListHistory)
}

// ListHistory handles GET /incidents/history?limit=&since=.
// since is RFC3339; days=N is accepted as a convenience for
// "incidents from the last N days".
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httputil.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid since, expected RFC3339 timestamp")
			return
		}
		since = parsed
	} else if raw := r.URL.Query().Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 {
			httputil.Error(w, http.StatusBadRequest, "invalid days")
			return
		}
		since = time.Now().AddDate(0, 0, -days)
	}

	records, err := h.service.List(r.Context(), limit, since)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.Success(w, http.StatusOK, records)
}
