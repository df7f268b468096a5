package incidents

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bissquit/jobwatch/internal/domain"
	"github.com/bissquit/jobwatch/internal/pkg/httputil"
)

// Handler handles HTTP requests for the incident lifecycle.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers incident lifecycle routes. The router is
// expected to be mounted under /incidents.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/active", h.ActiveIncidents)
	r.Post("/respond", h.Respond)
	r.Post("/{id}/resolve", h.Resolve)
	r.Patch("/{id}/priority", h.UpdatePriority)
}

// errorMappings translates lifecycle errors to HTTP statuses. Conflicts
// are information for the caller, not failures.
var errorMappings = []httputil.ErrorMapping{
	{Error: ErrIncidentNotFound, Status: http.StatusNotFound},
	{Error: ErrAlreadyClaimed, Status: http.StatusConflict},
	{Error: ErrAlreadyResolved, Status: http.StatusConflict},
	{Error: ErrIncidentClosed, Status: http.StatusConflict},
	{Error: ErrStorageTimeout, Status: http.StatusServiceUnavailable, Message: "storage unavailable"},
}

// RespondRequest represents the request body for claiming a job incident.
type RespondRequest struct {
	JobName   string `json:"job_name" validate:"required,min=1,max=255"`
	Responder string `json:"responder" validate:"required,min=1,max=255"`
	Priority  string `json:"priority" validate:"omitempty,oneof=P1 P2 P3 P4"`
}

// UpdatePriorityRequest represents the request body for a priority edit.
type UpdatePriorityRequest struct {
	Priority string `json:"priority" validate:"required,oneof=P1 P2 P3 P4"`
}

// ActiveIncidents handles GET /incidents/active.
func (h *Handler) ActiveIncidents(w http.ResponseWriter, r *http.Request) {
	active, err := h.service.ActiveIncidents(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, active)
}

// Respond handles POST /incidents/respond.
func (h *Handler) Respond(w http.ResponseWriter, r *http.Request) {
	var req RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	id, err := h.service.Respond(r.Context(), req.JobName, req.Responder, priorityOrDefault(req.Priority))
	if err != nil {
		var claimed *AlreadyClaimedError
		if errors.As(err, &claimed) {
			httputil.ErrorWithDetails(w, http.StatusConflict, claimed.Error(), map[string]any{
				"incident_id": claimed.IncidentID,
				"responder":   claimed.Responder,
			})
			return
		}
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, map[string]int64{"incident_id": id})
}

// Resolve handles POST /incidents/{id}/resolve.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := incidentID(w, r)
	if !ok {
		return
	}

	duration, err := h.service.Resolve(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]int64{"duration_seconds": duration})
}

// UpdatePriority handles PATCH /incidents/{id}/priority.
func (h *Handler) UpdatePriority(w http.ResponseWriter, r *http.Request) {
	id, ok := incidentID(w, r)
	if !ok {
		return
	}

	var req UpdatePriorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	if err := h.service.SetPriority(r.Context(), id, domain.Priority(req.Priority)); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]string{"priority": req.Priority})
}

func incidentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid incident id")
		return 0, false
	}
	return id, true
}

func priorityOrDefault(p string) domain.Priority {
	if p == "" {
		return domain.DefaultPriority
	}
	return domain.Priority(p)
}
