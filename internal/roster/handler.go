package roster

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bissquit/jobwatch/internal/domain"
	"github.com/bissquit/jobwatch/internal/pkg/httputil"
)

// Handler handles HTTP requests for the roster module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new roster handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers engineer roster routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/engineers", func(r chi.Router) {
		r.Get("/", h.ListEngineers)
		r.Post("/", h.AddEngineer)
		r.Delete("/{name}", h.RemoveEngineer)
	})
}

// RegisterIncidentRoutes registers the per-incident link routes. The
// router is expected to be mounted under /incidents.
func (h *Handler) RegisterIncidentRoutes(r chi.Router) {
	r.Route("/{id}/link", func(r chi.Router) {
		r.Get("/", h.GetJobLink)
		r.Put("/", h.SetJobLink)
		r.Delete("/", h.RemoveJobLink)
	})
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrEngineerNotFound, Status: http.StatusNotFound},
	{Error: ErrEngineerAlreadyExists, Status: http.StatusConflict},
	{Error: ErrLinkNotFound, Status: http.StatusNotFound},
}

// AddEngineerRequest represents the request body for adding an engineer.
type AddEngineerRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=255"`
	Level string `json:"level" validate:"required,oneof=L1 L2"`
}

// SetJobLinkRequest represents the request body for setting a job link.
type SetJobLinkRequest struct {
	URL  string `json:"url" validate:"required,url,max=2048"`
	Text string `json:"text" validate:"max=255"`
}

// ListEngineers handles GET /engineers.
func (h *Handler) ListEngineers(w http.ResponseWriter, r *http.Request) {
	engineers, err := h.service.ListEngineers(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, engineers)
}

// AddEngineer handles POST /engineers.
func (h *Handler) AddEngineer(w http.ResponseWriter, r *http.Request) {
	var req AddEngineerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	engineer := domain.Engineer{Name: req.Name, Level: domain.EngineerLevel(req.Level)}
	if err := h.service.AddEngineer(r.Context(), engineer); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, engineer)
}

// RemoveEngineer handles DELETE /engineers/{name}.
func (h *Handler) RemoveEngineer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.service.RemoveEngineer(r.Context(), name); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]string{"name": name})
}

// GetJobLink handles GET /incidents/{id}/link.
func (h *Handler) GetJobLink(w http.ResponseWriter, r *http.Request) {
	id, ok := incidentID(w, r)
	if !ok {
		return
	}

	link, err := h.service.GetJobLink(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, link)
}

// SetJobLink handles PUT /incidents/{id}/link.
func (h *Handler) SetJobLink(w http.ResponseWriter, r *http.Request) {
	id, ok := incidentID(w, r)
	if !ok {
		return
	}

	var req SetJobLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	link := &domain.JobLink{IncidentID: id, URL: req.URL, Text: req.Text}
	if err := h.service.SetJobLink(r.Context(), link); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, link)
}

// RemoveJobLink handles DELETE /incidents/{id}/link.
func (h *Handler) RemoveJobLink(w http.ResponseWriter, r *http.Request) {
	id, ok := incidentID(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveJobLink(r.Context(), id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]int64{"incident_id": id})
}

func incidentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid incident id")
		return 0, false
	}
	return id, true
}
