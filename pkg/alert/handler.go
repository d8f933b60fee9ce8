package alert

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wisbric/lynex/internal/httpserver"
)

// Handler exposes the admin CRUD surface for alert rules (SPEC_FULL.md §5).
type Handler struct {
	service *Service
}

// NewHandler creates a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns a chi.Router with the rule CRUD endpoints mounted, to be
// mounted at "/alerts/rules" behind APIKeyAuth+RequireAuth.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Patch("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)
	return r
}

type ruleRequest struct {
	Name       string   `json:"name"`
	Condition  string   `json:"condition"`
	Threshold  float64  `json:"threshold"`
	Severity   string   `json:"severity"`
	Enabled    *bool    `json:"enabled"`
	EventType  string   `json:"event_type"`
	FieldPath  string   `json:"field_path"`
	FieldValue string   `json:"field_value"`
}

func (req ruleRequest) toRule() Rule {
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	return Rule{
		Name:       req.Name,
		Condition:  Condition(req.Condition),
		Threshold:  req.Threshold,
		Severity:   Severity(req.Severity),
		Enabled:    enabled,
		EventType:  req.EventType,
		FieldPath:  req.FieldPath,
		FieldValue: req.FieldValue,
	}
}

type ruleResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	ProjectID  string  `json:"project_id"`
	Condition  string  `json:"condition"`
	Threshold  float64 `json:"threshold"`
	Severity   string  `json:"severity"`
	Enabled    bool    `json:"enabled"`
	EventType  string  `json:"event_type,omitempty"`
	FieldPath  string  `json:"field_path,omitempty"`
	FieldValue string  `json:"field_value,omitempty"`
}

func toResponse(r Rule) ruleResponse {
	return ruleResponse{
		ID:         r.ID,
		Name:       r.Name,
		ProjectID:  r.ProjectID,
		Condition:  string(r.Condition),
		Threshold:  r.Threshold,
		Severity:   string(r.Severity),
		Enabled:    r.Enabled,
		EventType:  r.EventType,
		FieldPath:  r.FieldPath,
		FieldValue: r.FieldValue,
	}
}

func identityProjectID(w http.ResponseWriter, r *http.Request) (string, bool) {
	identity, ok := httpserver.IdentityFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid API key")
		return "", false
	}
	return identity.ProjectID, true
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	projectID, ok := identityProjectID(w, r)
	if !ok {
		return
	}

	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_params", err.Error())
		return
	}

	rules, total, err := h.service.ListPage(r.Context(), projectID, params.Offset, params.PageSize)
	if err != nil {
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "could not list alert rules")
		return
	}

	resp := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		resp = append(resp, toResponse(rule))
	}
	httpserver.Respond(w, http.StatusOK, httpserver.NewOffsetPage(resp, params, total))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	projectID, ok := identityProjectID(w, r)
	if !ok {
		return
	}

	var req ruleRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	created, err := h.service.Create(r.Context(), projectID, req.toRule())
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_rule", err.Error())
		return
	}
	httpserver.Respond(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	projectID, ok := identityProjectID(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_id", "rule id must be a valid UUID")
		return
	}

	rule, err := h.service.Get(r.Context(), projectID, id)
	if err != nil {
		respondRuleError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, toResponse(rule))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	projectID, ok := identityProjectID(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_id", "rule id must be a valid UUID")
		return
	}

	var req ruleRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	updated, err := h.service.Update(r.Context(), projectID, id, req.toRule())
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "alert rule not found")
			return
		}
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_rule", err.Error())
		return
	}
	httpserver.Respond(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	projectID, ok := identityProjectID(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_id", "rule id must be a valid UUID")
		return
	}

	if err := h.service.Delete(r.Context(), projectID, id); err != nil {
		respondRuleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondRuleError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
		httpserver.RespondError(w, http.StatusNotFound, "not_found", "alert rule not found")
		return
	}
	httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "could not load alert rule")
}
