// Package ingest implements the HTTP admission boundary: API-key
// authentication, usage-limit enforcement, envelope validation, and
// handoff to the durable event bus (spec §4.6).
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wisbric/lynex/internal/httpserver"
	"github.com/wisbric/lynex/internal/telemetry"
	"github.com/wisbric/lynex/pkg/bus"
	"github.com/wisbric/lynex/pkg/credential"
	"github.com/wisbric/lynex/pkg/event"
	"github.com/wisbric/lynex/pkg/usage"
)

// maxBody bounds the request body read for a single event; batches get a
// multiple of this, capped, via maxBatchBody.
const (
	maxBody      = 1 << 20  // 1 MiB
	maxBatchBody = 8 << 20  // 8 MiB
)

// CredentialResolver resolves a cleartext API key to its owning credential.
// Declared locally (rather than imported as a concrete type) so handler
// tests can substitute a fake without a database.
type CredentialResolver interface {
	Resolve(ctx context.Context, cleartextKey string) (credential.Credential, error)
}

// UsageChecker enforces the per-owner monthly event limit.
type UsageChecker interface {
	CheckAndIncrement(ctx context.Context, userID string, n int64) (bool, usage.Stats, error)
}

// Handler implements the ingest admission endpoints.
type Handler struct {
	credentials CredentialResolver
	usage       UsageChecker
	bus         bus.Bus
	logger      *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(credentials CredentialResolver, usageChecker UsageChecker, b bus.Bus, logger *slog.Logger) *Handler {
	return &Handler{credentials: credentials, usage: usageChecker, bus: b, logger: logger}
}

// Routes returns a chi.Router with the ingest endpoints mounted, to be
// mounted at "/events" on the API router, plus top-level health routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleSingle)
	r.Post("/batch", h.handleBatch)
	return r
}

// HealthRoutes returns a chi.Router for the unauthenticated bus health
// endpoints, mounted at "/health".
func (h *Handler) HealthRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleHealth)
	r.Get("/queue", h.handleHealthQueue)
	return r
}

// authResult carries the resolved credential or the rejection to apply.
type authResult struct {
	credential credential.Credential
	status     int
	reason     string
	message    string
}

func (h *Handler) authenticate(r *http.Request) authResult {
	key := r.Header.Get("X-API-Key")
	if key == "" {
		return authResult{status: http.StatusUnauthorized, reason: "missing_api_key", message: "X-API-Key header is required"}
	}

	c, err := h.credentials.Resolve(r.Context(), key)
	switch {
	case errors.Is(err, credential.ErrMalformed):
		return authResult{status: http.StatusUnauthorized, reason: "malformed_api_key", message: "API key format is invalid"}
	case errors.Is(err, credential.ErrNotFound):
		return authResult{status: http.StatusForbidden, reason: "unknown_api_key", message: "API key not recognized"}
	case errors.Is(err, credential.ErrInactive):
		return authResult{status: http.StatusForbidden, reason: "inactive_api_key", message: "API key is inactive"}
	case err != nil:
		return authResult{status: http.StatusForbidden, reason: "auth_failed", message: "could not authenticate request"}
	}

	return authResult{credential: c}
}

func (h *Handler) handleSingle(w http.ResponseWriter, r *http.Request) {
	auth := h.authenticate(r)
	if auth.status != 0 {
		telemetry.EventsRejectedTotal.WithLabelValues(auth.reason).Inc()
		httpserver.RespondError(w, auth.status, auth.reason, auth.message)
		return
	}

	allowed, stats, err := h.usage.CheckAndIncrement(r.Context(), auth.credential.ProjectID, 1)
	if err != nil {
		h.logger.Error("ingest: usage check failed", "error", err)
	}
	if !allowed {
		telemetry.EventsRejectedTotal.WithLabelValues("usage_limit").Inc()
		telemetry.UsageLimitRejectedTotal.Inc()
		httpserver.Respond(w, http.StatusTooManyRequests, map[string]any{
			"error":     "usage_limit_exceeded",
			"message":   "monthly event limit exceeded",
			"used":      stats.Used,
			"limit":     stats.Limit,
			"remaining": stats.Remaining,
		})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		telemetry.EventsRejectedTotal.WithLabelValues("body_too_large").Inc()
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_body", "could not read request body")
		return
	}

	var envelope event.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		telemetry.EventsRejectedTotal.WithLabelValues("malformed_json").Inc()
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_json", "could not parse event body")
		return
	}

	if errs := event.Validate(&envelope); len(errs) > 0 {
		telemetry.EventsRejectedTotal.WithLabelValues("validation_failed").Inc()
		respondValidationErrors(w, errs)
		return
	}

	h.checkProjectMismatch(&envelope, auth.credential)
	envelope.ProjectID = auth.credential.ProjectID

	if err := h.enqueue(r.Context(), envelope); err != nil {
		h.logger.Error("ingest: bus append failed", "error", err, "event_id", envelope.EventID)
		telemetry.EventsRejectedTotal.WithLabelValues("bus_unavailable").Inc()
		httpserver.RespondError(w, http.StatusServiceUnavailable, "bus_unavailable", "could not queue event")
		return
	}

	telemetry.EventsIngestedTotal.WithLabelValues(string(envelope.Type)).Inc()
	httpserver.Respond(w, http.StatusAccepted, map[string]string{
		"status":   "queued",
		"event_id": envelope.EventID,
	})
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	auth := h.authenticate(r)
	if auth.status != 0 {
		telemetry.EventsRejectedTotal.WithLabelValues(auth.reason).Inc()
		httpserver.RespondError(w, auth.status, auth.reason, auth.message)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBody))
	if err != nil {
		telemetry.EventsRejectedTotal.WithLabelValues("body_too_large").Inc()
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_body", "could not read request body")
		return
	}

	var events []event.Envelope
	if err := json.Unmarshal(body, &events); err != nil {
		telemetry.EventsRejectedTotal.WithLabelValues("malformed_json").Inc()
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_json", "could not parse batch body, expected a JSON array of event envelopes")
		return
	}

	if len(events) > event.MaxBatchSize {
		telemetry.EventsRejectedTotal.WithLabelValues("batch_too_large").Inc()
		httpserver.RespondError(w, http.StatusBadRequest, "batch_too_large",
			fmt.Sprintf("batch exceeds maximum size of %d events", event.MaxBatchSize))
		return
	}

	if errs := event.ValidateBatch(events); len(errs) > 0 {
		telemetry.EventsRejectedTotal.WithLabelValues("validation_failed").Inc()
		respondValidationErrors(w, errs)
		return
	}

	allowed, stats, err := h.usage.CheckAndIncrement(r.Context(), auth.credential.ProjectID, int64(len(events)))
	if err != nil {
		h.logger.Error("ingest: usage check failed", "error", err)
	}
	if !allowed {
		telemetry.EventsRejectedTotal.WithLabelValues("usage_limit").Inc()
		telemetry.UsageLimitRejectedTotal.Inc()
		httpserver.Respond(w, http.StatusTooManyRequests, map[string]any{
			"error":     "usage_limit_exceeded",
			"message":   "monthly event limit exceeded",
			"used":      stats.Used,
			"limit":     stats.Limit,
			"remaining": stats.Remaining,
		})
		return
	}

	eventIDs := make([]string, 0, len(events))
	for i := range events {
		h.checkProjectMismatch(&events[i], auth.credential)
		events[i].ProjectID = auth.credential.ProjectID
	}

	for i := range events {
		if err := h.enqueue(r.Context(), events[i]); err != nil {
			h.logger.Error("ingest: batch bus append failed", "error", err, "index", i)
			telemetry.EventsRejectedTotal.WithLabelValues("bus_unavailable").Inc()
			httpserver.RespondError(w, http.StatusServiceUnavailable, "bus_unavailable", "could not queue batch")
			return
		}
		eventIDs = append(eventIDs, events[i].EventID)
		telemetry.EventsIngestedTotal.WithLabelValues(string(events[i].Type)).Inc()
	}

	httpserver.Respond(w, http.StatusAccepted, map[string]any{
		"status":    "queued",
		"count":     len(eventIDs),
		"event_ids": eventIDs,
	})
}

func (h *Handler) checkProjectMismatch(envelope *event.Envelope, c credential.Credential) {
	if envelope.ProjectID != "" && envelope.ProjectID != c.ProjectID {
		h.logger.Warn("ingest: event project_id differs from credential project_id, credential wins",
			"event_project_id", envelope.ProjectID, "credential_project_id", c.ProjectID)
	}
}

func (h *Handler) enqueue(ctx context.Context, envelope event.Envelope) error {
	queuedAt := time.Now().UTC()
	fields, err := event.Flatten(&envelope, queuedAt)
	if err != nil {
		return err
	}
	_, err = h.bus.Append(ctx, fields)
	return err
}

func respondValidationErrors(w http.ResponseWriter, errs []event.ValidationError) {
	details := make([]httpserver.ValidationError, 0, len(errs))
	for _, e := range errs {
		details = append(details, httpserver.ValidationError{Field: e.Field, Message: e.Message})
	}
	httpserver.Respond(w, http.StatusUnprocessableEntity, httpserver.ValidationErrorResponse{
		Error:   "validation_failed",
		Message: "one or more fields failed validation",
		Details: details,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	if h.bus.Degraded() {
		status = "degraded"
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": status})
}

func (h *Handler) handleHealthQueue(w http.ResponseWriter, r *http.Request) {
	length, err := h.bus.Len(r.Context())
	if err != nil {
		httpserver.RespondError(w, http.StatusServiceUnavailable, "bus_unavailable", "could not read queue stats")
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{
		"length":   length,
		"degraded": h.bus.Degraded(),
	})
}
