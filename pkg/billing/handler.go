package billing

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wisbric/lynex/internal/httpserver"
)

// Handler exposes the webhook ingress and the read-only subscription
// lookup used by the ingest side to surface usage stats (SPEC_FULL §5).
type Handler struct {
	service *Service
	secret  string
	logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(service *Service, webhookSecret string, logger *slog.Logger) *Handler {
	return &Handler{service: service, secret: webhookSecret, logger: logger}
}

// Routes returns a chi.Router with the billing routes mounted, to be
// mounted at "/billing" on the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/webhooks/whop", h.handleWhopWebhook)
	r.Get("/subscription", h.handleGetSubscription)
	return r
}

// whopWebhookPayload is the subset of a Whop membership webhook this
// service acts on.
type whopWebhookPayload struct {
	Action string `json:"action"`
	Data   struct {
		ID                 string `json:"id"`
		PlanID             string `json:"plan_id"`
		UserID             string `json:"user_id"`
		Valid              bool   `json:"valid"`
		RenewalPeriodStart *int64 `json:"renewal_period_start"`
		RenewalPeriodEnd   *int64 `json:"renewal_period_end"`
	} `json:"data"`
}

func (h *Handler) handleWhopWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBody = 1 << 20 // 1 MiB
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_body", "could not read request body")
		return
	}

	signature := r.Header.Get("X-Whop-Signature")
	if !VerifySignature(h.logger, h.secret, body, signature) {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
		return
	}

	var payload whopWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "invalid_payload", "could not parse webhook body")
		return
	}

	if payload.Data.UserID == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "missing_user_id", "webhook payload has no user id")
		return
	}

	// Four actions are defined; membership.* reconcile tier/status/period,
	// payment.failed marks the subscription past_due, and payment.succeeded
	// is a no-op (the next membership.went_valid carries the renewed period).
	switch payload.Action {
	case "membership.went_valid", "membership.went_invalid":
		membership := WebhookMembership{
			ID:     payload.Data.ID,
			PlanID: payload.Data.PlanID,
			Valid:  payload.Data.Valid,
		}
		if payload.Data.RenewalPeriodStart != nil {
			membership.Period.Start = time.Unix(*payload.Data.RenewalPeriodStart, 0).UTC()
		}
		if payload.Data.RenewalPeriodEnd != nil {
			membership.Period.End = time.Unix(*payload.Data.RenewalPeriodEnd, 0).UTC()
		}

		if _, err := h.service.UpdateFromWebhook(r.Context(), payload.Data.UserID, membership); err != nil {
			h.logger.Error("billing: reconciling webhook", "error", err, "action", payload.Action)
			httpserver.RespondError(w, http.StatusInternalServerError, "reconcile_failed", "could not reconcile subscription")
			return
		}

	case "payment.failed":
		if _, err := h.service.MarkPastDue(r.Context(), payload.Data.UserID); err != nil {
			h.logger.Error("billing: marking past_due", "error", err, "action", payload.Action)
			httpserver.RespondError(w, http.StatusInternalServerError, "reconcile_failed", "could not mark subscription past_due")
			return
		}

	case "payment.succeeded":
		// No-op: a successful charge doesn't change tier or status by
		// itself, the membership webhook carries the renewed period.

	default:
		h.logger.Warn("billing: unrecognized webhook action", "action", payload.Action)
	}

	httpserver.Respond(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	identity, ok := httpserver.IdentityFromContext(r.Context())
	if !ok {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing credential")
		return
	}

	sub, err := h.service.GetSubscription(r.Context(), identity.ProjectID)
	if err != nil {
		h.logger.Error("billing: loading subscription", "error", err, "project_id", identity.ProjectID)
		httpserver.RespondError(w, http.StatusInternalServerError, "lookup_failed", "could not load subscription")
		return
	}

	httpserver.Respond(w, http.StatusOK, sub.ToResponse())
}
