package billing

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/snd-est/snd-rental/internal/platform/httpx"
	"github.com/snd-est/snd-rental/internal/shared"
)

// Handler exposes the billing JSON API.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a billing handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// MountRoutes attaches the bulk-run endpoint under /billing.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/run", h.runAll)
}

// MountRentalRoutes attaches the per-rental endpoints under /rentals.
func (h *Handler) MountRentalRoutes(r chi.Router) {
	r.Post("/{rentalID}/invoice", h.generateForRental)
	r.Get("/{rentalID}/billing-periods", h.periods)
}

func (h *Handler) runAll(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	report, err := h.service.GenerateAll(r.Context(), req.BillingMonth)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

type generateRequest struct {
	BillingMonth string `json:"billingMonth"`
}

func (h *Handler) generateForRental(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "rentalID"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, r, shared.ErrValidation)
		return
	}
	var req generateRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	created, err := h.service.GenerateForRental(r.Context(), id, req.BillingMonth)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"invoices": created})
}

func (h *Handler) periods(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "rentalID"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, r, shared.ErrValidation)
		return
	}
	periods, err := h.service.Periods(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": periods})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("billing request failed",
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	httpx.RespondError(w, err)
}
