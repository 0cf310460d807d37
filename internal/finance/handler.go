package finance

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/snd-est/snd-rental/internal/platform/httpx"
	"github.com/snd-est/snd-rental/internal/shared"
)

// Handler exposes the finance reporting endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a finance handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// MountRoutes attaches finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/invoices", h.invoices)
	r.Get("/payments", h.payments)
	r.Get("/rentals/{rentalID}/statement", h.statement)
}

// dateRange reads from/to query params, defaulting to the last 90 days.
func dateRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, -3, 0)
	to := now
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, shared.ErrValidation
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, shared.ErrValidation
		}
		to = parsed
	}
	return from, to, nil
}

func (h *Handler) invoices(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report := h.service.Invoices(r.Context(), from, to, r.URL.Query().Get("customer"))
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) payments(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report := h.service.Payments(r.Context(), from, to, r.URL.Query().Get("customer"))
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "rentalID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	rows, err := h.service.RentalStatement(r.Context(), id)
	if err != nil {
		h.logger.Warn("statement failed", slog.Int64("rental_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": rows})
}
