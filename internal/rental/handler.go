package rental

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/snd-est/snd-rental/internal/platform/httpx"
	"github.com/snd-est/snd-rental/internal/shared"
)

// Handler exposes the rental JSON API.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a rental handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// MountRoutes attaches rental routes to the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)

	r.Route("/{rentalID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)

		r.Post("/items", h.addItem)
		r.Put("/items/{itemID}", h.updateItem)
		r.Delete("/items/{itemID}", h.removeItem)

		r.Post("/quotation", h.transitionFunc(h.service.GenerateQuotation))
		r.Post("/approve", h.transitionFunc(h.service.Approve))
		r.Post("/mobilize", h.transitionFunc(h.service.Mobilize))
		r.Post("/activate", h.transitionFunc(h.service.Activate))
		r.Post("/complete", h.complete)
		r.Post("/cancel", h.transitionFunc(h.service.Cancel))
		r.Post("/suspend", h.transitionFunc(h.service.Suspend))

		r.Post("/sync-equipment", h.syncEquipment)
		r.Post("/cleanup-duplicates", h.cleanupDuplicates)

		r.Get("/summary", h.summary)
		r.Get("/status-logs", h.statusLogs)
		r.Get("/assignments", h.assignments)

		r.Get("/invoices", h.invoices)
		r.Post("/link-invoice", h.linkInvoice)
		r.Delete("/link-invoice/{externalID}", h.unlinkInvoice)
		r.Get("/payments", h.payments)
		r.Post("/link-payment", h.linkPayment)
		r.Delete("/link-payment/{externalID}", h.unlinkPayment)
	})
}

func rentalID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "rentalID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrValidation
	}
	return id, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	customerID, _ := strconv.ParseInt(q.Get("customerId"), 10, 64)

	rentals, total, err := h.service.List(r.Context(), ListFilter{
		Status:     Status(q.Get("status")),
		CustomerID: customerID,
		Search:     q.Get("search"),
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       rentals,
		"pagination": shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRentalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	rental, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rental)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	rental, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rental)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req UpdateRentalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	rental, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rental)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req CreateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	item, err := h.service.AddItem(r.Context(), id, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || itemID <= 0 {
		h.respondError(w, r, shared.ErrValidation)
		return
	}
	var req UpdateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	item, err := h.service.UpdateItem(r.Context(), id, itemID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || itemID <= 0 {
		h.respondError(w, r, shared.ErrValidation)
		return
	}
	if err := h.service.RemoveItem(r.Context(), id, itemID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transitionFn func(ctx context.Context, id int64, req TransitionRequest) (*Rental, error)

func (h *Handler) transitionFunc(fn transitionFn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := rentalID(r)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		var req TransitionRequest
		if r.ContentLength > 0 {
			if err := httpx.DecodeJSON(r, &req); err != nil {
				h.respondError(w, r, err)
				return
			}
		}
		rental, err := fn(r.Context(), id, req)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, rental)
	}
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req CompleteRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	rental, err := h.service.Complete(r.Context(), id, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rental)
}

func (h *Handler) syncEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	created, err := h.service.SyncAssignments(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"created": created})
}

func (h *Handler) cleanupDuplicates(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	removed, err := h.service.CleanupDuplicates(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	summary, err := h.service.Summary(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) statusLogs(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	logs, err := h.service.StatusLogs(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": logs})
}

func (h *Handler) assignments(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	rows, err := h.service.Assignments(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

func (h *Handler) invoices(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	refs, err := h.service.Invoices(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": refs})
}

func (h *Handler) payments(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	refs, err := h.service.Payments(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": refs})
}

func (h *Handler) linkInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req LinkRefRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	ref, err := h.service.LinkInvoice(r.Context(), id, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ref)
}

func (h *Handler) unlinkInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.service.UnlinkInvoice(r.Context(), id, chi.URLParam(r, "externalID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) linkPayment(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req LinkRefRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	ref, err := h.service.LinkPayment(r.Context(), id, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ref)
}

func (h *Handler) unlinkPayment(w http.ResponseWriter, r *http.Request) {
	id, err := rentalID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.service.UnlinkPayment(r.Context(), id, chi.URLParam(r, "externalID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("rental request failed",
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	httpx.RespondError(w, err)
}
