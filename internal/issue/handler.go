package issue

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Digigit24/kumsserp-sub000/internal/platform/httpx"
	"github.com/Digigit24/kumsserp-sub000/internal/shared"
)

// Handler exposes material issue transitions over JSON. MIN creation happens
// through the fulfillment endpoint, not here.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers material issue routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/issues/{id}", h.handleGet)
	r.Post("/issues/{id}/dispatch", h.handleDispatch)
	r.Post("/issues/{id}/in-transit", h.handleMarkInTransit)
	r.Post("/issues/{id}/confirm-receipt", h.handleConfirmReceipt)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	min, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get material issue", err)
		return
	}
	httpx.JSON(w, http.StatusOK, min)
}

func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Dispatch)
}

func (h *Handler) handleMarkInTransit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkInTransit)
}

func (h *Handler) handleConfirmReceipt(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ConfirmReceipt)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64, actor shared.Actor) (MaterialIssue, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor headers required")
		return
	}
	min, err := op(r.Context(), id, actor)
	if err != nil {
		h.respondErr(w, "material issue transition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, min)
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrValidation) {
		httpx.RespondValidation(w, err)
		return
	}
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "document id must be a positive integer")
		return 0, false
	}
	return id, true
}
