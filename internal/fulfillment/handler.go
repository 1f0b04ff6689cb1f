package fulfillment

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Digigit24/kumsserp-sub000/internal/indent"
	"github.com/Digigit24/kumsserp-sub000/internal/issue"
	"github.com/Digigit24/kumsserp-sub000/internal/platform/httpx"
	"github.com/Digigit24/kumsserp-sub000/internal/procurement"
	"github.com/Digigit24/kumsserp-sub000/internal/shared"
)

// Handler exposes cross-document operations over JSON.
type Handler struct {
	logger       *slog.Logger
	orchestrator *Orchestrator
	validate     *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, orchestrator *Orchestrator) *Handler {
	return &Handler{logger: logger, orchestrator: orchestrator, validate: validator.New()}
}

// MountRoutes registers fulfillment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/fulfillment/indents/{id}/prepare-dispatch", h.handlePrepareDispatch)
	r.Post("/fulfillment/requirements/{id}/create-po", h.handleCreatePO)
	r.Post("/fulfillment/grns/{id}/post", h.handlePostGRN)
	r.Post("/fulfillment/pos/{id}/close", h.handleClosePO)
}

type dispatchRequest struct {
	Number  string `json:"number" validate:"required"`
	StoreID int64  `json:"store_id" validate:"required"`
}

type createPORequest struct {
	Number string `json:"number" validate:"required"`
}

func (h *Handler) handlePrepareDispatch(w http.ResponseWriter, r *http.Request) {
	indentID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req dispatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	min, err := h.orchestrator.PrepareDispatchFromIndent(r.Context(), actor, DispatchInput{
		IndentID: indentID,
		Number:   req.Number,
		StoreID:  req.StoreID,
	})
	if err != nil {
		h.respondErr(w, "prepare dispatch", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, min)
}

func (h *Handler) handleCreatePO(w http.ResponseWriter, r *http.Request) {
	requirementID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req createPORequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	po, err := h.orchestrator.CreatePOFromSelectedQuotation(r.Context(), actor, POFromQuotationInput{
		RequirementID: requirementID,
		Number:        req.Number,
	})
	if err != nil {
		h.respondErr(w, "create po from quotation", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) handlePostGRN(w http.ResponseWriter, r *http.Request) {
	grnID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	grn, err := h.orchestrator.PostGRNToInventory(r.Context(), actor, grnID)
	if err != nil {
		h.respondErr(w, "post grn to inventory", err)
		return
	}
	httpx.JSON(w, http.StatusOK, grn)
}

func (h *Handler) handleClosePO(w http.ResponseWriter, r *http.Request) {
	poID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	po, err := h.orchestrator.CloseOutPO(r.Context(), actor, poID)
	if err != nil {
		h.respondErr(w, "close out po", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor headers required")
		return shared.Actor{}, false
	}
	return actor, true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, indent.ErrValidation) || errors.Is(err, issue.ErrValidation) || errors.Is(err, procurement.ErrValidation) {
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
