package indent

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Digigit24/kumsserp-sub000/internal/platform/httpx"
	"github.com/Digigit24/kumsserp-sub000/internal/shared"
)

// Handler exposes the indent pipeline over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers indent routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/indents", h.handleList)
	r.Post("/indents", h.handleCreate)
	r.Get("/indents/{id}", h.handleGet)
	r.Put("/indents/{id}", h.handleUpdateDraft)
	r.Delete("/indents/{id}", h.handleDeleteDraft)
	r.Post("/indents/{id}/submit", h.handleSubmit)
	r.Post("/indents/{id}/college-approve", h.handleCollegeApprove)
	r.Post("/indents/{id}/college-reject", h.handleCollegeReject)
	r.Post("/indents/{id}/approve", h.handleSuperAdminApprove)
	r.Post("/indents/{id}/reject", h.handleSuperAdminReject)
	r.Post("/indents/{id}/cancel", h.handleCancel)
}

type lineRequest struct {
	ItemID       int64   `json:"item_id" validate:"required"`
	RequestedQty float64 `json:"requested_qty" validate:"gte=0"`
	Note         string  `json:"note"`
}

type createRequest struct {
	Number        string        `json:"number" validate:"required"`
	CollegeID     int64         `json:"college_id" validate:"required"`
	Justification string        `json:"justification"`
	Lines         []lineRequest `json:"lines" validate:"dive"`
}

type adjustmentRequest struct {
	Adjustments []struct {
		LineID      int64   `json:"line_id" validate:"required"`
		ApprovedQty float64 `json:"approved_qty" validate:"gte=0"`
	} `json:"adjustments" validate:"dive"`
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor headers required")
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	input := CreateInput{
		Number:        req.Number,
		CollegeID:     req.CollegeID,
		RequestedBy:   actor.ID,
		Justification: req.Justification,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{ItemID: line.ItemID, RequestedQty: line.RequestedQty, Note: line.Note})
	}
	ind, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondErr(w, "create indent", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ind)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ind, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get indent", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ind)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	collegeID, _ := strconv.ParseInt(r.URL.Query().Get("college_id"), 10, 64)
	filters := ListFilters{
		Status:    r.URL.Query().Get("status"),
		CollegeID: collegeID,
		Search:    r.URL.Query().Get("search"),
		SortBy:    r.URL.Query().Get("sort"),
		SortDir:   r.URL.Query().Get("dir"),
	}
	items, total, err := h.service.List(r.Context(), limit, offset, filters)
	if err != nil {
		h.respondErr(w, "list indents", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.PageFromOffset(limit, offset, total),
	})
}

func (h *Handler) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor headers required")
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	lines := make([]LineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, LineInput{ItemID: line.ItemID, RequestedQty: line.RequestedQty, Note: line.Note})
	}
	ind, err := h.service.UpdateDraft(r.Context(), id, actor, req.Justification, lines)
	if err != nil {
		h.respondErr(w, "update indent draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ind)
}

func (h *Handler) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor headers required")
		return
	}
	if err := h.service.DeleteDraft(r.Context(), id, actor); err != nil {
		h.respondErr(w, "delete indent draft", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id int64, actor shared.Actor) (Indent, error) {
		return h.service.Submit(r.Context(), id, actor)
	})
}

func (h *Handler) handleCollegeApprove(w http.ResponseWriter, r *http.Request) {
	h.approve(w, r, h.service.CollegeApprove)
}

func (h *Handler) handleSuperAdminApprove(w http.ResponseWriter, r *http.Request) {
	h.approve(w, r, h.service.SuperAdminApprove)
}

func (h *Handler) handleCollegeReject(w http.ResponseWriter, r *http.Request) {
	h.reject(w, r, h.service.CollegeReject)
}

func (h *Handler) handleSuperAdminReject(w http.ResponseWriter, r *http.Request) {
	h.reject(w, r, h.service.SuperAdminReject)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note string `json:"note"`
	}
	_ = httpx.DecodeJSON(r, &req)
	h.transition(w, r, func(id int64, actor shared.Actor) (Indent, error) {
		return h.service.Cancel(r.Context(), id, actor, req.Note)
	})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64, actor shared.Actor, adjustments []LineApproval) (Indent, error)) {
	var req adjustmentRequest
	_ = httpx.DecodeJSON(r, &req)
	adjustments := make([]LineApproval, 0, len(req.Adjustments))
	for _, adj := range req.Adjustments {
		adjustments = append(adjustments, LineApproval{LineID: adj.LineID, ApprovedQty: adj.ApprovedQty})
	}
	h.transition(w, r, func(id int64, actor shared.Actor) (Indent, error) {
		return op(r.Context(), id, actor, adjustments)
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64, actor shared.Actor, reason string) (Indent, error)) {
	var req reasonRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	h.transition(w, r, func(id int64, actor shared.Actor) (Indent, error) {
		return op(r.Context(), id, actor, req.Reason)
	})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(id int64, actor shared.Actor) (Indent, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor headers required")
		return
	}
	ind, err := op(id, actor)
	if err != nil {
		h.respondErr(w, "indent transition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ind)
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrValidation) {
		httpx.RespondValidation(w, err)
		return
	}
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "document id must be a positive integer")
		return 0, false
	}
	return id, true
}
