package procurement

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

// Handler exposes the procurement pipeline over JSON. PO creation from the
// selected quotation and GRN posting live on the fulfillment handler.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/requirements", h.handleListRequirements)
	r.Post("/requirements", h.handleCreateRequirement)
	r.Get("/requirements/{id}", h.handleGetRequirement)
	r.Put("/requirements/{id}", h.handleUpdateRequirementDraft)
	r.Delete("/requirements/{id}", h.handleDeleteRequirementDraft)
	r.Post("/requirements/{id}/submit", h.handleSubmitRequirement)
	r.Post("/requirements/{id}/mark-for-approval", h.handleMarkForApproval)
	r.Post("/requirements/{id}/approve", h.handleApproveRequirement)
	r.Post("/requirements/{id}/reject", h.handleRejectRequirement)
	r.Post("/requirements/{id}/cancel", h.handleCancelRequirement)
	r.Get("/requirements/{id}/quotations", h.handleListQuotations)
	r.Post("/requirements/{id}/quotations", h.handleRecordQuotation)
	r.Post("/requirements/{id}/quotations/{quotationID}/select", h.handleSelectQuotation)

	r.Get("/pos/{id}", h.handleGetPO)
	r.Post("/pos/{id}/receipts", h.handleRecordReceipt)
	r.Post("/pos/{id}/cancel", h.handleCancelPO)

	r.Get("/grns/{id}", h.handleGetGRN)
	r.Post("/grns/{id}/send-to-inspection", h.handleSendToInspection)
	r.Post("/grns/{id}/inspect", h.handleRecordInspection)
	r.Post("/grns/{id}/approve", h.handleApproveGRN)
	r.Post("/grns/{id}/reject", h.handleRejectGRN)
}

type requirementLineRequest struct {
	ItemID       int64   `json:"item_id" validate:"required"`
	RequestedQty float64 `json:"requested_qty" validate:"gte=0"`
	Note         string  `json:"note"`
}

type requirementRequest struct {
	Number        string                   `json:"number" validate:"required"`
	CollegeID     int64                    `json:"college_id" validate:"required"`
	Justification string                   `json:"justification"`
	Lines         []requirementLineRequest `json:"lines" validate:"dive"`
}

type quotationRequest struct {
	VendorID   int64  `json:"vendor_id" validate:"required"`
	VendorName string `json:"vendor_name"`
	Reference  string `json:"reference"`
	Lines      []struct {
		ItemID    int64   `json:"item_id" validate:"required"`
		Qty       float64 `json:"qty" validate:"gt=0"`
		UnitPrice float64 `json:"unit_price" validate:"gte=0"`
	} `json:"lines" validate:"required,dive"`
}

type receiptRequest struct {
	Number  string `json:"number" validate:"required"`
	StoreID int64  `json:"store_id" validate:"required"`
	Lines   []struct {
		POLineID    int64   `json:"po_line_id" validate:"required"`
		ReceivedQty float64 `json:"received_qty" validate:"gt=0"`
	} `json:"lines" validate:"required,dive"`
}

type inspectionRequest struct {
	Note  string `json:"note"`
	Lines []struct {
		GRNLineID   int64   `json:"grn_line_id" validate:"required"`
		AcceptedQty float64 `json:"accepted_qty" validate:"gte=0"`
	} `json:"lines" validate:"required,dive"`
}

func (h *Handler) handleCreateRequirement(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req requirementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	input := RequirementInput{
		Number:        req.Number,
		CollegeID:     req.CollegeID,
		RequestedBy:   actor.ID,
		Justification: req.Justification,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, RequirementLineInput{ItemID: line.ItemID, RequestedQty: line.RequestedQty, Note: line.Note})
	}
	created, err := h.service.CreateRequirement(r.Context(), input)
	if err != nil {
		h.respondErr(w, "create requirement", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetRequirement(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	req, err := h.service.GetRequirement(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get requirement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) handleListRequirements(w http.ResponseWriter, r *http.Request) {
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
	items, total, err := h.service.ListRequirements(r.Context(), limit, offset, filters)
	if err != nil {
		h.respondErr(w, "list requirements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.PageFromOffset(limit, offset, total),
	})
}

func (h *Handler) handleUpdateRequirementDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req requirementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	lines := make([]RequirementLineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, RequirementLineInput{ItemID: line.ItemID, RequestedQty: line.RequestedQty, Note: line.Note})
	}
	updated, err := h.service.UpdateRequirementDraft(r.Context(), id, actor, req.Justification, lines)
	if err != nil {
		h.respondErr(w, "update requirement draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteRequirementDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRequirementDraft(r.Context(), id, actor); err != nil {
		h.respondErr(w, "delete requirement draft", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSubmitRequirement(w http.ResponseWriter, r *http.Request) {
	h.requirementTransition(w, r, h.service.SubmitRequirement)
}

func (h *Handler) handleMarkForApproval(w http.ResponseWriter, r *http.Request) {
	h.requirementTransition(w, r, h.service.MarkForApproval)
}

func (h *Handler) handleApproveRequirement(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Adjustments []struct {
			LineID      int64   `json:"line_id"`
			ApprovedQty float64 `json:"approved_qty"`
		} `json:"adjustments"`
	}
	_ = httpx.DecodeJSON(r, &req)
	adjustments := make([]RequirementAdjustment, 0, len(req.Adjustments))
	for _, adj := range req.Adjustments {
		adjustments = append(adjustments, RequirementAdjustment{LineID: adj.LineID, ApprovedQty: adj.ApprovedQty})
	}
	updated, err := h.service.ApproveRequirement(r.Context(), id, actor, adjustments)
	if err != nil {
		h.respondErr(w, "approve requirement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleRejectRequirement(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	updated, err := h.service.RejectRequirement(r.Context(), id, actor, req.Reason)
	if err != nil {
		h.respondErr(w, "reject requirement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleCancelRequirement(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	_ = httpx.DecodeJSON(r, &req)
	updated, err := h.service.CancelRequirement(r.Context(), id, actor, req.Note)
	if err != nil {
		h.respondErr(w, "cancel requirement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleListQuotations(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	quotations, err := h.service.ListQuotations(r.Context(), id)
	if err != nil {
		h.respondErr(w, "list quotations", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quotations)
}

func (h *Handler) handleRecordQuotation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req quotationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	input := QuotationInput{VendorID: req.VendorID, VendorName: req.VendorName, Reference: req.Reference}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, QuotationLineInput{ItemID: line.ItemID, Qty: line.Qty, UnitPrice: line.UnitPrice})
	}
	created, err := h.service.RecordQuotation(r.Context(), id, actor, input)
	if err != nil {
		h.respondErr(w, "record quotation", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleSelectQuotation(w http.ResponseWriter, r *http.Request) {
	requirementID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	quotationID, ok := h.pathID(w, r, "quotationID")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if err := h.service.SelectQuotation(r.Context(), requirementID, quotationID, actor); err != nil {
		h.respondErr(w, "select quotation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetPO(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	po, err := h.service.GetPO(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) handleRecordReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	input := ReceiptInput{Number: req.Number, StoreID: req.StoreID}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, ReceiptLineInput{POLineID: line.POLineID, ReceivedQty: line.ReceivedQty})
	}
	grn, err := h.service.RecordReceipt(r.Context(), id, actor, input)
	if err != nil {
		h.respondErr(w, "record receipt", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grn)
}

func (h *Handler) handleCancelPO(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = httpx.DecodeJSON(r, &req)
	po, err := h.service.CancelPO(r.Context(), id, actor, req.Reason)
	if err != nil {
		h.respondErr(w, "cancel purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) handleGetGRN(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	grn, err := h.service.GetGRN(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get goods receipt", err)
		return
	}
	httpx.JSON(w, http.StatusOK, grn)
}

func (h *Handler) handleSendToInspection(w http.ResponseWriter, r *http.Request) {
	h.grnTransition(w, r, h.service.SendToInspection)
}

func (h *Handler) handleApproveGRN(w http.ResponseWriter, r *http.Request) {
	h.grnTransition(w, r, h.service.ApproveGRN)
}

func (h *Handler) handleRecordInspection(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req inspectionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	lines := make([]InspectionLineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, InspectionLineInput{GRNLineID: line.GRNLineID, AcceptedQty: line.AcceptedQty})
	}
	grn, err := h.service.RecordInspection(r.Context(), id, actor, req.Note, lines)
	if err != nil {
		h.respondErr(w, "record inspection", err)
		return
	}
	httpx.JSON(w, http.StatusOK, grn)
}

func (h *Handler) handleRejectGRN(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	grn, err := h.service.RejectGRN(r.Context(), id, actor, req.Reason)
	if err != nil {
		h.respondErr(w, "reject goods receipt", err)
		return
	}
	httpx.JSON(w, http.StatusOK, grn)
}

func (h *Handler) requirementTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64, actor shared.Actor) (Requirement, error)) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	updated, err := op(r.Context(), id, actor)
	if err != nil {
		h.respondErr(w, "requirement transition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) grnTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64, actor shared.Actor) (GoodsReceipt, error)) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	grn, err := op(r.Context(), id, actor)
	if err != nil {
		h.respondErr(w, "goods receipt transition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, grn)
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
	if errors.Is(err, ErrValidation) {
		httpx.RespondValidation(w, err)
		return
	}
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "document id must be a positive integer")
		return 0, false
	}
	return id, true
}
