package handlers

import (
	"net/http"

	"github.com/diewo77/crm-pricing/httpx"
	"github.com/diewo77/crm-pricing/internal/models"
	"github.com/diewo77/crm-pricing/internal/policy"
	"github.com/diewo77/crm-pricing/internal/services"
	"github.com/diewo77/crm-pricing/validation"
	"gorm.io/gorm"
)

type DiscountHandler struct {
	DB        *gorm.DB
	Quotes    *services.QuoteService
	Discounts *services.DiscountService
}

func NewDiscountHandler(db *gorm.DB, quotes *services.QuoteService, discounts *services.DiscountService) *DiscountHandler {
	return &DiscountHandler{DB: db, Quotes: quotes, Discounts: discounts}
}

type discountRequestInput struct {
	Percentage     float64 `json:"percentage"`
	Notes          string  `json:"notes"`
	ApproverRoleID *uint   `json:"approver_role_id"`
}

func (h *DiscountHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (discountRequestInput, bool) {
	var input discountRequestInput
	if err := httpx.Decode(r, &input); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return input, false
	}
	v := validation.Violations{}
	validation.Percent("percentage", input.Percentage, v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return input, false
	}
	return input, true
}

func (h *DiscountHandler) RequestOverall(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(h.DB, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	input, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	out, err := h.Discounts.RequestOverall(id, input.Percentage, input.Notes, input.ApproverRoleID, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeOutcome(w, out)
}

// decideOverall guards approve/reject with the approver-role policy before
// delegating to the state machine.
func (h *DiscountHandler) decideOverall(w http.ResponseWriter, r *http.Request, approve bool) {
	actor, err := currentUser(h.DB, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	q, err := h.Quotes.Get(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !policy.CanDecideOverallDiscount(actor, q) {
		if q.DiscountStatus != models.DiscountStatusPending {
			httpx.JSONError(w, http.StatusConflict, "invalid_discount_state", nil)
		} else {
			httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		}
		return
	}
	if approve {
		q, err = h.Discounts.ApproveOverall(id, actor)
	} else {
		q, err = h.Discounts.RejectOverall(id, actor)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *DiscountHandler) ApproveOverall(w http.ResponseWriter, r *http.Request) { h.decideOverall(w, r, true) }
func (h *DiscountHandler) RejectOverall(w http.ResponseWriter, r *http.Request)  { h.decideOverall(w, r, false) }

func (h *DiscountHandler) CancelOverall(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(h.DB, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	q, err := h.Discounts.CancelOverall(id, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *DiscountHandler) RequestLine(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(h.DB, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	input, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	out, err := h.Discounts.RequestLine(id, itemID, input.Percentage, input.Notes, input.ApproverRoleID, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeOutcome(w, out)
}

func (h *DiscountHandler) decideLine(w http.ResponseWriter, r *http.Request, approve bool) {
	actor, err := currentUser(h.DB, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	q, err := h.Quotes.Get(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var li *models.QuoteLineItem
	for i := range q.LineItems {
		if q.LineItems[i].ID == itemID {
			li = &q.LineItems[i]
			break
		}
	}
	if li == nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	if !policy.CanDecideLineDiscount(actor, li, h.pendingRequest(itemID)) {
		if li.LineDiscountStatus != models.DiscountStatusPending {
			httpx.JSONError(w, http.StatusConflict, "invalid_discount_state", nil)
		} else {
			httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		}
		return
	}
	if approve {
		q, err = h.Discounts.ApproveLine(id, itemID, actor)
	} else {
		q, err = h.Discounts.RejectLine(id, itemID, actor)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *DiscountHandler) ApproveLine(w http.ResponseWriter, r *http.Request) { h.decideLine(w, r, true) }
func (h *DiscountHandler) RejectLine(w http.ResponseWriter, r *http.Request)  { h.decideLine(w, r, false) }

func (h *DiscountHandler) CancelLine(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(h.DB, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	q, err := h.Discounts.CancelLine(id, itemID, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// pendingRequest loads the pending approval request for a line item, which
// carries the role the decision requires.
func (h *DiscountHandler) pendingRequest(itemID uint) *models.ApprovalRequest {
	var req models.ApprovalRequest
	err := h.DB.Where("entity_type = ? AND entity_id = ? AND status = ?",
		services.EntityQuoteLineItem, itemID, models.ApprovalRequestPending).
		Order("created_at desc").First(&req).Error
	if err != nil {
		return nil
	}
	return &req
}
