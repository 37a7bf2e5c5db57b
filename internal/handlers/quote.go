package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/diewo77/crm-pricing/gate"
	"github.com/diewo77/crm-pricing/httpx"
	"github.com/diewo77/crm-pricing/internal/policy"
	"github.com/diewo77/crm-pricing/internal/services"
	"github.com/diewo77/crm-pricing/validation"
	"gorm.io/gorm"
)

type QuoteHandler struct {
	DB             *gorm.DB
	Quotes         *services.QuoteService
	Gate           *policy.AuthGate
	DefaultVATRate float64
}

func NewQuoteHandler(db *gorm.DB, quotes *services.QuoteService, ag *policy.AuthGate, defaultVATRate float64) *QuoteHandler {
	return &QuoteHandler{DB: db, Quotes: quotes, Gate: ag, DefaultVATRate: defaultVATRate}
}

func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(h.DB, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var input struct {
		VATRate *float64 `json:"vat_rate"`
		LeadID  *uint    `json:"lead_id"`
	}
	if err := httpx.Decode(r, &input); err != nil && !errors.Is(err, io.EOF) {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	vatRate := h.DefaultVATRate
	if input.VATRate != nil {
		vatRate = *input.VATRate
	}
	v := validation.Violations{}
	validation.Percent("vat_rate", vatRate, v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	q, err := h.Quotes.Create(actor.ID, vatRate, input.LeadID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(h.DB, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			offset = (n - 1) * limit
		}
	}
	quotes, total, err := h.Quotes.List(actor.ID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": quotes, "total": total, "limit": limit, "offset": offset})
}

// loadAuthorized fetches the quote from {id} and checks the gate for the
// given action against the loaded resource.
func (h *QuoteHandler) loadAuthorized(w http.ResponseWriter, r *http.Request, action gate.Action) (uint, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return 0, false
	}
	q, err := h.Quotes.Get(id)
	if err != nil {
		writeServiceError(w, err)
		return 0, false
	}
	if err := h.Gate.Authorize(r.Context(), action, "quote", q); err != nil {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return 0, false
	}
	return id, true
}

func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.loadAuthorized(w, r, gate.ActionView)
	if !ok {
		return
	}
	q, err := h.Quotes.Get(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *QuoteHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.loadAuthorized(w, r, gate.ActionUpdate)
	if !ok {
		return
	}
	q, err := h.Quotes.Get(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.Quotes.Recalculate(q); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *QuoteHandler) Send(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(h.DB, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	id, ok := h.loadAuthorized(w, r, gate.ActionUpdate)
	if !ok {
		return
	}
	q, err := h.Quotes.Send(id, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *QuoteHandler) AddLineItem(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(h.DB, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	id, ok := h.loadAuthorized(w, r, gate.ActionUpdate)
	if !ok {
		return
	}
	var input services.LineItemInput
	if err := httpx.Decode(r, &input); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	if input.JobProfileID == 0 {
		v["job_profile_id"] = "required"
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	q, err := h.Quotes.AddLineItem(id, input, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *QuoteHandler) UpdateLineItem(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(h.DB, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	id, ok := h.loadAuthorized(w, r, gate.ActionUpdate)
	if !ok {
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var patch services.LineItemUpdate
	if err := httpx.Decode(r, &patch); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	q, err := h.Quotes.UpdateLineItem(id, itemID, patch, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *QuoteHandler) DeleteLineItem(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(h.DB, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	id, ok := h.loadAuthorized(w, r, gate.ActionUpdate)
	if !ok {
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	q, err := h.Quotes.DeleteLineItem(id, itemID, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}
