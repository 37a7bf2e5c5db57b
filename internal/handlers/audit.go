package handlers

import (
	"net/http"
	"strconv"

	"github.com/diewo77/crm-pricing/httpx"
	"github.com/diewo77/crm-pricing/internal/services"
	"gorm.io/gorm"
)

type AuditHandler struct {
	DB    *gorm.DB
	Audit *services.AuditService
}

func NewAuditHandler(db *gorm.DB, audit *services.AuditService) *AuditHandler {
	return &AuditHandler{DB: db, Audit: audit}
}

// List returns the audit trail for one entity, newest first.
// Query: ?entity_type=quote&entity_id=12&limit=50
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	entityType := r.URL.Query().Get("entity_type")
	entityID, _ := strconv.ParseUint(r.URL.Query().Get("entity_id"), 10, 64)
	if entityType == "" || entityID == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "entity_type_and_entity_id_required", nil)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	entries, err := h.Audit.List(entityType, uint(entityID), limit)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": entries})
}
