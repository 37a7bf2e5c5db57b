package handlers

import (
	"net/http"

	"github.com/diewo77/crm-pricing/httpx"
	"github.com/diewo77/crm-pricing/internal/services"
	"gorm.io/gorm"
)

type StatsHandler struct {
	DB    *gorm.DB
	Stats *services.StatsService
}

func NewStatsHandler(db *gorm.DB, stats *services.StatsService) *StatsHandler {
	return &StatsHandler{DB: db, Stats: stats}
}

// Dashboard returns the acting user's revenue (accepted quotes) and open
// pipeline value.
func (h *StatsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(h.DB, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	revenue, err := h.Stats.GetRevenue(actor.ID)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	pipeline, err := h.Stats.GetPipeline(actor.ID)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"revenue": revenue, "pipeline": pipeline})
}
