package handlers

import (
	"net/http"

	"github.com/diewo77/crm-pricing/httpx"
	"github.com/diewo77/crm-pricing/internal/models"
	"github.com/diewo77/crm-pricing/validation"
	"gorm.io/gorm"
)

// CatalogHandler serves the reference data the pricing engine runs on: job
// profiles, nationalities, cost components and pricing rules. Reads are open
// to any authenticated user; writes sit behind manager permissions in the
// router.
type CatalogHandler struct {
	DB *gorm.DB
}

func NewCatalogHandler(db *gorm.DB) *CatalogHandler { return &CatalogHandler{DB: db} }

func (h *CatalogHandler) ListJobProfiles(w http.ResponseWriter, r *http.Request) {
	var profiles []models.JobProfile
	q := h.DB.Order("job_title asc")
	if r.URL.Query().Get("all") != "1" {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&profiles).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": profiles})
}

func (h *CatalogHandler) ListNationalities(w http.ResponseWriter, _ *http.Request) {
	var nationalities []models.Nationality
	if err := h.DB.Order("name asc").Find(&nationalities).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": nationalities})
}

func (h *CatalogHandler) ListCostComponents(w http.ResponseWriter, r *http.Request) {
	var components []models.CostComponent
	q := h.DB.Order("name asc")
	if r.URL.Query().Get("all") != "1" {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&components).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": components})
}

func (h *CatalogHandler) ListPricingRules(w http.ResponseWriter, r *http.Request) {
	var rules []models.PricingRule
	q := h.DB.Order("priority desc")
	if r.URL.Query().Get("all") != "1" {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&rules).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": rules})
}

func (h *CatalogHandler) CreateJobProfile(w http.ResponseWriter, r *http.Request) {
	var profile models.JobProfile
	if err := httpx.Decode(r, &profile); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	validation.Required("job_title", profile.JobTitle, v)
	validation.PositiveFloat("base_cost", profile.BaseCost, v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	profile.ID = 0
	profile.IsActive = true
	if err := h.DB.Create(&profile).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, profile)
}

func (h *CatalogHandler) CreateCostComponent(w http.ResponseWriter, r *http.Request) {
	var component models.CostComponent
	if err := httpx.Decode(r, &component); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	validation.Required("name", component.Name, v)
	if component.CalculationMethod == "" {
		component.CalculationMethod = models.CalculationFlat
	}
	if component.Periodicity == "" {
		component.Periodicity = models.PeriodicityMonthly
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	component.ID = 0
	component.IsActive = true
	if err := h.DB.Create(&component).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, component)
}

func (h *CatalogHandler) CreatePricingRule(w http.ResponseWriter, r *http.Request) {
	var rule models.PricingRule
	if err := httpx.Decode(r, &rule); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	validation.Required("name", rule.Name, v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	rule.ID = 0
	rule.IsActive = true
	if err := h.DB.Create(&rule).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, rule)
}

// UpdatePricingRule replaces the editable fields of a rule. Quotes are not
// recalculated retroactively; the next recalculation picks the change up.
func (h *CatalogHandler) UpdatePricingRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var existing models.PricingRule
	if err := h.DB.First(&existing, id).Error; err != nil {
		writeServiceError(w, err)
		return
	}
	var rule models.PricingRule
	if err := httpx.Decode(r, &rule); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	existing.Name = rule.Name
	existing.Description = rule.Description
	existing.Priority = rule.Priority
	existing.Conditions = rule.Conditions
	existing.Actions = rule.Actions
	existing.StopIfMatched = rule.StopIfMatched
	existing.FromDate = rule.FromDate
	existing.ToDate = rule.ToDate
	existing.IsActive = rule.IsActive
	if err := h.DB.Save(&existing).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, existing)
}
