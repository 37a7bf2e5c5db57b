package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/diewo77/crm-pricing/auth"
	"github.com/diewo77/crm-pricing/httpx"
	"github.com/diewo77/crm-pricing/internal/models"
	"github.com/diewo77/crm-pricing/internal/services"
	"gorm.io/gorm"
)

// currentUser loads the acting user from the session context. Handlers run
// behind auth.RequireAuth, so a missing user here means a stale session.
func currentUser(db *gorm.DB, r *http.Request) (models.User, error) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	var user models.User
	err := db.First(&user, uid).Error
	return user, err
}

// pathID parses a numeric path value such as {id} or {itemID}.
func pathID(r *http.Request, name string) (uint, error) {
	v := r.PathValue(name)
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

// writeServiceError maps service-layer errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, services.ErrInvalidDiscountState):
		httpx.JSONError(w, http.StatusConflict, "invalid_discount_state", nil)
	case errors.Is(err, services.ErrLineItemProtected):
		httpx.JSONError(w, http.StatusConflict, "line_item_protected", nil)
	case errors.Is(err, services.ErrQuoteHasPendingDiscount):
		httpx.JSONError(w, http.StatusConflict, "quote_has_pending_discount", nil)
	case errors.Is(err, services.ErrQuoteNotSendable):
		httpx.JSONError(w, http.StatusConflict, "quote_not_sendable", nil)
	case errors.Is(err, services.ErrApproverRoleRequired):
		httpx.JSONError(w, http.StatusBadRequest, "approver_role_required", nil)
	default:
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// discountOutcomeResponse is the JSON shape for discount request endpoints.
type discountOutcomeResponse struct {
	Quote         *models.Quote `json:"quote"`
	SelfApproved  bool          `json:"self_approved"`
	NotifyWarning string        `json:"notify_warning,omitempty"`
}

func writeOutcome(w http.ResponseWriter, out *services.DiscountOutcome) {
	resp := discountOutcomeResponse{Quote: out.Quote, SelfApproved: out.SelfApproved}
	if out.NotifyErr != nil {
		resp.NotifyWarning = "discount saved but approval notification failed"
	}
	httpx.JSON(w, http.StatusOK, resp)
}
