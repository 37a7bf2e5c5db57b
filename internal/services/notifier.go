package services

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/diewo77/crm-pricing/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalDispatch is the payload handed to the approval routing boundary
// when a discount needs external sign-off.
type ApprovalDispatch struct {
	EntityType     string
	EntityID       uint
	RequestorID    uint
	Notes          string
	RequiredRoleID uint
	Metadata       map[string]any
}

// ApprovalNotifier routes an approval request to the members of a role. The
// state machine only decides whether to dispatch; delivery is someone else's
// problem. A dispatch failure is a warning to surface ("saved but not
// notified"), never a reason to roll the discount back.
type ApprovalNotifier interface {
	Dispatch(d ApprovalDispatch) (uuid.UUID, error)
}

// DBNotifier is the default notifier: it persists an ApprovalRequest row that
// the external notification service polls. Returns the request id for audit
// correlation.
type DBNotifier struct {
	db *gorm.DB
}

func NewDBNotifier(db *gorm.DB) *DBNotifier {
	return &DBNotifier{db: db}
}

func (n *DBNotifier) Dispatch(d ApprovalDispatch) (uuid.UUID, error) {
	req := models.ApprovalRequest{
		ID:             uuid.New(),
		EntityType:     d.EntityType,
		EntityID:       d.EntityID,
		RequestorID:    d.RequestorID,
		RequiredRoleID: d.RequiredRoleID,
		Notes:          d.Notes,
		Status:         models.ApprovalRequestPending,
	}
	if d.Metadata != nil {
		if b, err := json.Marshal(d.Metadata); err == nil {
			req.Metadata = b
		}
	}
	if err := n.db.Create(&req).Error; err != nil {
		return uuid.Nil, fmt.Errorf("dispatch approval request: %w", err)
	}
	log.Printf("approval: request %s routed to role %d for %s %d", req.ID, d.RequiredRoleID, d.EntityType, d.EntityID)
	return req.ID, nil
}

// settle marks any pending approval requests for an entity as decided or
// withdrawn once the state machine leaves pending_approval.
func settleApprovalRequests(db *gorm.DB, entityType string, entityID uint, status string, decidedBy uint) {
	err := db.Model(&models.ApprovalRequest{}).
		Where("entity_type = ? AND entity_id = ? AND status = ?", entityType, entityID, models.ApprovalRequestPending).
		Updates(map[string]any{"status": status, "decided_by": decidedBy}).Error
	if err != nil {
		log.Printf("approval: failed to settle requests for %s %d: %v", entityType, entityID, err)
	}
}
