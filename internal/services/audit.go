package services

import (
	"encoding/json"
	"log"

	"github.com/diewo77/crm-pricing/internal/models"
	"gorm.io/gorm"
)

// AuditService records entity changes. Writes are fire-and-forget: a failed
// audit insert is logged and never propagates to the caller, so a broken
// audit table cannot block quote work.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record writes one audit entry. oldValues and newValues are marshalled to
// JSON; nil values are stored as null.
func (s *AuditService) Record(userID uint, action, entityType string, entityID uint, entityName string, oldValues, newValues any, correlationID string) {
	entry := models.AuditLog{
		UserID:        userID,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		EntityName:    entityName,
		CorrelationID: correlationID,
	}
	if oldValues != nil {
		if b, err := json.Marshal(oldValues); err == nil {
			entry.OldValues = b
		}
	}
	if newValues != nil {
		if b, err := json.Marshal(newValues); err == nil {
			entry.NewValues = b
		}
	}
	if err := s.db.Create(&entry).Error; err != nil {
		log.Printf("audit: failed to record %s on %s %d: %v", action, entityType, entityID, err)
	}
}

// List returns audit entries, most recent first.
func (s *AuditService) List(entityType string, entityID uint, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.db.Order("id desc").Limit(limit)
	if entityType != "" {
		q = q.Where("entity_type = ?", entityType)
	}
	if entityID != 0 {
		q = q.Where("entity_id = ?", entityID)
	}
	var entries []models.AuditLog
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
