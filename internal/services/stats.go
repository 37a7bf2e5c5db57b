package services

import (
	"github.com/diewo77/crm-pricing/internal/models"
	"gorm.io/gorm"
)

type StatsService struct {
	db *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db}
}

// GetRevenue sums the grand totals of a user's accepted quotes.
func (s *StatsService) GetRevenue(userID uint) (float64, error) {
	var total float64
	err := s.db.Model(&models.Quote{}).
		Where("user_id = ? AND status = ?", userID, models.QuoteStatusAccepted).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&total).Error
	return total, err
}

// GetPipeline sums the grand totals of a user's open quotes, those still in
// draft, pending approval, or sent.
func (s *StatsService) GetPipeline(userID uint) (float64, error) {
	var total float64
	err := s.db.Model(&models.Quote{}).
		Where("user_id = ? AND status IN ?", userID,
			[]models.QuoteStatus{models.QuoteStatusDraft, models.QuoteStatusPendingApproval, models.QuoteStatusSent}).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&total).Error
	return total, err
}
