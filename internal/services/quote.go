package services

import (
	"fmt"
	"time"

	"github.com/diewo77/crm-pricing/internal/models"
	"github.com/diewo77/crm-pricing/internal/pricing"
	"gorm.io/gorm"
)

// Entity type names used in audit entries and approval requests.
const (
	EntityQuote         = "quote"
	EntityQuoteLineItem = "quote_line_item"
)

// QuoteService owns quote persistence and recalculation. The pricing math
// itself lives in the pricing package; this service loads the lookup data,
// runs the engine, and writes the results back.
type QuoteService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewQuoteService(db *gorm.DB, audit *AuditService) *QuoteService {
	return &QuoteService{db: db, audit: audit}
}

// Get loads a quote with its line items in insertion order.
func (s *QuoteService) Get(id uint) (*models.Quote, error) {
	var q models.Quote
	err := s.db.Preload("LineItems", func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	}).First(&q, id).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// List returns a page of quotes for one owner.
func (s *QuoteService) List(userID uint, limit, offset int) ([]models.Quote, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	dbq := s.db.Model(&models.Quote{}).Where("user_id = ?", userID)
	var total int64
	if err := dbq.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var quotes []models.Quote
	if err := dbq.Order("id desc").Limit(limit).Offset(offset).Find(&quotes).Error; err != nil {
		return nil, 0, err
	}
	return quotes, total, nil
}

// Create opens a new draft quote.
func (s *QuoteService) Create(userID uint, vatRate float64, leadID *uint) (*models.Quote, error) {
	var count int64
	if err := s.db.Model(&models.Quote{}).Count(&count).Error; err != nil {
		return nil, err
	}
	q := models.Quote{
		UserID:  userID,
		Number:  fmt.Sprintf("Q-%d-%04d", time.Now().Year(), count+1),
		LeadID:  leadID,
		Status:  models.QuoteStatusDraft,
		VATRate: vatRate,
	}
	if err := s.db.Create(&q).Error; err != nil {
		return nil, err
	}
	s.audit.Record(userID, "quote_created", EntityQuote, q.ID, q.Number, nil, &q, "")
	return &q, nil
}

// LoadLookup queries the reference data the engine needs for one
// recalculation pass.
func (s *QuoteService) LoadLookup() (pricing.Lookup, error) {
	var profiles []models.JobProfile
	if err := s.db.Find(&profiles).Error; err != nil {
		return pricing.Lookup{}, fmt.Errorf("load job profiles: %w", err)
	}
	var nationalities []models.Nationality
	if err := s.db.Find(&nationalities).Error; err != nil {
		return pricing.Lookup{}, fmt.Errorf("load nationalities: %w", err)
	}
	var components []models.CostComponent
	if err := s.db.Find(&components).Error; err != nil {
		return pricing.Lookup{}, fmt.Errorf("load cost components: %w", err)
	}
	var rules []models.PricingRule
	if err := s.db.Where("is_active = ?", true).Find(&rules).Error; err != nil {
		return pricing.Lookup{}, fmt.Errorf("load pricing rules: %w", err)
	}
	return pricing.NewLookup(profiles, nationalities, components, rules), nil
}

// Recalculate reruns the engine over every line item, replaces all computed
// fields and the quote totals, and persists the result. The operation is
// idempotent: recalculating an already calculated quote changes nothing.
func (s *QuoteService) Recalculate(q *models.Quote) error {
	lookup, err := s.LoadLookup()
	if err != nil {
		return err
	}
	for i := range q.LineItems {
		q.LineItems[i] = pricing.CalculateLineItem(q.LineItems[i], *q, q.VATRate, lookup)
	}
	totals := pricing.QuoteTotals(q.LineItems)
	q.Subtotal = totals.Subtotal
	q.OverallDiscountAmount = totals.OverallDiscountAmount
	q.TaxAmount = totals.TaxAmount
	q.TotalAmount = totals.TotalAmount

	return s.db.Transaction(func(tx *gorm.DB) error {
		for i := range q.LineItems {
			if err := tx.Save(&q.LineItems[i]).Error; err != nil {
				return fmt.Errorf("save line item %d: %w", q.LineItems[i].ID, err)
			}
		}
		if err := tx.Save(q).Error; err != nil {
			return fmt.Errorf("save quote %d: %w", q.ID, err)
		}
		return nil
	})
}

// LineItemInput is the payload for adding a line item.
type LineItemInput struct {
	JobProfileID     uint `json:"job_profile_id"`
	NationalityID    uint `json:"nationality_id"`
	Quantity         int  `json:"quantity"`
	ContractDuration int  `json:"contract_duration"`
}

// AddLineItem appends a line item and recalculates. New items are never
// added to an already-approved overall discount: the eligibility stamp and
// OverallDiscountAppliedToItems stay exactly as they were at approval time.
func (s *QuoteService) AddLineItem(quoteID uint, in LineItemInput, actor models.User) (*models.Quote, error) {
	q, err := s.Get(quoteID)
	if err != nil {
		return nil, err
	}
	li := models.QuoteLineItem{
		QuoteID:            q.ID,
		JobProfileID:       in.JobProfileID,
		NationalityID:      in.NationalityID,
		Quantity:           in.Quantity,
		ContractDuration:   in.ContractDuration,
		LineDiscountStatus: models.DiscountStatusNone,
	}
	if err := s.db.Create(&li).Error; err != nil {
		return nil, err
	}
	q.LineItems = append(q.LineItems, li)
	if err := s.Recalculate(q); err != nil {
		return nil, err
	}
	s.audit.Record(actor.ID, "line_item_added", EntityQuoteLineItem, li.ID, q.Number, nil, &li, "")
	return q, nil
}

// LineItemUpdate carries the editable fields of a line item; nil means
// "leave unchanged". All four are pricing-relevant and therefore locked while
// the item is protected by an applied discount.
type LineItemUpdate struct {
	JobProfileID     *uint `json:"job_profile_id"`
	NationalityID    *uint `json:"nationality_id"`
	Quantity         *int  `json:"quantity"`
	ContractDuration *int  `json:"contract_duration"`
}

func (u LineItemUpdate) empty() bool {
	return u.JobProfileID == nil && u.NationalityID == nil && u.Quantity == nil && u.ContractDuration == nil
}

// UpdateLineItem patches a line item and recalculates. A protected line item
// (one with an applied discount) rejects every edit here regardless of what
// the UI allowed; the discount must be cancelled first.
func (s *QuoteService) UpdateLineItem(quoteID, itemID uint, patch LineItemUpdate, actor models.User) (*models.Quote, error) {
	q, err := s.Get(quoteID)
	if err != nil {
		return nil, err
	}
	li := findLineItem(q, itemID)
	if li == nil {
		return nil, gorm.ErrRecordNotFound
	}
	if li.IsProtected() && !patch.empty() {
		return nil, ErrLineItemProtected
	}
	old := *li
	if patch.JobProfileID != nil {
		li.JobProfileID = *patch.JobProfileID
	}
	if patch.NationalityID != nil {
		li.NationalityID = *patch.NationalityID
	}
	if patch.Quantity != nil {
		li.Quantity = *patch.Quantity
	}
	if patch.ContractDuration != nil {
		li.ContractDuration = *patch.ContractDuration
	}
	if err := s.Recalculate(q); err != nil {
		return nil, err
	}
	s.audit.Record(actor.ID, "line_item_updated", EntityQuoteLineItem, li.ID, q.Number, &old, li, "")
	return q, nil
}

// DeleteLineItem removes a line item and recalculates. Protected items
// cannot be deleted.
func (s *QuoteService) DeleteLineItem(quoteID, itemID uint, actor models.User) (*models.Quote, error) {
	q, err := s.Get(quoteID)
	if err != nil {
		return nil, err
	}
	li := findLineItem(q, itemID)
	if li == nil {
		return nil, gorm.ErrRecordNotFound
	}
	if li.IsProtected() {
		return nil, ErrLineItemProtected
	}
	old := *li
	if err := s.db.Delete(li).Error; err != nil {
		return nil, err
	}
	kept := q.LineItems[:0]
	for _, item := range q.LineItems {
		if item.ID != itemID {
			kept = append(kept, item)
		}
	}
	q.LineItems = kept
	if err := s.Recalculate(q); err != nil {
		return nil, err
	}
	s.audit.Record(actor.ID, "line_item_deleted", EntityQuoteLineItem, old.ID, q.Number, &old, nil, "")
	return q, nil
}

// Send marks a draft quote as sent to the client. Rejected while any
// discount is still pending approval.
func (s *QuoteService) Send(quoteID uint, actor models.User) (*models.Quote, error) {
	q, err := s.Get(quoteID)
	if err != nil {
		return nil, err
	}
	if q.HasPendingDiscount() {
		return nil, ErrQuoteHasPendingDiscount
	}
	if q.Status != models.QuoteStatusDraft {
		return nil, ErrQuoteNotSendable
	}
	old := q.Status
	q.Status = models.QuoteStatusSent
	if err := s.db.Save(q).Error; err != nil {
		return nil, err
	}
	s.audit.Record(actor.ID, "quote_sent", EntityQuote, q.ID, q.Number,
		map[string]any{"status": old}, map[string]any{"status": q.Status}, "")
	return q, nil
}

// deriveStatus keeps the quote status in step with its discounts: any
// pending discount pushes a draft to pending_approval, and the quote drops
// back to draft once nothing is pending. Terminal statuses (sent, accepted,
// rejected) are never touched.
func deriveStatus(q *models.Quote) {
	if q.HasPendingDiscount() {
		if q.Status == models.QuoteStatusDraft {
			q.Status = models.QuoteStatusPendingApproval
		}
		return
	}
	if q.Status == models.QuoteStatusPendingApproval {
		q.Status = models.QuoteStatusDraft
	}
}

func findLineItem(q *models.Quote, itemID uint) *models.QuoteLineItem {
	for i := range q.LineItems {
		if q.LineItems[i].ID == itemID {
			return &q.LineItems[i]
		}
	}
	return nil
}
