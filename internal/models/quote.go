package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuoteStatus represents the lifecycle status of a quote.
type QuoteStatus string

const (
	QuoteStatusDraft           QuoteStatus = "draft"
	QuoteStatusPendingApproval QuoteStatus = "pending_approval"
	QuoteStatusSent            QuoteStatus = "sent"
	QuoteStatusAccepted        QuoteStatus = "accepted"
	QuoteStatusRejected        QuoteStatus = "rejected"
)

// DiscountStatus tracks the approval state of a discount, at quote or line level.
type DiscountStatus string

const (
	DiscountStatusNone     DiscountStatus = "none"
	DiscountStatusPending  DiscountStatus = "pending_approval"
	DiscountStatusApproved DiscountStatus = "approved"
	DiscountStatusRejected DiscountStatus = "rejected"
)

// Quote is the aggregate root for a priced offer.
// Implements the Ownable interface for ownership-based authorization.
type Quote struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// UserID is the owner of this quote (for multi-tenant isolation)
	UserID uint `gorm:"index;not null" json:"user_id"`
	User   User `gorm:"foreignKey:UserID" json:"-"`

	Number string `gorm:"size:50;uniqueIndex" json:"number"`
	LeadID *uint  `gorm:"index" json:"lead_id,omitempty"`

	Status QuoteStatus `gorm:"size:20;default:'draft'" json:"status"`

	// VATRate is the percentage applied to VAT-applicable cost lines (e.g. 5 for 5%).
	VATRate float64 `gorm:"type:decimal(5,2);not null;default:0" json:"vat_rate"`

	// Overall discount and its approval state. OverallDiscountAppliedToItems is
	// stamped exactly once when DiscountStatus becomes approved and is never
	// extended to line items added afterward.
	OverallDiscountPercentage     float64                   `gorm:"type:decimal(5,2);default:0" json:"overall_discount_percentage"`
	DiscountStatus                DiscountStatus            `gorm:"size:20;default:'none'" json:"discount_status"`
	OverallDiscountAppliedToItems datatypes.JSONSlice[uint] `json:"overall_discount_applied_to_items"`
	DiscountRequestNotes          string                    `gorm:"type:text" json:"discount_request_notes,omitempty"`
	RequiredApproverRoleID        *uint                     `json:"required_approver_role_id,omitempty"`

	// Aggregate totals, replaced wholesale on every recalculation.
	Subtotal              float64 `gorm:"type:decimal(12,2);default:0" json:"subtotal"`
	OverallDiscountAmount float64 `gorm:"type:decimal(12,2);default:0" json:"overall_discount_amount"`
	TaxAmount             float64 `gorm:"type:decimal(12,2);default:0" json:"tax_amount"`
	TotalAmount           float64 `gorm:"type:decimal(12,2);default:0" json:"total_amount"`

	LineItems []QuoteLineItem `gorm:"foreignKey:QuoteID" json:"line_items,omitempty"`
}

// GetUserID implements the Ownable interface for authorization.
func (q *Quote) GetUserID() uint {
	return q.UserID
}

// IsDraft returns true if the quote is in draft status.
func (q *Quote) IsDraft() bool {
	return q.Status == QuoteStatusDraft
}

// HasPendingDiscount reports whether the overall discount or any line item
// discount is awaiting approval. Requires LineItems to be loaded.
func (q *Quote) HasPendingDiscount() bool {
	if q.DiscountStatus == DiscountStatusPending {
		return true
	}
	for _, li := range q.LineItems {
		if li.LineDiscountStatus == DiscountStatusPending {
			return true
		}
	}
	return false
}

// QuoteLineItem is one priced row within a quote: a job profile × nationality
// × quantity × contract duration combination.
type QuoteLineItem struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	QuoteID uint   `gorm:"index;not null" json:"quote_id"`
	Quote   *Quote `gorm:"foreignKey:QuoteID" json:"-"`

	JobProfileID  uint         `gorm:"index;not null" json:"job_profile_id"`
	JobProfile    *JobProfile  `gorm:"foreignKey:JobProfileID" json:"job_profile,omitempty"`
	NationalityID uint         `gorm:"index" json:"nationality_id"`
	Nationality   *Nationality `gorm:"foreignKey:NationalityID" json:"nationality,omitempty"`

	Quantity         int `gorm:"not null;default:1" json:"quantity"`
	ContractDuration int `gorm:"not null;default:12" json:"contract_duration"` // months

	// Individual discount and its approval state.
	ManualDiscountPercentage float64        `gorm:"type:decimal(5,2);default:0" json:"manual_discount_percentage"`
	LineDiscountStatus       DiscountStatus `gorm:"size:20;default:'none'" json:"line_discount_status"`
	LineDiscountNotes        string         `gorm:"type:text" json:"line_discount_notes,omitempty"`

	// EligibleForOverallDiscount is stamped true at the moment the quote's
	// overall discount is approved; items added later stay false.
	EligibleForOverallDiscount bool `gorm:"default:false" json:"eligible_for_overall_discount"`

	// Computed fields, fully replaced on every recalculation.
	CostBreakdown               datatypes.JSONSlice[CostLine] `json:"cost_breakdown"`
	AppliedRules                datatypes.JSONSlice[string]   `json:"applied_rules"`
	SubtotalBeforeDiscount      float64                       `gorm:"type:decimal(12,2);default:0" json:"subtotal_before_discount"`
	EffectiveDiscountPercentage float64                       `gorm:"type:decimal(5,2);default:0" json:"effective_discount_percentage"`
	AppliedDiscountAmount       float64                       `gorm:"type:decimal(12,2);default:0" json:"applied_discount_amount"`
	LineSubtotal                float64                       `gorm:"type:decimal(12,2);default:0" json:"line_subtotal"`
	LineVATAmount               float64                       `gorm:"type:decimal(12,2);default:0" json:"line_vat_amount"`
	LineGrandTotal              float64                       `gorm:"type:decimal(12,2);default:0" json:"line_grand_total"`
}

// IsProtected reports whether an approved discount currently applies to this
// line item, which locks its pricing-relevant fields against edits.
func (li *QuoteLineItem) IsProtected() bool {
	return li.EffectiveDiscountPercentage > 0
}

// CostLine is one row of a line item's cost breakdown: the base cost or a
// single cost component, with discount and VAT applied.
type CostLine struct {
	ComponentID   uint    `json:"component_id"` // 0 for the base cost line
	Name          string  `json:"name"`
	UnitValue     float64 `json:"unit_value"`
	Periodicity   string  `json:"periodicity"`
	Subtotal      float64 `json:"subtotal"`
	DiscountAmt   float64 `json:"discount_amount"`
	AfterDiscount float64 `json:"after_discount"`
	VATAmount     float64 `json:"vat_amount"`
	GrandTotal    float64 `json:"grand_total"`
	VATApplicable bool    `json:"vat_applicable"`
	Source        string  `json:"source"` // "base", "default", "smart" or "rule"
}
