package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CalculationMethod determines how a cost component's value is resolved.
type CalculationMethod string

const (
	CalculationFlat          CalculationMethod = "flat"
	CalculationPercentOfBase CalculationMethod = "percentage_of_base"
)

// Periodicity determines whether a component recurs monthly or is charged once.
type Periodicity string

const (
	PeriodicityMonthly Periodicity = "monthly"
	PeriodicityOneTime Periodicity = "one_time"
)

// CostComponent is a reusable cost building block (visa fee, insurance,
// accommodation, ...). A component carrying its own condition tree is a
// "smart" component: it self-applies whenever its conditions match the
// line item facts, independent of any pricing rule.
type CostComponent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name  string  `gorm:"size:200;not null" json:"name"`
	Value float64 `gorm:"type:decimal(12,2);not null" json:"value"`

	CalculationMethod CalculationMethod `gorm:"size:30;default:'flat'" json:"calculation_method"`
	Periodicity       Periodicity       `gorm:"size:20;default:'monthly'" json:"periodicity"`
	VATApplicable     bool              `gorm:"default:true" json:"vat_applicable"`

	// Conditions, when present, make this a smart component.
	Conditions datatypes.JSON `json:"conditions,omitempty"`

	IsActive bool `gorm:"index;default:true" json:"is_active"`
}

// IsSmart reports whether the component carries its own condition tree.
func (c *CostComponent) IsSmart() bool {
	return len(c.Conditions) > 0 && string(c.Conditions) != "null"
}
