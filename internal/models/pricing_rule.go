package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PricingRule is a conditional pricing rule authored in the rule editor.
// The engine treats rules as read-only: conditions and actions are stored as
// JSON documents and decoded by the pricing package at evaluation time.
type PricingRule struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name        string `gorm:"size:200;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	// Priority orders evaluation: higher values run first.
	Priority int `gorm:"index;not null;default:0" json:"priority"`

	// Conditions holds a {"all": [{fact, operator, value}, ...]} tree.
	// Empty or null means the rule always matches.
	Conditions datatypes.JSON `json:"conditions"`

	// Actions holds an ordered list of {"type": ..., "params": {...}} entries.
	Actions datatypes.JSON `json:"actions"`

	// StopIfMatched halts evaluation of lower-priority rules once this rule matches.
	StopIfMatched bool `gorm:"default:false" json:"stop_if_matched"`

	// Optional validity window. A rule outside its window is skipped before
	// its conditions are even evaluated.
	FromDate *time.Time `json:"from_date,omitempty"`
	ToDate   *time.Time `json:"to_date,omitempty"`

	IsActive bool `gorm:"index;default:true" json:"is_active"`
}

// InEffect reports whether the rule's validity window covers now.
func (r *PricingRule) InEffect(now time.Time) bool {
	if r.FromDate != nil && r.FromDate.After(now) {
		return false
	}
	if r.ToDate != nil && r.ToDate.Before(now) {
		return false
	}
	return true
}
