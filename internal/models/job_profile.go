package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobProfile describes a staffable position with its monthly per-unit base
// cost and the cost components applied to it by default.
type JobProfile struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	JobTitle string `gorm:"size:200;not null" json:"job_title"`
	Category string `gorm:"size:100;index" json:"category,omitempty"`

	// BaseCost is the monthly cost per unit before markup and components.
	BaseCost float64 `gorm:"type:decimal(12,2);not null" json:"base_cost"`

	DefaultComponentIDs datatypes.JSONSlice[uint] `json:"default_cost_components"`

	IsActive bool `gorm:"index;default:true" json:"is_active"`
}

// Nationality carries per-nationality default cost components (visa,
// repatriation, ...) merged into every line item that references it.
type Nationality struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name string `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Code string `gorm:"size:10" json:"code,omitempty"`

	DefaultComponentIDs datatypes.JSONSlice[uint] `json:"default_cost_components"`
}
