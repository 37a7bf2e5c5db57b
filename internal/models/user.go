package models

import (
	"time"

	"gorm.io/gorm"
)

// Role groups users for approval routing: a pending discount names the role
// whose members may decide it.
type Role struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string       `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Permissions []Permission `gorm:"foreignKey:RoleID" json:"permissions,omitempty"`
}

// User represents an authenticated user in the system. The self-approval
// thresholds are the maximum discount percentages the user may apply without
// external sign-off; the approval state machine treats them as opaque numbers.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string         `gorm:"size:255" json:"name,omitempty"`
	Password  string         `gorm:"size:255;not null" json:"-"` // Hashed, never exposed in JSON

	RoleID *uint `gorm:"index" json:"role_id,omitempty"`
	Role   *Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`

	MaxSelfApproveOverallDiscountPercent float64 `gorm:"type:decimal(5,2);default:0" json:"max_self_approve_overall_discount_percent"`
	MaxSelfApproveLineDiscountPercent    float64 `gorm:"type:decimal(5,2);default:0" json:"max_self_approve_line_discount_percent"`
}
