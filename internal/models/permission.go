package models

import "time"

// Permission grants a role one action on one resource type. Wildcards are
// allowed in either column ("*" action, or "*"/"*" for superadmin).
type Permission struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RoleID       uint   `gorm:"index;not null" json:"role_id"`
	ResourceType string `gorm:"size:50;not null" json:"resource_type"`
	Action       string `gorm:"size:50;not null" json:"action"`
}
