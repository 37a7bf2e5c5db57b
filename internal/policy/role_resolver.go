package policy

import (
	"context"

	"github.com/diewo77/crm-pricing/gate"
	"github.com/diewo77/crm-pricing/internal/models"
	"gorm.io/gorm"
)

// RoleResolver fetches a user's role and its permissions from the database.
// It implements gate.ProfileResolver.
type RoleResolver struct {
	DB *gorm.DB
}

func NewRoleResolver(db *gorm.DB) *RoleResolver {
	return &RoleResolver{DB: db}
}

// Resolve looks up the user's role, preloading permissions. Returns nil if
// the user has no role assigned.
func (r *RoleResolver) Resolve(ctx context.Context, userID uint) (gate.Profile, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Preload("Role.Permissions").First(&user, userID).Error
	if err != nil {
		return nil, err
	}
	if user.Role == nil {
		return nil, nil
	}
	return &roleProfile{role: user.Role}, nil
}

// roleProfile adapts models.Role to the gate.Profile interface.
type roleProfile struct {
	role *models.Role
}

func (p *roleProfile) ID() uint     { return p.role.ID }
func (p *roleProfile) Name() string { return p.role.Name }

// HasPermission checks the role's permissions with wildcard matching.
func (p *roleProfile) HasPermission(perm gate.Permission) bool {
	for _, rp := range p.role.Permissions {
		held := gate.NewPermission(rp.ResourceType, gate.Action(rp.Action))
		if held.Matches(perm) {
			return true
		}
	}
	return false
}

func (p *roleProfile) Permissions() []gate.Permission {
	result := make([]gate.Permission, len(p.role.Permissions))
	for i, rp := range p.role.Permissions {
		result[i] = gate.NewPermission(rp.ResourceType, gate.Action(rp.Action))
	}
	return result
}
