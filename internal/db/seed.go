package db

import (
	"errors"

	"github.com/diewo77/crm-pricing/internal/models"
	"gorm.io/gorm"
)

// Seed inserts the baseline reference data: the default roles with their
// permissions and a starter nationality list. Idempotent, safe to run on
// every start in development.
func Seed(db *gorm.DB) {
	seedRoles(db)
	seedNationalities(db)
}

var defaultRolePermissions = map[string][][2]string{
	"sales": {
		{"quote", "*"},
		{"job_profile", "list"}, {"job_profile", "view"},
		{"nationality", "list"}, {"nationality", "view"},
		{"cost_component", "list"}, {"cost_component", "view"},
		{"pricing_rule", "list"}, {"pricing_rule", "view"},
	},
	"sales_manager": {
		{"quote", "*"},
		{"job_profile", "*"}, {"nationality", "*"},
		{"cost_component", "*"}, {"pricing_rule", "*"},
		{"audit_log", "list"},
	},
	"admin": {
		{"*", "*"},
	},
}

func seedRoles(db *gorm.DB) {
	for name, perms := range defaultRolePermissions {
		var role models.Role
		err := db.Where("name = ?", name).First(&role).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			role = models.Role{Name: name}
			if err := db.Create(&role).Error; err != nil {
				continue
			}
		} else if err != nil {
			continue
		}
		for _, p := range perms {
			var existing models.Permission
			err := db.Where("role_id = ? AND resource_type = ? AND action = ?", role.ID, p[0], p[1]).
				First(&existing).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				db.Create(&models.Permission{RoleID: role.ID, ResourceType: p[0], Action: p[1]})
			}
		}
	}
}

func seedNationalities(db *gorm.DB) {
	base := []string{"Filipino", "Indian", "Kenyan", "Ethiopian", "Sri Lankan"}
	for _, name := range base {
		var existing models.Nationality
		err := db.Where("name = ?", name).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			db.Create(&models.Nationality{Name: name})
		}
	}
}
