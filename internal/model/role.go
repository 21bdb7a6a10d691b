package model

import (
	"time"
)

// Role ids are fixed; the rest of the system references them directly.
const (
	RoleSuperAdmin     = 1
	RoleCompanyAdmin   = 2
	RoleSalesStaff     = 3
	RoleInventoryStaff = 4
	RoleBillingStaff   = 5
	RoleMarketingStaff = 6
	RoleSupportStaff   = 7
)

// ManagedRoles are the tenant-level roles that receive a RoleModuleAccess row per module.
var ManagedRoles = []int{
	RoleCompanyAdmin,
	RoleSalesStaff,
	RoleInventoryStaff,
	RoleBillingStaff,
	RoleMarketingStaff,
	RoleSupportStaff,
}

// Role represents a user role. Rows are seeded at startup.
type Role struct {
	ID          int       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name        string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsSystem    bool      `gorm:"default:false" json:"is_system"` // Prevent deletion of built-in roles
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsAdminRole reports whether the role may process approval requests.
func IsAdminRole(roleID int) bool {
	return roleID == RoleSuperAdmin || roleID == RoleCompanyAdmin
}

// IsManagedRole reports whether a company admin may assign the role to staff.
func IsManagedRole(roleID int) bool {
	for _, r := range ManagedRoles {
		if r == roleID {
			return true
		}
	}
	return false
}
