package models

import "time"

// AdminRole is the privilege level of a back office account
type AdminRole string

const (
	RoleAdmin      AdminRole = "admin"
	RoleSuperAdmin AdminRole = "superadmin"
)

// Valid reports whether r is one of the known roles
func (r AdminRole) Valid() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Admin is a back office account. Password holds the bcrypt hash.
type Admin struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	Role      AdminRole `gorm:"type:varchar(20);not null;default:admin" json:"role"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// TableName specifies the table name for Admin
func (Admin) TableName() string {
	return "admins"
}

// AdminProfile is the public view of an Admin
type AdminProfile struct {
	ID    uint      `json:"id"`
	Email string    `json:"email"`
	Role  AdminRole `json:"role"`
}

// Profile strips credentials from the account
func (a *Admin) Profile() AdminProfile {
	return AdminProfile{ID: a.ID, Email: a.Email, Role: a.Role}
}

// All returns every model managed by migrations, parents first
func All() []interface{} {
	return []interface{}{
		&Content{},
		&Availability{},
		&ContentRequest{},
		&Admin{},
	}
}
