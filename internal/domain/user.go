package domain

import (
	"time"
)

// Role is the closed set of portal roles. Every permission decision goes through
// the permission package; nothing else should compare role strings directly.
type Role string

const (
	RoleAdvisor  Role = "ADVISOR"
	RoleListings Role = "LISTINGS"
	RoleAdmin    Role = "ADMIN"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdvisor, RoleListings, RoleAdmin:
		return true
	}
	return false
}

// User represents a user in the system. Role defaults to ADVISOR at first sign-in
// and can only be changed by an admin.
type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Name         string
	Email        string `gorm:"uniqueIndex"`
	Password     string `gorm:"-"` // input only, not stored in db
	PasswordHash string
	Role         Role `gorm:"size:20;default:'ADVISOR'"`
	IsActive     bool `gorm:"default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Listings     []Listing `gorm:"constraint:OnDelete:CASCADE"`
}

// SafeUser represents a user without sensitive information
type SafeUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

// ToSafeUser converts a User to a SafeUser
func (u *User) ToSafeUser() SafeUser {
	return SafeUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		IsActive:  u.IsActive,
	}
}
