package model

import (
	"strings"
	"time"
)

// Role names as stored in the `users.role` column.  Roles are always
// persisted and compared in lowercase; use NormalizeRole on any value
// coming from a request or a token.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// User represents an account record as stored in the `users` table.
//
// Fields:
//  ID           – UUID primary key.
//  Name         – display name.
//  Email        – unique, lowercase email address.
//  PasswordHash – bcrypt hash; never serialized.
//  Role         – one of RoleUser, RoleAdmin or RoleSuperAdmin.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NormalizeRole trims and lowercases a role string.
func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// ValidRole reports whether role (after normalization) is a known role.
func ValidRole(role string) bool {
	switch NormalizeRole(role) {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
