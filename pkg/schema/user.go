// Package schema defines the records persisted by the Celerix HR data layer.
// Field names follow the camelCase JSON layout of legacy records so that
// existing records stay readable.
package schema

import "time"

// Roles understood by consumers. The data layer stores any value.
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

// User represents an account of the HR application.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	Name         string         `json:"name,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	PasswordHash string         `json:"passwordHash,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}
