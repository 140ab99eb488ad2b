package schema

import "time"

// Employee is a person on the payroll. DepartmentID is optional; when set the
// employee is listed under that department.
type Employee struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId,omitempty"`
	DepartmentID string         `json:"departmentId,omitempty"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Position     string         `json:"position"`
	Phone        string         `json:"phone,omitempty"`
	Status       string         `json:"status,omitempty"`
	HireDate     *time.Time     `json:"hireDate,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}
