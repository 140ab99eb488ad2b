package schema

import "time"

// Biometric types.
const (
	BiometricFace        = "face"
	BiometricFingerprint = "fingerprint"
)

// Biometric is an enrolled template. There is at most one per employee and
// type; saving again replaces the data.
type Biometric struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employeeId"`
	Type       string    `json:"type"`
	Data       string    `json:"data"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
