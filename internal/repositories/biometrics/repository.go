package biometrics

import (
	"context"

	"github.com/celerix-dev/celerix-hr/pkg/schema"
)

// Repository persists at most one biometric template per employee and type.
type Repository interface {
	Save(ctx context.Context, b *schema.Biometric) (*schema.Biometric, error)
	GetByID(ctx context.Context, id string) (*schema.Biometric, error)
	GetByEmployeeAndType(ctx context.Context, employeeID, typ string) (*schema.Biometric, error)
	GetByEmployee(ctx context.Context, employeeID string) ([]*schema.Biometric, error)
	GetByType(ctx context.Context, typ string) ([]*schema.Biometric, error)
	Delete(ctx context.Context, employeeID, typ string) (bool, error)
	DeleteByEmployee(ctx context.Context, employeeID string) (int, error)
}

// Cipher seals template data before it is stored.
type Cipher interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}
