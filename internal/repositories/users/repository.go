package users

import (
	"context"

	"github.com/celerix-dev/celerix-hr/pkg/schema"
)

// Repository persists users with a unique email index.
type Repository interface {
	Create(ctx context.Context, user *schema.User) (*schema.User, error)
	GetByID(ctx context.Context, id string) (*schema.User, error)
	GetByEmail(ctx context.Context, email string) (*schema.User, error)
	Update(ctx context.Context, id string, apply func(*schema.User)) (*schema.User, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, limit int) ([]*schema.User, error)
}
