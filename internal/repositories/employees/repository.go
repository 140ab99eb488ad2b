package employees

import (
	"context"

	"github.com/celerix-dev/celerix-hr/pkg/schema"
)

// Repository persists employees, indexed by department and in a global
// id list.
type Repository interface {
	Create(ctx context.Context, emp *schema.Employee) (*schema.Employee, error)
	GetByID(ctx context.Context, id string) (*schema.Employee, error)
	GetByDepartment(ctx context.Context, departmentID string) ([]*schema.Employee, error)
	List(ctx context.Context) ([]*schema.Employee, error)
	Update(ctx context.Context, id string, apply func(*schema.Employee)) (*schema.Employee, error)
	Delete(ctx context.Context, id string) (bool, error)
}
