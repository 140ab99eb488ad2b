package attendance

import (
	"context"

	"github.com/celerix-dev/celerix-hr/pkg/schema"
)

// Repository persists attendance records, indexed by day and by employee
// and day.
type Repository interface {
	Create(ctx context.Context, rec *schema.Attendance) (*schema.Attendance, error)
	GetByID(ctx context.Context, id string) (*schema.Attendance, error)
	GetByDate(ctx context.Context, date string) ([]*schema.Attendance, error)
	GetByEmployeeAndDate(ctx context.Context, employeeID, date string) ([]*schema.Attendance, error)
	GetByEmployeeRange(ctx context.Context, employeeID, from, to string) ([]*schema.Attendance, error)
	Update(ctx context.Context, id string, apply func(*schema.Attendance)) (*schema.Attendance, error)
	Delete(ctx context.Context, id string) (bool, error)
}
