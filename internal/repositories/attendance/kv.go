// Package attendance stores attendance records in the key-value store. Each
// record is listed under its calendar day and under its employee's day.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/celerix-dev/celerix-hr/internal/index"
	"github.com/celerix-dev/celerix-hr/pkg/schema"
)

// MaxRangeDays bounds GetByEmployeeRange.
const MaxRangeDays = 366

// ErrRangeTooLong is returned for ranges above MaxRangeDays.
var ErrRangeTooLong = fmt.Errorf("date range exceeds %d days", MaxRangeDays)

type KVRepository struct {
	env *index.Env
}

func NewKVRepository(env *index.Env) *KVRepository {
	return &KVRepository{env: env}
}

func (r *KVRepository) recordKey(id string) string {
	return r.env.Keys.Record(index.EntityAttendance, id)
}

func (r *KVRepository) dateKey(day string) string {
	return r.env.Keys.Group(index.EntityAttendance, index.IndexDate, day)
}

func (r *KVRepository) employeeDateKey(employeeID, day string) string {
	return r.env.Keys.Group(index.EntityAttendance, index.IndexEmployeeDate, employeeID, day)
}

// placement is where a record sits in the indexes.
type placement struct {
	employeeID string
	day        string
}

func (r *KVRepository) place(rec *schema.Attendance) (placement, error) {
	day, err := rec.Day()
	if err != nil {
		return placement{}, err
	}
	if err := r.env.Keys.ValidateID(index.EntityEmployee, rec.EmployeeID); err != nil {
		return placement{}, err
	}
	return placement{employeeID: rec.EmployeeID, day: day}, nil
}

func (r *KVRepository) Create(ctx context.Context, rec *schema.Attendance) (*schema.Attendance, error) {
	a := *rec
	if a.ID == "" {
		a.ID = r.env.NewID()
	}
	if err := r.env.Keys.ValidateID(index.EntityAttendance, a.ID); err != nil {
		return nil, err
	}
	p, err := r.place(&a)
	if err != nil {
		return nil, err
	}
	now := r.env.Stamp()
	a.CreatedAt, a.UpdatedAt = now, now

	key := r.recordKey(a.ID)
	unlock := r.env.LockRecord(key)
	defer unlock()

	if _, ok, err := index.GetRaw(ctx, r.env.Store, key); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: attendance %s", index.ErrExists, a.ID)
	}

	j := r.env.Begin("attendance.create")
	if err := j.PutRecord(ctx, key, &a, nil); err != nil {
		return nil, err
	}
	if err := j.AddMember(ctx, r.dateKey(p.day), a.ID); err != nil {
		return nil, err
	}
	if err := j.AddMember(ctx, r.employeeDateKey(p.employeeID, p.day), a.ID); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByID returns nil for ids the key layout cannot hold.
func (r *KVRepository) GetByID(ctx context.Context, id string) (*schema.Attendance, error) {
	if r.env.Keys.ValidateID(index.EntityAttendance, id) != nil {
		return nil, nil
	}
	a, _, err := index.Load[schema.Attendance](ctx, r.env.Store, r.recordKey(id))
	return a, err
}

// GetByDate returns the records of the calendar day of date.
func (r *KVRepository) GetByDate(ctx context.Context, date string) ([]*schema.Attendance, error) {
	day, err := schema.NormalizeDay(date)
	if err != nil {
		return nil, err
	}
	return r.fetchGroup(ctx, r.dateKey(day), func(a *schema.Attendance) bool {
		d, err := a.Day()
		return err == nil && d == day
	})
}

// GetByEmployeeAndDate returns the employee's records for the calendar day
// of date.
func (r *KVRepository) GetByEmployeeAndDate(ctx context.Context, employeeID, date string) ([]*schema.Attendance, error) {
	day, err := schema.NormalizeDay(date)
	if err != nil {
		return nil, err
	}
	return r.fetchGroup(ctx, r.employeeDateKey(employeeID, day), belongsTo(employeeID, day))
}

func belongsTo(employeeID, day string) func(*schema.Attendance) bool {
	return func(a *schema.Attendance) bool {
		d, err := a.Day()
		return err == nil && d == day && a.EmployeeID == employeeID
	}
}

// GetByEmployeeRange returns the employee's records from day from through
// day to, inclusive, ordered by day.
func (r *KVRepository) GetByEmployeeRange(ctx context.Context, employeeID, from, to string) ([]*schema.Attendance, error) {
	start, err := parseDay(from)
	if err != nil {
		return nil, err
	}
	end, err := parseDay(to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s is after %s", schema.ErrInvalidDay, from, to)
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > MaxRangeDays {
		return nil, fmt.Errorf("%w: %d days", ErrRangeTooLong, days)
	}

	var days []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(schema.DayLayout))
	}

	groups, err := index.Fetch(ctx, r.env, "range", days, func(ctx context.Context, day string) (*[]*schema.Attendance, error) {
		recs, err := r.GetByEmployeeAndDate(ctx, employeeID, day)
		if err != nil {
			return nil, err
		}
		return &recs, nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]*schema.Attendance, 0)
	for _, g := range groups {
		out = append(out, *g...)
	}
	return out, nil
}

func parseDay(date string) (time.Time, error) {
	day, err := schema.NormalizeDay(date)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(schema.DayLayout, day)
}

func (r *KVRepository) fetchGroup(ctx context.Context, key string, match func(*schema.Attendance) bool) ([]*schema.Attendance, error) {
	ids, err := r.env.Multi().Members(ctx, key)
	if err != nil {
		return nil, err
	}
	recs, err := index.Fetch(ctx, r.env, key, ids, r.GetByID)
	if err != nil {
		return nil, err
	}
	kept := recs[:0]
	for _, a := range recs {
		if !match(a) {
			r.env.Log.Warn(ctx, "stale index entry", "key", key, "id", a.ID)
			continue
		}
		kept = append(kept, a)
	}
	return kept, nil
}

// Update applies changes to a copy of the stored record. A change of day or
// employee moves the record between index groups. It returns nil when the
// record does not exist.
func (r *KVRepository) Update(ctx context.Context, id string, apply func(*schema.Attendance)) (*schema.Attendance, error) {
	if r.env.Keys.ValidateID(index.EntityAttendance, id) != nil {
		return nil, nil
	}
	key := r.recordKey(id)
	unlock := r.env.LockRecord(key)
	defer unlock()

	cur, prev, err := index.Load[schema.Attendance](ctx, r.env.Store, key)
	if err != nil || cur == nil {
		return nil, err
	}

	next := *cur
	apply(&next)
	next.ID, next.CreatedAt = cur.ID, cur.CreatedAt
	next.UpdatedAt = r.env.Stamp()

	to, err := r.place(&next)
	if err != nil {
		return nil, err
	}
	// A stored record with an unparseable date was never indexed.
	from, fromErr := r.place(cur)
	if fromErr != nil && !errors.Is(fromErr, schema.ErrInvalidDay) && !errors.Is(fromErr, index.ErrInvalidID) {
		return nil, fromErr
	}

	j := r.env.Begin("attendance.update")
	if fromErr == nil && from.day != to.day {
		if err := j.RemoveMember(ctx, r.dateKey(from.day), id); err != nil {
			return nil, err
		}
	}
	if fromErr == nil && from != to {
		if err := j.RemoveMember(ctx, r.employeeDateKey(from.employeeID, from.day), id); err != nil {
			return nil, err
		}
	}
	if fromErr != nil || from.day != to.day {
		if err := j.AddMember(ctx, r.dateKey(to.day), id); err != nil {
			return nil, err
		}
	}
	if fromErr != nil || from != to {
		if err := j.AddMember(ctx, r.employeeDateKey(to.employeeID, to.day), id); err != nil {
			return nil, err
		}
	}
	if err := j.PutRecord(ctx, key, &next, prev); err != nil {
		return nil, err
	}
	return &next, nil
}

// Delete removes the record from its day groups, then the record itself. It
// reports false when the record does not exist.
func (r *KVRepository) Delete(ctx context.Context, id string) (bool, error) {
	if r.env.Keys.ValidateID(index.EntityAttendance, id) != nil {
		return false, nil
	}
	key := r.recordKey(id)
	unlock := r.env.LockRecord(key)
	defer unlock()

	cur, prev, err := index.Load[schema.Attendance](ctx, r.env.Store, key)
	if err != nil || cur == nil {
		return false, err
	}

	j := r.env.Begin("attendance.delete")
	if p, err := r.place(cur); err == nil {
		if err := j.RemoveMember(ctx, r.dateKey(p.day), id); err != nil {
			return false, err
		}
		if err := j.RemoveMember(ctx, r.employeeDateKey(p.employeeID, p.day), id); err != nil {
			return false, err
		}
	}
	if err := j.DeleteRecord(ctx, key, prev); err != nil {
		return false, err
	}
	return true, nil
}
