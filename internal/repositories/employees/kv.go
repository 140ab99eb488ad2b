// Package employees stores employee records in the key-value store. Each
// employee is listed in its department group and in the global id list.
package employees

import (
	"context"
	"fmt"

	"github.com/celerix-dev/celerix-hr/internal/index"
	"github.com/celerix-dev/celerix-hr/pkg/schema"
)

type KVRepository struct {
	env *index.Env
}

func NewKVRepository(env *index.Env) *KVRepository {
	return &KVRepository{env: env}
}

func (r *KVRepository) recordKey(id string) string {
	return r.env.Keys.Record(index.EntityEmployee, id)
}

func (r *KVRepository) allKey() string {
	return r.env.Keys.Group(index.EntityEmployee, index.IndexAll)
}

func (r *KVRepository) departmentKey(departmentID string) string {
	return r.env.Keys.Group(index.EntityEmployee, index.IndexDepartment, departmentID)
}

func (r *KVRepository) Create(ctx context.Context, emp *schema.Employee) (*schema.Employee, error) {
	rec := *emp
	if rec.ID == "" {
		rec.ID = r.env.NewID()
	}
	if err := r.env.Keys.ValidateID(index.EntityEmployee, rec.ID); err != nil {
		return nil, err
	}
	now := r.env.Stamp()
	rec.CreatedAt, rec.UpdatedAt = now, now

	key := r.recordKey(rec.ID)
	unlock := r.env.LockRecord(key)
	defer unlock()

	if _, ok, err := index.GetRaw(ctx, r.env.Store, key); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: employee %s", index.ErrExists, rec.ID)
	}

	j := r.env.Begin("employees.create")
	if err := j.PutRecord(ctx, key, &rec, nil); err != nil {
		return nil, err
	}
	if err := j.AddMember(ctx, r.allKey(), rec.ID); err != nil {
		return nil, err
	}
	if rec.DepartmentID != "" {
		if err := j.AddMember(ctx, r.departmentKey(rec.DepartmentID), rec.ID); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

// GetByID returns nil for ids the key layout cannot hold.
func (r *KVRepository) GetByID(ctx context.Context, id string) (*schema.Employee, error) {
	if r.env.Keys.ValidateID(index.EntityEmployee, id) != nil {
		return nil, nil
	}
	emp, _, err := index.Load[schema.Employee](ctx, r.env.Store, r.recordKey(id))
	return emp, err
}

// GetByDepartment returns the employees listed under departmentID. Entries
// whose record has moved to another department are skipped.
func (r *KVRepository) GetByDepartment(ctx context.Context, departmentID string) ([]*schema.Employee, error) {
	key := r.departmentKey(departmentID)
	emps, err := r.fetchGroup(ctx, key)
	if err != nil {
		return nil, err
	}
	kept := emps[:0]
	for _, e := range emps {
		if e.DepartmentID != departmentID {
			r.env.Log.Warn(ctx, "stale index entry", "key", key, "id", e.ID)
			continue
		}
		kept = append(kept, e)
	}
	return kept, nil
}

// List returns every employee in the global id list.
func (r *KVRepository) List(ctx context.Context) ([]*schema.Employee, error) {
	return r.fetchGroup(ctx, r.allKey())
}

func (r *KVRepository) fetchGroup(ctx context.Context, key string) ([]*schema.Employee, error) {
	ids, err := r.env.Multi().Members(ctx, key)
	if err != nil {
		return nil, err
	}
	return index.Fetch(ctx, r.env, key, ids, r.GetByID)
}

// Update applies changes to a copy of the stored employee and moves it
// between department groups when DepartmentID changes. It returns nil when
// the employee does not exist.
func (r *KVRepository) Update(ctx context.Context, id string, apply func(*schema.Employee)) (*schema.Employee, error) {
	if r.env.Keys.ValidateID(index.EntityEmployee, id) != nil {
		return nil, nil
	}
	key := r.recordKey(id)
	unlock := r.env.LockRecord(key)
	defer unlock()

	cur, prev, err := index.Load[schema.Employee](ctx, r.env.Store, key)
	if err != nil || cur == nil {
		return nil, err
	}

	next := *cur
	apply(&next)
	next.ID, next.CreatedAt = cur.ID, cur.CreatedAt
	next.UpdatedAt = r.env.Stamp()

	j := r.env.Begin("employees.update")
	if cur.DepartmentID != next.DepartmentID {
		if cur.DepartmentID != "" {
			if err := j.RemoveMember(ctx, r.departmentKey(cur.DepartmentID), id); err != nil {
				return nil, err
			}
		}
		if next.DepartmentID != "" {
			if err := j.AddMember(ctx, r.departmentKey(next.DepartmentID), id); err != nil {
				return nil, err
			}
		}
	}
	if err := j.PutRecord(ctx, key, &next, prev); err != nil {
		return nil, err
	}
	return &next, nil
}

// Delete removes the employee from its groups, then the record. It reports
// false when the employee does not exist.
func (r *KVRepository) Delete(ctx context.Context, id string) (bool, error) {
	if r.env.Keys.ValidateID(index.EntityEmployee, id) != nil {
		return false, nil
	}
	key := r.recordKey(id)
	unlock := r.env.LockRecord(key)
	defer unlock()

	cur, prev, err := index.Load[schema.Employee](ctx, r.env.Store, key)
	if err != nil || cur == nil {
		return false, err
	}

	j := r.env.Begin("employees.delete")
	if cur.DepartmentID != "" {
		if err := j.RemoveMember(ctx, r.departmentKey(cur.DepartmentID), id); err != nil {
			return false, err
		}
	}
	if err := j.RemoveMember(ctx, r.allKey(), id); err != nil {
		return false, err
	}
	if err := j.DeleteRecord(ctx, key, prev); err != nil {
		return false, err
	}
	return true, nil
}
