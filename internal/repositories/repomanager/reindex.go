package repomanager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/celerix-dev/celerix-hr/internal/index"
	"github.com/celerix-dev/celerix-hr/internal/repositories/users"
	"github.com/celerix-dev/celerix-hr/pkg/schema"
)

// ReindexReport summarizes a Reindex run.
type ReindexReport struct {
	Records map[string]int `json:"records"`
	Written int            `json:"written"`
	Removed int            `json:"removed"`
	Skipped int            `json:"skipped"`
}

// indexSpec is the desired content of one index: group key -> ids.
type indexSpec struct {
	entity string
	name   string
	groups map[string][]string
	unique bool
}

func newSpec(entity, name string, unique bool) *indexSpec {
	return &indexSpec{entity: entity, name: name, groups: map[string][]string{}, unique: unique}
}

func (s *indexSpec) add(key, id string) {
	if !slices.Contains(s.groups[key], id) {
		s.groups[key] = append(s.groups[key], id)
	}
}

// Reindex rebuilds every index from the primary records: lost ids are
// added back, stale ids and empty groups removed. It should run while no
// other process writes to the store.
func (m *Manager) Reindex(ctx context.Context) (*ReindexReport, error) {
	env := m.env
	keys := env.Keys
	rep := &ReindexReport{Records: map[string]int{}}

	email := newSpec(index.EntityUser, index.IndexEmail, true)
	all := newSpec(index.EntityEmployee, index.IndexAll, false)
	dept := newSpec(index.EntityEmployee, index.IndexDepartment, false)
	date := newSpec(index.EntityAttendance, index.IndexDate, false)
	empDate := newSpec(index.EntityAttendance, index.IndexEmployeeDate, false)
	bioType := newSpec(index.EntityBiometric, index.IndexType, false)

	err := scan(ctx, m, index.EntityUser, 1, rep, func(u *schema.User) {
		e := users.NormalizeEmail(u.Email)
		if e == "" {
			return
		}
		k := keys.Unique(index.EntityUser, index.IndexEmail, e)
		if held, ok := email.groups[k]; ok {
			env.Log.Warn(ctx, "duplicate email", "email", e, "kept", held[0], "dropped", u.ID)
			return
		}
		email.add(k, u.ID)
	})
	if err != nil {
		return nil, err
	}

	err = scan(ctx, m, index.EntityEmployee, 1, rep, func(e *schema.Employee) {
		all.add(keys.Group(index.EntityEmployee, index.IndexAll), e.ID)
		if e.DepartmentID != "" {
			dept.add(keys.Group(index.EntityEmployee, index.IndexDepartment, e.DepartmentID), e.ID)
		}
	})
	if err != nil {
		return nil, err
	}

	err = scan(ctx, m, index.EntityAttendance, 1, rep, func(a *schema.Attendance) {
		day, err := a.Day()
		if err != nil || keys.ValidateID(index.EntityEmployee, a.EmployeeID) != nil {
			env.Log.Warn(ctx, "attendance record cannot be indexed", "id", a.ID, "date", a.Date, "employee_id", a.EmployeeID)
			rep.Skipped++
			return
		}
		date.add(keys.Group(index.EntityAttendance, index.IndexDate, day), a.ID)
		empDate.add(keys.Group(index.EntityAttendance, index.IndexEmployeeDate, a.EmployeeID, day), a.ID)
	})
	if err != nil {
		return nil, err
	}

	err = scan(ctx, m, index.EntityBiometric, 2, rep, func(b *schema.Biometric) {
		if b.ID == "" || keys.ValidateID(index.EntityBiometric, b.Type) != nil {
			env.Log.Warn(ctx, "biometric record cannot be indexed", "employee_id", b.EmployeeID, "type", b.Type)
			rep.Skipped++
			return
		}
		bioType.add(keys.Group(index.EntityBiometric, index.IndexType, b.Type), b.ID)
	})
	if err != nil {
		return nil, err
	}

	for _, s := range []*indexSpec{email, all, dept, date, empDate, bioType} {
		if err := m.apply(ctx, s, rep); err != nil {
			return nil, err
		}
	}

	env.Log.Info(ctx, "reindex finished", "records", rep.Records, "written", rep.Written, "removed", rep.Removed, "skipped", rep.Skipped)
	return rep, nil
}

// scan decodes every primary record of entity and hands it to visit.
func scan[T any](ctx context.Context, m *Manager, entity string, parts int, rep *ReindexReport, visit func(*T)) error {
	env := m.env
	keys, err := env.Store.List(ctx, env.Keys.RecordPrefix(entity), 0)
	if err != nil {
		return fmt.Errorf("reindex %s: %w", entity, err)
	}
	for _, k := range keys {
		if !env.Keys.IsRecord(entity, k, parts) {
			continue
		}
		rec, _, err := index.Load[T](ctx, env.Store, k)
		if err != nil {
			return fmt.Errorf("reindex %s: %w", entity, err)
		}
		if rec == nil {
			continue
		}
		rep.Records[entity]++
		visit(rec)
	}
	return nil
}

// apply writes the desired groups of s and deletes existing ones that no
// record supports.
func (m *Manager) apply(ctx context.Context, s *indexSpec, rep *ReindexReport) error {
	env := m.env

	// Without its separator the prefix also covers an index stored under a
	// single key, such as the namespaced employee list.
	scanPrefix, ok := env.Keys.GroupPrefix(s.entity, s.name)
	if ok {
		scanPrefix = strings.TrimRight(scanPrefix, "/:")
	} else {
		scanPrefix = env.Keys.RecordPrefix(s.entity)
	}
	existing, err := env.Store.List(ctx, scanPrefix, 0)
	if err != nil {
		return fmt.Errorf("reindex %s/%s: %w", s.entity, s.name, err)
	}
	// Groups that records need but the store lacks.
	for k := range s.groups {
		if !slices.Contains(existing, k) {
			existing = append(existing, k)
		}
	}

	for _, k := range existing {
		if !env.Keys.IsIndex(s.entity, s.name, k) {
			continue
		}
		want, keep := s.groups[k]
		if !keep {
			if err := env.Store.Delete(ctx, k); err != nil {
				return err
			}
			rep.Removed++
			continue
		}

		if s.unique {
			if id, ok, err := env.Unique().Lookup(ctx, k); err == nil && ok && id == want[0] {
				continue
			}
			if err := env.Unique().Set(ctx, k, want[0]); err != nil {
				return err
			}
			rep.Written++
			continue
		}

		have, err := env.Multi().Members(ctx, k)
		if err != nil && !errors.Is(err, index.ErrCorrupt) {
			return err
		}
		if sameMembers(have, want) {
			continue
		}
		if err := env.Multi().Replace(ctx, k, want); err != nil {
			return err
		}
		rep.Written++
	}
	return nil
}

func sameMembers(have, want []string) bool {
	if len(have) != len(want) {
		return false
	}
	set := make(map[string]bool, len(have))
	for _, id := range have {
		set[id] = true
	}
	for _, id := range want {
		if !set[id] {
			return false
		}
	}
	return len(set) == len(want)
}
