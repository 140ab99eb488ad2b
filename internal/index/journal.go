package index

import (
	"context"
	"errors"
	"fmt"
)

// Journal records the undo action of every completed step of one mutation.
// When a step fails the recorded actions run in reverse order. A Journal
// serves a single operation and is not safe for concurrent use.
type Journal struct {
	env  *Env
	op   string
	done []journalStep
}

type journalStep struct {
	name string
	undo func(ctx context.Context) error
}

// Begin starts the journal of operation op, e.g. "employees.update".
func (e *Env) Begin(op string) *Journal {
	return &Journal{env: e, op: op}
}

// Step runs do. On success undo (which may be nil) is recorded. On failure
// the completed steps are rolled back and the returned error wraps the
// cause; it is a *PartialWriteError when the rollback failed too.
func (j *Journal) Step(ctx context.Context, name string, do, undo func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return j.fail(ctx, name, err)
	}
	if err := do(ctx); err != nil {
		return j.fail(ctx, name, err)
	}
	j.done = append(j.done, journalStep{name: name, undo: undo})
	return nil
}

// Completed returns the names of the steps recorded so far.
func (j *Journal) Completed() []string {
	names := make([]string, len(j.done))
	for i, s := range j.done {
		names[i] = s.name
	}
	return names
}

func (j *Journal) fail(ctx context.Context, name string, cause error) error {
	completed := j.Completed()
	steps := j.done
	j.done = nil

	// Compensation must run even when ctx is what failed the step.
	rctx := context.WithoutCancel(ctx)
	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		if s.undo == nil {
			continue
		}
		if err := s.undo(rctx); err != nil {
			errs = append(errs, fmt.Errorf("undo %s: %w", s.name, err))
		}
	}

	if len(errs) == 0 {
		if len(completed) > 0 {
			j.env.Log.Debug(ctx, "rolled back", "op", j.op, "step", name, "undone", len(completed))
		}
		return fmt.Errorf("%s: %s: %w", j.op, name, cause)
	}

	perr := &PartialWriteError{
		Op:        j.op,
		Step:      name,
		Completed: completed,
		Cause:     cause,
		Rollback:  errors.Join(errs...),
	}
	j.env.Log.Error(ctx, "partial write left behind", "op", j.op, "step", name, "completed", completed, "error", perr)
	return perr
}

// PutRecord writes v under key. Undo restores prev, or deletes key when
// prev is nil.
func (j *Journal) PutRecord(ctx context.Context, key string, v any, prev []byte) error {
	return j.Step(ctx, "put "+key,
		func(ctx context.Context) error {
			raw, err := Encode(key, v)
			if err != nil {
				return err
			}
			return j.env.Store.Put(ctx, key, raw)
		},
		func(ctx context.Context) error {
			if prev == nil {
				return j.env.Store.Delete(ctx, key)
			}
			return j.env.Store.Put(ctx, key, prev)
		})
}

// DeleteRecord deletes key. Undo writes prev back.
func (j *Journal) DeleteRecord(ctx context.Context, key string, prev []byte) error {
	return j.Step(ctx, "delete "+key,
		func(ctx context.Context) error { return j.env.Store.Delete(ctx, key) },
		func(ctx context.Context) error { return j.env.Store.Put(ctx, key, prev) })
}

// AddMember adds id to a multi index group. Undo removes it again only if
// this step added it.
func (j *Journal) AddMember(ctx context.Context, key, id string) error {
	var added bool
	return j.Step(ctx, "add "+id+" to "+key,
		func(ctx context.Context) (err error) {
			added, err = j.env.Multi().Add(ctx, key, id)
			return err
		},
		func(ctx context.Context) error {
			if !added {
				return nil
			}
			_, err := j.env.Multi().Remove(ctx, key, id)
			return err
		})
}

// RemoveMember removes id from a multi index group. Undo adds it back only
// if this step removed it.
func (j *Journal) RemoveMember(ctx context.Context, key, id string) error {
	var removed bool
	return j.Step(ctx, "remove "+id+" from "+key,
		func(ctx context.Context) (err error) {
			removed, err = j.env.Multi().Remove(ctx, key, id)
			return err
		},
		func(ctx context.Context) error {
			if !removed {
				return nil
			}
			_, err := j.env.Multi().Add(ctx, key, id)
			return err
		})
}

// Claim points a unique entry at id, see Unique.Claim. Undo releases it.
func (j *Journal) Claim(ctx context.Context, key, id string, live func(ctx context.Context, holder string) (bool, error)) error {
	var claimed bool
	return j.Step(ctx, "claim "+key,
		func(ctx context.Context) (err error) {
			claimed, err = j.env.Unique().Claim(ctx, key, id, live)
			return err
		},
		func(ctx context.Context) error {
			if !claimed {
				return nil
			}
			_, err := j.env.Unique().Release(ctx, key, id)
			return err
		})
}

// Release removes a unique entry held by id. Undo points it back at id.
func (j *Journal) Release(ctx context.Context, key, id string) error {
	var released bool
	return j.Step(ctx, "release "+key,
		func(ctx context.Context) (err error) {
			released, err = j.env.Unique().Release(ctx, key, id)
			return err
		},
		func(ctx context.Context) error {
			if !released {
				return nil
			}
			return j.env.Unique().Set(ctx, key, id)
		})
}
