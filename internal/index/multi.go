package index

import (
	"context"
	"fmt"
	"slices"
)

// Multi maps a group key to a JSON array of ids. Every change is a
// read-modify-write of the whole array under the key's lock.
type Multi struct {
	env *Env
}

// Members returns the ids of a group, empty when the group is absent.
func (m Multi) Members(ctx context.Context, key string) ([]string, error) {
	raw, ok, err := GetRaw(ctx, m.env.Store, key)
	if err != nil || !ok {
		return []string{}, err
	}
	ids, err := Decode[[]string](key, raw)
	if err != nil {
		return nil, err
	}
	if *ids == nil {
		return []string{}, nil
	}
	return *ids, nil
}

// Add appends id to the group unless it is already present. added reports
// whether the group changed.
func (m Multi) Add(ctx context.Context, key, id string) (added bool, err error) {
	unlock := m.env.Locks.Lock(key)
	defer unlock()

	ids, err := m.Members(ctx, key)
	if err != nil {
		return false, err
	}
	if slices.Contains(ids, id) {
		return false, nil
	}
	if len(ids) >= m.env.maxGroup() {
		return false, fmt.Errorf("%w: %s holds %d ids", ErrGroupFull, key, len(ids))
	}
	return true, m.write(ctx, key, append(ids, id))
}

// Remove filters id out of the group. removed reports whether the group
// changed. A group left empty is deleted.
func (m Multi) Remove(ctx context.Context, key, id string) (removed bool, err error) {
	unlock := m.env.Locks.Lock(key)
	defer unlock()

	ids, err := m.Members(ctx, key)
	if err != nil {
		return false, err
	}
	kept := slices.DeleteFunc(slices.Clone(ids), func(v string) bool { return v == id })
	if len(kept) == len(ids) {
		return false, nil
	}
	return true, m.write(ctx, key, kept)
}

// Replace overwrites the group with ids, deleting it when ids is empty.
func (m Multi) Replace(ctx context.Context, key string, ids []string) error {
	unlock := m.env.Locks.Lock(key)
	defer unlock()

	return m.write(ctx, key, ids)
}

func (m Multi) write(ctx context.Context, key string, ids []string) error {
	if len(ids) == 0 {
		return m.env.Store.Delete(ctx, key)
	}
	raw, err := Encode(key, ids)
	if err != nil {
		return err
	}
	return m.env.Store.Put(ctx, key, raw)
}
