package index

import (
	"context"
	"fmt"
)

// Unique maps one value to one id. The entry holds the id as a JSON string.
type Unique struct {
	env *Env
}

// Lookup returns the id held under key.
func (u Unique) Lookup(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := GetRaw(ctx, u.env.Store, key)
	if err != nil || !ok {
		return "", false, err
	}
	id, err := Decode[string](key, raw)
	if err != nil {
		return "", false, err
	}
	return *id, *id != "", nil
}

// Claim points key at id. When key already names another id, live is asked
// whether that holder still exists: a live holder fails the claim with
// ErrUniqueTaken, a stale one is overwritten. claimed reports whether the
// entry was written, as opposed to already pointing at id.
func (u Unique) Claim(ctx context.Context, key, id string, live func(ctx context.Context, holder string) (bool, error)) (claimed bool, err error) {
	unlock := u.env.Locks.Lock(key)
	defer unlock()

	holder, ok, err := u.Lookup(ctx, key)
	if err != nil {
		return false, err
	}
	if ok && holder == id {
		return false, nil
	}
	if ok && live != nil {
		alive, err := live(ctx, holder)
		if err != nil {
			return false, err
		}
		if alive {
			return false, fmt.Errorf("%w: %s", ErrUniqueTaken, key)
		}
		u.env.Log.Warn(ctx, "overwriting stale unique entry", "key", key, "stale_id", holder, "id", id)
	}

	raw, err := Encode(key, id)
	if err != nil {
		return false, err
	}
	if err := u.env.Store.Put(ctx, key, raw); err != nil {
		return false, err
	}
	return true, nil
}

// Release removes key if it still points at id. released reports whether
// the entry was deleted.
func (u Unique) Release(ctx context.Context, key, id string) (released bool, err error) {
	unlock := u.env.Locks.Lock(key)
	defer unlock()

	holder, ok, err := u.Lookup(ctx, key)
	if err != nil || !ok || holder != id {
		return false, err
	}
	if err := u.env.Store.Delete(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

// Set points key at id unconditionally.
func (u Unique) Set(ctx context.Context, key, id string) error {
	unlock := u.env.Locks.Lock(key)
	defer unlock()

	raw, err := Encode(key, id)
	if err != nil {
		return err
	}
	return u.env.Store.Put(ctx, key, raw)
}
