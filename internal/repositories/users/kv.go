// Package users stores user accounts in the key-value store, keeping the
// email -> id index in step with the records.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/celerix-dev/celerix-hr/internal/index"
	"github.com/celerix-dev/celerix-hr/internal/logging"
	"github.com/celerix-dev/celerix-hr/pkg/schema"
)

// DefaultListLimit applies when List is called without a limit.
const DefaultListLimit = 100

// ErrEmailTaken is returned when another live user holds the email.
var ErrEmailTaken = fmt.Errorf("email already registered: %w", index.ErrUniqueTaken)

type KVRepository struct {
	env *index.Env
	log logging.Logger
}

func NewKVRepository(env *index.Env) *KVRepository {
	return &KVRepository{env: env, log: env.Log.With("repo", "users")}
}

// NormalizeEmail is the form under which emails are indexed.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *KVRepository) recordKey(id string) string {
	return r.env.Keys.Record(index.EntityUser, id)
}

func (r *KVRepository) emailKey(email string) string {
	return r.env.Keys.Unique(index.EntityUser, index.IndexEmail, email)
}

// holds reports whether the user id is live and still carries email. It
// decides whether an existing index entry blocks a claim. A holder whose
// record is being mutated counts as live: its email may be about to be
// restored by a rollback.
func (r *KVRepository) holds(email string) func(ctx context.Context, id string) (bool, error) {
	return func(ctx context.Context, id string) (bool, error) {
		if r.env.RecordBusy(r.recordKey(id)) {
			return true, nil
		}
		u, err := r.GetByID(ctx, id)
		if err != nil {
			return false, err
		}
		return u != nil && NormalizeEmail(u.Email) == email, nil
	}
}

func emailErr(err error, email string) error {
	if errors.Is(err, index.ErrUniqueTaken) && !errors.Is(err, index.ErrPartialWrite) {
		return fmt.Errorf("%w: %s", ErrEmailTaken, email)
	}
	return err
}

func (r *KVRepository) Create(ctx context.Context, user *schema.User) (*schema.User, error) {
	rec := *user
	if rec.ID == "" {
		rec.ID = r.env.NewID()
	}
	if err := r.env.Keys.ValidateID(index.EntityUser, rec.ID); err != nil {
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
		return nil, fmt.Errorf("%w: user %s", index.ErrExists, rec.ID)
	}

	j := r.env.Begin("users.create")
	if err := j.PutRecord(ctx, key, &rec, nil); err != nil {
		return nil, err
	}
	if email := NormalizeEmail(rec.Email); email != "" {
		if err := j.Claim(ctx, r.emailKey(email), rec.ID, r.holds(email)); err != nil {
			return nil, emailErr(err, email)
		}
	}
	return &rec, nil
}

// GetByID returns nil for ids the key layout cannot hold.
func (r *KVRepository) GetByID(ctx context.Context, id string) (*schema.User, error) {
	if r.env.Keys.ValidateID(index.EntityUser, id) != nil {
		return nil, nil
	}
	u, _, err := index.Load[schema.User](ctx, r.env.Store, r.recordKey(id))
	return u, err
}

// GetByEmail returns nil when no live user carries email. An index entry
// whose user is gone or has another email is ignored.
func (r *KVRepository) GetByEmail(ctx context.Context, email string) (*schema.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	key := r.emailKey(email)
	id, ok, err := r.env.Unique().Lookup(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil || NormalizeEmail(u.Email) != email {
		r.log.Warn(ctx, "stale index entry", "key", key, "id", id)
		return nil, nil
	}
	return u, nil
}

// Update applies changes to a copy of the stored user. The id and creation
// time cannot be changed. It returns nil when the user does not exist.
func (r *KVRepository) Update(ctx context.Context, id string, apply func(*schema.User)) (*schema.User, error) {
	if r.env.Keys.ValidateID(index.EntityUser, id) != nil {
		return nil, nil
	}
	key := r.recordKey(id)
	unlock := r.env.LockRecord(key)
	defer unlock()

	cur, prev, err := index.Load[schema.User](ctx, r.env.Store, key)
	if err != nil || cur == nil {
		return nil, err
	}

	next := *cur
	apply(&next)
	next.ID, next.CreatedAt = cur.ID, cur.CreatedAt
	next.UpdatedAt = r.env.Stamp()

	// The record goes first so that a concurrent claim of the new email sees
	// a live holder carrying it.
	j := r.env.Begin("users.update")
	if err := j.PutRecord(ctx, key, &next, prev); err != nil {
		return nil, err
	}
	oldEmail, newEmail := NormalizeEmail(cur.Email), NormalizeEmail(next.Email)
	if oldEmail != newEmail {
		if newEmail != "" {
			if err := j.Claim(ctx, r.emailKey(newEmail), id, r.holds(newEmail)); err != nil {
				return nil, emailErr(err, newEmail)
			}
		}
		if oldEmail != "" {
			if err := j.Release(ctx, r.emailKey(oldEmail), id); err != nil {
				return nil, err
			}
		}
	}
	return &next, nil
}

// Delete removes the user and its email entry. It reports false when the
// user does not exist.
func (r *KVRepository) Delete(ctx context.Context, id string) (bool, error) {
	if r.env.Keys.ValidateID(index.EntityUser, id) != nil {
		return false, nil
	}
	key := r.recordKey(id)
	unlock := r.env.LockRecord(key)
	defer unlock()

	cur, prev, err := index.Load[schema.User](ctx, r.env.Store, key)
	if err != nil || cur == nil {
		return false, err
	}

	j := r.env.Begin("users.delete")
	if email := NormalizeEmail(cur.Email); email != "" {
		if err := j.Release(ctx, r.emailKey(email), id); err != nil {
			return false, err
		}
	}
	if err := j.DeleteRecord(ctx, key, prev); err != nil {
		return false, err
	}
	return true, nil
}

// List scans user records in key order. With the legacy layout index keys
// share the record prefix: limit applies to the scan, so fewer than limit
// users may come back.
func (r *KVRepository) List(ctx context.Context, limit int) ([]*schema.User, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	prefix := r.env.Keys.RecordPrefix(index.EntityUser)
	keys, err := r.env.Store.List(ctx, prefix, limit)
	if err != nil {
		return nil, err
	}

	records := keys[:0]
	for _, k := range keys {
		if r.env.Keys.IsRecord(index.EntityUser, k, 1) {
			records = append(records, k)
		}
	}
	return index.Fetch(ctx, r.env, prefix, records, func(ctx context.Context, key string) (*schema.User, error) {
		u, _, err := index.Load[schema.User](ctx, r.env.Store, key)
		return u, err
	})
}
