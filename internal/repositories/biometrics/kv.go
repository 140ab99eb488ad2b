// Package biometrics stores enrolled templates keyed by employee and type,
// with a per-type list of template ids.
package biometrics

import (
	"context"
	"fmt"
	"strings"

	"github.com/celerix-dev/celerix-hr/internal/index"
	"github.com/celerix-dev/celerix-hr/internal/vault"
	"github.com/celerix-dev/celerix-hr/pkg/schema"
)

type KVRepository struct {
	env    *index.Env
	cipher Cipher
}

// NewKVRepository returns a repository storing template data as given, or
// sealed with c when c is not nil.
func NewKVRepository(env *index.Env, c Cipher) *KVRepository {
	return &KVRepository{env: env, cipher: c}
}

func (r *KVRepository) recordKey(employeeID, typ string) string {
	return r.env.Keys.Record(index.EntityBiometric, employeeID, typ)
}

func (r *KVRepository) typeKey(typ string) string {
	return r.env.Keys.Group(index.EntityBiometric, index.IndexType, typ)
}

// typeSuffix is the tail shared by the record keys of every template of typ.
func (r *KVRepository) typeSuffix(typ string) string {
	return strings.TrimPrefix(r.recordKey("", typ), r.env.Keys.RecordPrefix(index.EntityBiometric))
}

func (r *KVRepository) validate(employeeID, typ string) error {
	if err := r.env.Keys.ValidateID(index.EntityEmployee, employeeID); err != nil {
		return err
	}
	return r.env.Keys.ValidateID(index.EntityBiometric, typ)
}

func (r *KVRepository) seal(b *schema.Biometric) (*schema.Biometric, error) {
	if r.cipher == nil || b.Data == "" {
		return b, nil
	}
	sealed, err := r.cipher.Seal(b.Data)
	if err != nil {
		return nil, fmt.Errorf("seal biometric %s/%s: %w", b.EmployeeID, b.Type, err)
	}
	out := *b
	out.Data = sealed
	return &out, nil
}

// open reverses seal. Data written before a key was configured is returned
// as stored.
func (r *KVRepository) open(b *schema.Biometric) (*schema.Biometric, error) {
	if b == nil || !vault.IsSealed(b.Data) {
		return b, nil
	}
	if r.cipher == nil {
		return nil, fmt.Errorf("biometric %s/%s is sealed and no vault key is configured", b.EmployeeID, b.Type)
	}
	data, err := r.cipher.Open(b.Data)
	if err != nil {
		return nil, fmt.Errorf("open biometric %s/%s: %w", b.EmployeeID, b.Type, err)
	}
	b.Data = data
	return b, nil
}

func (r *KVRepository) load(ctx context.Context, key string) (*schema.Biometric, []byte, error) {
	b, raw, err := index.Load[schema.Biometric](ctx, r.env.Store, key)
	if err != nil || b == nil {
		return nil, nil, err
	}
	b, err = r.open(b)
	return b, raw, err
}

// Save creates or replaces the template of (EmployeeID, Type). A replaced
// record keeps its id and creation time.
func (r *KVRepository) Save(ctx context.Context, b *schema.Biometric) (*schema.Biometric, error) {
	if err := r.validate(b.EmployeeID, b.Type); err != nil {
		return nil, err
	}

	key := r.recordKey(b.EmployeeID, b.Type)
	unlock := r.env.LockRecord(key)
	defer unlock()

	cur, prev, err := index.Load[schema.Biometric](ctx, r.env.Store, key)
	if err != nil {
		return nil, err
	}

	rec := *b
	now := r.env.Stamp()
	rec.UpdatedAt = now
	switch {
	case cur != nil && cur.ID != "":
		rec.ID, rec.CreatedAt = cur.ID, cur.CreatedAt
	case rec.ID == "":
		rec.ID = r.env.NewID()
		rec.CreatedAt = now
	default:
		if other, err := r.GetByID(ctx, rec.ID); err != nil {
			return nil, err
		} else if other != nil {
			return nil, fmt.Errorf("%w: biometric %s", index.ErrExists, rec.ID)
		}
		rec.CreatedAt = now
	}

	stored, err := r.seal(&rec)
	if err != nil {
		return nil, err
	}

	j := r.env.Begin("biometrics.save")
	if err := j.PutRecord(ctx, key, stored, prev); err != nil {
		return nil, err
	}
	if err := j.AddMember(ctx, r.typeKey(rec.Type), rec.ID); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *KVRepository) GetByEmployeeAndType(ctx context.Context, employeeID, typ string) (*schema.Biometric, error) {
	if err := r.validate(employeeID, typ); err != nil {
		return nil, nil
	}
	b, _, err := r.load(ctx, r.recordKey(employeeID, typ))
	return b, err
}

// GetByEmployee returns every template of the employee, ordered by type.
func (r *KVRepository) GetByEmployee(ctx context.Context, employeeID string) ([]*schema.Biometric, error) {
	if err := r.env.Keys.ValidateID(index.EntityEmployee, employeeID); err != nil {
		return []*schema.Biometric{}, nil
	}
	prefix := r.env.Keys.RecordPrefix(index.EntityBiometric, employeeID)
	keys, err := r.env.Store.List(ctx, prefix, 0)
	if err != nil {
		return nil, err
	}
	records := keys[:0]
	for _, k := range keys {
		if r.env.Keys.IsRecord(index.EntityBiometric, k, 2) {
			records = append(records, k)
		}
	}
	return index.Fetch(ctx, r.env, prefix, records, func(ctx context.Context, key string) (*schema.Biometric, error) {
		b, _, err := r.load(ctx, key)
		return b, err
	})
}

// records decodes every template whose record key passes keep, in key
// order. Data is left sealed.
func (r *KVRepository) records(ctx context.Context, keep func(key string) bool) ([]*schema.Biometric, error) {
	prefix := r.env.Keys.RecordPrefix(index.EntityBiometric)
	keys, err := r.env.Store.List(ctx, prefix, 0)
	if err != nil {
		return nil, err
	}
	matched := keys[:0]
	for _, k := range keys {
		if r.env.Keys.IsRecord(index.EntityBiometric, k, 2) && keep(k) {
			matched = append(matched, k)
		}
	}
	return index.Fetch(ctx, r.env, prefix, matched, func(ctx context.Context, key string) (*schema.Biometric, error) {
		b, _, _, err := r.raw(ctx, key)
		return b, err
	})
}

// GetByID returns the template with the given id, or nil. Records are
// keyed by employee and type, so the lookup scans them.
func (r *KVRepository) GetByID(ctx context.Context, id string) (*schema.Biometric, error) {
	if id == "" {
		return nil, nil
	}
	all, err := r.records(ctx, func(string) bool { return true })
	if err != nil {
		return nil, err
	}
	for _, b := range all {
		if b.ID == id {
			return r.open(b)
		}
	}
	return nil, nil
}

// GetByType returns the templates of typ whose ids are listed in the type
// group. Listed ids without a record are dropped.
func (r *KVRepository) GetByType(ctx context.Context, typ string) ([]*schema.Biometric, error) {
	if err := r.env.Keys.ValidateID(index.EntityBiometric, typ); err != nil {
		return []*schema.Biometric{}, nil
	}
	key := r.typeKey(typ)
	ids, err := r.env.Multi().Members(ctx, key)
	if err != nil || len(ids) == 0 {
		return []*schema.Biometric{}, err
	}

	suffix := r.typeSuffix(typ)
	candidates, err := r.records(ctx, func(k string) bool { return strings.HasSuffix(k, suffix) })
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*schema.Biometric, len(candidates))
	for _, b := range candidates {
		byID[b.ID] = b
	}

	out := make([]*schema.Biometric, 0, len(ids))
	for _, id := range ids {
		b, ok := byID[id]
		if !ok {
			r.env.Log.Warn(ctx, "stale index entry", "key", key, "id", id)
			continue
		}
		if b, err = r.open(b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Delete removes the template of (employeeID, typ). It reports false when
// there is none.
func (r *KVRepository) Delete(ctx context.Context, employeeID, typ string) (bool, error) {
	if err := r.validate(employeeID, typ); err != nil {
		return false, nil
	}
	key := r.recordKey(employeeID, typ)
	unlock := r.env.LockRecord(key)
	defer unlock()

	cur, prev, ok, err := r.raw(ctx, key)
	if err != nil || !ok {
		return false, err
	}

	j := r.env.Begin("biometrics.delete")
	if cur.ID != "" {
		if err := j.RemoveMember(ctx, r.typeKey(typ), cur.ID); err != nil {
			return false, err
		}
	}
	if err := j.DeleteRecord(ctx, key, prev); err != nil {
		return false, err
	}
	return true, nil
}

func (r *KVRepository) raw(ctx context.Context, key string) (*schema.Biometric, []byte, bool, error) {
	b, prev, err := index.Load[schema.Biometric](ctx, r.env.Store, key)
	return b, prev, b != nil, err
}

// DeleteByEmployee removes every template of the employee and returns how
// many were removed.
func (r *KVRepository) DeleteByEmployee(ctx context.Context, employeeID string) (int, error) {
	if err := r.env.Keys.ValidateID(index.EntityEmployee, employeeID); err != nil {
		return 0, nil
	}
	keys, err := r.env.Store.List(ctx, r.env.Keys.RecordPrefix(index.EntityBiometric, employeeID), 0)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, k := range keys {
		if !r.env.Keys.IsRecord(index.EntityBiometric, k, 2) {
			continue
		}
		b, _, ok, err := r.raw(ctx, k)
		if err != nil {
			return n, err
		}
		if !ok {
			continue
		}
		deleted, err := r.Delete(ctx, b.EmployeeID, b.Type)
		if err != nil {
			return n, err
		}
		if deleted {
			n++
		}
	}
	return n, nil
}
