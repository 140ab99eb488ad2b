package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/celerix-dev/celerix-hr/pkg/engine"
)

// GetRaw reads key, reporting false instead of an error when it is absent.
func GetRaw(ctx context.Context, s engine.Store, key string) ([]byte, bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, engine.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// Decode unmarshals a stored JSON value.
func Decode[T any](key string, raw []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return &v, nil
}

// Load reads and decodes the record under key. It returns the raw bytes too
// so callers can restore them on rollback. A missing key yields nil, nil, nil.
func Load[T any](ctx context.Context, s engine.Store, key string) (*T, []byte, error) {
	raw, ok, err := GetRaw(ctx, s, key)
	if err != nil || !ok {
		return nil, nil, err
	}
	v, err := Decode[T](key, raw)
	if err != nil {
		return nil, nil, err
	}
	return v, raw, nil
}

// Encode marshals v for storage.
func Encode(key string, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return raw, nil
}
