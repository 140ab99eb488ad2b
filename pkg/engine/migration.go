package engine

import (
	"context"
	"errors"
	"fmt"
)

// Migrate copies every key from src to dst and returns the number of keys
// copied. This works for:
// - Embedded -> SQL or Remote (the "Upgrade")
// - Remote -> Embedded (the "Backup/Offline")
// Keys deleted from src while the copy runs are skipped.
func Migrate(ctx context.Context, src Store, dst Store) (int, error) {
	keys, err := src.List(ctx, "", 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list keys: %w", err)
	}

	copied := 0
	for _, k := range keys {
		val, err := src.Get(ctx, k)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return copied, fmt.Errorf("failed to read key %s: %w", k, err)
		}

		if err := dst.Put(ctx, k, val); err != nil {
			return copied, fmt.Errorf("failed to set key %s in destination: %w", k, err)
		}
		copied++
	}

	return copied, nil
}
