// Package engine defines the key-value storage contract used by the Celerix HR
// data layer, together with its embedded backends.
package engine

import (
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is returned by Get when a key does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrUnavailable marks a failure of the backend itself (I/O, network,
	// database). Callers match it with errors.Is; nothing retries it.
	ErrUnavailable = errors.New("store unavailable")
)

// Store is the primary interface for interacting with a key-value backend.
// The embedded engine, the SQL backends and the remote network client all
// implement this contract. No operation spans more than one key atomically.
type Store interface {
	// Get retrieves the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns the keys starting with prefix in ascending byte order.
	// A limit <= 0 means no limit.
	List(ctx context.Context, prefix string, limit int) ([]string, error)
}

// Unavailable wraps err so that it matches ErrUnavailable while keeping the
// original cause inspectable.
func Unavailable(op, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return &unavailableError{op: op, key: key, err: err}
}

type unavailableError struct {
	op  string
	key string
	err error
}

func (e *unavailableError) Error() string {
	if e.key == "" {
		return e.op + ": " + ErrUnavailable.Error() + ": " + e.err.Error()
	}
	return e.op + " " + e.key + ": " + ErrUnavailable.Error() + ": " + e.err.Error()
}

func (e *unavailableError) Unwrap() []error { return []error{ErrUnavailable, e.err} }
