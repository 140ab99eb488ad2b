package index

import (
	"time"

	"github.com/celerix-dev/celerix-hr/internal/logging"
	"github.com/celerix-dev/celerix-hr/pkg/engine"
	"github.com/google/uuid"
)

const (
	// DefaultMaxGroupSize bounds the number of ids a multi index group holds.
	DefaultMaxGroupSize = 10000
	// DefaultFetchConcurrency bounds parallel record reads in fan-out queries.
	DefaultFetchConcurrency = 8
)

// Env carries the collaborators shared by every repository built over one
// store. Fields may be replaced after NewEnv and before first use.
type Env struct {
	Store engine.Store
	Keys  Keyspace
	Locks Locker
	Log   logging.Logger

	Now   func() time.Time
	NewID func() string

	MaxGroupSize     int
	FetchConcurrency int
}

// NewEnv returns an Env over store with the namespaced layout, in-process
// key locks, a discarding logger and default bounds.
func NewEnv(store engine.Store) *Env {
	return &Env{
		Store:            store,
		Keys:             Namespaced{},
		Locks:            NewKeyedMutex(),
		Log:              logging.Discard(),
		Now:              time.Now,
		NewID:            uuid.NewString,
		MaxGroupSize:     DefaultMaxGroupSize,
		FetchConcurrency: DefaultFetchConcurrency,
	}
}

// Stamp returns the current time in UTC, truncated to milliseconds like
// the timestamps in legacy records.
func (e *Env) Stamp() time.Time {
	return e.Now().UTC().Truncate(time.Millisecond)
}

// Unique returns the unique index helper for this Env.
func (e *Env) Unique() Unique { return Unique{env: e} }

// Multi returns the multi index helper for this Env.
func (e *Env) Multi() Multi { return Multi{env: e} }

func (e *Env) maxGroup() int {
	if e.MaxGroupSize <= 0 {
		return DefaultMaxGroupSize
	}
	return e.MaxGroupSize
}

func (e *Env) fetchLimit() int {
	if e.FetchConcurrency <= 0 {
		return DefaultFetchConcurrency
	}
	return e.FetchConcurrency
}

// LockRecord serializes mutations of the primary record under key. Index
// locks may be taken while it is held, never the other way round.
func (e *Env) LockRecord(key string) (unlock func()) {
	return e.Locks.Lock(key)
}

// RecordBusy reports whether another mutation of the record under key is in
// flight in this process. Lockers that cannot tell report false.
func (e *Env) RecordBusy(key string) bool {
	b, ok := e.Locks.(interface{ Busy(key string) bool })
	return ok && b.Busy(key)
}
