package engine

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemStore is the thread-safe in-process engine.
type MemStore struct {
	mu        sync.RWMutex
	data      map[string][]byte
	persister *Persistence
	wg        sync.WaitGroup
	// saveMu orders background snapshots so an older one never lands last.
	saveMu  sync.Mutex
	version uint64
	saved   uint64
}

// NewMemStore initializes a store.
// It accepts existing data (from LoadAll) and an optional persister.
func NewMemStore(initialData map[string][]byte, p *Persistence) *MemStore {
	if initialData == nil {
		initialData = make(map[string][]byte)
	}
	return &MemStore{
		data:      initialData,
		persister: p,
	}
}

// Wait waits for all background persistence tasks to complete.
func (m *MemStore) Wait() {
	m.wg.Wait()
}

// Len reports the number of keys currently held.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *MemStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, Unavailable("get", key, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return cloneBytes(val), nil
}

func (m *MemStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return Unavailable("put", key, err)
	}

	m.mu.Lock()
	m.data[key] = cloneBytes(value)
	m.scheduleSaveLocked()
	m.mu.Unlock()
	return nil
}

func (m *MemStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return Unavailable("delete", key, err)
	}

	m.mu.Lock()
	if _, ok := m.data[key]; ok {
		delete(m.data, key)
		m.scheduleSaveLocked()
	}
	m.mu.Unlock()
	return nil
}

func (m *MemStore) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, Unavailable("list", prefix, err)
	}

	m.mu.RLock()
	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

// Snapshot returns a deep copy of every key and value.
func (m *MemStore) Snapshot() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyDataLocked()
}

// scheduleSaveLocked must be called while holding m.mu.Lock.
func (m *MemStore) scheduleSaveLocked() {
	if m.persister == nil {
		return
	}
	m.version++
	version := m.version
	data := m.copyDataLocked()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.saveMu.Lock()
		defer m.saveMu.Unlock()
		if version <= m.saved {
			return
		}
		if err := m.persister.Save(data); err != nil {
			m.persister.logf("snapshot %d failed: %v", version, err)
			return
		}
		m.saved = version
	}()
}

// copyDataLocked must be called while holding m.mu.Lock or m.mu.RLock.
func (m *MemStore) copyDataLocked() map[string][]byte {
	out := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		out[k] = cloneBytes(v)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
