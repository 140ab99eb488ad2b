package enginetest

import (
	"context"
	"sync"

	"github.com/celerix-dev/celerix-hr/pkg/engine"
)

// Hooked runs a function once, just before the first call matching a rule
// reaches the wrapped Store. It lets tests interleave another operation at
// an exact point of a multi-step write.
type Hooked struct {
	engine.Store

	mu    sync.Mutex
	hooks []*hook
}

type hook struct {
	match Rule
	fn    func()
	fired bool
}

func NewHooked(s engine.Store) *Hooked {
	return &Hooked{Store: s}
}

// Before registers fn to run once before the first call matching r.
func (h *Hooked) Before(r Rule, fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, &hook{match: r, fn: fn})
}

func (h *Hooked) fire(op, key string) {
	h.mu.Lock()
	var run []func()
	for _, hk := range h.hooks {
		if !hk.fired && hk.match(op, key) {
			hk.fired = true
			run = append(run, hk.fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range run {
		fn()
	}
}

func (h *Hooked) Get(ctx context.Context, key string) ([]byte, error) {
	h.fire(OpGet, key)
	return h.Store.Get(ctx, key)
}

func (h *Hooked) Put(ctx context.Context, key string, value []byte) error {
	h.fire(OpPut, key)
	return h.Store.Put(ctx, key, value)
}

func (h *Hooked) Delete(ctx context.Context, key string) error {
	h.fire(OpDelete, key)
	return h.Store.Delete(ctx, key)
}

func (h *Hooked) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	h.fire(OpList, prefix)
	return h.Store.List(ctx, prefix, limit)
}
