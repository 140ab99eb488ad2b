package enginetest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/celerix-dev/celerix-hr/pkg/engine"
)

// Barrier holds the first n reads of one key until all n have arrived. It
// forces concurrent read-modify-writes of that key to start from the same
// value.
type Barrier struct {
	engine.Store

	key     string
	n       int32
	arrived atomic.Int32
	wg      sync.WaitGroup
}

func NewBarrier(s engine.Store, key string, n int) *Barrier {
	b := &Barrier{Store: s, key: key, n: int32(n)}
	b.wg.Add(n)
	return b
}

func (b *Barrier) Get(ctx context.Context, key string) ([]byte, error) {
	if key == b.key && b.arrived.Add(1) <= b.n {
		b.wg.Done()
		b.wg.Wait()
	}
	return b.Store.Get(ctx, key)
}
