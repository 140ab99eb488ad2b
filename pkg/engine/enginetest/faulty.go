// Package enginetest provides Store wrappers for exercising failure paths.
package enginetest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/celerix-dev/celerix-hr/pkg/engine"
)

// ErrInjected is the cause of every failure produced by Faulty.
var ErrInjected = errors.New("injected failure")

// Operation names passed to fault rules.
const (
	OpGet    = "get"
	OpPut    = "put"
	OpDelete = "delete"
	OpList   = "list"
)

// Rule decides whether a call fails.
type Rule func(op, key string) bool

// On matches calls of op whose key contains substr.
func On(op, substr string) Rule {
	return func(o, key string) bool {
		return o == op && strings.Contains(key, substr)
	}
}

// Faulty wraps a Store and fails the calls matching its rules with an
// ErrUnavailable error wrapping ErrInjected. It records every call.
type Faulty struct {
	engine.Store

	mu    sync.Mutex
	rules []Rule
	calls []string
}

func NewFaulty(s engine.Store) *Faulty {
	return &Faulty{Store: s}
}

// Fail adds a rule.
func (f *Faulty) Fail(r Rule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, r)
}

// Reset drops every rule and the call log.
func (f *Faulty) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = nil
	f.calls = nil
}

// Calls returns the recorded calls as "op key".
func (f *Faulty) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Faulty) check(op, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op+" "+key)
	for _, r := range f.rules {
		if r(op, key) {
			return engine.Unavailable(op, key, ErrInjected)
		}
	}
	return nil
}

func (f *Faulty) Get(ctx context.Context, key string) ([]byte, error) {
	if err := f.check(OpGet, key); err != nil {
		return nil, err
	}
	return f.Store.Get(ctx, key)
}

func (f *Faulty) Put(ctx context.Context, key string, value []byte) error {
	if err := f.check(OpPut, key); err != nil {
		return err
	}
	return f.Store.Put(ctx, key, value)
}

func (f *Faulty) Delete(ctx context.Context, key string) error {
	if err := f.check(OpDelete, key); err != nil {
		return err
	}
	return f.Store.Delete(ctx, key)
}

func (f *Faulty) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	if err := f.check(OpList, prefix); err != nil {
		return nil, err
	}
	return f.Store.List(ctx, prefix, limit)
}
