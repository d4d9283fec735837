// Package seen filters titles that were already fetched in this run or, when layered
// with a shared tracker, in a recent run.
package seen

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
)

// Memory tracks keys for the lifetime of the process.
type Memory struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewMemory returns an empty tracker.
func NewMemory() *Memory {
	return &Memory{keys: make(map[string]struct{})}
}

// MarkIfNew records key and reports whether it was absent.
func (m *Memory) MarkIfNew(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = struct{}{}
	return true, nil
}

// Forget drops key.
func (m *Memory) Forget(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

// Layered consults trackers in order and stops at the first that has seen the key.
// Later trackers are only hit for keys new to every earlier one.
type Layered []crawler.SeenTracker

// MarkIfNew implements crawler.SeenTracker.
func (l Layered) MarkIfNew(ctx context.Context, key string) (bool, error) {
	for _, t := range l {
		if t == nil {
			continue
		}
		fresh, err := t.MarkIfNew(ctx, key)
		if err != nil {
			return false, err
		}
		if !fresh {
			return false, nil
		}
	}
	return true, nil
}

// Forget drops key from every layer, attempting all of them.
func (l Layered) Forget(ctx context.Context, key string) error {
	var errs []error
	for _, t := range l {
		if t == nil {
			continue
		}
		if err := t.Forget(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
