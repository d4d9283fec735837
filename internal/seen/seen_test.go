package seen

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
)

func TestMemoryMarkIfNew(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()
	fresh, err := m.MarkIfNew(ctx, "Kedi")
	require.NoError(t, err)
	require.True(t, fresh)
	fresh, err = m.MarkIfNew(ctx, "Kedi")
	require.NoError(t, err)
	require.False(t, fresh)
	require.Equal(t, 1, m.Len())
}

func TestMemoryConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fresh, _ := m.MarkIfNew(context.Background(), "same")
			if fresh {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

type failingTracker struct{ calls int }

func (f *failingTracker) MarkIfNew(context.Context, string) (bool, error) {
	f.calls++
	return false, errors.New("unavailable")
}

func (f *failingTracker) Forget(context.Context, string) error {
	f.calls++
	return errors.New("unavailable")
}

func TestLayeredShortCircuits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	first := NewMemory()
	second := NewMemory()
	l := Layered{first, nil, second}

	fresh, err := l.MarkIfNew(ctx, "a")
	require.NoError(t, err)
	require.True(t, fresh)
	require.Equal(t, 1, second.Len())

	fresh, err = l.MarkIfNew(ctx, "a")
	require.NoError(t, err)
	require.False(t, fresh)

	_, _ = second.MarkIfNew(ctx, "b")
	fresh, err = l.MarkIfNew(ctx, "b")
	require.NoError(t, err)
	require.False(t, fresh)
	require.Equal(t, 2, first.Len())

	failing := &failingTracker{}
	_, err = Layered{NewMemory(), failing}.MarkIfNew(ctx, "c")
	require.Error(t, err)
	require.Equal(t, 1, failing.calls)

	var _ crawler.SeenTracker = l
}

func TestLayeredForgetClearsEveryLayer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	first, second := NewMemory(), NewMemory()
	l := Layered{first, nil, second}
	_, err := l.MarkIfNew(ctx, "Kedi")
	require.NoError(t, err)

	require.NoError(t, l.Forget(ctx, "Kedi"))
	require.Zero(t, first.Len())
	require.Zero(t, second.Len())

	fresh, err := l.MarkIfNew(ctx, "Kedi")
	require.NoError(t, err)
	require.True(t, fresh)

	failing := &failingTracker{}
	err = Layered{failing, first}.Forget(ctx, "Kedi")
	require.Error(t, err)
	require.Zero(t, first.Len())
}
