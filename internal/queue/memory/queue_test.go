package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan crawler.Title, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), crawler.Title{Name: "Kedi", Source: "animals"}))
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		require.Equal(t, "Kedi", got.Name)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return title")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewQueue(1).Dequeue(ctx)
	require.EqualError(t, err, "dequeue canceled: context canceled")

	primed := NewQueue(1)
	require.NoError(t, primed.Enqueue(context.Background(), crawler.Title{Name: "primed"}))
	err = primed.Enqueue(ctx, crawler.Title{})
	require.EqualError(t, err, "enqueue canceled: context canceled")

	_, err = primed.Dequeue(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, primed.Len())
}

func TestFillDrainsThenCloses(t *testing.T) {
	t.Parallel()

	titles := []crawler.Title{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	q, err := Fill(context.Background(), titles)
	require.NoError(t, err)
	require.Equal(t, 3, q.Len())

	var got []string
	for {
		item, err := q.Dequeue(context.Background())
		if errors.Is(err, ErrClosed) {
			break
		}
		require.NoError(t, err)
		got = append(got, item.Name)
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
	q.Close()
}
