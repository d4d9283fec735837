package crawler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatsRecordCountsEveryOutcome(t *testing.T) {
	t.Parallel()

	s := NewStats()
	s.Record(OutcomeNew)
	s.Record(OutcomeNew)
	s.Record(OutcomeUpdated)
	s.Record(OutcomeSkipped)
	s.Record(OutcomeError)
	s.AddError()

	require.Equal(t, StatsSnapshot{
		Processed: 5,
		New:       2,
		Updated:   1,
		Skipped:   1,
		Errors:    2,
	}, s.Snapshot())
}

func TestStatsConcurrentIncrementsAreExact(t *testing.T) {
	t.Parallel()

	s := NewStats()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				s.Record(OutcomeNew)
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	require.EqualValues(t, 4000, snap.Processed)
	require.EqualValues(t, 4000, snap.New)
}

func TestStatsSnapshotAdd(t *testing.T) {
	t.Parallel()

	a := StatsSnapshot{Processed: 2, New: 1, Skipped: 1}
	b := StatsSnapshot{Processed: 3, Updated: 2, Errors: 1}
	require.Equal(t, StatsSnapshot{Processed: 5, New: 1, Updated: 2, Skipped: 1, Errors: 1}, a.Add(b))
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "new", OutcomeNew.String())
	require.Equal(t, "updated", OutcomeUpdated.String())
	require.Equal(t, "skipped", OutcomeSkipped.String())
	require.Equal(t, "error", OutcomeError.String())
	require.Equal(t, "outcome(42)", Outcome(42).String())
}

func TestParseSourceType(t *testing.T) {
	t.Parallel()

	cases := map[string]SourceType{
		"":                   SourceCategory,
		"category":           SourceCategory,
		"wikipedia_category": SourceCategory,
		"random":             SourceRandom,
		"wikipedia_random":   SourceRandom,
	}
	for raw, want := range cases {
		got, err := ParseSourceType(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}
	_, err := ParseSourceType("rss")
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestProgress(t *testing.T) {
	t.Parallel()

	p := NewProgress(50, 200)
	require.InDelta(t, 25.0, p.Percent, 0.001)
	require.False(t, p.Reached())
	require.True(t, NewProgress(200, 200).Reached())
	require.Zero(t, NewProgress(10, 0).Percent)
	require.False(t, NewProgress(10, 0).Reached())
	require.Equal(t, "50/200 (25.0%)", p.String())
}
