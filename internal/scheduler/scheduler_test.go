package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInterval(t *testing.T) {
	_, err := New(Options{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestNextTickAligned(t *testing.T) {
	s, err := New(Options{Interval: 24 * time.Hour, AlignToStart: true}, zerolog.Nop())
	require.NoError(t, err)

	now := time.Date(2024, 3, 5, 13, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), s.nextTick(now))
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), s.slotStart(now))

	midnight := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, midnight.Add(24*time.Hour), s.nextTick(midnight))
}

func TestNextTickUnaligned(t *testing.T) {
	s, err := New(Options{Interval: time.Hour}, zerolog.Nop())
	require.NoError(t, err)

	now := time.Date(2024, 3, 5, 13, 45, 0, 0, time.UTC)
	assert.Equal(t, now.Add(time.Hour), s.nextTick(now))
	assert.Equal(t, now, s.slotStart(now))
}

func TestRunStopsAfterMaxRuns(t *testing.T) {
	s, err := New(Options{Interval: 10 * time.Millisecond, RunOnStart: true, MaxRuns: 3}, zerolog.Nop())
	require.NoError(t, err)

	calls := 0
	err = s.Run(context.Background(), func(ctx context.Context, asOf time.Time) error {
		calls++
		if calls == 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRunHonoursCancellation(t *testing.T) {
	s, err := New(Options{Interval: time.Hour, StartupDelay: time.Hour}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Run(ctx, func(ctx context.Context, asOf time.Time) error {
		t.Fatal("job must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
