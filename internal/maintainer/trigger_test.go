package maintainer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingStarter struct {
	calls atomic.Int32
}

func (s *countingStarter) Start(_ context.Context) (uint64, error) {
	n := s.calls.Add(1)
	if n%2 == 0 {
		return 0, ErrPassInProgress
	}
	return uint64(n), nil
}

func TestTrigger_NextDaily(t *testing.T) {
	tr, err := NewTrigger(&countingStarter{}, TriggerConfig{DailyAt: "00:00"}, getTestLogger().Sugar())
	require.NoError(t, err)

	now := time.Date(2024, 3, 10, 13, 45, 0, 0, time.UTC)
	require.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), tr.nextDaily(now))

	midnight := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), tr.nextDaily(midnight))

	tr, err = NewTrigger(&countingStarter{}, TriggerConfig{DailyAt: "18:30"}, getTestLogger().Sugar())
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 10, 18, 30, 0, 0, time.UTC), tr.nextDaily(now))

	_, err = NewTrigger(&countingStarter{}, TriggerConfig{DailyAt: "25:00"}, getTestLogger().Sugar())
	require.Error(t, err)
	_, err = NewTrigger(&countingStarter{}, TriggerConfig{Interval: -time.Second}, getTestLogger().Sugar())
	require.Error(t, err)
}

func TestTrigger_Interval(t *testing.T) {
	starter := &countingStarter{}
	tr, err := NewTrigger(starter, TriggerConfig{Interval: 10 * time.Millisecond}, getTestLogger().Sugar())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- tr.Run(ctx) }()

	require.Eventually(t, func() bool { return starter.calls.Load() >= 3 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-errc)
}

func TestTrigger_DailyUsesClock(t *testing.T) {
	starter := &countingStarter{}
	tr, err := NewTrigger(starter, TriggerConfig{DailyAt: "18:00"}, getTestLogger().Sugar())
	require.NoError(t, err)
	// the trigger clock is far from wall time, 10ms short of the daily fire
	tr.now = func() time.Time { return time.Date(3000, 1, 1, 17, 59, 59, 990_000_000, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- tr.Run(ctx) }()

	require.Eventually(t, func() bool { return starter.calls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-errc)
	require.EqualValues(t, 1, starter.calls.Load())
}

func TestTrigger_Disabled(t *testing.T) {
	starter := &countingStarter{}
	tr, err := NewTrigger(starter, TriggerConfig{}, getTestLogger().Sugar())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, tr.Run(ctx))
	require.EqualValues(t, 0, starter.calls.Load())
}
