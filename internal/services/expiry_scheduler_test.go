package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (s *countingSweeper) SweepExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, now)
	if s.err != nil {
		return 0, s.err
	}
	return 3, nil
}

func (s *countingSweeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestExpiryScheduler_RunOnce(t *testing.T) {
	sweeper := &countingSweeper{}
	sched := NewExpiryScheduler(sweeper, &fakeClock{now: baseTime}, "@every 1m")

	n, err := sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.Len(t, sweeper.calls, 1)
	assert.True(t, sweeper.calls[0].Equal(baseTime))

	sweeper.err = errors.New("db down")
	_, err = sched.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestExpiryScheduler_InvalidCron(t *testing.T) {
	sched := NewExpiryScheduler(&countingSweeper{}, nil, "not a cron")

	require.Error(t, sched.Start())
	assert.False(t, sched.IsRunning())
	assert.True(t, sched.NextRun().IsZero())
}

func TestExpiryScheduler_StartStop(t *testing.T) {
	sweeper := &countingSweeper{}
	sched := NewExpiryScheduler(sweeper, nil, "@every 1s")

	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning())
	assert.False(t, sched.NextRun().IsZero())
	assert.Error(t, sched.Start(), "second start must fail")

	assert.Eventually(t, func() bool { return sweeper.count() > 0 }, 5*time.Second, 50*time.Millisecond)

	sched.Stop()
	assert.False(t, sched.IsRunning())
	sched.Stop()
}
