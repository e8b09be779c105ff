package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSyncer struct {
	n atomic.Int32
}

func (c *countingSyncer) Sync(context.Context) { c.n.Add(1) }

type fakeSession struct {
	in atomic.Bool
}

func (f *fakeSession) SignedIn() bool { return f.in.Load() }

func start(t *testing.T, s *Scheduler) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return func() error {
		cancel()
		return <-done
	}
}

func TestRun_SyncsAtStartupWhenSignedIn(t *testing.T) {
	sy := &countingSyncer{}
	sess := &fakeSession{}
	sess.in.Store(true)

	var initCalls atomic.Int32
	s := New(sy, sess, WithInterval(time.Hour), WithInit(func(context.Context) error {
		initCalls.Add(1)
		return nil
	}))
	stop := start(t, s)

	require.Eventually(t, func() bool { return sy.n.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, stop())
	assert.Equal(t, int32(1), initCalls.Load())
	assert.Equal(t, int32(1), sy.n.Load())
}

func TestRun_NoStartupSyncWhenSignedOut(t *testing.T) {
	sy := &countingSyncer{}
	stop := start(t, New(sy, &fakeSession{}, WithInterval(time.Hour)))

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, stop())
	assert.Zero(t, sy.n.Load())
}

func TestRun_IntervalFollowsSession(t *testing.T) {
	sy := &countingSyncer{}
	sess := &fakeSession{}
	stop := start(t, New(sy, sess, WithInterval(5*time.Millisecond)))
	defer stop()

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, sy.n.Load(), "no syncs while signed out")

	sess.in.Store(true)
	require.Eventually(t, func() bool { return sy.n.Load() >= 3 }, time.Second, 5*time.Millisecond)

	sess.in.Store(false)
	time.Sleep(15 * time.Millisecond)
	settled := sy.n.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, sy.n.Load())
}

func TestRun_InitFailure(t *testing.T) {
	sy := &countingSyncer{}
	sess := &fakeSession{}
	sess.in.Store(true)

	s := New(sy, sess, WithInit(func(context.Context) error { return errors.New("disk full") }))
	err := s.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Zero(t, sy.n.Load())
}
