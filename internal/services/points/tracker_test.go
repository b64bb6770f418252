package points

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	calls   atomic.Int32
	balance atomic.Int32
	fail    atomic.Bool
}

func (s *stubSource) Balance(context.Context) (int, error) {
	s.calls.Add(1)
	if s.fail.Load() {
		return 0, errors.New("unavailable")
	}
	return int(s.balance.Load()), nil
}

func TestTracker_RefreshAndDeduct(t *testing.T) {
	src := &stubSource{}
	src.balance.Store(12)

	var mu sync.Mutex
	var seen []int
	tr := NewTracker(src, OnChange(func(b int) {
		mu.Lock()
		seen = append(seen, b)
		mu.Unlock()
	}))

	_, known := tr.Balance()
	assert.False(t, known)

	got, err := tr.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, got)

	assert.Equal(t, 7, tr.Deduct(5))
	assert.Equal(t, 0, tr.Deduct(50), "never below zero")

	src.fail.Store(true)
	_, err = tr.Refresh(context.Background())
	assert.Error(t, err)
	balance, known := tr.Balance()
	assert.True(t, known)
	assert.Equal(t, 0, balance, "failed refresh keeps the cached value")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{12, 7, 0}, seen)
}

func TestTracker_RunRefreshesUntilCancelled(t *testing.T) {
	src := &stubSource{}
	src.balance.Store(3)
	tr := NewTracker(src, WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	require.Eventually(t, func() bool { return src.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	balance, known := tr.Balance()
	assert.True(t, known)
	assert.Equal(t, 3, balance)
}
