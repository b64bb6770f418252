package points

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// BalanceSource fetches the authoritative balance.
type BalanceSource interface {
	Balance(ctx context.Context) (int, error)
}

// Tracker caches the balance for display. Deduct applies an optimistic
// change after a call; Refresh and Run replace it with the server value.
type Tracker struct {
	source   BalanceSource
	interval time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	balance int
	known   bool

	listeners []func(int)
}

type TrackerOption func(*Tracker)

func WithInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

func WithTrackerLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// OnChange registers fn to be called with each new balance.
func OnChange(fn func(balance int)) TrackerOption {
	return func(t *Tracker) {
		t.listeners = append(t.listeners, fn)
	}
}

func NewTracker(source BalanceSource, opts ...TrackerOption) *Tracker {
	t := &Tracker{source: source, interval: 30 * time.Second, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Balance returns the cached balance and whether it has been loaded.
func (t *Tracker) Balance() (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balance, t.known
}

// Refresh replaces the cached balance with the server value. On failure the
// cached value is kept.
func (t *Tracker) Refresh(ctx context.Context) (int, error) {
	balance, err := t.source.Balance(ctx)
	if err != nil {
		return 0, err
	}
	t.set(balance)
	return balance, nil
}

// Deduct lowers the cached balance by amount, never below zero.
func (t *Tracker) Deduct(amount int) int {
	t.mu.Lock()
	t.balance = max(0, t.balance-amount)
	balance := t.balance
	t.mu.Unlock()
	t.notify(balance)
	return balance
}

func (t *Tracker) set(balance int) {
	t.mu.Lock()
	t.balance = balance
	t.known = true
	t.mu.Unlock()
	t.notify(balance)
}

func (t *Tracker) notify(balance int) {
	for _, fn := range t.listeners {
		fn(balance)
	}
}

// Run refreshes immediately and then on every interval until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		if _, err := t.Refresh(ctx); err != nil && ctx.Err() == nil {
			t.logger.DebugContext(ctx, "points refresh failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
