// Package points reads the points balance and ledger and keeps a cached
// balance fresh for the UI.
package points

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"aiplatform/internal/models"
	"aiplatform/internal/pipeline"
	"aiplatform/internal/services/envelope"
)

const DefaultLowBalanceThreshold = 50

type Service struct {
	requester    envelope.Requester
	errors       envelope.ErrorHandler
	lowThreshold int
}

type Option func(*Service)

// WithLowBalanceThreshold sets the balance under which IsLow reports true.
func WithLowBalanceThreshold(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.lowThreshold = n
		}
	}
}

func New(requester envelope.Requester, errs envelope.ErrorHandler, opts ...Option) (*Service, error) {
	if requester == nil {
		return nil, errors.New("requester is required")
	}
	if errs == nil {
		return nil, errors.New("error handler is required")
	}
	s := &Service{requester: requester, errors: errs, lowThreshold: DefaultLowBalanceThreshold}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Balance returns the server-side balance.
func (s *Service) Balance(ctx context.Context) (int, error) {
	return envelope.Call[int](ctx, s.requester, s.errors, pipeline.NewRequest(http.MethodGet, "/user/points", nil))
}

// Costs returns the point cost of each function.
func (s *Service) Costs(ctx context.Context) (map[string]int, error) {
	return envelope.Call[map[string]int](ctx, s.requester, s.errors, pipeline.NewRequest(http.MethodGet, "/ai/functions/points", nil))
}

// CanAfford reports whether the balance covers one call of function, along
// with its cost. Unknown functions are never affordable.
func (s *Service) CanAfford(ctx context.Context, function string) (bool, int, error) {
	balance, err := s.Balance(ctx)
	if err != nil {
		return false, 0, err
	}
	costs, err := s.Costs(ctx)
	if err != nil {
		return false, 0, err
	}
	cost, ok := costs[function]
	if !ok {
		return false, 0, nil
	}
	return balance >= cost, cost, nil
}

// IsLow reports whether balance is under the low-balance threshold.
func (s *Service) IsLow(balance int) bool {
	return balance < s.lowThreshold
}

// Transactions returns one page of the ledger, newest first. Page is 1-based.
func (s *Service) Transactions(ctx context.Context, page, size int) (models.TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	return envelope.Call[models.TransactionPage](ctx, s.requester, s.errors,
		pipeline.NewRequest(http.MethodGet, "/user/transactions", nil, pipeline.WithQuery(q)))
}

// Filter narrows a ledger page by type and date range. Empty typ and zero
// bounds match everything.
type Filter struct {
	Type  models.TransactionType
	From  time.Time
	Until time.Time
}

func (f Filter) match(t models.Transaction) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if !f.From.IsZero() && t.CreatedAt.Before(f.From) {
		return false
	}
	if !f.Until.IsZero() && t.CreatedAt.After(f.Until) {
		return false
	}
	return true
}

// Apply returns the transactions matching f.
func (f Filter) Apply(txs []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, 0, len(txs))
	for _, t := range txs {
		if f.match(t) {
			out = append(out, t)
		}
	}
	return out
}

// Summary totals a set of ledger entries.
type Summary struct {
	Consumed  int
	Recharged int
	Balance   int
}

// Summarize adds up consumption and recharges. Balance is the balance after
// the most recent entry.
func Summarize(txs []models.Transaction) Summary {
	var sum Summary
	var latest time.Time
	for _, t := range txs {
		switch t.Type {
		case models.TransactionConsume:
			sum.Consumed += abs(t.Amount)
		case models.TransactionRecharge, models.TransactionBonus, models.TransactionRefund:
			sum.Recharged += abs(t.Amount)
		}
		if latest.IsZero() || !t.CreatedAt.Before(latest) {
			latest = t.CreatedAt.Time
			sum.Balance = t.BalanceAfter
		}
	}
	return sum
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
