package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Call is one branch of a batch.
type Call func(ctx context.Context) (*Response, error)

// Batch runs calls concurrently and returns every response in order, or the
// first error once all branches have finished. A failing branch does not
// cancel the others.
func (c *Client) Batch(ctx context.Context, calls ...Call) ([]*Response, error) {
	fns := make([]func(context.Context) (*Response, error), len(calls))
	for i, call := range calls {
		fns[i] = call
	}
	return All(ctx, fns...)
}

// All is the typed form of Batch.
func All[T any](ctx context.Context, fns ...func(context.Context) (T, error)) ([]T, error) {
	results := make([]T, len(fns))
	var g errgroup.Group
	for i, fn := range fns {
		g.Go(func() error {
			v, err := fn(ctx)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Result is the settled outcome of one branch.
type Result[T any] struct {
	Value T
	Err   error
}

// Settle runs fns concurrently and reports every outcome in order.
func Settle[T any](ctx context.Context, fns ...func(context.Context) (T, error)) []Result[T] {
	results := make([]Result[T], len(fns))
	var g errgroup.Group
	for i, fn := range fns {
		g.Go(func() error {
			v, err := fn(ctx)
			results[i] = Result[T]{Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
