package pipeline

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"
)

func (s *PipelineSuite) TestBatch() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/broken":
			w.WriteHeader(http.StatusNotFound)
		default:
			_, _ = w.Write([]byte(r.URL.Path))
		}
	}
	c := s.newClient()

	s.Run("returns responses in call order", func() {
		resps, err := c.Batch(s.ctx,
			func(ctx context.Context) (*Response, error) { return c.Get(ctx, "/a") },
			func(ctx context.Context) (*Response, error) { return c.Get(ctx, "/b") },
			func(ctx context.Context) (*Response, error) { return c.Get(ctx, "/c") },
		)
		s.Require().NoError(err)
		s.Require().Len(resps, 3)
		s.Equal("/api/a", string(resps[0].Body))
		s.Equal("/api/b", string(resps[1].Body))
		s.Equal("/api/c", string(resps[2].Body))
	})

	s.Run("one failure fails the batch without cancelling siblings", func() {
		var finished atomic.Int32
		_, err := c.Batch(s.ctx,
			func(ctx context.Context) (*Response, error) { return c.Get(ctx, "/broken") },
			func(ctx context.Context) (*Response, error) {
				time.Sleep(20 * time.Millisecond)
				resp, err := c.Get(ctx, "/slow")
				if err == nil {
					finished.Add(1)
				}
				return resp, err
			},
		)
		var httpErr *HTTPError
		s.Require().ErrorAs(err, &httpErr)
		s.Equal(http.StatusNotFound, httpErr.StatusCode)
		s.Equal(int32(1), finished.Load())
	})
}

func (s *PipelineSuite) TestSettle() {
	boom := errors.New("boom")
	results := Settle(s.ctx,
		func(context.Context) (int, error) { return 1, nil },
		func(context.Context) (int, error) { return 0, boom },
		func(context.Context) (int, error) { return 3, nil },
	)

	s.Require().Len(results, 3)
	s.Equal(1, results[0].Value)
	s.ErrorIs(results[1].Err, boom)
	s.Equal(3, results[2].Value)
}
