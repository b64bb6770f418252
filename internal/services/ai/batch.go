package ai

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"aiplatform/internal/errorhandler"
	"aiplatform/pkg/apierror"
)

// Job is one function call in a batch.
type Job struct {
	Function string
	Input    string
}

// JobResult is the outcome of one Job.
type JobResult struct {
	Job      Job
	Output   string
	Err      *apierror.StandardError
	Duration time.Duration
}

// BatchReport summarizes ExecuteBatch.
type BatchReport struct {
	Results   []JobResult
	Succeeded int
	Failed    int
}

// ExecuteBatch runs jobs concurrently, bounded by the batch limit. Failures
// are logged without toasts and do not stop the other jobs; results keep
// the order of jobs.
func (s *Service) ExecuteBatch(ctx context.Context, jobs []Job) BatchReport {
	// Warm the catalog once so the jobs don't race to fetch it.
	_, _ = s.Functions(ctx, errorhandler.Silent())

	results := make([]JobResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(s.batchLimit)
	for i, job := range jobs {
		g.Go(func() error {
			start := s.now()
			out, err := s.Process(ctx, job.Function, job.Input, errorhandler.Silent())
			res := JobResult{Job: job, Output: out, Duration: s.now().Sub(start)}
			if err != nil {
				res.Err = apierror.Normalize(ctx, err)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	report := BatchReport{Results: results}
	for _, r := range results {
		if r.Err != nil {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}
	s.logger.InfoContext(ctx, "ai batch finished", "jobs", len(jobs), "succeeded", report.Succeeded, "failed", report.Failed)
	return report
}
