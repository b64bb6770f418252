package report

import (
	"math/rand/v2"
	"sync"

	"aiplatform/pkg/apierror"
)

// Sampler keeps a fraction of reports per severity level.
type Sampler struct {
	mu          sync.RWMutex
	defaultRate float64
	rateByLevel map[apierror.Level]float64
}

// NewSampler creates a sampler. Rates are clamped to [0, 1].
func NewSampler(defaultRate float64) *Sampler {
	return &Sampler{
		defaultRate: clamp(defaultRate),
		rateByLevel: make(map[apierror.Level]float64),
	}
}

// SetRate overrides the rate for one level.
func (s *Sampler) SetRate(level apierror.Level, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateByLevel[level] = clamp(rate)
}

// ShouldSample reports whether a report at level is kept.
func (s *Sampler) ShouldSample(level apierror.Level) bool {
	s.mu.RLock()
	rate, ok := s.rateByLevel[level]
	if !ok {
		rate = s.defaultRate
	}
	s.mu.RUnlock()

	switch {
	case rate >= 1:
		return true
	case rate <= 0:
		return false
	default:
		return rand.Float64() < rate //nolint:gosec // sampling doesn't need crypto rand
	}
}

func clamp(rate float64) float64 {
	if rate < 0 {
		return 0
	}
	if rate > 1 {
		return 1
	}
	return rate
}
