package telemetry

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterStore hands out one token bucket per device id.
type RateLimiterStore struct {
	limiters     map[string]*rate.Limiter
	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewRateLimiterStore returns nil when perSecond is zero, which disables limiting.
func NewRateLimiterStore(perSecond float64, burst int) *RateLimiterStore {
	if perSecond <= 0 {
		return nil
	}
	return &RateLimiterStore{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(perSecond),
		defaultBurst: burst,
	}
}

func (s *RateLimiterStore) GetLimiter(deviceID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, exists := s.limiters[deviceID]
	if !exists {
		limiter = rate.NewLimiter(s.defaultRate, s.defaultBurst)
		s.limiters[deviceID] = limiter
	}
	return limiter
}

// Allow spends one token for deviceID. A nil store allows everything.
func (s *RateLimiterStore) Allow(deviceID string) bool {
	if s == nil {
		return true
	}
	return s.GetLimiter(deviceID).Allow()
}
