package logging

import (
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/psantana5/timers/pkg/timers"
)

// ThrottledSink forwards report records to another sink at a bounded rate
// and drops the rest.
type ThrottledSink struct {
	next    timers.LogSink
	limiter *rate.Limiter
	dropped atomic.Int64
}

// Throttle wraps next so at most rps records per second (with the given
// burst) get through. A non-positive rps disables throttling.
func Throttle(next timers.LogSink, rps float64, burst int) *ThrottledSink {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &ThrottledSink{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Log implements timers.LogSink.
func (s *ThrottledSink) Log(level, label string, fields map[string]interface{}) {
	if !s.limiter.Allow() {
		s.dropped.Add(1)
		return
	}
	s.next.Log(level, label, fields)
}

// Dropped returns how many records were discarded so far.
func (s *ThrottledSink) Dropped() int64 {
	return s.dropped.Load()
}
