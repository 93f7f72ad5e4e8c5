package timers

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Stopwatch measures one named interval.
type Stopwatch interface {
	// Name returns the name the stopwatch was started with.
	Name() string
	// Stop freezes the elapsed time. Only the first call has an effect.
	Stop()
	// IsRunning reports whether Stop has never been called.
	IsRunning() bool
	// Elapsed returns the time since start while running, or the frozen
	// stop-start interval once stopped.
	Elapsed() time.Duration
	// StartedAt returns the start instant.
	StartedAt() time.Time
	// StoppedAt returns the stop instant and whether it has been set.
	StoppedAt() (time.Time, bool)
}

// tracked is the stopwatch the registry stores.
type tracked struct {
	name  string
	clock clock.PassiveClock
	start time.Time

	mu      sync.Mutex
	stop    time.Time
	stopped bool
}

// NewStopwatch starts a stopwatch against the wall clock.
func NewStopwatch(name string) Stopwatch {
	return NewStopwatchWithClock(name, clock.RealClock{})
}

// NewStopwatchWithClock starts a stopwatch reading time from c.
func NewStopwatchWithClock(name string, c clock.PassiveClock) Stopwatch {
	return &tracked{
		name:  name,
		clock: c,
		start: c.Now(),
	}
}

func (t *tracked) Name() string {
	return t.name
}

func (t *tracked) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.stop = t.clock.Now()
	t.stopped = true
}

func (t *tracked) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}

func (t *tracked) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.stopped {
		return t.clock.Since(t.start)
	}
	return t.stop.Sub(t.start)
}

func (t *tracked) StartedAt() time.Time {
	return t.start
}

func (t *tracked) StoppedAt() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop, t.stopped
}

// inert is handed out while capture is disabled. It never reads the clock
// and always reports a zero, stopped interval.
type inert struct {
	name string
}

func (i inert) Name() string                 { return i.name }
func (i inert) Stop()                        {}
func (i inert) IsRunning() bool              { return false }
func (i inert) Elapsed() time.Duration       { return 0 }
func (i inert) StartedAt() time.Time         { return time.Time{} }
func (i inert) StoppedAt() (time.Time, bool) { return time.Time{}, false }

// IsInert reports whether sw is the placeholder returned while capture is
// disabled.
func IsInert(sw Stopwatch) bool {
	_, ok := sw.(inert)
	return ok
}
