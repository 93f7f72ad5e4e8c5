package timers

import (
	"sync"

	"k8s.io/utils/clock"
)

// Registry is the process-wide store of live stopwatches. Build one at
// startup with New and pass it to the code that needs it.
//
// While disabled the registry stores nothing: Register is a no-op and Get
// hands out inert stopwatches, so instrumentation can stay in place without
// conditionals.
type Registry struct {
	clock clock.PassiveClock

	mu        sync.Mutex
	enabled   bool
	entries   *Timers
	observers []Observer
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the time source used by stopwatches created through Start.
func WithClock(c clock.PassiveClock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

// WithEnabled sets the initial capture state. Registries start disabled.
func WithEnabled(enabled bool) Option {
	return func(r *Registry) {
		r.enabled = enabled
	}
}

// WithObserver adds an observer that receives every reported batch.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		r.observers = append(r.observers, o)
	}
}

// New creates a registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		clock:   clock.RealClock{},
		entries: newTimers(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enable turns capture on.
func (r *Registry) Enable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = true
}

// Disable turns capture off. Stopwatches already stored stay until flushed.
func (r *Registry) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = false
}

// Enabled reports whether capture is on.
func (r *Registry) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// AddObserver registers an observer after construction.
func (r *Registry) AddObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// NewScope returns an empty registry for one unit of work. It shares r's
// clock and observers and starts with r's current capture state; later
// Enable or Disable calls on either registry do not affect the other.
func (r *Registry) NewScope() *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	return &Registry{
		clock:     r.clock,
		enabled:   r.enabled,
		entries:   newTimers(),
		observers: observers,
	}
}

// Start creates a stopwatch, registers it and returns the registered
// instance. While capture is disabled it returns the same inert stopwatch Get
// would.
func (r *Registry) Start(name string) (Stopwatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		return inert{name: name}, nil
	}
	if r.entries.Has(name) {
		return nil, &DuplicateTimerError{Name: name}
	}
	sw := NewStopwatchWithClock(name, r.clock)
	r.entries.put(sw)
	return sw, nil
}

// Register stores sw under its name. It fails with *DuplicateTimerError when
// the name is already taken and does nothing while capture is disabled or
// when sw is nil.
func (r *Registry) Register(sw Stopwatch) error {
	if sw == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		return nil
	}
	if !r.entries.put(sw) {
		return &DuplicateTimerError{Name: sw.Name()}
	}
	return nil
}

// Get returns the stopwatch stored under name. It fails with
// *TimerNotInitializedError when nothing is stored there. While capture is
// disabled it returns an inert stopwatch instead.
func (r *Registry) Get(name string) (Stopwatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		return inert{name: name}, nil
	}
	sw, ok := r.entries.Get(name)
	if !ok {
		return nil, &TimerNotInitializedError{Name: name}
	}
	return sw, nil
}

// Flush takes every stored stopwatch and leaves the registry empty.
func (r *Registry) Flush() *Timers {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *Registry) flushLocked() *Timers {
	flushed := r.entries
	r.entries = newTimers()
	return flushed
}

// Report flushes the registry and writes one record to sink at level
// (LevelInfo when omitted) mapping each timer name to its elapsed time.
// Nothing happens when capture is disabled and the registry is empty. A nil
// sink still flushes and notifies observers.
func (r *Registry) Report(sink LogSink, level ...string) {
	lvl := LevelInfo
	if len(level) > 0 && level[0] != "" {
		lvl = level[0]
	}

	r.mu.Lock()
	if !r.enabled && r.entries.Len() == 0 {
		r.mu.Unlock()
		return
	}
	flushed := r.flushLocked()
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()

	if sink != nil {
		sink.Log(lvl, ReportLabel, flushed.Context())
	}
	for _, o := range observers {
		o.ObserveTimers(flushed)
	}
}
