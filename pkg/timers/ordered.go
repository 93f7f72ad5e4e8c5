package timers

// Timers is an insertion-ordered set of stopwatches keyed by name, as
// returned by Flush.
type Timers struct {
	names   []string
	entries map[string]Stopwatch
}

func newTimers() *Timers {
	return &Timers{entries: make(map[string]Stopwatch)}
}

// put reports false when the name is already taken.
func (t *Timers) put(sw Stopwatch) bool {
	if _, exists := t.entries[sw.Name()]; exists {
		return false
	}
	t.names = append(t.names, sw.Name())
	t.entries[sw.Name()] = sw
	return true
}

// Len returns the number of stopwatches.
func (t *Timers) Len() int {
	return len(t.names)
}

// Has reports whether a stopwatch is stored under name.
func (t *Timers) Has(name string) bool {
	_, ok := t.entries[name]
	return ok
}

// Get returns the stopwatch stored under name.
func (t *Timers) Get(name string) (Stopwatch, bool) {
	sw, ok := t.entries[name]
	return sw, ok
}

// Names returns the stopwatch names in insertion order.
func (t *Timers) Names() []string {
	names := make([]string, len(t.names))
	copy(names, t.names)
	return names
}

// Each calls fn for every stopwatch in insertion order.
func (t *Timers) Each(fn func(name string, sw Stopwatch)) {
	for _, name := range t.names {
		fn(name, t.entries[name])
	}
}

// Context builds the log context for a report: timer name to elapsed
// duration.
func (t *Timers) Context() map[string]interface{} {
	ctx := make(map[string]interface{}, len(t.names))
	for _, name := range t.names {
		ctx[name] = t.entries[name].Elapsed()
	}
	return ctx
}
