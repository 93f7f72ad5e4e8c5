package timers

// ReportLabel is the label every report record carries.
const ReportLabel = "timers.Registry.Report"

// Severity levels understood by the bundled sinks. Any string is passed
// through to the sink untouched.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// LogSink receives one structured record per report.
type LogSink interface {
	Log(level, label string, context map[string]interface{})
}

// LogSinkFunc adapts a function to LogSink.
type LogSinkFunc func(level, label string, context map[string]interface{})

func (f LogSinkFunc) Log(level, label string, context map[string]interface{}) {
	f(level, label, context)
}

// Observer is handed the flushed stopwatches after each report record has
// been emitted.
type Observer interface {
	ObserveTimers(flushed *Timers)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(flushed *Timers)

func (f ObserverFunc) ObserveTimers(flushed *Timers) {
	f(flushed)
}
