package logging

import (
	"io"
	"sort"

	"github.com/inconshreveable/log15"
)

// Log15Sink reports timers through a log15 logger. Fields become key/value
// context pairs sorted by key.
type Log15Sink struct {
	Logger log15.Logger
}

// NewLog15Sink builds a sink writing logfmt (or JSON) records to w and
// dropping records below level.
func NewLog15Sink(w io.Writer, level Level, jsonFormat bool, ctx ...interface{}) Log15Sink {
	format := log15.LogfmtFormat()
	if jsonFormat {
		format = log15.JsonFormat()
	}

	logger := log15.New(ctx...)
	logger.SetHandler(log15.LvlFilterHandler(log15Lvl(level), log15.StreamHandler(w, format)))
	return Log15Sink{Logger: logger}
}

func log15Lvl(level Level) log15.Lvl {
	switch level {
	case DEBUG:
		return log15.LvlDebug
	case WARN:
		return log15.LvlWarn
	case ERROR, FATAL:
		return log15.LvlError
	default:
		return log15.LvlInfo
	}
}

// Log implements timers.LogSink.
func (s Log15Sink) Log(level, label string, fields map[string]interface{}) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ctx := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		ctx = append(ctx, k, fields[k])
	}

	switch ParseLevel(level) {
	case DEBUG:
		s.Logger.Debug(label, ctx...)
	case WARN:
		s.Logger.Warn(label, ctx...)
	case ERROR, FATAL:
		s.Logger.Error(label, ctx...)
	default:
		s.Logger.Info(label, ctx...)
	}
}
