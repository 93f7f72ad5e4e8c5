package httptimers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/psantana5/timers/pkg/timers"
)

// RequestIDHeader carries the id the report record is tagged with. An
// incoming value is reused, otherwise a new UUID is generated.
const RequestIDHeader = "X-Request-ID"

// Config holds the middleware configuration
type Config struct {
	// Registry is the process registry. Each request gets its own scope of
	// it, so concurrent requests never see each other's timers.
	Registry *timers.Registry
	Sink     timers.LogSink
	// Level is the report level; timers.LevelInfo when empty.
	Level string
	// TimerName names the timer wrapping the whole request.
	TimerName string
}

// Middleware times each request in a registry scoped to that request, makes
// the scope available to handlers through timers.FromContext and reports it
// once the handler returns.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if cfg.TimerName == "" {
		cfg.TimerName = "http.request"
	}
	if cfg.Level == "" {
		cfg.Level = timers.LevelInfo
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			// The scope is empty, so the request timer cannot collide
			reg := cfg.Registry.NewScope()
			sw, _ := reg.Start(cfg.TimerName)

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(timers.WithRegistry(r.Context(), reg)))

			sw.Stop()

			reg.Report(taggedSink{
				next: cfg.Sink,
				fields: map[string]interface{}{
					"request_id":  requestID,
					"http.method": r.Method,
					"http.path":   r.URL.Path,
					"http.status": rw.statusCode,
				},
			}, cfg.Level)
		})
	}
}

// taggedSink adds request fields to the report context. Timer names win
// over tag keys.
type taggedSink struct {
	next   timers.LogSink
	fields map[string]interface{}
}

func (s taggedSink) Log(level, label string, context map[string]interface{}) {
	if s.next == nil {
		return
	}
	merged := make(map[string]interface{}, len(context)+len(s.fields))
	for k, v := range s.fields {
		merged[k] = v
	}
	for k, v := range context {
		merged[k] = v
	}
	s.next.Log(level, label, merged)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
