package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/psantana5/timers/pkg/auth"
	"github.com/psantana5/timers/pkg/metrics"
	"github.com/psantana5/timers/pkg/timers"
	"github.com/psantana5/timers/pkg/timers/httptimers"
)

// Handler serves the registry control API, the metrics endpoint and a
// timed sample workload.
type Handler struct {
	registry    *timers.Registry
	logger      timers.LogSink
	sink        timers.LogSink
	reportLevel string
	collector   *metrics.TimerCollector
	keys        *auth.Keys
}

// NewHandler creates the handler. sink receives every report record, which
// lets callers throttle reports separately from the logger; nil means the
// logger. collector may be nil.
func NewHandler(reg *timers.Registry, logger, sink timers.LogSink, reportLevel string, collector *metrics.TimerCollector) *Handler {
	if sink == nil {
		sink = logger
	}
	return &Handler{
		registry:    reg,
		logger:      logger,
		sink:        sink,
		reportLevel: reportLevel,
		collector:   collector,
	}
}

// RequireKeys guards the registry control routes with API keys.
func (h *Handler) RequireKeys(keys *auth.Keys) {
	h.keys = keys
}

// Router builds the full route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all HTTP routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")
	if h.collector != nil {
		r.Handle("/metrics", h.collector.Handler()).Methods("GET")
	}

	// Registry control; these routes act on the shared registry directly
	ctl := r.PathPrefix("/timers").Subrouter()
	ctl.Use(auth.Middleware(h.keys))
	ctl.HandleFunc("", h.State).Methods("GET")
	ctl.HandleFunc("/enable", h.Enable).Methods("POST")
	ctl.HandleFunc("/disable", h.Disable).Methods("POST")
	ctl.HandleFunc("/flush", h.Flush).Methods("POST")
	ctl.HandleFunc("/report", h.Report).Methods("POST")
	ctl.HandleFunc("/{name}", h.GetTimer).Methods("GET")
	ctl.HandleFunc("/{name}/start", h.StartTimer).Methods("POST")
	ctl.HandleFunc("/{name}/stop", h.StopTimer).Methods("POST")

	// Each request to the workload is one unit of work with its own timers
	work := r.PathPrefix("/work").Subrouter()
	work.Use(httptimers.Middleware(httptimers.Config{
		Registry: h.registry,
		Sink:     h.sink,
		Level:    h.reportLevel,
	}))
	work.HandleFunc("", h.Work).Methods("POST")
}

// TimerView is the JSON form of a stopwatch.
type TimerView struct {
	Name           string  `json:"name"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Running        bool    `json:"running"`
}

func viewOf(sw timers.Stopwatch) TimerView {
	return TimerView{
		Name:           sw.Name(),
		ElapsedSeconds: sw.Elapsed().Seconds(),
		Running:        sw.IsRunning(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, map[string]string{"error": code, "message": err.Error()})
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// State reports whether capture is enabled
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": h.registry.Enabled()})
}

// Enable turns capture on
func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	h.registry.Enable()
	h.logger.Log(timers.LevelInfo, "timer capture enabled", nil)
	h.State(w, r)
}

// Disable turns capture off
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	h.registry.Disable()
	h.logger.Log(timers.LevelInfo, "timer capture disabled", nil)
	h.State(w, r)
}

// Flush drains the registry and returns what it held
func (h *Handler) Flush(w http.ResponseWriter, r *http.Request) {
	flushed := h.registry.Flush()
	views := make([]TimerView, 0, flushed.Len())
	flushed.Each(func(_ string, sw timers.Stopwatch) {
		views = append(views, viewOf(sw))
	})
	writeJSON(w, http.StatusOK, views)
}

// Report flushes the registry into the report sink at ?level= (default
// configured level)
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	level := r.URL.Query().Get("level")
	if level == "" {
		level = h.reportLevel
	}
	h.registry.Report(h.sink, level)
	w.WriteHeader(http.StatusNoContent)
}

// GetTimer returns one stored timer
func (h *Handler) GetTimer(w http.ResponseWriter, r *http.Request) {
	sw, err := h.registry.Get(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, http.StatusNotFound, "timer_not_initialized", err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sw))
}

// StartTimer starts and stores a timer
func (h *Handler) StartTimer(w http.ResponseWriter, r *http.Request) {
	sw, err := h.registry.Start(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, http.StatusConflict, "duplicate_timer", err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(sw))
}

// StopTimer stops a stored timer
func (h *Handler) StopTimer(w http.ResponseWriter, r *http.Request) {
	sw, err := h.registry.Get(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, http.StatusNotFound, "timer_not_initialized", err)
		return
	}
	sw.Stop()
	writeJSON(w, http.StatusOK, viewOf(sw))
}

// WorkRequest describes a sample workload: each step sleeps for Delay
// inside its own timer.
type WorkRequest struct {
	Steps []string `json:"steps"`
	Delay string   `json:"delay"`
}

const maxWorkDelay = 5 * time.Second

// Work runs the sample workload
func (h *Handler) Work(w http.ResponseWriter, r *http.Request) {
	var req WorkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}

	delay := time.Duration(0)
	if req.Delay != "" {
		d, err := time.ParseDuration(req.Delay)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_delay", err)
			return
		}
		if d < 0 || d > maxWorkDelay {
			writeError(w, http.StatusBadRequest, "invalid_delay", errors.New("delay must be between 0 and 5s"))
			return
		}
		delay = d
	}

	reg := timers.FromContext(r.Context())
	views := make([]TimerView, 0, len(req.Steps))
	for _, step := range req.Steps {
		name := "work." + strings.TrimSpace(step)
		sw, err := reg.Start(name)
		if err != nil {
			writeError(w, http.StatusConflict, "duplicate_timer", err)
			return
		}

		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			sw.Stop()
			return
		}

		sw.Stop()
		views = append(views, viewOf(sw))
	}

	writeJSON(w, http.StatusOK, views)
}
