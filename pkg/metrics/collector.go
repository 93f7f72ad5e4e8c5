package metrics

import (
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/psantana5/timers/pkg/timers"
)

// TimerCollector exposes the last reported duration of every timer as
// Prometheus metrics. It observes registry reports; it does not aggregate.
type TimerCollector struct {
	gatherer prometheus.Gatherer

	elapsed *prometheus.GaugeVec
	reports *prometheus.CounterVec
	running prometheus.Gauge
}

// NewTimerCollector creates the collector and registers its metrics on reg.
// When reg is nil a private registry is used.
func NewTimerCollector(namespace string, reg *prometheus.Registry) (*TimerCollector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	tc := &TimerCollector{
		gatherer: reg,
		elapsed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "timer_elapsed_seconds",
				Help:      "Elapsed time of the most recently reported timer with this name",
			},
			[]string{"timer"},
		),
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "timer_reports_total",
				Help:      "Number of reports that included a timer with this name",
			},
			[]string{"timer"},
		),
		running: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "timers_running_at_report",
				Help:      "Timers still running when the last report flushed them",
			},
		),
	}

	for _, c := range []prometheus.Collector{tc.elapsed, tc.reports, tc.running} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return tc, nil
}

// ObserveTimers implements timers.Observer.
func (tc *TimerCollector) ObserveTimers(flushed *timers.Timers) {
	running := 0
	flushed.Each(func(name string, sw timers.Stopwatch) {
		if sw.IsRunning() {
			running++
		}
		tc.elapsed.WithLabelValues(name).Set(sw.Elapsed().Seconds())
		tc.reports.WithLabelValues(name).Inc()
	})
	tc.running.Set(float64(running))
}

// Handler returns HTTP handler for Prometheus metrics
func (tc *TimerCollector) Handler() http.Handler {
	return promhttp.HandlerFor(tc.gatherer, promhttp.HandlerOpts{})
}

// WriteText writes the current metrics in the Prometheus text format.
func (tc *TimerCollector) WriteText(w io.Writer) error {
	families, err := tc.gatherer.Gather()
	if err != nil {
		return err
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
