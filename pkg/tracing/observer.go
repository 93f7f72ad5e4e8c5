package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/psantana5/timers/pkg/timers"
)

// SpanObserver exports every reported timer as a standalone span carrying
// the stopwatch's own start and end instants. Spans are independent roots.
type SpanObserver struct {
	tracer trace.Tracer
}

// NewSpanObserver creates an observer emitting spans through p.
func NewSpanObserver(p *Provider) *SpanObserver {
	return &SpanObserver{tracer: p.Tracer()}
}

// ObserveTimers implements timers.Observer.
func (o *SpanObserver) ObserveTimers(flushed *timers.Timers) {
	flushed.Each(func(name string, sw timers.Stopwatch) {
		if timers.IsInert(sw) {
			return
		}

		running := sw.IsRunning()
		start := sw.StartedAt()
		end := start.Add(sw.Elapsed())

		_, span := o.tracer.Start(context.Background(), name,
			trace.WithNewRoot(),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithTimestamp(start),
			trace.WithAttributes(
				attribute.String("timer.name", name),
				attribute.Bool("timer.running", running),
			),
		)
		span.End(trace.WithTimestamp(end))
	})
}
