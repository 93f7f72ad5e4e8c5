package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/psantana5/timers/pkg/timers"
)

func newRecordingProvider() (*Provider, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return NewProvider(tp, "timers-test"), sr
}

func TestSpanObserverExportsTimers(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fc := testingclock.NewFakePassiveClock(start)

	p, sr := newRecordingProvider()
	r := timers.New(
		timers.WithEnabled(true),
		timers.WithClock(fc),
		timers.WithObserver(NewSpanObserver(p)),
	)

	db, err := r.Start("db")
	require.NoError(t, err)
	fc.SetTime(start.Add(300 * time.Millisecond))
	db.Stop()

	_, err = r.Start("render")
	require.NoError(t, err)
	fc.SetTime(start.Add(time.Second))

	r.Report(timers.LogSinkFunc(func(string, string, map[string]interface{}) {}))

	spans := sr.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "db", spans[0].Name())
	assert.Equal(t, start, spans[0].StartTime())
	assert.Equal(t, start.Add(300*time.Millisecond), spans[0].EndTime())
	assert.Contains(t, spans[0].Attributes(), attribute.Bool("timer.running", false))

	assert.Equal(t, "render", spans[1].Name())
	assert.Equal(t, start.Add(300*time.Millisecond), spans[1].StartTime())
	assert.Equal(t, start.Add(time.Second), spans[1].EndTime())
	assert.Contains(t, spans[1].Attributes(), attribute.Bool("timer.running", true))

	assert.False(t, spans[0].Parent().IsValid())
	assert.NotEqual(t, spans[0].SpanContext().TraceID(), spans[1].SpanContext().TraceID())

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestSpanObserverSkipsInertTimers(t *testing.T) {
	p, sr := newRecordingProvider()
	o := NewSpanObserver(p)

	r := timers.New()
	sw, err := r.Get("disabled")
	require.NoError(t, err)
	require.True(t, timers.IsInert(sw))

	enabled := timers.New(timers.WithEnabled(true))
	require.NoError(t, enabled.Register(sw))
	o.ObserveTimers(enabled.Flush())

	assert.Empty(t, sr.Ended())
}

func TestInitTracerDisabled(t *testing.T) {
	p, err := InitTracer(context.Background(), Config{ServiceName: "timers", Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p.Tracer())
	assert.NoError(t, p.Shutdown(context.Background()))
}
