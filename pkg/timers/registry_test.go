package timers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

type logCall struct {
	level   string
	label   string
	context map[string]interface{}
}

type recordingSink struct {
	mu    sync.Mutex
	calls []logCall
}

func (s *recordingSink) Log(level, label string, context map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, logCall{level: level, label: label, context: context})
}

func newEnabledRegistry(t *testing.T) (*Registry, *testingclock.FakePassiveClock) {
	t.Helper()
	fc := testingclock.NewFakePassiveClock(epoch)
	return New(WithClock(fc), WithEnabled(true)), fc
}

func TestRegistryStartsDisabled(t *testing.T) {
	r := New()
	assert.False(t, r.Enabled())

	r.Enable()
	r.Enable()
	assert.True(t, r.Enabled())

	r.Disable()
	assert.False(t, r.Enabled())
}

func TestStartReturnsRunningRegisteredTimer(t *testing.T) {
	r, _ := newEnabledRegistry(t)

	sw, err := r.Start("timer")
	require.NoError(t, err)
	assert.True(t, sw.IsRunning())

	got, err := r.Get("timer")
	require.NoError(t, err)
	assert.Same(t, sw, got)
}

func TestStartingRunningTimerTwiceFails(t *testing.T) {
	r, _ := newEnabledRegistry(t)

	_, err := r.Start("timer")
	require.NoError(t, err)

	_, err = r.Start("timer")
	require.Error(t, err)

	var dup *DuplicateTimerError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "timer", dup.Name)
	assert.True(t, errors.Is(err, ErrDuplicateTimer))
	assert.Equal(t, "the 'timer' timer was previously created", err.Error())
}

func TestStartingStoppedTimerFails(t *testing.T) {
	r, _ := newEnabledRegistry(t)

	sw, err := r.Start("timer")
	require.NoError(t, err)
	sw.Stop()

	_, err = r.Start("timer")
	assert.ErrorIs(t, err, ErrDuplicateTimer)
}

func TestRegisteringRegisteredTimerFailsWithoutOverwrite(t *testing.T) {
	r, _ := newEnabledRegistry(t)

	sw, err := r.Start("timer")
	require.NoError(t, err)

	err = r.Register(NewStopwatch("timer"))
	assert.ErrorIs(t, err, ErrDuplicateTimer)

	got, err := r.Get("timer")
	require.NoError(t, err)
	assert.Same(t, sw, got)
}

func TestGetUnknownTimerFails(t *testing.T) {
	r, _ := newEnabledRegistry(t)

	_, err := r.Get("timer")
	require.Error(t, err)

	var missing *TimerNotInitializedError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "timer", missing.Name)
	assert.ErrorIs(t, err, ErrTimerNotInitialized)
	assert.Equal(t, "the 'timer' timer has not been initialized", err.Error())
}

func TestGetReturnsSameInstance(t *testing.T) {
	r, fc := newEnabledRegistry(t)

	sw, err := r.Start("timer")
	require.NoError(t, err)

	first, err := r.Get("timer")
	require.NoError(t, err)
	second, err := r.Get("timer")
	require.NoError(t, err)
	assert.Same(t, sw, first)
	assert.Same(t, sw, second)

	fc.SetTime(epoch.Add(time.Second))
	first.Stop()
	fc.SetTime(epoch.Add(time.Minute))

	again, err := r.Get("timer")
	require.NoError(t, err)
	assert.False(t, again.IsRunning())
	assert.Equal(t, time.Second, again.Elapsed())
}

func TestFlushEmpty(t *testing.T) {
	r, _ := newEnabledRegistry(t)

	first := r.Flush()
	require.NotNil(t, first)
	assert.Zero(t, first.Len())

	second := r.Flush()
	require.NotNil(t, second)
	assert.Zero(t, second.Len())

	assert.Zero(t, New().Flush().Len())
}

func TestFlushReturnsRegisteredTimersInOrder(t *testing.T) {
	r, _ := newEnabledRegistry(t)

	a, err := r.Start("a")
	require.NoError(t, err)
	b, err := r.Start("b")
	require.NoError(t, err)

	flushed := r.Flush()
	assert.Equal(t, []string{"a", "b"}, flushed.Names())

	got, ok := flushed.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)
	got, ok = flushed.Get("b")
	require.True(t, ok)
	assert.Same(t, b, got)

	_, err = r.Get("a")
	assert.ErrorIs(t, err, ErrTimerNotInitialized)
}

func TestNameReusableAfterFlush(t *testing.T) {
	r, _ := newEnabledRegistry(t)

	sw, err := r.Start("timer")
	require.NoError(t, err)

	r.Flush()

	_, err = r.Get("timer")
	require.ErrorIs(t, err, ErrTimerNotInitialized)

	require.NoError(t, r.Register(sw))
	got, err := r.Get(sw.Name())
	require.NoError(t, err)
	assert.Same(t, sw, got)
}

func TestDisabledRegistryStoresNothing(t *testing.T) {
	r, _ := newEnabledRegistry(t)
	r.Disable()

	sw, err := r.Start("x")
	require.NoError(t, err)
	require.NoError(t, r.Register(sw))
	require.NoError(t, r.Register(NewStopwatch("x")))

	assert.Zero(t, r.Flush().Len())

	got, err := r.Get("x")
	require.NoError(t, err)
	assert.True(t, IsInert(got))
	got.Stop()
	assert.Zero(t, got.Elapsed())

	r.Enable()
	_, err = r.Start("x")
	require.NoError(t, err)

	flushed := r.Flush()
	assert.Equal(t, 1, flushed.Len())
	assert.True(t, flushed.Has("x"))
}

func TestDisableKeepsStoredTimers(t *testing.T) {
	r, _ := newEnabledRegistry(t)

	_, err := r.Start("kept")
	require.NoError(t, err)
	r.Disable()

	flushed := r.Flush()
	assert.True(t, flushed.Has("kept"))
}

func TestReportLogsFlushedTimers(t *testing.T) {
	r, fc := newEnabledRegistry(t)
	sink := &recordingSink{}

	_, err := r.Start("t")
	require.NoError(t, err)
	fc.SetTime(epoch.Add(25 * time.Millisecond))

	r.Report(sink)

	require.Len(t, sink.calls, 1)
	call := sink.calls[0]
	assert.Equal(t, LevelInfo, call.level)
	assert.Equal(t, ReportLabel, call.label)
	require.Contains(t, call.context, "t")
	assert.Equal(t, 25*time.Millisecond, call.context["t"])

	assert.Zero(t, r.Flush().Len())
}

func TestReportAtGivenLevel(t *testing.T) {
	r, _ := newEnabledRegistry(t)
	sink := &recordingSink{}

	r.Report(sink, LevelError)

	require.Len(t, sink.calls, 1)
	assert.Equal(t, LevelError, sink.calls[0].level)
	assert.Equal(t, ReportLabel, sink.calls[0].label)
	assert.Empty(t, sink.calls[0].context)
}

func TestReportDisabledAndEmptyIsSilent(t *testing.T) {
	r := New()
	sink := &recordingSink{}
	observed := 0
	r.AddObserver(ObserverFunc(func(*Timers) { observed++ }))

	r.Report(sink)

	assert.Empty(t, sink.calls)
	assert.Zero(t, observed)
}

func TestReportDisabledButNotEmptyLogs(t *testing.T) {
	r, _ := newEnabledRegistry(t)
	sink := &recordingSink{}

	_, err := r.Start("timer")
	require.NoError(t, err)
	r.Disable()

	r.Report(sink)

	require.Len(t, sink.calls, 1)
	assert.Equal(t, LevelInfo, sink.calls[0].level)
	assert.Contains(t, sink.calls[0].context, "timer")
	assert.Zero(t, r.Flush().Len())
}

func TestReportNotifiesObservers(t *testing.T) {
	var seen []string
	obs := ObserverFunc(func(flushed *Timers) {
		seen = append(seen, flushed.Names()...)
	})
	r := New(WithEnabled(true), WithObserver(obs))

	_, err := r.Start("a")
	require.NoError(t, err)
	_, err = r.Start("b")
	require.NoError(t, err)

	r.Report(LogSinkFunc(func(string, string, map[string]interface{}) {}))

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestRegisterNilIsNoop(t *testing.T) {
	r, _ := newEnabledRegistry(t)

	assert.NotPanics(t, func() {
		assert.NoError(t, r.Register(nil))
	})
	assert.Zero(t, r.Flush().Len())
}

func TestReportWithoutSinkStillFlushesAndObserves(t *testing.T) {
	var seen []string
	r, _ := newEnabledRegistry(t)
	r.AddObserver(ObserverFunc(func(flushed *Timers) {
		seen = append(seen, flushed.Names()...)
	}))

	_, err := r.Start("a")
	require.NoError(t, err)

	assert.NotPanics(t, func() { r.Report(nil) })
	assert.Equal(t, []string{"a"}, seen)
	assert.Zero(t, r.Flush().Len())
}

func TestNewScopeIsIndependent(t *testing.T) {
	var observed []string
	fc := testingclock.NewFakePassiveClock(epoch)
	r := New(WithClock(fc), WithEnabled(true), WithObserver(ObserverFunc(func(flushed *Timers) {
		observed = append(observed, flushed.Names()...)
	})))

	_, err := r.Start("shared")
	require.NoError(t, err)

	scope := r.NewScope()
	assert.True(t, scope.Enabled())
	sw, err := scope.Start("shared")
	require.NoError(t, err, "scope must not see the parent's timers")

	fc.SetTime(epoch.Add(time.Second))
	assert.Equal(t, time.Second, sw.Elapsed())

	scope.Report(&recordingSink{})
	assert.Equal(t, []string{"shared"}, observed)

	flushed := r.Flush()
	assert.True(t, flushed.Has("shared"), "reporting a scope must leave the parent untouched")

	scope.Disable()
	assert.True(t, r.Enabled())
	r.Disable()
	assert.False(t, r.NewScope().Enabled())
}

func TestConcurrentRegisterKeepsOneTimerPerName(t *testing.T) {
	r := New(WithEnabled(true))

	const workers = 16
	const names = 8

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		duplicates int
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < names; n++ {
				if _, err := r.Start(fmt.Sprintf("timer-%d", n)); err != nil {
					assert.ErrorIs(t, err, ErrDuplicateTimer)
					mu.Lock()
					duplicates++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, names, r.Flush().Len())
	assert.Equal(t, workers*names-names, duplicates)
}

func TestRegistryFromContext(t *testing.T) {
	r := New(WithEnabled(true))
	ctx := WithRegistry(context.Background(), r)
	assert.Same(t, r, FromContext(ctx))

	fallback := FromContext(context.Background())
	require.NotNil(t, fallback)
	assert.False(t, fallback.Enabled())
}
