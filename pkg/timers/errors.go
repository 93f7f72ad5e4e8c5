package timers

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateTimer      = errors.New("duplicate timer")
	ErrTimerNotInitialized = errors.New("timer not initialized")
)

// DuplicateTimerError is returned by Register when a live stopwatch already
// holds the name.
type DuplicateTimerError struct {
	Name string
}

func (e *DuplicateTimerError) Error() string {
	return fmt.Sprintf("the '%s' timer was previously created", e.Name)
}

// Is matches ErrDuplicateTimer.
func (e *DuplicateTimerError) Is(target error) bool {
	return target == ErrDuplicateTimer
}

// TimerNotInitializedError is returned by Get when no stopwatch is stored
// under the name.
type TimerNotInitializedError struct {
	Name string
}

func (e *TimerNotInitializedError) Error() string {
	return fmt.Sprintf("the '%s' timer has not been initialized", e.Name)
}

// Is matches ErrTimerNotInitialized.
func (e *TimerNotInitializedError) Is(target error) bool {
	return target == ErrTimerNotInitialized
}
