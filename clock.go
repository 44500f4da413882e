package goKeeper

import "time"

// Timer is a cancelable scheduled callback or channel tick owned by the
// Manager. Stop reports whether the timer was stopped before firing.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Clock is the injected time capability. The Manager never reads wall-clock
// time or schedules OS timers directly; tests substitute a manual clock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
	AfterFunc(d time.Duration, fn func()) Timer
}

// SystemClock returns the package time backed [Clock] used when no clock is
// injected through the Builder.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) NewTimer(d time.Duration) Timer {
	return systemTimer{t: time.NewTimer(d)}
}

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return systemTimer{t: time.AfterFunc(d, fn)}
}

type systemTimer struct {
	t *time.Timer
}

func (t systemTimer) C() <-chan time.Time {
	return t.t.C
}

func (t systemTimer) Stop() bool {
	return t.t.Stop()
}
