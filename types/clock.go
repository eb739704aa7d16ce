package types

import "time"

// Clock abstracts wall time so timer-driven state (the delivered-order
// grace window) is testable without real delays.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) TimerHandle
}

type TimerHandle interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) TimerHandle {
	return time.AfterFunc(d, f)
}

func SystemClock() Clock { return systemClock{} }
