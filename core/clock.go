package orchestration

import "time"

// clock is the time source of a session. Tests replace it to drive the
// endpoint detector deterministically.
type clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) timer
}

type timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}
