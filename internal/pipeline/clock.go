package pipeline

import "time"

// Clock supplies timestamps. Elapsed time is always derived from recorded
// stamps; nothing ticks.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// elapsed is end-start once end is set, now-start while running and zero
// before start.
func elapsed(start, end, now time.Time) time.Duration {
	switch {
	case start.IsZero():
		return 0
	case !end.IsZero():
		return end.Sub(start)
	default:
		return now.Sub(start)
	}
}
