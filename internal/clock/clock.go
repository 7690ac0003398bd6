// Package clock abstracts wall time and one-shot timers so polling and
// delayed re-fetches can be driven deterministically in tests.
package clock

import "time"

// Clock returns the current time and schedules callbacks.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f on its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending callback created by AfterFunc.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer before it fired.
	Stop() bool
}
