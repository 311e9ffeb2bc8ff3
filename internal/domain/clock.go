package domain

import "github.com/jonboulle/clockwork"

// clock is a package-level time source so tests can freeze blow timestamps via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used for blow timestamps. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time in nanoseconds since the epoch.
func Now() int64 {
	return clock.Now().UnixNano()
}
