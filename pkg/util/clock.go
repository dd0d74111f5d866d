package util

import "time"

// Clock is the time oracle for creation timestamps and settlement events,
// injectable so tests run against a fixed instant.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
