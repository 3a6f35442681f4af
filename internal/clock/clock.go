package clock

import "time"

// Clock abstracts time for services that persist timestamps, so tests can
// pin the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock returns the real current time in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant.
type FixedClock struct {
	Instant time.Time
}

func (c FixedClock) Now() time.Time {
	return c.Instant
}
