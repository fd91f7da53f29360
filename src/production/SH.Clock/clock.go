package clock

import "time"

// Clock supplies UTC timestamps. Components take a Clock at construction so
// tests can pin time when exercising trailing windows.
type Clock interface {
	Now() time.Time
}

// System is the wall clock, truncated to UTC.
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always returns the same instant.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time {
	return f.T.UTC()
}
