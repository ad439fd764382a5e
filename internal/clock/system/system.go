// Package system provides clock implementations.
package system

import "time"

// Clock implements apod.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a clock frozen at T, for tests and reproducible runs.
type Fixed struct {
	T time.Time
}

// Now returns T.
func (f Fixed) Now() time.Time {
	return f.T
}

// Today returns the UTC calendar date of c.Now().
func Today(c interface{ Now() time.Time }) time.Time {
	y, m, d := c.Now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
