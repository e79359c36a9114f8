// Package clock abstracts wall-clock time so components that sleep or
// align runs to clock boundaries can be tested without real waiting.
package clock

import "time"

// Clock supplies the current time and timer channels.
type Clock interface {
	Now() time.Time
	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// System is the real clock.
type System struct{}

func NewSystem() *System { return &System{} }

func (*System) Now() time.Time { return time.Now() }

func (*System) After(d time.Duration) <-chan time.Time { return time.After(d) }
