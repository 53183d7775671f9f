// Package scheduler advances simulated time and runs periodic systems, each
// at its own fixed interval, as one deterministic stream of updates.
package scheduler

import (
	"fmt"
	"time"
)

// Time is a simulated timestamp, measured from the start of the simulation.
type Time time.Duration

// Day is one simulated day.
const Day = 24 * time.Hour

// Add returns t shifted by d.
func (t Time) Add(d time.Duration) Time {
	return t + Time(d)
}

// Sub returns the duration t-u.
func (t Time) Sub(u Time) time.Duration {
	return time.Duration(t - u)
}

// Days returns t in fractional simulated days.
func (t Time) Days() float64 {
	return float64(t) / float64(Day)
}

func (t Time) String() string {
	return fmt.Sprintf("day %.2f", t.Days())
}

// At returns the timestamp d after the simulation start.
func At(d time.Duration) Time {
	return Time(d)
}

// Clock holds the current simulated time. It only moves forward, and only
// the scheduler moves it; everything else reads it.
type Clock struct {
	now Time
}

// NewClock returns a clock set to start.
func NewClock(start Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current simulated time.
func (c *Clock) Now() Time {
	return c.now
}

func (c *Clock) set(t Time) {
	if t < c.now {
		panic(fmt.Sprintf("scheduler: clock moved backwards from %v to %v", c.now, t))
	}
	c.now = t
}
