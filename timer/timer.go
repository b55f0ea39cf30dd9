// Package timer provides the single re-armable clock that paces the turn loop.
package timer

import (
	"errors"
	"sync"
	"time"
)

// ErrClockStopped means the clock channel closed under a running loop.
var ErrClockStopped = errors.New("timer: clock stopped")

// Clock fires once per Arm. Arming again replaces the pending fire.
type Clock interface {
	Arm(d time.Duration)
	Stop()
	C() <-chan time.Time
}

// RealClock is backed by a time.Timer.
type RealClock struct {
	t *time.Timer
}

func NewRealClock() *RealClock {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &RealClock{t: t}
}

func (c *RealClock) Arm(d time.Duration) {
	c.t.Reset(d)
}

func (c *RealClock) Stop() {
	c.t.Stop()
}

func (c *RealClock) C() <-chan time.Time {
	return c.t.C
}

// ManualClock fires only when told to. Tests use it to step the turn loop.
type ManualClock struct {
	ch     chan time.Time
	mutex  sync.Mutex
	armed  bool
	last   time.Duration
	arms   int
	closed bool
}

func NewManualClock() *ManualClock {
	return &ManualClock{ch: make(chan time.Time)}
}

func (c *ManualClock) Arm(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.armed = true
	c.last = d
	c.arms++
}

func (c *ManualClock) Stop() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.armed = false
}

func (c *ManualClock) C() <-chan time.Time {
	return c.ch
}

// Fire delivers one tick if the clock is armed, blocking until the loop takes it.
func (c *ManualClock) Fire() bool {
	c.mutex.Lock()
	if !c.armed || c.closed {
		c.mutex.Unlock()
		return false
	}
	c.armed = false
	c.mutex.Unlock()

	c.ch <- time.Now()
	return true
}

// Armed reports whether a fire is pending and the last armed duration.
func (c *ManualClock) Armed() (bool, time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.armed, c.last
}

// Arms counts Arm calls since creation.
func (c *ManualClock) Arms() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.arms
}

// Close simulates a broken scheduler.
func (c *ManualClock) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}
