/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package jeopardy

import (
	"sync"
	"time"
)

// FinalAnswerTime is the answer window for the final clue. Board clues use
// the room's configurable timer instead.
const FinalAnswerTime = 60 * time.Second

// Countdown is an advisory timer for answer windows. Expiry never touches
// a Game by itself; callers decide what, if anything, onExpire does.
type Countdown struct {
	mu       sync.Mutex
	deadline time.Time
	timer    *time.Timer
}

// Start (re)arms the countdown.
func (c *Countdown) Start(d time.Duration, onExpire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.deadline = time.Now().Add(d)
	c.timer = time.AfterFunc(d, func() {
		if onExpire != nil {
			onExpire()
		}
	})
}

// Stop disarms the countdown and reports whether it was still running.
func (c *Countdown) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer == nil {
		return false
	}
	stopped := c.timer.Stop()
	c.timer = nil
	c.deadline = time.Time{}
	return stopped
}

// Remaining is the time left, rounded down to whole seconds for display.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deadline.IsZero() {
		return 0
	}
	left := time.Until(c.deadline)
	if left < 0 {
		return 0
	}
	return left.Truncate(time.Second)
}
