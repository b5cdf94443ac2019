// Package scheduler decides which iterations are persisted.
package scheduler

import "time"

// Gate is a best-effort rate limiter for persistence. It lets an iteration
// through when strictly more than one save interval has passed since the
// last one it let through, so the realized cadence is bounded below by the
// loop's own iteration latency.
type Gate struct {
	interval time.Duration
	last     time.Time
}

// NewGate returns a gate for saveRate saves per second, anchored at start.
func NewGate(saveRate float64, start time.Time) *Gate {
	var interval time.Duration
	if saveRate > 0 {
		interval = time.Duration(float64(time.Second) / saveRate)
	}
	return &Gate{interval: interval, last: start}
}

// Interval returns the configured minimum spacing between saves.
func (g *Gate) Interval() time.Duration { return g.interval }

// Ready reports whether now is persist-eligible and, if so, records it.
func (g *Gate) Ready(now time.Time) bool {
	if now.Sub(g.last) > g.interval {
		g.last = now
		return true
	}
	return false
}
