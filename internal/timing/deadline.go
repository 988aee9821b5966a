// internal/timing/deadline.go
package timing

import "time"

// Deadline is an absolute instant fixed when a wait starts. It is never
// recomputed, so a render contract can hand the same Deadline to each of
// its markers and they all draw on one budget.
type Deadline struct {
	start  time.Time
	at     time.Time
	budget time.Duration
}

// NewDeadline fixes a deadline budget after now. Negative budgets are
// clamped to zero.
func NewDeadline(now time.Time, budget time.Duration) Deadline {
	if budget < 0 {
		budget = 0
	}
	return Deadline{start: now, at: now.Add(budget), budget: budget}
}

// Start is the instant the budget began.
func (d Deadline) Start() time.Time { return d.start }

// At is the absolute expiry instant.
func (d Deadline) At() time.Time { return d.at }

// Budget is the total duration originally granted.
func (d Deadline) Budget() time.Duration { return d.budget }

// Remaining never goes below zero.
func (d Deadline) Remaining(now time.Time) time.Duration {
	if r := d.at.Sub(now); r > 0 {
		return r
	}
	return 0
}

// Expired reports whether now is at or past the deadline.
func (d Deadline) Expired(now time.Time) bool {
	return !now.Before(d.at)
}

// Elapsed is the time spent since the budget began.
func (d Deadline) Elapsed(now time.Time) time.Duration {
	return now.Sub(d.start)
}

// Sub carves a child deadline out of d: the child budget is the smaller
// of limit and what remains of d.
func (d Deadline) Sub(now time.Time, limit time.Duration) Deadline {
	remaining := d.Remaining(now)
	if limit < 0 || limit > remaining {
		limit = remaining
	}
	return NewDeadline(now, limit)
}
