// internal/domain/cycle/due.go
package cycle

import (
	"sort"
	"time"
)

// The due queries are pure: callers pass the candidate cycles and the instant
// to evaluate against, the scheduler decides what "now" is.

// DueForActivation returns scheduled, unpaused cycles whose start date is reached.
func DueForActivation(cycles []*Cycle, asOf time.Time) []*Cycle {
	return filterDue(cycles, func(c *Cycle) bool {
		return c.Status.Equal(StatusScheduled) && !c.StartDate.After(asOf) && !c.IsPaused(asOf)
	}, func(c *Cycle) time.Time { return c.StartDate })
}

// DueForClose returns active, unpaused cycles whose end date is reached.
func DueForClose(cycles []*Cycle, asOf time.Time) []*Cycle {
	return filterDue(cycles, func(c *Cycle) bool {
		return c.Status.Equal(StatusActive) && !c.EndDate.After(asOf) && !c.IsPaused(asOf)
	}, func(c *Cycle) time.Time { return c.EndDate })
}

// DueForDigest returns closed cycles whose digest date is reached.
func DueForDigest(cycles []*Cycle, asOf time.Time) []*Cycle {
	return filterDue(cycles, func(c *Cycle) bool {
		return c.Status.Equal(StatusClosed) && !c.DigestDate.After(asOf)
	}, func(c *Cycle) time.Time { return c.DigestDate })
}

func filterDue(cycles []*Cycle, keep func(*Cycle) bool, key func(*Cycle) time.Time) []*Cycle {
	due := make([]*Cycle, 0)
	for _, c := range cycles {
		if keep(c) {
			due = append(due, c)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if key(due[i]).Equal(key(due[j])) {
			return due[i].ID < due[j].ID
		}
		return key(due[i]).Before(key(due[j]))
	})
	return due
}
