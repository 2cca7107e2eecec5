// internal/domain/cycle/status.go
package cycle

import "fmt"

// Status is the lifecycle state of a question cycle.
type Status string

const (
	StatusScheduled Status = "scheduled" // initial
	StatusActive    Status = "active"    // accepting answers
	StatusClosed    Status = "closed"    // waiting for the digest
	StatusCompleted Status = "completed" // digest sent, terminal
)

var statusOrder = map[Status]int{
	StatusScheduled: 0,
	StatusActive:    1,
	StatusClosed:    2,
	StatusCompleted: 3,
}

// ParseStatus converts a stored or user-supplied value into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown cycle status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// Equal reports whether both values name the same state.
func (s Status) Equal(other Status) bool {
	return s.Valid() && s == other
}

// next returns the only state s may move forward to.
func (s Status) next() (Status, bool) {
	switch s {
	case StatusScheduled:
		return StatusActive, true
	case StatusActive:
		return StatusClosed, true
	case StatusClosed:
		return StatusCompleted, true
	default:
		return "", false
	}
}

func (s Status) String() string { return string(s) }
