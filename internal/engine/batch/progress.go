package batch

import (
	"fmt"
	"time"
)

// percentMultiplier converts a ratio to a percentage (0-100).
const percentMultiplier = 100

// State is the lifecycle state of a Job.
type State int

// Job states. Completed and Cancelled are terminal.
const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Classification is the final verdict of a terminal job.
type Classification int

// Job classifications.
const (
	AllSucceeded Classification = iota
	PartialFailure
	Cancelled
	AllFailed
)

func (c Classification) String() string {
	switch c {
	case AllSucceeded:
		return "all succeeded"
	case PartialFailure:
		return "partial failure"
	case Cancelled:
		return "cancelled"
	case AllFailed:
		return "all failed"
	default:
		return "unknown"
	}
}

// Classify derives the classification from a terminal state and counters.
// Cancellation wins over every count-based verdict.
func Classify(state State, completed, failed, total int) Classification {
	switch {
	case state == StateCancelled:
		return Cancelled
	case failed == 0:
		return AllSucceeded
	case failed >= total:
		return AllFailed
	default:
		return PartialFailure
	}
}

// Percentage returns round(100*resolved/total) using integer math so that
// resolved == total always yields exactly 100.
func Percentage(resolved, total int) int {
	if total <= 0 {
		return 0
	}
	if resolved >= total {
		return percentMultiplier
	}
	if resolved <= 0 {
		return 0
	}
	return (resolved*2*percentMultiplier + total) / (2 * total)
}

// Snapshot is an immutable view of a job's progress.
type Snapshot struct {
	JobID      string
	Completed  int
	Failed     int
	Total      int
	Percentage int
	Running    bool
	State      State
	GroupsDone int
	Groups     int
	Elapsed    time.Duration
}

// Resolved is the number of items with a non-Pending status.
func (s Snapshot) Resolved() int {
	return s.Completed + s.Failed
}

// Summary is the final tally of a job.
type Summary struct {
	JobID          string
	Completed      int
	Failed         int
	NotAttempted   int
	Total          int
	Percentage     int
	State          State
	Classification Classification
	Elapsed        time.Duration
}

// String renders the tally in the form shown to users.
func (s Summary) String() string {
	if s.NotAttempted > 0 {
		return fmt.Sprintf("%s: %d succeeded, %d failed, %d not attempted (of %d)",
			s.Classification, s.Completed, s.Failed, s.NotAttempted, s.Total)
	}
	return fmt.Sprintf("%s: %d succeeded, %d failed (of %d)",
		s.Classification, s.Completed, s.Failed, s.Total)
}
