package batch

import "context"

// Status is the resolution state of a single work item.
type Status int

// Work item statuses.
const (
	StatusPending Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// WorkItem is one remote mutation plus its outcome bookkeeping.
// Only the owning Job changes Status and Error.
type WorkItem[T any] struct {
	SequenceIndex int
	Payload       T
	Status        Status
	Error         string
}

// MutationFunc performs the remote write for one payload.
// A nil return marks the item as succeeded.
type MutationFunc[T any] func(ctx context.Context, payload T) error

// NewItems wraps payloads as Pending work items numbered from firstSeq.
func NewItems[T any](payloads []T, firstSeq int) []WorkItem[T] {
	items := make([]WorkItem[T], len(payloads))
	for i, p := range payloads {
		items[i] = WorkItem[T]{
			SequenceIndex: firstSeq + i,
			Payload:       p,
			Status:        StatusPending,
		}
	}
	return items
}
