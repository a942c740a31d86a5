package bulk

import "fmt"

// DuplicateKeyError marks an input excluded before scheduling because its
// unique key already exists remotely or earlier in the same input.
type DuplicateKeyError struct {
	Field   string
	Value   string
	InInput bool
	// FirstLine is the earlier input line holding the same key, when InInput.
	FirstLine int
}

func (e *DuplicateKeyError) Error() string {
	if e.InInput {
		return fmt.Sprintf("%s %q repeats input line %d", e.Field, e.Value, e.FirstLine)
	}
	return fmt.Sprintf("%s %q already exists", e.Field, e.Value)
}

// Skip is an input that was left out of the job. Skips are neither
// completed nor failed; they form their own bucket in the final tally.
type Skip struct {
	LineNumber int
	Label      string
	Reason     error
}
