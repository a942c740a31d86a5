package cli

import (
	"fmt"

	"github.com/rshade/cmsbulk/internal/engine/batch"
)

// Process exit codes.
const (
	ExitCodeOK        = 0
	ExitCodeError     = 1
	ExitCodeFailures  = 2
	ExitCodeCancelled = 3
)

// ExitError carries a non-zero exit code for a command that ran to the end
// but did not fully succeed. main extracts it with errors.As.
type ExitError struct {
	ExitCode int
	Reason   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s (exit code %d)", e.Reason, e.ExitCode)
}

// exitErrorFor maps a job classification to an exit error, or nil.
func exitErrorFor(s batch.Summary) error {
	switch s.Classification {
	case batch.AllSucceeded:
		return nil
	case batch.Cancelled:
		return &ExitError{ExitCode: ExitCodeCancelled, Reason: s.String()}
	default:
		return &ExitError{ExitCode: ExitCodeFailures, Reason: s.String()}
	}
}
