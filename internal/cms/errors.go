package cms

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 512

// ErrEmptyID is returned when an update or delete has no record id.
var ErrEmptyID = errors.New("record id cannot be empty")

// StatusError means the CMS answered with a non-2xx status.
// Authentication failures are reported this way too; nothing retries them.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}

// Temporary reports whether the status may succeed on a later attempt.
// Only server errors qualify; 4xx answers, 429 included, are final.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
