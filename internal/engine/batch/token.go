package batch

import "sync"

// CancelToken is a one-shot cancellation flag shared between the caller and a Job.
// The zero value is ready to use.
type CancelToken struct {
	initOnce sync.Once
	reqOnce  sync.Once
	done     chan struct{}
}

// NewCancelToken returns an unrequested token.
func NewCancelToken() *CancelToken {
	t := &CancelToken{}
	t.init()
	return t
}

func (t *CancelToken) init() {
	t.initOnce.Do(func() {
		t.done = make(chan struct{})
	})
}

// Request sets the flag. Calls after the first are no-ops.
func (t *CancelToken) Request() {
	t.init()
	t.reqOnce.Do(func() {
		close(t.done)
	})
}

// IsRequested reports whether Request has been called.
func (t *CancelToken) IsRequested() bool {
	t.init()
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed once the token is requested.
func (t *CancelToken) Done() <-chan struct{} {
	t.init()
	return t.done
}
