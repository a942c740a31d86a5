package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Default batch processing configuration.
const (
	// DefaultBatchSize is the default number of items dispatched per group.
	DefaultBatchSize = 80

	// DefaultInterBatchDelay is the default pause between two groups.
	DefaultInterBatchDelay = time.Second

	// MinBatchSize is the minimum allowed batch size.
	MinBatchSize = 1

	// MaxBatchSize is the maximum allowed batch size.
	MaxBatchSize = 1000
)

// Common batch processing errors.
var (
	ErrInvalidBatchSize = errors.New("batch size must be between 1 and 1000")
	ErrNegativeDelay    = errors.New("inter-batch delay cannot be negative")
	ErrNilMutation      = errors.New("mutation function cannot be nil")
	ErrEmptyItems       = errors.New("items slice cannot be empty")
	ErrJobNotIdle       = errors.New("job has already been started")
	ErrMutationPanic    = errors.New("mutation panicked")
)

// ProgressFunc receives a snapshot after every settled group.
type ProgressFunc func(Snapshot)

// GroupResult describes one settled group.
type GroupResult struct {
	JobID     string
	Index     int
	Size      int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Observer is notified of group and job outcomes, e.g. for metrics.
type Observer interface {
	OnGroupSettled(result GroupResult)
	OnJobFinished(summary Summary)
}

// Option configures a Job.
type Option func(*jobOptions)

type jobOptions struct {
	id         string
	onProgress ProgressFunc
	observer   Observer
	logger     zerolog.Logger
}

// WithID tags snapshots, summaries and log lines with a job identifier.
func WithID(id string) Option {
	return func(o *jobOptions) { o.id = id }
}

// WithProgress registers a progress callback. It runs on the goroutine that called Run.
func WithProgress(fn ProgressFunc) Option {
	return func(o *jobOptions) { o.onProgress = fn }
}

// WithObserver registers an Observer.
func WithObserver(obs Observer) Option {
	return func(o *jobOptions) { o.observer = obs }
}

// WithLogger sets the logger used for group and job events.
func WithLogger(l zerolog.Logger) Option {
	return func(o *jobOptions) { o.logger = l }
}

// Job is a single bulk action: an ordered list of work items executed in groups.
// A Job runs at most once; a retry needs a new Job.
type Job[T any] struct {
	batchSize int
	delay     time.Duration
	opts      jobOptions

	// mu protects everything below against concurrent Snapshot/Items readers.
	mu         sync.RWMutex
	items      []WorkItem[T]
	state      State
	completed  int
	failed     int
	groupsDone int
	startTime  time.Time
	endTime    time.Time
}

// NewJob validates the parameters and returns an Idle job owning a copy of items.
func NewJob[T any](items []WorkItem[T], batchSize int, delay time.Duration, opts ...Option) (*Job[T], error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	if batchSize < MinBatchSize || batchSize > MaxBatchSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}
	if delay < 0 {
		return nil, fmt.Errorf("%w: got %s", ErrNegativeDelay, delay)
	}

	o := jobOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	owned := make([]WorkItem[T], len(items))
	copy(owned, items)
	for i := range owned {
		owned[i].Status = StatusPending
		owned[i].Error = ""
	}

	return &Job[T]{
		batchSize: batchSize,
		delay:     delay,
		opts:      o,
		items:     owned,
		state:     StateIdle,
	}, nil
}

// ID returns the job identifier set with WithID.
func (j *Job[T]) ID() string {
	return j.opts.id
}

// BatchSize returns the configured group size.
func (j *Job[T]) BatchSize() int {
	return j.batchSize
}

// Groups returns the [start, end) bounds of every group.
func (j *Job[T]) Groups() [][2]int {
	return CalculateGroups(len(j.items), j.batchSize)
}

// Run executes the job. It returns ErrJobNotIdle if the job was run before and
// ErrNilMutation if mutate is nil; item failures never surface as an error.
//
// The token and ctx are checked before each group and after the last one.
// Once either fires, no further group is scheduled and the job ends
// Cancelled; the group in flight always finishes and is recorded. ctx is also passed to every mutation.
func (j *Job[T]) Run(ctx context.Context, mutate MutationFunc[T], token *CancelToken) (Summary, error) {
	if mutate == nil {
		return Summary{}, ErrNilMutation
	}
	if token == nil {
		token = NewCancelToken()
	}

	j.mu.Lock()
	if j.state != StateIdle {
		j.mu.Unlock()
		return j.Summary(), ErrJobNotIdle
	}
	j.state = StateRunning
	j.startTime = time.Now()
	j.mu.Unlock()

	log := j.opts.logger.With().Str("job_id", j.opts.id).Logger()
	groups := j.Groups()
	log.Info().
		Int("items", len(j.items)).
		Int("groups", len(groups)).
		Int("batch_size", j.batchSize).
		Dur("delay", j.delay).
		Msg("job started")

	for gi, bounds := range groups {
		if token.IsRequested() || ctx.Err() != nil {
			log.Warn().Int("next_group", gi).Msg("cancellation observed, remaining groups skipped")
			return j.finish(StateCancelled), nil
		}

		started := time.Now()
		errs := j.runGroup(ctx, bounds[0], bounds[1], mutate)
		result := j.applyGroup(gi, bounds[0], errs, time.Since(started))

		log.Debug().
			Int("group", gi).
			Int("size", result.Size).
			Int("succeeded", result.Succeeded).
			Int("failed", result.Failed).
			Dur("duration", result.Duration).
			Msg("group settled")

		if j.opts.observer != nil {
			j.opts.observer.OnGroupSettled(result)
		}
		if j.opts.onProgress != nil {
			j.opts.onProgress(j.Snapshot())
		}

		if gi < len(groups)-1 {
			j.pause(ctx, token)
		}
	}

	// A stop requested while the last group was in flight still cancels the job.
	if token.IsRequested() || ctx.Err() != nil {
		log.Warn().Msg("cancellation observed during the last group")
		return j.finish(StateCancelled), nil
	}
	return j.finish(StateCompleted), nil
}

// runGroup dispatches items[start:end] concurrently and waits for all of them.
// Every goroutine returns nil so no outcome can cut its siblings short.
func (j *Job[T]) runGroup(ctx context.Context, start, end int, mutate MutationFunc[T]) []error {
	errs := make([]error, end-start)

	var g errgroup.Group
	for i := start; i < end; i++ {
		slot := i - start
		payload := j.items[i].Payload
		g.Go(func() error {
			errs[slot] = invoke(ctx, mutate, payload)
			return nil
		})
	}
	_ = g.Wait()

	return errs
}

func invoke[T any](ctx context.Context, mutate MutationFunc[T], payload T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMutationPanic, r)
		}
	}()
	return mutate(ctx, payload)
}

// applyGroup records the outcomes of one settled group.
func (j *Job[T]) applyGroup(index, start int, errs []error, dur time.Duration) GroupResult {
	j.mu.Lock()
	defer j.mu.Unlock()

	result := GroupResult{JobID: j.opts.id, Index: index, Size: len(errs), Duration: dur}
	for k, err := range errs {
		item := &j.items[start+k]
		if err != nil {
			item.Status = StatusFailed
			item.Error = err.Error()
			j.failed++
			result.Failed++
			continue
		}
		item.Status = StatusSucceeded
		j.completed++
		result.Succeeded++
	}
	j.groupsDone++

	return result
}

// pause waits out the inter-batch delay, returning early on cancellation.
func (j *Job[T]) pause(ctx context.Context, token *CancelToken) {
	if j.delay <= 0 || token.IsRequested() {
		return
	}
	timer := time.NewTimer(j.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-token.Done():
	case <-ctx.Done():
	}
}

func (j *Job[T]) finish(state State) Summary {
	j.mu.Lock()
	j.state = state
	j.endTime = time.Now()
	j.mu.Unlock()

	summary := j.Summary()
	j.opts.logger.Info().
		Str("job_id", j.opts.id).
		Str("state", state.String()).
		Str("classification", summary.Classification.String()).
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Int("not_attempted", summary.NotAttempted).
		Dur("elapsed", summary.Elapsed).
		Msg("job finished")

	if j.opts.observer != nil {
		j.opts.observer.OnJobFinished(summary)
	}
	return summary
}

// State returns the current lifecycle state.
func (j *Job[T]) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Snapshot returns a thread-safe copy of the current progress.
func (j *Job[T]) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	total := len(j.items)
	return Snapshot{
		JobID:      j.opts.id,
		Completed:  j.completed,
		Failed:     j.failed,
		Total:      total,
		Percentage: Percentage(j.completed+j.failed, total),
		Running:    j.state == StateRunning,
		State:      j.state,
		GroupsDone: j.groupsDone,
		Groups:     calculateTotalGroups(total, j.batchSize),
		Elapsed:    j.elapsedLocked(),
	}
}

// Summary returns the tally. Classification is only meaningful once the
// job is in a terminal state.
func (j *Job[T]) Summary() Summary {
	j.mu.RLock()
	defer j.mu.RUnlock()

	total := len(j.items)
	return Summary{
		JobID:          j.opts.id,
		Completed:      j.completed,
		Failed:         j.failed,
		NotAttempted:   total - j.completed - j.failed,
		Total:          total,
		Percentage:     Percentage(j.completed+j.failed, total),
		State:          j.state,
		Classification: Classify(j.state, j.completed, j.failed, total),
		Elapsed:        j.elapsedLocked(),
	}
}

// Items returns a copy of every work item in input order.
func (j *Job[T]) Items() []WorkItem[T] {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]WorkItem[T], len(j.items))
	copy(out, j.items)
	return out
}

// Unresolved returns the items that need resubmission: failed ones and,
// after a cancellation, the ones never attempted.
func (j *Job[T]) Unresolved() []WorkItem[T] {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []WorkItem[T]
	for _, it := range j.items {
		if it.Status != StatusSucceeded {
			out = append(out, it)
		}
	}
	return out
}

func (j *Job[T]) elapsedLocked() time.Duration {
	switch {
	case j.startTime.IsZero():
		return 0
	case j.endTime.IsZero():
		return time.Since(j.startTime)
	default:
		return j.endTime.Sub(j.startTime)
	}
}

// CalculateGroups returns the [start, end) bounds of ceil(total/size) groups.
func CalculateGroups(total, size int) [][2]int {
	count := calculateTotalGroups(total, size)
	groups := make([][2]int, count)

	for i := range count {
		start := i * size
		end := start + size
		if end > total {
			end = total
		}
		groups[i] = [2]int{start, end}
	}

	return groups
}

// calculateTotalGroups calculates the number of groups needed for the given item count.
func calculateTotalGroups(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	groups := total / size
	if total%size > 0 {
		groups++
	}
	return groups
}
