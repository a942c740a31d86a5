// Package bulk composes parsing, ordering, pre-flight checks and the batch
// executor into the three bulk actions of the CMS front end: chapter
// creation, chapter reordering and record deletion.
package bulk

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/cmsbulk/internal/cms"
	"github.com/rshade/cmsbulk/internal/engine/batch"
	"github.com/rshade/cmsbulk/internal/ingest"
	"github.com/rshade/cmsbulk/internal/logging"
)

// Operation names, also used as metric labels.
const (
	OpCreate  = "create"
	OpReorder = "reorder"
	OpDelete  = "delete"
)

// ErrNoAPI is returned when a Runner is built without a CMS client.
var ErrNoAPI = errors.New("bulk runner needs a CMS client")

// API is the subset of the CMS client the bulk actions use.
type API interface {
	Create(ctx context.Context, collection string, fields any) (cms.RecordID, error)
	Update(ctx context.Context, collection string, id cms.RecordID, fields any) error
	Delete(ctx context.Context, collection string, id cms.RecordID) error
	ExistsBy(ctx context.Context, collection, field, value string) (bool, error)
	ListChapters(ctx context.Context, collection string, workID cms.RecordID) ([]cms.Chapter, error)
}

// Settings holds the pacing and collection names shared by all actions.
type Settings struct {
	BatchSize          int
	Delay              time.Duration
	ChaptersCollection string
	// WorksCollection, when set, is checked for the parent work before a
	// chapter action.
	WorksCollection string
	// LookupConcurrency bounds parallel pre-flight existence checks.
	LookupConcurrency int
}

// Runner executes bulk actions against one CMS.
type Runner struct {
	api      API
	settings Settings
	logger   zerolog.Logger
}

// NewRunner builds a Runner.
func NewRunner(api API, settings Settings, logger zerolog.Logger) (*Runner, error) {
	if api == nil {
		return nil, ErrNoAPI
	}
	if settings.LookupConcurrency < 1 {
		settings.LookupConcurrency = defaultLookupConcurrency
	}
	return &Runner{api: api, settings: settings, logger: logger}, nil
}

const defaultLookupConcurrency = 4

// RunOptions are the per-invocation hooks supplied by the caller.
type RunOptions struct {
	Token      *batch.CancelToken
	OnProgress batch.ProgressFunc
	Observer   batch.Observer
	DryRun     bool
}

// Planned is one mutation a dry run would submit.
type Planned struct {
	Sequence int
	Label    string
	Detail   string
}

// Unresolved is an input that still needs to be submitted: it failed, or the
// job stopped before reaching it.
type Unresolved struct {
	Sequence int
	Label    string
	Status   batch.Status
	Error    string
	// Resubmit is the input line that would retry this item.
	Resubmit string
}

// Result is the outcome of one bulk action.
type Result struct {
	JobID       string
	Operation   string
	DryRun      bool
	Summary     batch.Summary
	Planned     []Planned
	ParseErrors []*ingest.ParseError
	Skipped     []Skip
	Unresolved  []Unresolved
}

// Resubmit returns the input lines of every unresolved item.
func (r *Result) Resubmit() []string {
	out := make([]string, 0, len(r.Unresolved))
	for _, u := range r.Unresolved {
		if u.Resubmit != "" {
			out = append(out, u.Resubmit)
		}
	}
	return out
}

// describe turns a payload into its user-facing label and resubmission line.
type describe[T any] func(T) (label, resubmit string)

// execute runs payloads as one job and fills in the result.
func execute[T any](
	ctx context.Context,
	r *Runner,
	res *Result,
	items []batch.WorkItem[T],
	mutate batch.MutationFunc[T],
	desc describe[T],
	opts RunOptions,
) error {
	if len(items) == 0 {
		res.Summary = emptySummary(res.JobID)
		return nil
	}

	if opts.DryRun {
		for _, it := range items {
			label, line := desc(it.Payload)
			res.Planned = append(res.Planned, Planned{Sequence: it.SequenceIndex, Label: label, Detail: line})
		}
		res.Summary = batch.Summary{JobID: res.JobID, NotAttempted: len(items), Total: len(items), State: batch.StateIdle}
		return nil
	}

	jobOpts := []batch.Option{
		batch.WithID(res.JobID),
		batch.WithLogger(logging.ComponentLogger(r.logger, "batch").With().Str("operation", res.Operation).Logger()),
	}
	if opts.OnProgress != nil {
		jobOpts = append(jobOpts, batch.WithProgress(opts.OnProgress))
	}
	if opts.Observer != nil {
		jobOpts = append(jobOpts, batch.WithObserver(opts.Observer))
	}

	job, err := batch.NewJob(items, r.settings.BatchSize, r.settings.Delay, jobOpts...)
	if err != nil {
		return err
	}

	summary, err := job.Run(ctx, mutate, opts.Token)
	if err != nil {
		return err
	}
	res.Summary = summary

	for _, it := range job.Unresolved() {
		label, line := desc(it.Payload)
		res.Unresolved = append(res.Unresolved, Unresolved{
			Sequence: it.SequenceIndex,
			Label:    label,
			Status:   it.Status,
			Error:    it.Error,
			Resubmit: line,
		})
	}
	return nil
}

func emptySummary(jobID string) batch.Summary {
	return batch.Summary{
		JobID:          jobID,
		Percentage:     100,
		State:          batch.StateCompleted,
		Classification: batch.AllSucceeded,
	}
}

func newResult(op string) *Result {
	return &Result{JobID: logging.NewID(), Operation: op}
}
