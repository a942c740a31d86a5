package bulk

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rshade/cmsbulk/internal/cms"
	"github.com/rshade/cmsbulk/internal/engine/batch"
	"github.com/rshade/cmsbulk/internal/engine/order"
	"github.com/rshade/cmsbulk/internal/ingest"
)

const (
	// urlField is the unique key of a chapter within its work.
	urlField = "url"
	idField  = "id"
)

var (
	// ErrMissingWork is returned when a chapter action has no parent work.
	ErrMissingWork = errors.New("work id is required")
	// ErrWorkNotFound is returned when the parent work is not in the works collection.
	ErrWorkNotFound = errors.New("work not found")
)

// CreateRequest describes a bulk chapter creation.
type CreateRequest struct {
	WorkID        cms.RecordID
	ContributorID cms.RecordID
	// Input holds "Title ; Volume ; URL" or "Title ; URL" lines.
	Input string
}

// chapterDraft is a validated input line with its assigned order.
type chapterDraft struct {
	line    ingest.ParsedLine
	chapter cms.Chapter
}

// CreateChapters parses the input, drops malformed lines and URLs that
// already exist, numbers the rest after the work's current last chapter and
// creates them in rate-limited groups.
func (r *Runner) CreateChapters(ctx context.Context, req CreateRequest, opts RunOptions) (*Result, error) {
	if req.WorkID == "" {
		return nil, ErrMissingWork
	}
	res := newResult(OpCreate)
	res.DryRun = opts.DryRun
	log := r.logger.With().Str("job_id", res.JobID).Str("operation", OpCreate).Logger()

	lines := ingest.ParseChapterLines(req.Input, 0)
	res.ParseErrors = ingest.Errors(lines)
	valid := ingest.ValidLines(lines)
	log.Info().Int("valid", len(valid)).Int("invalid", len(res.ParseErrors)).Msg("input parsed")

	if err := r.requireWork(ctx, req.WorkID); err != nil {
		return nil, err
	}
	existing, err := r.api.ListChapters(ctx, r.settings.ChaptersCollection, req.WorkID)
	if err != nil {
		return nil, fmt.Errorf("loading chapters of work %s: %w", req.WorkID, err)
	}

	known := make(map[string]bool, len(existing))
	for _, c := range existing {
		known[c.URL] = true
	}
	kept, skipped, err := r.excludeDuplicates(ctx, valid, known)
	if err != nil {
		return nil, err
	}
	res.Skipped = skipped

	currentMax := order.MaxIndex(existing, func(c cms.Chapter) int { return c.OrderIndex })

	assignments := order.Append(kept, currentMax, nil)
	drafts := make([]chapterDraft, len(assignments))
	for i, a := range assignments {
		drafts[i] = chapterDraft{
			line: a.Record,
			chapter: cms.Chapter{
				Title:         a.Record.Title,
				VolumeLabel:   a.Record.VolumeLabel,
				URL:           a.Record.URL,
				OrderIndex:    a.To,
				WorkID:        req.WorkID,
				ContributorID: req.ContributorID,
			},
		}
	}
	log.Info().
		Int("to_create", len(drafts)).
		Int("skipped", len(skipped)).
		Int("current_max_order", currentMax).
		Msg("creation planned")

	items := make([]batch.WorkItem[chapterDraft], len(drafts))
	for i, d := range drafts {
		items[i] = batch.WorkItem[chapterDraft]{SequenceIndex: d.line.Sequence, Payload: d}
	}

	collection := r.settings.ChaptersCollection
	mutate := func(ctx context.Context, d chapterDraft) error {
		_, err := r.api.Create(ctx, collection, d.chapter)
		return err
	}
	desc := func(d chapterDraft) (string, string) {
		label := fmt.Sprintf("#%d %s", d.chapter.OrderIndex, d.chapter.Title)
		return label, ingest.FormatChapterLine(d.chapter.Title, d.chapter.VolumeLabel, d.chapter.URL)
	}

	if err := execute(ctx, r, res, items, mutate, desc, opts); err != nil {
		return nil, err
	}
	return res, nil
}

// requireWork checks that the parent work exists. It is a no-op when no
// works collection is configured.
func (r *Runner) requireWork(ctx context.Context, workID cms.RecordID) error {
	if r.settings.WorksCollection == "" {
		return nil
	}
	found, err := r.api.ExistsBy(ctx, r.settings.WorksCollection, idField, workID.String())
	if err != nil {
		return fmt.Errorf("looking up work %s: %w", workID, err)
	}
	if !found {
		return fmt.Errorf("%w: %s in %s", ErrWorkNotFound, workID, r.settings.WorksCollection)
	}
	return nil
}

// excludeDuplicates drops lines whose URL repeats earlier in the input,
// belongs to one of the work's known chapters, or exists elsewhere in the
// chapters collection. Only URLs missing from known are looked up. A failed
// lookup aborts the action: without it uniqueness cannot be guaranteed.
func (r *Runner) excludeDuplicates(ctx context.Context, lines []ingest.ParsedLine, known map[string]bool) ([]ingest.ParsedLine, []Skip, error) {
	var skipped []Skip
	firstSeen := make(map[string]int, len(lines))
	unique := make([]ingest.ParsedLine, 0, len(lines))
	for _, l := range lines {
		if first, dup := firstSeen[l.URL]; dup {
			skipped = append(skipped, Skip{
				LineNumber: l.LineNumber,
				Label:      l.Title,
				Reason:     &DuplicateKeyError{Field: urlField, Value: l.URL, InInput: true, FirstLine: first},
			})
			continue
		}
		firstSeen[l.URL] = l.LineNumber
		unique = append(unique, l)
	}

	exists := make([]bool, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.settings.LookupConcurrency)
	for i, l := range unique {
		if known[l.URL] {
			exists[i] = true
			continue
		}
		g.Go(func() error {
			found, err := r.api.ExistsBy(gctx, r.settings.ChaptersCollection, urlField, l.URL)
			if err != nil {
				return fmt.Errorf("checking line %d (%s): %w", l.LineNumber, l.URL, err)
			}
			exists[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	kept := make([]ingest.ParsedLine, 0, len(unique))
	for i, l := range unique {
		if exists[i] {
			skipped = append(skipped, Skip{
				LineNumber: l.LineNumber,
				Label:      l.Title,
				Reason:     &DuplicateKeyError{Field: urlField, Value: l.URL},
			})
			continue
		}
		kept = append(kept, l)
	}

	sortSkips(skipped)
	return kept, skipped, nil
}

func sortSkips(skips []Skip) {
	sort.SliceStable(skips, func(a, b int) bool {
		return skips[a].LineNumber < skips[b].LineNumber
	})
}
