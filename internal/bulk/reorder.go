package bulk

import (
	"context"
	"fmt"

	"github.com/rshade/cmsbulk/internal/cms"
	"github.com/rshade/cmsbulk/internal/engine/batch"
	"github.com/rshade/cmsbulk/internal/engine/order"
)

// ReorderRequest describes a chapter reindex of one work.
type ReorderRequest struct {
	WorkID cms.RecordID
}

type reorderPatch struct {
	id    cms.RecordID
	title string
	from  int
	to    int
}

// ReorderChapters rewrites a work's chapter order to 1..N following the
// current ascending order. Only chapters whose index changes are updated.
func (r *Runner) ReorderChapters(ctx context.Context, req ReorderRequest, opts RunOptions) (*Result, error) {
	if req.WorkID == "" {
		return nil, ErrMissingWork
	}
	res := newResult(OpReorder)
	res.DryRun = opts.DryRun

	if err := r.requireWork(ctx, req.WorkID); err != nil {
		return nil, err
	}
	chapters, err := r.api.ListChapters(ctx, r.settings.ChaptersCollection, req.WorkID)
	if err != nil {
		return nil, fmt.Errorf("loading chapters of work %s: %w", req.WorkID, err)
	}

	all := order.Reindex(chapters, func(c cms.Chapter) int { return c.OrderIndex })
	changed := order.Changed(all)
	r.logger.Info().
		Str("job_id", res.JobID).
		Str("operation", OpReorder).
		Int("chapters", len(chapters)).
		Int("changed", len(changed)).
		Msg("reindex planned")

	items := make([]batch.WorkItem[reorderPatch], len(changed))
	for i, a := range changed {
		items[i] = batch.WorkItem[reorderPatch]{
			SequenceIndex: a.To,
			Payload:       reorderPatch{id: a.Record.ID, title: a.Record.Title, from: a.From, to: a.To},
		}
	}

	collection := r.settings.ChaptersCollection
	mutate := func(ctx context.Context, p reorderPatch) error {
		return r.api.Update(ctx, collection, p.id, cms.OrderPatch{OrderIndex: p.to})
	}
	desc := func(p reorderPatch) (string, string) {
		return fmt.Sprintf("%s (id %s)", p.title, p.id), fmt.Sprintf("%s: %d -> %d", p.id, p.from, p.to)
	}

	if err := execute(ctx, r, res, items, mutate, desc, opts); err != nil {
		return nil, err
	}
	return res, nil
}
