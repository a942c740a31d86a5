package bulk

import (
	"context"
	"errors"

	"github.com/rshade/cmsbulk/internal/cms"
	"github.com/rshade/cmsbulk/internal/engine/batch"
	"github.com/rshade/cmsbulk/internal/ingest"
)

// ErrMissingCollection is returned when a delete names no collection.
var ErrMissingCollection = errors.New("collection is required")

// DeleteRequest describes a bulk deletion.
type DeleteRequest struct {
	Collection string
	// IDs is a comma or whitespace separated identifier list.
	IDs string
}

// DeleteRecords deletes every listed record of a collection.
func (r *Runner) DeleteRecords(ctx context.Context, req DeleteRequest, opts RunOptions) (*Result, error) {
	if req.Collection == "" {
		return nil, ErrMissingCollection
	}
	res := newResult(OpDelete)
	res.DryRun = opts.DryRun

	ids := ingest.ParseIDList(req.IDs)
	payloads := make([]cms.RecordID, len(ids))
	for i, id := range ids {
		payloads[i] = cms.RecordID(id)
	}
	r.logger.Info().
		Str("job_id", res.JobID).
		Str("operation", OpDelete).
		Str("collection", req.Collection).
		Int("records", len(payloads)).
		Msg("deletion planned")

	mutate := func(ctx context.Context, id cms.RecordID) error {
		return r.api.Delete(ctx, req.Collection, id)
	}
	desc := func(id cms.RecordID) (string, string) {
		return req.Collection + "/" + id.String(), id.String()
	}

	if err := execute(ctx, r, res, batch.NewItems(payloads, 1), mutate, desc, opts); err != nil {
		return nil, err
	}
	return res, nil
}
