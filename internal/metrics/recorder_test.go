package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/cmsbulk/internal/engine/batch"
)

func TestRecorder_ObservesJob(t *testing.T) {
	rec := NewRecorder("delete")

	items := batch.NewItems([]int{1, 2, 3, 4, 5}, 1)
	job, err := batch.NewJob(items, 2, 0, batch.WithObserver(rec))
	require.NoError(t, err)

	_, err = job.Run(context.Background(), func(_ context.Context, p int) error {
		if p == 3 {
			return errors.New("gone")
		}
		return nil
	}, nil)
	require.NoError(t, err)

	assert.InDelta(t, 4, testutil.ToFloat64(rec.items.WithLabelValues("delete", "succeeded")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.items.WithLabelValues("delete", "failed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.jobs.WithLabelValues("delete", "partial failure")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(rec.notAttempted.WithLabelValues("delete")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(rec.groupDuration))
}

func TestRecorder_CancelledJob(t *testing.T) {
	rec := NewRecorder("create")
	rec.OnGroupSettled(batch.GroupResult{Size: 2, Succeeded: 2, Duration: 10 * time.Millisecond})
	rec.OnJobFinished(batch.Summary{Completed: 2, NotAttempted: 6, Total: 8, Classification: batch.Cancelled})

	assert.InDelta(t, 6, testutil.ToFloat64(rec.notAttempted.WithLabelValues("create")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(rec.jobs.WithLabelValues("create", "cancelled")), 0)
}

func TestRecorder_WriteTextfile(t *testing.T) {
	rec := NewRecorder("reorder")
	rec.OnJobFinished(batch.Summary{Classification: batch.AllSucceeded})

	path := filepath.Join(t.TempDir(), "cmsbulk.prom")
	require.NoError(t, rec.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `cmsbulk_jobs_total{classification="all succeeded",operation="reorder"} 1`)

	assert.Error(t, rec.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")))
}
