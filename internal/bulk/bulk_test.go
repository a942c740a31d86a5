package bulk_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/cmsbulk/internal/bulk"
	"github.com/rshade/cmsbulk/internal/cms"
	"github.com/rshade/cmsbulk/internal/engine/batch"
)

const chapters = "chapters"

// fakeAPI is an in-memory CMS.
type fakeAPI struct {
	mu sync.Mutex

	chapters  []cms.Chapter
	existing  map[string]bool
	created   []cms.Chapter
	updated   map[cms.RecordID]int
	deleted   []cms.RecordID
	nextID    int
	failTitle map[string]error
	failID    map[cms.RecordID]error
	lookupErr error
	listErr   error

	// works holds the work ids the works collection contains.
	works map[string]bool
	// lookups records every chapter URL checked with ExistsBy.
	lookups []string

	// afterCreate runs after each successful create.
	afterCreate func(n int)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		existing:  map[string]bool{},
		updated:   map[cms.RecordID]int{},
		failTitle: map[string]error{},
		failID:    map[cms.RecordID]error{},
		nextID:    100,
	}
}

func (f *fakeAPI) Create(_ context.Context, collection string, fields any) (cms.RecordID, error) {
	ch, ok := fields.(cms.Chapter)
	if !ok || collection != chapters {
		return "", fmt.Errorf("unexpected create %s %T", collection, fields)
	}
	f.mu.Lock()
	if err := f.failTitle[ch.Title]; err != nil {
		f.mu.Unlock()
		return "", err
	}
	f.nextID++
	ch.ID = cms.RecordID(fmt.Sprint(f.nextID))
	f.created = append(f.created, ch)
	n := len(f.created)
	hook := f.afterCreate
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return ch.ID, nil
}

func (f *fakeAPI) Update(_ context.Context, _ string, id cms.RecordID, fields any) error {
	patch, ok := fields.(cms.OrderPatch)
	if !ok {
		return fmt.Errorf("unexpected update body %T", fields)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failID[id]; err != nil {
		return err
	}
	f.updated[id] = patch.OrderIndex
	return nil
}

func (f *fakeAPI) Delete(_ context.Context, _ string, id cms.RecordID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failID[id]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAPI) ExistsBy(_ context.Context, _ string, field, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return false, f.lookupErr
	}
	switch field {
	case "id":
		return f.works[value], nil
	case "url":
		f.lookups = append(f.lookups, value)
		return f.existing[value], nil
	default:
		return false, fmt.Errorf("unexpected field %s", field)
	}
}

func (f *fakeAPI) ListChapters(context.Context, string, cms.RecordID) ([]cms.Chapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]cms.Chapter(nil), f.chapters...), nil
}

func newRunner(t *testing.T, api bulk.API, batchSize int) *bulk.Runner {
	t.Helper()
	r, err := bulk.NewRunner(api, bulk.Settings{
		BatchSize:          batchSize,
		ChaptersCollection: chapters,
	}, zerolog.Nop())
	require.NoError(t, err)
	return r
}

func chapterInput(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "Chapter %d ; https://example.org/c/%d\n", i, i)
	}
	return b.String()
}

func TestNewRunner_NilAPI(t *testing.T) {
	_, err := bulk.NewRunner(nil, bulk.Settings{}, zerolog.Nop())
	require.ErrorIs(t, err, bulk.ErrNoAPI)
}

func TestCreateChapters_AppendsAfterCurrentMax(t *testing.T) {
	api := newFakeAPI()
	api.chapters = []cms.Chapter{{ID: "1", OrderIndex: 2}, {ID: "2", OrderIndex: 7}}
	r := newRunner(t, api, 2)

	input := "One ; Vol 1 ; https://x/1\nTwo ; https://x/2\n\nThree ; https://x/3\n"
	res, err := r.CreateChapters(context.Background(), bulk.CreateRequest{WorkID: "9", ContributorID: "4", Input: input}, bulk.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, bulk.OpCreate, res.Operation)
	assert.NotEmpty(t, res.JobID)
	assert.Equal(t, batch.AllSucceeded, res.Summary.Classification)
	assert.Equal(t, 3, res.Summary.Completed)
	assert.Equal(t, 100, res.Summary.Percentage)
	assert.Empty(t, res.Unresolved)

	require.Len(t, api.created, 3)
	byTitle := map[string]cms.Chapter{}
	for _, c := range api.created {
		byTitle[c.Title] = c
	}
	assert.Equal(t, 8, byTitle["One"].OrderIndex)
	assert.Equal(t, "Vol 1", byTitle["One"].VolumeLabel)
	assert.Equal(t, 9, byTitle["Two"].OrderIndex)
	assert.Equal(t, 10, byTitle["Three"].OrderIndex)
	assert.Equal(t, cms.RecordID("9"), byTitle["Three"].WorkID)
	assert.Equal(t, cms.RecordID("4"), byTitle["Three"].ContributorID)
}

func TestCreateChapters_ParseErrorsAndDuplicates(t *testing.T) {
	api := newFakeAPI()
	api.existing["https://x/taken"] = true
	r := newRunner(t, api, 80)

	input := strings.Join([]string{
		"Good ; https://x/1",
		"missing separator",
		"Taken ; https://x/taken",
		"Again ; https://x/1",
		"Fine ; https://x/2",
	}, "\n")
	res, err := r.CreateChapters(context.Background(), bulk.CreateRequest{WorkID: "9", Input: input}, bulk.RunOptions{})
	require.NoError(t, err)

	require.Len(t, res.ParseErrors, 1)
	assert.Equal(t, 2, res.ParseErrors[0].LineNumber)

	require.Len(t, res.Skipped, 2)
	assert.Equal(t, 3, res.Skipped[0].LineNumber)
	var dup *bulk.DuplicateKeyError
	require.ErrorAs(t, res.Skipped[0].Reason, &dup)
	assert.False(t, dup.InInput)

	assert.Equal(t, 4, res.Skipped[1].LineNumber)
	require.ErrorAs(t, res.Skipped[1].Reason, &dup)
	assert.True(t, dup.InInput)
	assert.Equal(t, 1, dup.FirstLine)

	assert.Equal(t, 2, res.Summary.Total)
	assert.Equal(t, 2, res.Summary.Completed)
	assert.Len(t, api.created, 2)
}

func TestCreateChapters_NothingToDo(t *testing.T) {
	api := newFakeAPI()
	api.existing["https://x/1"] = true
	r := newRunner(t, api, 80)

	res, err := r.CreateChapters(context.Background(), bulk.CreateRequest{WorkID: "9", Input: "A ; https://x/1"}, bulk.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, batch.StateCompleted, res.Summary.State)
	assert.Equal(t, batch.AllSucceeded, res.Summary.Classification)
	assert.Equal(t, 100, res.Summary.Percentage)
	assert.Zero(t, res.Summary.Total)
	assert.Empty(t, api.created)
}

func TestCreateChapters_PartialFailureResubmit(t *testing.T) {
	api := newFakeAPI()
	api.failTitle["Chapter 81"] = errors.New("validation failed")
	r := newRunner(t, api, 80)

	res, err := r.CreateChapters(context.Background(), bulk.CreateRequest{WorkID: "9", Input: chapterInput(83)}, bulk.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, batch.PartialFailure, res.Summary.Classification)
	assert.Equal(t, 82, res.Summary.Completed)
	assert.Equal(t, 1, res.Summary.Failed)
	require.Len(t, res.Unresolved, 1)
	u := res.Unresolved[0]
	assert.Equal(t, 81, u.Sequence)
	assert.Equal(t, batch.StatusFailed, u.Status)
	assert.Contains(t, u.Error, "validation failed")
	assert.Equal(t, "#81 Chapter 81", u.Label)
	assert.Equal(t, []string{"Chapter 81 ; https://example.org/c/81"}, res.Resubmit())
}

func TestCreateChapters_CancelledLeavesResubmitLines(t *testing.T) {
	api := newFakeAPI()
	token := batch.NewCancelToken()
	api.afterCreate = func(n int) {
		if n == 1 {
			token.Request()
		}
	}
	r := newRunner(t, api, 4)

	res, err := r.CreateChapters(context.Background(), bulk.CreateRequest{WorkID: "9", Input: chapterInput(10)},
		bulk.RunOptions{Token: token})
	require.NoError(t, err)

	assert.Equal(t, batch.StateCancelled, res.Summary.State)
	assert.Equal(t, batch.Cancelled, res.Summary.Classification)
	assert.Equal(t, 4, res.Summary.Completed)
	assert.Equal(t, 6, res.Summary.NotAttempted)
	require.Len(t, res.Unresolved, 6)
	for _, u := range res.Unresolved {
		assert.Equal(t, batch.StatusPending, u.Status)
	}
	assert.Equal(t, "Chapter 5 ; https://example.org/c/5", res.Resubmit()[0])
}

func TestCreateChapters_LookupFailureAborts(t *testing.T) {
	api := newFakeAPI()
	api.lookupErr = &cms.StatusError{Method: "GET", Path: "/chapters", StatusCode: 500}
	r := newRunner(t, api, 80)

	res, err := r.CreateChapters(context.Background(), bulk.CreateRequest{WorkID: "9", Input: chapterInput(3)}, bulk.RunOptions{})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, cms.IsStatus(err, 500))
	assert.Empty(t, api.created)
}

func TestCreateChapters_MissingWork(t *testing.T) {
	r := newRunner(t, newFakeAPI(), 80)
	_, err := r.CreateChapters(context.Background(), bulk.CreateRequest{Input: chapterInput(1)}, bulk.RunOptions{})
	require.ErrorIs(t, err, bulk.ErrMissingWork)
}

func TestCreateChapters_KnownURLsSkipLookup(t *testing.T) {
	api := newFakeAPI()
	api.chapters = []cms.Chapter{
		{ID: "1", URL: "https://x/known-a", OrderIndex: 1},
		{ID: "2", URL: "https://x/known-b", OrderIndex: 2},
	}
	api.existing["https://x/elsewhere"] = true
	r := newRunner(t, api, 80)

	input := strings.Join([]string{
		"A ; https://x/known-a",
		"New ; https://x/new",
		"B ; https://x/known-b",
		"Other work ; https://x/elsewhere",
	}, "\n")
	res, err := r.CreateChapters(context.Background(), bulk.CreateRequest{WorkID: "9", Input: input}, bulk.RunOptions{})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"https://x/new", "https://x/elsewhere"}, api.lookups)

	require.Len(t, res.Skipped, 3)
	for i, line := range []int{1, 3, 4} {
		assert.Equal(t, line, res.Skipped[i].LineNumber)
		var dup *bulk.DuplicateKeyError
		require.ErrorAs(t, res.Skipped[i].Reason, &dup)
		assert.False(t, dup.InInput)
	}
	require.Len(t, api.created, 1)
	assert.Equal(t, "https://x/new", api.created[0].URL)
	assert.Equal(t, 3, api.created[0].OrderIndex)
}

func TestCreateChapters_AllKnownNeedsNoLookup(t *testing.T) {
	api := newFakeAPI()
	api.chapters = []cms.Chapter{{ID: "1", URL: "https://x/1", OrderIndex: 1}}
	api.lookupErr = errors.New("lookup must not be called")
	r := newRunner(t, api, 80)

	res, err := r.CreateChapters(context.Background(), bulk.CreateRequest{WorkID: "9", Input: "A ; https://x/1"}, bulk.RunOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Skipped, 1)
	assert.Empty(t, api.created)
}

func TestChapterActions_WorkMustExist(t *testing.T) {
	api := newFakeAPI()
	api.works = map[string]bool{"9": true}
	api.chapters = []cms.Chapter{{ID: "1", OrderIndex: 4}}
	r, err := bulk.NewRunner(api, bulk.Settings{
		BatchSize:          10,
		ChaptersCollection: chapters,
		WorksCollection:    "works",
	}, zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = r.CreateChapters(ctx, bulk.CreateRequest{WorkID: "10", Input: chapterInput(1)}, bulk.RunOptions{})
	require.ErrorIs(t, err, bulk.ErrWorkNotFound)
	assert.Empty(t, api.lookups)

	_, err = r.ReorderChapters(ctx, bulk.ReorderRequest{WorkID: "10"}, bulk.RunOptions{})
	require.ErrorIs(t, err, bulk.ErrWorkNotFound)
	assert.Empty(t, api.created)
	assert.Empty(t, api.updated)

	res, err := r.CreateChapters(ctx, bulk.CreateRequest{WorkID: "9", Input: chapterInput(1)}, bulk.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, batch.AllSucceeded, res.Summary.Classification)
	require.Len(t, api.created, 1)
	assert.Equal(t, 5, api.created[0].OrderIndex)
}

func TestCreateChapters_DryRun(t *testing.T) {
	api := newFakeAPI()
	api.chapters = []cms.Chapter{{ID: "1", OrderIndex: 3}}
	r := newRunner(t, api, 80)

	res, err := r.CreateChapters(context.Background(), bulk.CreateRequest{WorkID: "9", Input: chapterInput(2)},
		bulk.RunOptions{DryRun: true})
	require.NoError(t, err)

	assert.True(t, res.DryRun)
	assert.Empty(t, api.created)
	require.Len(t, res.Planned, 2)
	assert.Equal(t, "#4 Chapter 1", res.Planned[0].Label)
	assert.Equal(t, "#5 Chapter 2", res.Planned[1].Label)
	assert.Equal(t, 2, res.Summary.NotAttempted)
	assert.Equal(t, batch.StateIdle, res.Summary.State)
}

func TestReorderChapters_UpdatesChangedOnly(t *testing.T) {
	api := newFakeAPI()
	api.chapters = []cms.Chapter{
		{ID: "a", Title: "A", OrderIndex: 1},
		{ID: "c", Title: "C", OrderIndex: 9},
		{ID: "b", Title: "B", OrderIndex: 4},
		{ID: "d", Title: "D", OrderIndex: 3},
	}
	r := newRunner(t, api, 80)

	res, err := r.ReorderChapters(context.Background(), bulk.ReorderRequest{WorkID: "9"}, bulk.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, batch.AllSucceeded, res.Summary.Classification)
	assert.Equal(t, 3, res.Summary.Total)
	assert.Equal(t, map[cms.RecordID]int{"d": 2, "b": 3, "c": 4}, api.updated)
}

func TestReorderChapters_AlreadyContiguous(t *testing.T) {
	api := newFakeAPI()
	api.chapters = []cms.Chapter{{ID: "a", OrderIndex: 1}, {ID: "b", OrderIndex: 2}}
	r := newRunner(t, api, 80)

	res, err := r.ReorderChapters(context.Background(), bulk.ReorderRequest{WorkID: "9"}, bulk.RunOptions{})
	require.NoError(t, err)
	assert.Zero(t, res.Summary.Total)
	assert.Equal(t, batch.AllSucceeded, res.Summary.Classification)
	assert.Empty(t, api.updated)
}

func TestReorderChapters_ListFailure(t *testing.T) {
	api := newFakeAPI()
	api.listErr = errors.New("boom")
	r := newRunner(t, api, 80)

	_, err := r.ReorderChapters(context.Background(), bulk.ReorderRequest{WorkID: "9"}, bulk.RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading chapters of work 9")
}

func TestDeleteRecords(t *testing.T) {
	api := newFakeAPI()
	api.failID["3"] = &cms.StatusError{Method: "DELETE", Path: "/works/3", StatusCode: 404}
	r := newRunner(t, api, 2)

	res, err := r.DeleteRecords(context.Background(), bulk.DeleteRequest{Collection: "works", IDs: "1, 2 3\n4,,1"}, bulk.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Summary.Total)
	assert.Equal(t, 3, res.Summary.Completed)
	assert.Equal(t, batch.PartialFailure, res.Summary.Classification)
	assert.ElementsMatch(t, []cms.RecordID{"1", "2", "4"}, api.deleted)
	require.Len(t, res.Unresolved, 1)
	assert.Equal(t, "works/3", res.Unresolved[0].Label)
	assert.Equal(t, []string{"3"}, res.Resubmit())
}

func TestDeleteRecords_AllFailed(t *testing.T) {
	api := newFakeAPI()
	api.failID["1"] = errors.New("forbidden")
	r := newRunner(t, api, 80)

	res, err := r.DeleteRecords(context.Background(), bulk.DeleteRequest{Collection: "works", IDs: "1"}, bulk.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, batch.AllFailed, res.Summary.Classification)
}

func TestDeleteRecords_MissingCollection(t *testing.T) {
	r := newRunner(t, newFakeAPI(), 80)
	_, err := r.DeleteRecords(context.Background(), bulk.DeleteRequest{IDs: "1"}, bulk.RunOptions{})
	require.ErrorIs(t, err, bulk.ErrMissingCollection)
}

type recordingObserver struct {
	mu       sync.Mutex
	groups   int
	finished []batch.Summary
}

func (o *recordingObserver) OnGroupSettled(batch.GroupResult) {
	o.mu.Lock()
	o.groups++
	o.mu.Unlock()
}

func (o *recordingObserver) OnJobFinished(s batch.Summary) {
	o.mu.Lock()
	o.finished = append(o.finished, s)
	o.mu.Unlock()
}

func TestRunOptions_ProgressAndObserver(t *testing.T) {
	api := newFakeAPI()
	r := newRunner(t, api, 3)
	obs := &recordingObserver{}
	var snaps []batch.Snapshot

	res, err := r.DeleteRecords(context.Background(), bulk.DeleteRequest{Collection: "works", IDs: "1 2 3 4 5 6 7"},
		bulk.RunOptions{
			Observer:   obs,
			OnProgress: func(s batch.Snapshot) { snaps = append(snaps, s) },
		})
	require.NoError(t, err)

	assert.Equal(t, 3, obs.groups)
	require.Len(t, obs.finished, 1)
	assert.Equal(t, res.JobID, obs.finished[0].JobID)
	require.Len(t, snaps, 3)
	assert.Equal(t, []int{3, 6, 7}, []int{snaps[0].Completed, snaps[1].Completed, snaps[2].Completed})
}
