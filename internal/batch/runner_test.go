package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/user/logscribe/internal/convert"
	"github.com/user/logscribe/internal/types"
)

type fakeWorklist struct {
	mu        sync.Mutex
	items     []types.WorkItem
	listErr   error
	completed map[string]string
}

func (w *fakeWorklist) Pending(ctx context.Context) ([]types.WorkItem, error) {
	if w.listErr != nil {
		return nil, w.listErr
	}
	return w.items, nil
}

func (w *fakeWorklist) Complete(ctx context.Context, item types.WorkItem, reference string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.completed == nil {
		w.completed = make(map[string]string)
	}
	w.completed[item.Locator] = reference
	return nil
}

func (w *fakeWorklist) Describe(ctx context.Context) (*types.WorklistInfo, error) {
	return &types.WorklistInfo{Title: "fake", Rows: len(w.items) + 1}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	blobs   map[string]*types.Blob
	puts    []string
	deletes []string
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: make(map[string]*types.Blob)}
}

func (s *fakeStore) Put(ctx context.Context, name string, data []byte) (*types.Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return nil, s.putErr
	}
	b := &types.Blob{ID: name, Name: name, Size: int64(len(data)), Reference: "ref://" + name}
	s.blobs[name] = b
	s.puts = append(s.puts, name)
	return b, nil
}

func (s *fakeStore) Find(ctx context.Context, name string) (*types.Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[name]
	if !ok {
		return nil, types.ErrNotFound
	}
	return b, nil
}

func (s *fakeStore) Delete(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, name)
	if _, ok := s.blobs[name]; ok {
		delete(s.blobs, name)
		return 1, nil
	}
	return 0, nil
}

func (s *fakeStore) List(ctx context.Context) ([]*types.Blob, error) {
	var out []*types.Blob
	for _, b := range s.blobs {
		out = append(out, b)
	}
	return out, nil
}

func (s *fakeStore) Describe(ctx context.Context) (*types.StoreInfo, error) {
	return &types.StoreInfo{ID: "fake", Name: "fake"}, nil
}

type fakeFetcher struct {
	sources map[string]string
	calls   int
}

func (f *fakeFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	f.calls++
	data, ok := f.sources[locator]
	if !ok {
		return nil, Permanent(fmt.Errorf("no source %s", locator))
	}
	return []byte(data), nil
}

// fakeConverter maps source bytes to the document names it produces.
type fakeConverter struct {
	docs map[string][]string
	err  error
}

func (c *fakeConverter) Convert(ctx context.Context, data []byte) ([]convert.Document, error) {
	if c.err != nil {
		return nil, c.err
	}
	var out []convert.Document
	for i, name := range c.docs[string(data)] {
		out = append(out, convert.Document{Name: name, Index: i, Data: []byte(`{"messages":[]}`)})
	}
	return out, nil
}

type fakeRecorder struct {
	started  int
	items    int
	finished *types.BatchSummary
}

func (r *fakeRecorder) StartRun(ctx context.Context, id types.BatchID, startedAt time.Time) error {
	r.started++
	return nil
}

func (r *fakeRecorder) RecordItem(ctx context.Context, id types.BatchID, result *types.ItemResult) error {
	r.items++
	return nil
}

func (r *fakeRecorder) FinishRun(ctx context.Context, summary *types.BatchSummary) error {
	r.finished = summary
	return nil
}

type fakeNotifier struct {
	summaries []*types.BatchSummary
	err       error
}

func (n *fakeNotifier) Notify(ctx context.Context, summary *types.BatchSummary) error {
	n.summaries = append(n.summaries, summary)
	return n.err
}

func item(row int, source string) types.WorkItem {
	return types.WorkItem{
		Row:               row,
		Locator:           types.NewLocator("Sheet1", "D", row),
		SourceLocator:     source,
		DestinationColumn: "D",
	}
}

func testOptions() Options {
	return Options{
		UploadEnabled: true,
		Retry:         fastPolicy(2),
		Failure:       FailurePolicy{ContinueOnError: true},
	}
}

func TestRunner_Success(t *testing.T) {
	wl := &fakeWorklist{items: []types.WorkItem{item(2, "a.csv"), item(3, "b.csv")}}
	store := newFakeStore()
	fetcher := &fakeFetcher{sources: map[string]string{"a.csv": "A", "b.csv": "B"}}
	conv := &fakeConverter{docs: map[string][]string{
		"A": {"1_x.json"},
		"B": {"2_x.json", "3_x.json"},
	}}
	rec := &fakeRecorder{}
	notifier := &fakeNotifier{}

	r := NewRunner(wl, store, fetcher, conv, testOptions(), WithRecorder(rec), WithNotifiers(notifier))
	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Total != 2 || summary.Succeeded != 2 || summary.Failed != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if got := wl.completed["Sheet1!D2"]; got != "ref://1_x.json" {
		t.Errorf("row 2 reference = %q", got)
	}
	if got := wl.completed["Sheet1!D3"]; got != "ref://2_x.json, ref://3_x.json" {
		t.Errorf("row 3 reference = %q", got)
	}
	if rec.started != 1 || rec.items != 2 || rec.finished != summary {
		t.Errorf("recorder calls: started=%d items=%d finished=%v", rec.started, rec.items, rec.finished != nil)
	}
	if len(notifier.summaries) != 1 {
		t.Errorf("expected 1 notification, got %d", len(notifier.summaries))
	}
	if summary.FinishedAt.Before(summary.StartedAt) {
		t.Error("finish time before start time")
	}
}

func TestRunner_UploadDisabled(t *testing.T) {
	dir := t.TempDir()
	wl := &fakeWorklist{items: []types.WorkItem{item(2, "a.csv")}}
	store := newFakeStore()
	fetcher := &fakeFetcher{sources: map[string]string{"a.csv": "A"}}
	conv := &fakeConverter{docs: map[string][]string{"A": {"1_x.json"}}}

	opts := testOptions()
	opts.UploadEnabled = false
	opts.LocalDir = dir
	summary, err := NewRunner(wl, store, fetcher, conv, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("expected 1 failure, got %+v", summary)
	}
	if !errors.Is(summary.Results[0].Err, ErrUploadDisabled) {
		t.Errorf("expected ErrUploadDisabled, got %v", summary.Results[0].Err)
	}
	if len(store.puts) != 0 {
		t.Errorf("expected no uploads, got %v", store.puts)
	}
	if len(wl.completed) != 0 {
		t.Errorf("worklist must not be updated, got %v", wl.completed)
	}
	if _, err := os.Stat(filepath.Join(dir, "1_x.json")); err != nil {
		t.Errorf("expected local copy: %v", err)
	}
}

func TestRunner_FailurePolicy(t *testing.T) {
	items := []types.WorkItem{item(2, "missing.csv"), item(3, "b.csv")}
	fetcher := &fakeFetcher{sources: map[string]string{"b.csv": "B"}}
	conv := &fakeConverter{docs: map[string][]string{"B": {"b.json"}}}

	t.Run("continue", func(t *testing.T) {
		wl := &fakeWorklist{items: items}
		summary, err := NewRunner(wl, newFakeStore(), fetcher, conv, testOptions()).Run(context.Background())
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if summary.Processed != 2 || summary.Failed != 1 || summary.Succeeded != 1 || summary.Halted {
			t.Errorf("unexpected summary: %+v", summary)
		}
		if len(summary.Failures()) != 1 || summary.Failures()[0].Item.Row != 2 {
			t.Errorf("unexpected failures: %+v", summary.Failures())
		}
	})

	t.Run("halt", func(t *testing.T) {
		wl := &fakeWorklist{items: items}
		opts := testOptions()
		opts.Failure.ContinueOnError = false
		summary, err := NewRunner(wl, newFakeStore(), fetcher, conv, opts).Run(context.Background())
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if summary.Processed != 1 || !summary.Halted {
			t.Errorf("expected halt after first item, got %+v", summary)
		}
		if len(wl.completed) != 0 {
			t.Errorf("second item must not run, got %v", wl.completed)
		}
	})
}

func TestRunner_PermanentFetchNotRetried(t *testing.T) {
	wl := &fakeWorklist{items: []types.WorkItem{item(2, "missing.csv")}}
	fetcher := &fakeFetcher{}
	opts := testOptions()
	opts.Retry = fastPolicy(5)
	if _, err := NewRunner(wl, newFakeStore(), fetcher, &fakeConverter{}, opts).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("expected 1 fetch, got %d", fetcher.calls)
	}
}

func TestRunner_NoDocuments(t *testing.T) {
	wl := &fakeWorklist{items: []types.WorkItem{item(2, "a.csv")}}
	fetcher := &fakeFetcher{sources: map[string]string{"a.csv": "empty"}}
	summary, _ := NewRunner(wl, newFakeStore(), fetcher, &fakeConverter{}, testOptions()).Run(context.Background())
	if !errors.Is(summary.Results[0].Err, ErrNoDocuments) {
		t.Errorf("expected ErrNoDocuments, got %v", summary.Results[0].Err)
	}
}

func TestRunner_SkipExisting(t *testing.T) {
	store := newFakeStore()
	store.blobs["1_x.json"] = &types.Blob{Name: "1_x.json", Reference: "ref://old"}
	wl := &fakeWorklist{items: []types.WorkItem{item(2, "a.csv")}}
	fetcher := &fakeFetcher{sources: map[string]string{"a.csv": "A"}}
	conv := &fakeConverter{docs: map[string][]string{"A": {"1_x.json", "2_x.json"}}}

	opts := testOptions()
	opts.SkipExisting = true
	if _, err := NewRunner(wl, store, fetcher, conv, opts).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := wl.completed["Sheet1!D2"]; got != "ref://old, ref://2_x.json" {
		t.Errorf("reference = %q", got)
	}
	if len(store.puts) != 1 || store.puts[0] != "2_x.json" {
		t.Errorf("expected only 2_x.json uploaded, got %v", store.puts)
	}
	if len(store.deletes) != 0 {
		t.Errorf("skip_existing must not delete, got %v", store.deletes)
	}
}

func TestRunner_ReplacesExisting(t *testing.T) {
	store := newFakeStore()
	store.blobs["1_x.json"] = &types.Blob{Name: "1_x.json", Reference: "ref://old"}
	wl := &fakeWorklist{items: []types.WorkItem{item(2, "a.csv")}}
	fetcher := &fakeFetcher{sources: map[string]string{"a.csv": "A"}}
	conv := &fakeConverter{docs: map[string][]string{"A": {"1_x.json"}}}

	if _, err := NewRunner(wl, store, fetcher, conv, testOptions()).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(store.deletes) != 1 || store.deletes[0] != "1_x.json" {
		t.Errorf("expected delete before upload, got %v", store.deletes)
	}
	if got := wl.completed["Sheet1!D2"]; got != "ref://1_x.json" {
		t.Errorf("reference = %q", got)
	}
}

func TestRunner_UploadFailureFailsItem(t *testing.T) {
	store := newFakeStore()
	store.putErr = errors.New("quota exceeded")
	wl := &fakeWorklist{items: []types.WorkItem{item(2, "a.csv")}}
	fetcher := &fakeFetcher{sources: map[string]string{"a.csv": "A"}}
	conv := &fakeConverter{docs: map[string][]string{"A": {"1_x.json"}}}

	summary, _ := NewRunner(wl, store, fetcher, conv, testOptions()).Run(context.Background())
	if summary.Failed != 1 {
		t.Fatalf("expected failure, got %+v", summary)
	}
	if len(wl.completed) != 0 {
		t.Errorf("worklist must not be updated, got %v", wl.completed)
	}
	if len(summary.Results[0].References) != 0 {
		t.Errorf("failed item must carry no references")
	}
}

func TestRunner_MaxItems(t *testing.T) {
	wl := &fakeWorklist{items: []types.WorkItem{item(2, "a.csv"), item(3, "a.csv"), item(4, "a.csv")}}
	fetcher := &fakeFetcher{sources: map[string]string{"a.csv": "A"}}
	conv := &fakeConverter{docs: map[string][]string{"A": {"a.json"}}}

	opts := testOptions()
	opts.MaxItems = 2
	summary, err := NewRunner(wl, newFakeStore(), fetcher, conv, opts).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Total != 2 || summary.Processed != 2 {
		t.Errorf("expected 2 items, got %+v", summary)
	}
}

func TestRunner_PendingError(t *testing.T) {
	wl := &fakeWorklist{listErr: errors.New("sheet unavailable")}
	rec := &fakeRecorder{}
	summary, err := NewRunner(wl, newFakeStore(), &fakeFetcher{}, &fakeConverter{}, testOptions(), WithRecorder(rec)).Run(context.Background())
	if err == nil {
		t.Fatal("expected error when pending items cannot be listed")
	}
	if summary == nil || rec.finished == nil {
		t.Error("expected the run to be finished in the ledger")
	}
}

func TestRunner_Cancelled(t *testing.T) {
	wl := &fakeWorklist{items: []types.WorkItem{item(2, "a.csv"), item(3, "a.csv")}}
	fetcher := &fakeFetcher{sources: map[string]string{"a.csv": "A"}}
	conv := &fakeConverter{docs: map[string][]string{"A": {"a.json"}}}
	notifier := &fakeNotifier{err: errors.New("telegram down")}

	opts := testOptions()
	opts.ItemDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	summary, err := NewRunner(wl, newFakeStore(), fetcher, conv, opts, WithNotifiers(notifier)).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !summary.Halted || summary.Processed != 1 {
		t.Errorf("expected halted after one item, got %+v", summary)
	}
	if len(notifier.summaries) != 1 {
		t.Error("notifier should still receive the summary")
	}
}

func TestFailurePolicy(t *testing.T) {
	ok := &types.ItemResult{}
	failed := &types.ItemResult{}
	failed.Fail(errors.New("boom"))

	if !(FailurePolicy{}).Continue(ok) {
		t.Error("success should always continue")
	}
	if (FailurePolicy{}).Continue(failed) {
		t.Error("failure should halt without ContinueOnError")
	}
	if !(FailurePolicy{ContinueOnError: true}).Continue(failed) {
		t.Error("failure should continue with ContinueOnError")
	}
}
