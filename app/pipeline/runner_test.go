package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"newsroom/app/config"
	"newsroom/app/content"
	"newsroom/app/extract"
	"newsroom/app/notion"
	"newsroom/app/state"
)

type fakeRSS struct {
	items []content.Item
}

// Filters against the seen view the way the real extractor does.
func (f *fakeRSS) Run(ctx context.Context, sources []config.Source, seen extract.SeenSet, cutoff time.Time) ([]content.Item, extract.Stats) {
	var out []content.Item
	var stats extract.Stats
	for _, item := range f.items {
		stats.Total++
		if seen.Contains(item.CanonicalID) {
			stats.SkippedDuplicate++
			continue
		}
		out = append(out, item)
		stats.New++
	}
	return out, stats
}

type fakeSearcher struct {
	items     []content.Item
	nextIndex int
}

func (f *fakeSearcher) Run(ctx context.Context, people []config.Person, seen extract.SeenSet, startIndex, peoplePerRun int) ([]content.Item, int) {
	var out []content.Item
	for _, item := range f.items {
		if !seen.Contains(item.CanonicalID) {
			out = append(out, item)
		}
	}
	return out, f.nextIndex
}

type fakeUpserter struct {
	outcomes map[string]notion.Outcome
	calls    []string
}

func (f *fakeUpserter) Upsert(ctx context.Context, item content.Item) notion.Outcome {
	f.calls = append(f.calls, item.CanonicalID)
	if outcome, ok := f.outcomes[item.CanonicalID]; ok {
		return outcome
	}
	return notion.OutcomeCreated
}

type fakeEnricher struct {
	batches [][]content.Item
	hook    func()
}

func (f *fakeEnricher) EnrichBatch(ctx context.Context, items []content.Item) []content.Item {
	f.batches = append(f.batches, items)
	if f.hook != nil {
		f.hook()
	}
	out := make([]content.Item, len(items))
	copy(out, items)
	for i := range out {
		out[i].Summary = "enriched"
	}
	return out
}

func article(id, title string) content.Item {
	return content.Item{
		CanonicalID: content.ArticleID(id),
		Kind:        content.KindArticle,
		Source:      "Test",
		Title:       title,
		URL:         id,
		PublishedAt: time.Now(),
	}
}

func video(id, title string) content.Item {
	return content.Item{
		CanonicalID: content.VideoID(id),
		Kind:        content.KindVideo,
		Source:      "YouTube",
		Title:       title,
		URL:         "https://www.youtube.com/watch?v=" + id,
		VideoID:     id,
		PublishedAt: time.Now(),
	}
}

func newStore(t *testing.T) *state.Store {
	t.Helper()
	return state.NewStore(filepath.Join(t.TempDir(), "state.json"), true)
}

func TestRun_SecondRunUploadsNothing(t *testing.T) {
	store := newStore(t)
	rss := &fakeRSS{items: []content.Item{
		article("https://example.com/1", "One"),
		article("https://example.com/2", "Two"),
	}}

	first := &fakeUpserter{}
	runner := NewRunner(store, rss, nil, nil, nil, first, Options{})

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if result.RSS.Uploaded != 2 {
		t.Fatalf("Expected 2 uploads on first run, got %d", result.RSS.Uploaded)
	}

	// Unchanged feed, persisted state: the rerun must deliver nothing.
	second := &fakeUpserter{}
	runner = NewRunner(store, rss, nil, nil, nil, second, Options{})

	result, err = runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if result.RSS.Uploaded != 0 {
		t.Errorf("Expected 0 uploads on second run, got %d", result.RSS.Uploaded)
	}
	if len(second.calls) != 0 {
		t.Errorf("Expected no upsert calls on second run, got %v", second.calls)
	}
}

func TestRun_FailedUpsertStaysRetryable(t *testing.T) {
	store := newStore(t)
	rss := &fakeRSS{items: []content.Item{
		article("https://example.com/good", "Good"),
		article("https://example.com/bad", "Bad"),
	}}
	badID := content.ArticleID("https://example.com/bad")

	upserter := &fakeUpserter{outcomes: map[string]notion.Outcome{badID: notion.OutcomeError}}
	runner := NewRunner(store, rss, nil, nil, nil, upserter, Options{})

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.RSS.Uploaded != 1 || result.RSS.Errors != 1 {
		t.Fatalf("Expected 1 upload and 1 error, got %+v", result.RSS)
	}

	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if st.Contains(badID) {
		t.Errorf("Failed upsert must not mark the id as seen")
	}

	// On the rerun the failed item is extracted and delivered again.
	retry := &fakeUpserter{}
	runner = NewRunner(store, rss, nil, nil, nil, retry, Options{})
	result, err = runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Retry run failed: %v", err)
	}
	if result.RSS.Uploaded != 1 {
		t.Errorf("Expected the failed item retried, got %d uploads", result.RSS.Uploaded)
	}
	if len(retry.calls) != 1 || retry.calls[0] != badID {
		t.Errorf("Expected only the failed id retried, got %v", retry.calls)
	}
}

func TestRun_DryRunTouchesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	original := []byte(`{"seen_canonical_ids": [], "last_run_at": null, "youtube_round_robin_index": 0}`)
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	store := state.NewStore(path, false)
	rss := &fakeRSS{items: []content.Item{article("https://example.com/1", "One")}}

	// Nil upserter: dry run counts instead of writing.
	runner := NewRunner(store, rss, nil, nil, nil, nil, Options{})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.RSS.SkippedDryRun != 1 {
		t.Errorf("Expected 1 dry-run skip, got %d", result.RSS.SkippedDryRun)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(after) != string(original) {
		t.Errorf("Dry run must leave the state file untouched, got %s", after)
	}
}

func TestRun_VideosBypassEnrichment(t *testing.T) {
	store := newStore(t)
	search := &fakeSearcher{items: []content.Item{video("vid001", "Interview")}}
	enricher := &fakeEnricher{}
	upserter := &fakeUpserter{}

	runner := NewRunner(store, nil, search, nil, enricher, upserter, Options{})
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(enricher.batches) != 0 {
		t.Errorf("Expected videos to bypass enrichment, enricher saw %d batches", len(enricher.batches))
	}
	if result.YouTube.Uploaded != 1 {
		t.Errorf("Expected 1 video uploaded, got %d", result.YouTube.Uploaded)
	}
}

func TestRun_VideosGetDefaultImportance(t *testing.T) {
	store := newStore(t)
	search := &fakeSearcher{items: []content.Item{video("vid001", "Interview")}}

	var delivered []content.Item
	upserter := &captureUpserter{items: &delivered}

	runner := NewRunner(store, nil, search, nil, nil, upserter, Options{})
	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(delivered) != 1 {
		t.Fatalf("Expected 1 delivered video, got %d", len(delivered))
	}
	if delivered[0].Importance != 3 {
		t.Errorf("Expected fixed video importance 3, got %d", delivered[0].Importance)
	}
}

type captureUpserter struct {
	items *[]content.Item
}

func (c *captureUpserter) Upsert(ctx context.Context, item content.Item) notion.Outcome {
	*c.items = append(*c.items, item)
	return notion.OutcomeCreated
}

func TestRun_StatePersistedAfterEveryBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := state.NewStore(path, true)

	var items []content.Item
	for _, url := range []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"} {
		items = append(items, article(url, url))
	}
	rss := &fakeRSS{items: items}
	upserter := &fakeUpserter{}

	// Batch size 2: after the first batch the state file must already hold
	// the first two ids, observed from inside the second batch's enrichment.
	var midRunSeen int
	enricher := &fakeEnricher{}
	enricher.hook = func() {
		if len(enricher.batches) != 2 {
			return
		}
		st, err := store.Load()
		if err != nil {
			t.Errorf("Mid-run load failed: %v", err)
			return
		}
		midRunSeen = len(st.SeenCanonicalIDs)
	}

	runner := NewRunner(store, rss, nil, nil, enricher, upserter, Options{BatchSize: 2})
	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if midRunSeen != 2 {
		t.Errorf("Expected 2 ids persisted after the first batch, found %d mid-run", midRunSeen)
	}
}

func TestRun_RoundRobinIndexPersisted(t *testing.T) {
	store := newStore(t)
	search := &fakeSearcher{nextIndex: 4}

	runner := NewRunner(store, nil, search, nil, nil, &fakeUpserter{}, Options{})
	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if st.YouTubeRoundRobinIndex != 4 {
		t.Errorf("Expected round robin index 4 persisted, got %d", st.YouTubeRoundRobinIndex)
	}
}

func TestRun_ZeroItemsIsSuccess(t *testing.T) {
	store := newStore(t)
	runner := NewRunner(store, &fakeRSS{}, nil, nil, nil, &fakeUpserter{}, Options{})

	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected zero new items to succeed, got %v", err)
	}
	if result.TotalNew() != 0 {
		t.Errorf("Expected no items, got %d", result.TotalNew())
	}

	st, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if st.LastRunAt == nil {
		t.Errorf("Expected last_run_at set even with zero items")
	}
}

func TestRun_EnrichmentApplied(t *testing.T) {
	store := newStore(t)
	rss := &fakeRSS{items: []content.Item{article("https://example.com/1", "One")}}
	enricher := &fakeEnricher{}

	var delivered []content.Item
	runner := NewRunner(store, rss, nil, nil, enricher, &captureUpserter{items: &delivered}, Options{})
	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(delivered) != 1 || delivered[0].Summary != "enriched" {
		t.Errorf("Expected enriched item delivered, got %+v", delivered)
	}
}
