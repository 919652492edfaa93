package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsroom/app/config"
	"newsroom/app/content"
	"newsroom/app/enrich"
	"newsroom/app/extract"
	"newsroom/app/notion"
	"newsroom/app/state"
)

// Collaborator contracts. Any of them may be nil on the Runner, which
// disables that stage instead of failing the run.

type RSSExtractor interface {
	Run(ctx context.Context, sources []config.Source, seen extract.SeenSet, cutoff time.Time) ([]content.Item, extract.Stats)
}

type VideoSearcher interface {
	Run(ctx context.Context, people []config.Person, seen extract.SeenSet, startIndex, peoplePerRun int) ([]content.Item, int)
}

type ChannelWatcher interface {
	Run(ctx context.Context, channels []config.Channel, seen extract.SeenSet, startDate time.Time) []content.Item
}

type Enricher interface {
	EnrichBatch(ctx context.Context, items []content.Item) []content.Item
}

type Upserter interface {
	Upsert(ctx context.Context, item content.Item) notion.Outcome
}

// Stats counts outcomes for one category of the run summary.
type Stats struct {
	Found         int
	Processed     int
	Uploaded      int
	Errors        int
	SkippedDryRun int
}

// Result is the run summary, split the way the report prints it.
type Result struct {
	RSS     Stats
	YouTube Stats
}

func (r Result) TotalNew() int {
	return r.RSS.Found + r.YouTube.Found
}

// Options carries the per-run knobs and the loaded file configuration.
type Options struct {
	Sources  []config.Source
	People   []config.Person
	Channels []config.Channel

	WindowHours     int
	SinceLastRun    bool
	PeoplePerRun    int
	BatchSize       int
	VideoImportance int
}

// Runner sequences one full run: extract, enrich in batches, upsert, and
// persist state after every batch so a crash loses at most one batch of
// progress. Processing is sequential; the only shared mutable state is the
// run state, touched once per confirmed item.
type Runner struct {
	store    *state.Store
	rss      RSSExtractor
	search   VideoSearcher
	monitor  ChannelWatcher
	enricher Enricher
	upserter Upserter
	opts     Options
	now      func() time.Time
}

func NewRunner(store *state.Store, rss RSSExtractor, search VideoSearcher, monitor ChannelWatcher, enricher Enricher, upserter Upserter, opts Options) *Runner {
	if opts.BatchSize <= 0 {
		opts.BatchSize = enrich.BatchSize
	}
	if opts.VideoImportance == 0 {
		opts.VideoImportance = 3
	}
	if opts.WindowHours <= 0 {
		opts.WindowHours = 24
	}

	return &Runner{
		store:    store,
		rss:      rss,
		search:   search,
		monitor:  monitor,
		enricher: enricher,
		upserter: upserter,
		opts:     opts,
		now:      time.Now,
	}
}

// seenView layers the ids found earlier in this run on top of the persisted
// seen-set, so extractors dedup against both without marking anything
// delivered before its upsert is confirmed.
type seenView struct {
	st    *state.State
	inRun map[string]struct{}
}

func (v *seenView) Contains(id string) bool {
	if v.st.Contains(id) {
		return true
	}
	_, ok := v.inRun[id]
	return ok
}

func (v *seenView) add(items []content.Item) {
	for _, item := range items {
		v.inRun[item.CanonicalID] = struct{}{}
	}
}

// Run executes the whole pipeline once. Zero new items is a normal outcome,
// not an error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	st, err := r.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load run state: %w", err)
	}

	runStart := r.now()
	cutoff := r.cutoff(st, runStart)
	slog.Info("Run started", "cutoff", cutoff, "seen_ids", len(st.SeenCanonicalIDs))

	seen := &seenView{st: st, inRun: make(map[string]struct{})}

	var articles, videos []content.Item

	if r.rss != nil {
		items, stats := r.rss.Run(ctx, r.opts.Sources, seen, cutoff)
		seen.add(items)
		articles = append(articles, items...)
		slog.Info("RSS extraction finished", "new", stats.New, "duplicates", stats.SkippedDuplicate, "old", stats.SkippedOld, "source_errors", stats.Errors)
	}

	if r.search != nil {
		items, nextIndex := r.search.Run(ctx, r.opts.People, seen, st.YouTubeRoundRobinIndex, r.opts.PeoplePerRun)
		seen.add(items)
		st.YouTubeRoundRobinIndex = nextIndex
		videos = append(videos, items...)
		slog.Info("YouTube search finished", "new", len(items), "next_index", nextIndex)
	}

	if r.monitor != nil {
		items := r.monitor.Run(ctx, r.opts.Channels, seen, cutoff)
		seen.add(items)
		videos = append(videos, items...)
		slog.Info("Channel monitoring finished", "new", len(items))
	}

	result := &Result{
		RSS:     Stats{Found: len(articles)},
		YouTube: Stats{Found: len(videos)},
	}

	if len(articles) == 0 && len(videos) == 0 {
		slog.Info("No new items this run")
		return result, r.finalize(st)
	}

	if err := r.processArticles(ctx, st, articles, &result.RSS); err != nil {
		return result, err
	}
	if err := r.processVideos(ctx, st, videos, &result.YouTube); err != nil {
		return result, err
	}

	return result, r.finalize(st)
}

// cutoff picks the monitoring-window lower bound: a fixed window before the
// run by default, or the previous successful run time when configured and
// available.
func (r *Runner) cutoff(st *state.State, runStart time.Time) time.Time {
	if r.opts.SinceLastRun && st.LastRunAt != nil {
		return *st.LastRunAt
	}
	return runStart.Add(-time.Duration(r.opts.WindowHours) * time.Hour)
}

func (r *Runner) processArticles(ctx context.Context, st *state.State, articles []content.Item, stats *Stats) error {
	totalBatches := (len(articles) + r.opts.BatchSize - 1) / r.opts.BatchSize

	for start := 0; start < len(articles); start += r.opts.BatchSize {
		end := start + r.opts.BatchSize
		if end > len(articles) {
			end = len(articles)
		}
		batch := articles[start:end]
		slog.Info("Processing article batch", "batch", start/r.opts.BatchSize+1, "of", totalBatches, "items", len(batch))

		if r.enricher != nil {
			batch = r.enricher.EnrichBatch(ctx, batch)
		}

		for _, item := range batch {
			r.deliver(ctx, st, item, stats)
		}

		if err := r.store.Persist(st); err != nil {
			return fmt.Errorf("failed to persist state after batch: %w", err)
		}
	}

	return nil
}

func (r *Runner) processVideos(ctx context.Context, st *state.State, videos []content.Item, stats *Stats) error {
	for start := 0; start < len(videos); start += r.opts.BatchSize {
		end := start + r.opts.BatchSize
		if end > len(videos) {
			end = len(videos)
		}

		// Videos skip enrichment and get a fixed default importance.
		for _, item := range videos[start:end] {
			item.Importance = r.opts.VideoImportance
			r.deliver(ctx, st, item, stats)
		}

		if err := r.store.Persist(st); err != nil {
			return fmt.Errorf("failed to persist state after batch: %w", err)
		}
	}

	return nil
}

// deliver upserts one item. Only a confirmed create/update marks the id as
// seen; failed upserts stay unseen so a rerun can retry them.
func (r *Runner) deliver(ctx context.Context, st *state.State, item content.Item, stats *Stats) {
	stats.Processed++

	if r.upserter == nil {
		slog.Info("Dry run, skipping upsert", "id", item.CanonicalID, "title", item.Title)
		stats.SkippedDryRun++
		return
	}

	switch outcome := r.upserter.Upsert(ctx, item); outcome {
	case notion.OutcomeCreated, notion.OutcomeUpdated:
		st.Record(item.CanonicalID)
		stats.Uploaded++
		slog.Debug("Item delivered", "id", item.CanonicalID, "outcome", outcome)
	default:
		stats.Errors++
	}
}

func (r *Runner) finalize(st *state.State) error {
	now := r.now()
	st.LastRunAt = &now

	if err := r.store.Persist(st); err != nil {
		return fmt.Errorf("failed to persist final state: %w", err)
	}

	return nil
}
