package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"newsroom/app/config"
	"newsroom/app/content"
)

// RSS extracts new article items from configured feeds. Cutoff is an
// inclusive lower bound: entries with published_at >= cutoff are kept.
type RSS struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	extractor  *ContentExtractor
	userAgent  string
	now        func() time.Time
}

func NewRSS(httpClient *http.Client, userAgent string) *RSS {
	return &RSS{
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		extractor:  NewContentExtractor(),
		userAgent:  userAgent,
		now:        time.Now,
	}
}

// Run fetches every enabled source and returns the deduplicated, time-filtered
// items. One source failing never aborts the others.
func (e *RSS) Run(ctx context.Context, sources []config.Source, seen SeenSet, cutoff time.Time) ([]content.Item, Stats) {
	var items []content.Item
	var total Stats

	for _, source := range sources {
		if !source.IsEnabled() {
			slog.Debug("Source disabled, skipping", "source", source.Name)
			continue
		}

		sourceItems, stats, err := e.extractSource(ctx, source, seen, cutoff)
		if err != nil {
			slog.Warn("Failed to extract source", "source", source.Name, "error", err)
			total.Errors++
			continue
		}

		slog.Info("Source extracted",
			"source", source.Name,
			"total", stats.Total,
			"duplicates", stats.SkippedDuplicate,
			"old", stats.SkippedOld,
			"new", stats.New)

		items = append(items, sourceItems...)
		total.Add(stats)
	}

	return items, total
}

func (e *RSS) extractSource(ctx context.Context, source config.Source, seen SeenSet, cutoff time.Time) ([]content.Item, Stats, error) {
	var stats Stats

	data, err := e.fetch(ctx, source.URL)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to fetch feed: %w", err)
	}

	feed, err := e.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, stats, fmt.Errorf("failed to parse feed: %w", err)
	}

	var items []content.Item
	for _, entry := range feed.Items {
		if entry.Link == "" {
			continue
		}
		stats.Total++

		publishedAt := e.resolvePublishedAt(entry)
		if publishedAt.Before(cutoff) {
			stats.SkippedOld++
			continue
		}

		id := content.ArticleID(entry.Link)
		if seen.Contains(id) {
			stats.SkippedDuplicate++
			continue
		}

		item := content.Item{
			CanonicalID: id,
			Kind:        content.KindArticle,
			Source:      source.Name,
			Title:       entry.Title,
			URL:         entry.Link,
			PublishedAt: publishedAt,
			RawText:     e.resolveBody(ctx, source, entry),
		}

		items = append(items, item)
		stats.New++
	}

	return items, stats, nil
}

// resolvePublishedAt picks the entry publish time using a fallback chain:
// published, then updated, then the time of this run as a last resort.
func (e *RSS) resolvePublishedAt(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed
	}
	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed
	}
	return e.now()
}

// resolveBody prefers full content over the feed summary, and optionally
// replaces a feed body with readability-extracted page text.
func (e *RSS) resolveBody(ctx context.Context, source config.Source, entry *gofeed.Item) string {
	body := entry.Content
	if body == "" {
		body = entry.Description
	}

	if !source.ExtractContent {
		return body
	}

	page, err := e.fetch(ctx, entry.Link)
	if err != nil {
		slog.Warn("Failed to fetch article page, keeping feed body", "source", source.Name, "url", entry.Link, "error", err)
		return body
	}

	extracted, err := e.extractor.Run(page, entry.Link)
	if err != nil {
		slog.Warn("Content extraction failed, keeping feed body", "source", source.Name, "url", entry.Link, "error", err)
		return body
	}

	return extracted
}

func (e *RSS) fetch(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
