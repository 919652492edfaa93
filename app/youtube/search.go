package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"newsroom/app/config"
	"newsroom/app/content"
	"newsroom/app/extract"
)

// SearchExtractor finds fresh videos mentioning tracked people. Each run
// searches a bounded window of the people list, round-robin: the window starts
// at the index persisted from the previous run and wraps around, so every
// person gets searched eventually regardless of list length.
type SearchExtractor struct {
	client           *Client
	resultsPerPerson int
	now              func() time.Time
}

func NewSearchExtractor(client *Client, resultsPerPerson int) *SearchExtractor {
	return &SearchExtractor{
		client:           client,
		resultsPerPerson: resultsPerPerson,
		now:              time.Now,
	}
}

// Run searches up to peoplePerRun people starting at startIndex and returns
// the new items plus the next round-robin index. Two people can surface the
// same upload, so found ids are deduplicated within the run as well.
func (e *SearchExtractor) Run(ctx context.Context, people []config.Person, seen extract.SeenSet, startIndex, peoplePerRun int) ([]content.Item, int) {
	if len(people) == 0 || peoplePerRun <= 0 {
		return nil, startIndex
	}

	window := peoplePerRun
	if window > len(people) {
		window = len(people)
	}
	startIndex = startIndex % len(people)

	var items []content.Item
	inRun := make(map[string]struct{})

	for i := 0; i < window; i++ {
		person := people[(startIndex+i)%len(people)]

		query := fmt.Sprintf("%q interview -shorts", person.Name)
		slog.Debug("Searching YouTube", "person", person.Name, "query", query)

		results, err := e.client.Search(ctx, query, e.resultsPerPerson)
		if err != nil {
			slog.Warn("YouTube search failed", "person", person.Name, "error", err)
			continue
		}

		for _, result := range results {
			videoID := result.ID.VideoID
			if videoID == "" {
				continue
			}

			id := content.VideoID(videoID)
			if seen.Contains(id) {
				continue
			}
			if _, ok := inRun[id]; ok {
				continue
			}
			inRun[id] = struct{}{}

			items = append(items, e.buildItem(person, videoID, result.Snippet))
		}
	}

	nextIndex := (startIndex + window) % len(people)
	return items, nextIndex
}

func (e *SearchExtractor) buildItem(person config.Person, videoID string, snippet Snippet) content.Item {
	publishedAt, err := time.Parse(time.RFC3339, snippet.PublishedAt)
	if err != nil {
		publishedAt = e.now()
	}

	matches := []string{person.Name}
	fullText := strings.ToLower(snippet.Title + " " + snippet.Description)
	for _, alias := range person.Aliases {
		if strings.Contains(fullText, strings.ToLower(alias)) {
			matches = append(matches, alias)
		}
	}

	return content.Item{
		CanonicalID:   content.VideoID(videoID),
		Kind:          content.KindVideo,
		Source:        "YouTube",
		Title:         snippet.Title,
		URL:           WatchURL(videoID),
		PublishedAt:   publishedAt,
		RawText:       fmt.Sprintf("%s\n\nChannel: %s", snippet.Description, snippet.ChannelTitle),
		VideoID:       videoID,
		Channel:       snippet.ChannelTitle,
		PeopleMatches: matches,
	}
}
