package content

import "time"

type Kind string

const (
	KindArticle Kind = "Article"
	KindVideo   Kind = "YouTube"
)

// Item is the unit of work flowing through the pipeline: extracted from a
// source, optionally enriched, then upserted into the destination database.
type Item struct {
	CanonicalID string
	Kind        Kind
	Source      string
	Title       string
	URL         string
	PublishedAt time.Time
	RawText     string

	// Populated by enrichment; all optional.
	Summary           string
	Tags              []string
	Importance        int
	KeyEntities       []string
	ActionableInsight string

	// Video only.
	VideoID string
	Channel string

	PeopleMatches []string
}

// ClampImportance forces an enrichment score into the valid [0,10] range.
func ClampImportance(n int) int {
	if n < 0 {
		return 0
	}
	if n > 10 {
		return 10
	}
	return n
}
