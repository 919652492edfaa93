package cfg

type Cfg struct {
	// File locations
	StateFile    string
	SourcesFile  string
	PeopleFile   string
	ChannelsFile string

	// Run behavior
	DryRun        bool
	WindowHours   int
	SinceLastRun  bool
	ClearDatabase bool

	// YouTube
	YouTubeAPIKey    string
	PeoplePerRun     int
	ResultsPerPerson int

	// Enrichment
	OpenAIAPIKey  string
	Model         string
	FallbackModel string

	// Destination store
	NotionToken      string
	NotionDatabaseID string

	// Application metadata
	UserAgent string
	Debug     bool
	Version   string
}
