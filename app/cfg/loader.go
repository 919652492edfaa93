package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// File locations
	StateFile    string `long:"state-file" env:"STATE_FILE" default:"state/state.json" description:"Path to the persisted run state file"`
	SourcesFile  string `long:"sources-file" env:"SOURCES_FILE" default:"config/sources.yml" description:"Path to the RSS sources configuration"`
	PeopleFile   string `long:"people-file" env:"PEOPLE_FILE" default:"config/people.yml" description:"Path to the tracked people configuration"`
	ChannelsFile string `long:"channels-file" env:"CHANNELS_FILE" default:"config/channels.yml" description:"Path to the monitored channels configuration"`

	// Run behavior
	DryRun        bool `long:"dry-run" env:"DRY_RUN" default:"true" description:"Skip destination writes and state persistence (set DRY_RUN=false to go live)"`
	WindowHours   int  `long:"window-hours" env:"WINDOW_HOURS" default:"24" description:"Monitoring window in hours when no prior run is used"`
	SinceLastRun  bool `long:"since-last-run" env:"SINCE_LAST_RUN" description:"Use the previous successful run time as the cutoff instead of the fixed window"`
	ClearDatabase bool `long:"clear-database" description:"Archive every page in the destination database and exit"`

	// YouTube
	YouTubeAPIKey    string `long:"youtube-api-key" env:"YOUTUBE_API_KEY" description:"YouTube Data API key (absent: YouTube extraction is skipped)"`
	PeoplePerRun     int    `long:"people-per-run" env:"PEOPLE_PER_RUN" default:"3" description:"Number of tracked people searched per run"`
	ResultsPerPerson int    `long:"results-per-person" env:"RESULTS_PER_PERSON" default:"3" description:"Maximum search results per person"`

	// Enrichment
	OpenAIAPIKey  string `long:"openai-api-key" env:"OPENAI_API_KEY" description:"Enrichment API key (absent: items are delivered unenriched)"`
	Model         string `long:"model" env:"ENRICHMENT_MODEL" default:"gpt-4.1-mini" description:"Primary enrichment model"`
	FallbackModel string `long:"fallback-model" env:"ENRICHMENT_FALLBACK_MODEL" default:"gpt-4o-mini" description:"Fallback enrichment model"`

	// Destination store
	NotionToken      string `long:"notion-token" env:"NOTION_TOKEN" description:"Notion integration token (absent: upserts are skipped)"`
	NotionDatabaseID string `long:"notion-database-id" env:"NOTION_DATABASE_ID" description:"Notion database id"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Newsroom/1.0" description:"User agent string for HTTP requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		StateFile:        raw.StateFile,
		SourcesFile:      raw.SourcesFile,
		PeopleFile:       raw.PeopleFile,
		ChannelsFile:     raw.ChannelsFile,
		DryRun:           raw.DryRun,
		WindowHours:      raw.WindowHours,
		SinceLastRun:     raw.SinceLastRun,
		ClearDatabase:    raw.ClearDatabase,
		YouTubeAPIKey:    raw.YouTubeAPIKey,
		PeoplePerRun:     raw.PeoplePerRun,
		ResultsPerPerson: raw.ResultsPerPerson,
		OpenAIAPIKey:     raw.OpenAIAPIKey,
		Model:            raw.Model,
		FallbackModel:    raw.FallbackModel,
		NotionToken:      raw.NotionToken,
		NotionDatabaseID: raw.NotionDatabaseID,
		UserAgent:        raw.UserAgent,
		Debug:            raw.Debug,
		Version:          GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}
