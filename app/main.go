package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"newsroom/app/cfg"
	"newsroom/app/config"
	"newsroom/app/enrich"
	"newsroom/app/extract"
	"newsroom/app/notion"
	"newsroom/app/pipeline"
	"newsroom/app/state"
	"newsroom/app/youtube"
)

func main() {
	godotenv.Load()

	appConfig, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if appConfig == nil {
		// Help was shown, exit gracefully
		return
	}

	setupLogging(appConfig.Debug)
	slog.Info("Starting newsroom pipeline", "version", appConfig.Version, "dry_run", appConfig.DryRun)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: 30 * time.Second}

	var store *notion.Client
	if appConfig.NotionToken != "" && appConfig.NotionDatabaseID != "" {
		store = notion.NewClient(appConfig.NotionToken, appConfig.NotionDatabaseID, httpClient)
	}

	if appConfig.ClearDatabase {
		if store == nil {
			slog.Error("Clearing the database requires NOTION_TOKEN and NOTION_DATABASE_ID")
			os.Exit(1)
		}
		archived, err := store.Clear(ctx)
		if err != nil {
			slog.Error("Failed to clear database", "archived", archived, "error", err)
			os.Exit(1)
		}
		slog.Info("Database cleared", "archived", archived)
		return
	}

	loader := config.NewLoader(appConfig.SourcesFile, appConfig.PeopleFile, appConfig.ChannelsFile)

	sources, err := loader.LoadSources()
	if err != nil {
		slog.Error("Failed to load sources configuration", "error", err)
		os.Exit(1)
	}
	people, err := loader.LoadPeople()
	if err != nil {
		slog.Error("Failed to load people configuration", "error", err)
		os.Exit(1)
	}
	channels, err := loader.LoadChannels()
	if err != nil {
		slog.Error("Failed to load channels configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Configuration loaded", "sources", len(sources), "people", len(people), "channels", len(channels))

	rss := extract.NewRSS(httpClient, appConfig.UserAgent)

	var search pipeline.VideoSearcher
	var monitor pipeline.ChannelWatcher
	if appConfig.YouTubeAPIKey != "" {
		ytClient := youtube.NewClient(appConfig.YouTubeAPIKey, httpClient)
		search = youtube.NewSearchExtractor(ytClient, appConfig.ResultsPerPerson)
		monitor = youtube.NewChannelMonitor(ytClient)
	} else {
		slog.Warn("No YouTube API key, skipping YouTube extraction")
	}

	var enricher pipeline.Enricher
	if appConfig.OpenAIAPIKey != "" {
		llmClient := openai.NewClient(option.WithAPIKey(appConfig.OpenAIAPIKey))
		enricher = enrich.NewEnricher(&llmClient, openai.ChatModel(appConfig.Model), openai.ChatModel(appConfig.FallbackModel))
	} else {
		slog.Warn("No enrichment API key, items will be delivered unenriched")
	}

	var upserter pipeline.Upserter
	if store != nil && !appConfig.DryRun {
		upserter = store
	} else if store == nil {
		slog.Warn("Destination store not configured, counting items instead of uploading")
	}

	stateStore := state.NewStore(appConfig.StateFile, !appConfig.DryRun)

	runner := pipeline.NewRunner(stateStore, rss, search, monitor, enricher, upserter, pipeline.Options{
		Sources:      sources,
		People:       people,
		Channels:     channels,
		WindowHours:  appConfig.WindowHours,
		SinceLastRun: appConfig.SinceLastRun,
		PeoplePerRun: appConfig.PeoplePerRun,
	})

	result, err := runner.Run(ctx)
	if err != nil {
		slog.Error("Run failed", "error", err)
		os.Exit(1)
	}

	printSummary(result, appConfig.DryRun || upserter == nil)
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func printSummary(result *pipeline.Result, dryRun bool) {
	fmt.Println("=========================")
	fmt.Println("--- Pipeline Summary ---")
	fmt.Println("=========================")
	printCategory("NEWS (RSS)", result.RSS, dryRun)
	fmt.Println("-------------------------")
	printCategory("YOUTUBE", result.YouTube, dryRun)
	fmt.Println("=========================")
}

func printCategory(name string, stats pipeline.Stats, dryRun bool) {
	fmt.Printf("[%s]\n", name)
	fmt.Printf("Found:           %d\n", stats.Found)
	fmt.Printf("Processed:       %d\n", stats.Processed)
	fmt.Printf("Uploaded:        %d\n", stats.Uploaded)
	fmt.Printf("Errors:          %d\n", stats.Errors)
	if dryRun {
		fmt.Printf("Dry Run Skipped: %d\n", stats.SkippedDryRun)
	}
}
