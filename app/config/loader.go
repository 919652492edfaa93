package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader reads and validates the three YAML configuration files. The sources
// file is required; people and channels files are optional and a missing one
// simply yields an empty list.
type Loader struct {
	sourcesPath  string
	peoplePath   string
	channelsPath string
}

func NewLoader(sourcesPath, peoplePath, channelsPath string) *Loader {
	return &Loader{
		sourcesPath:  sourcesPath,
		peoplePath:   peoplePath,
		channelsPath: channelsPath,
	}
}

// LoadSources loads the RSS source list. Entries without a URL are dropped
// at load time; an enabled entry without a name is a configuration error.
func (l *Loader) LoadSources() ([]Source, error) {
	data, err := os.ReadFile(l.sourcesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources config: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sources config: %w", err)
	}

	sources := make([]Source, 0, len(file.Sources))
	for i, source := range file.Sources {
		if source.URL == "" {
			slog.Debug("Skipping source without URL", "index", i, "name", source.Name)
			continue
		}
		if source.Name == "" {
			return nil, fmt.Errorf("source at index %d has a URL but no name", i)
		}
		sources = append(sources, source)
	}

	slog.Debug("Sources configuration loaded", "path", l.sourcesPath, "sources", len(sources))
	return sources, nil
}

// LoadPeople loads the tracked-people list for YouTube search.
func (l *Loader) LoadPeople() ([]Person, error) {
	data, err := os.ReadFile(l.peoplePath)
	if os.IsNotExist(err) {
		slog.Debug("No people config found, skipping", "path", l.peoplePath)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read people config: %w", err)
	}

	var file peopleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse people config: %w", err)
	}

	for i, person := range file.People {
		if person.Name == "" {
			return nil, fmt.Errorf("person at index %d has no name", i)
		}
	}

	return file.People, nil
}

// LoadChannels loads the monitored-channel list for YouTube.
func (l *Loader) LoadChannels() ([]Channel, error) {
	data, err := os.ReadFile(l.channelsPath)
	if os.IsNotExist(err) {
		slog.Debug("No channels config found, skipping", "path", l.channelsPath)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read channels config: %w", err)
	}

	var file channelsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse channels config: %w", err)
	}

	for i, channel := range file.Channels {
		if channel.Name == "" {
			return nil, fmt.Errorf("channel at index %d has no name", i)
		}
		if channel.Handle == "" && channel.ChannelID == "" {
			return nil, fmt.Errorf("channel %q needs a handle or a channel_id", channel.Name)
		}
	}

	return file.Channels, nil
}
