package config

// Source describes one RSS/Atom feed to monitor.
type Source struct {
	Name           string `yaml:"name"`
	URL            string `yaml:"url"`
	Enabled        *bool  `yaml:"enabled"`
	ExtractContent bool   `yaml:"extract_content"`
}

// IsEnabled treats a missing enabled key as enabled.
func (s Source) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Person describes one tracked person for YouTube search.
type Person struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// Channel describes one YouTube channel to monitor. At least one of Handle
// and ChannelID is required; a handle is resolved to a channel id at run time.
type Channel struct {
	Name      string `yaml:"name"`
	Handle    string `yaml:"handle"`
	ChannelID string `yaml:"channel_id"`
	Enabled   *bool  `yaml:"enabled"`
}

func (c Channel) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

type peopleFile struct {
	People []Person `yaml:"people"`
}

type channelsFile struct {
	Channels []Channel `yaml:"channels"`
}
