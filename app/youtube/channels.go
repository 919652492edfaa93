package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsroom/app/config"
	"newsroom/app/content"
	"newsroom/app/extract"
)

// ChannelMonitor walks the uploads playlist of each configured channel,
// newest first, collecting videos published on or after startDate. As soon as
// an upload is strictly older than startDate the monitor stops paging that
// channel: uploads playlists are reverse-chronological, so everything after
// that point is guaranteed older. This keeps API cost proportional to the
// number of new uploads, not to channel history.
type ChannelMonitor struct {
	client *Client
	now    func() time.Time
}

func NewChannelMonitor(client *Client) *ChannelMonitor {
	return &ChannelMonitor{client: client, now: time.Now}
}

// Run monitors every enabled channel. Resolution and fetch failures are
// isolated per channel.
func (m *ChannelMonitor) Run(ctx context.Context, channels []config.Channel, seen extract.SeenSet, startDate time.Time) []content.Item {
	var items []content.Item
	inRun := make(map[string]struct{})

	for _, channel := range channels {
		if !channel.IsEnabled() {
			slog.Debug("Channel disabled, skipping", "channel", channel.Name)
			continue
		}

		channelItems, err := m.monitorChannel(ctx, channel, seen, inRun, startDate)
		if err != nil {
			slog.Warn("Failed to monitor channel", "channel", channel.Name, "error", err)
			continue
		}

		slog.Info("Channel monitored", "channel", channel.Name, "new", len(channelItems))
		items = append(items, channelItems...)
	}

	return items
}

func (m *ChannelMonitor) monitorChannel(ctx context.Context, channel config.Channel, seen extract.SeenSet, inRun map[string]struct{}, startDate time.Time) ([]content.Item, error) {
	channelID := channel.ChannelID
	if channelID == "" {
		resolved, err := m.client.ResolveHandle(ctx, channel.Handle)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve handle %s: %w", channel.Handle, err)
		}
		channelID = resolved
	}

	playlistID, err := m.client.UploadsPlaylistID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up uploads playlist: %w", err)
	}

	var items []content.Item
	pageToken := ""

	for {
		page, err := m.client.PlaylistItems(ctx, playlistID, pageToken)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch playlist page: %w", err)
		}
		if len(page.Items) == 0 {
			break
		}

		stop := false
		for _, upload := range page.Items {
			publishedAt, err := time.Parse(time.RFC3339, upload.Snippet.PublishedAt)
			if err != nil {
				publishedAt = m.now()
			}

			if publishedAt.Before(startDate) {
				slog.Debug("Reached uploads older than window, stopping",
					"channel", channel.Name, "published_at", publishedAt)
				stop = true
				break
			}

			videoID := upload.ContentDetails.VideoID
			id := content.VideoID(videoID)
			// A duplicate inside the window does not imply the rest of the
			// page is old, so paging continues.
			if seen.Contains(id) {
				continue
			}
			if _, ok := inRun[id]; ok {
				continue
			}
			inRun[id] = struct{}{}

			items = append(items, content.Item{
				CanonicalID:   id,
				Kind:          content.KindVideo,
				Source:        "YT:" + channel.Name,
				Title:         upload.Snippet.Title,
				URL:           WatchURL(videoID),
				PublishedAt:   publishedAt,
				RawText:       fmt.Sprintf("%s\n\nChannel: %s", upload.Snippet.Description, upload.Snippet.ChannelTitle),
				VideoID:       videoID,
				Channel:       upload.Snippet.ChannelTitle,
				PeopleMatches: []string{channel.Name},
			})
		}

		if stop || page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return items, nil
}
