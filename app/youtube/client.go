package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// Client is a minimal YouTube Data API v3 client covering the three calls the
// pipeline needs: video search, channel lookup, and uploads-playlist paging.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey string, httpClient *http.Client) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
	}
}

type Snippet struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelTitle string `json:"channelTitle"`
	PublishedAt  string `json:"publishedAt"`
}

type SearchResult struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet Snippet `json:"snippet"`
}

type PlaylistItem struct {
	Snippet        Snippet `json:"snippet"`
	ContentDetails struct {
		VideoID string `json:"videoId"`
	} `json:"contentDetails"`
}

type PlaylistPage struct {
	Items         []PlaylistItem `json:"items"`
	NextPageToken string         `json:"nextPageToken"`
}

// Search issues one video search call, newest first.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	params := url.Values{
		"part":              {"snippet"},
		"q":                 {query},
		"type":              {"video"},
		"maxResults":        {strconv.Itoa(maxResults)},
		"order":             {"date"},
		"relevanceLanguage": {"en"},
	}

	var resp struct {
		Items []SearchResult `json:"items"`
	}
	if err := c.get(ctx, "search", params, &resp); err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}

	return resp.Items, nil
}

// ResolveHandle resolves a channel handle (e.g. @OpenAI) to its UC channel id.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	params := url.Values{
		"part":      {"id"},
		"forHandle": {handle},
	}

	var resp struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := c.get(ctx, "channels", params, &resp); err != nil {
		return "", fmt.Errorf("youtube resolve handle: %w", err)
	}
	if len(resp.Items) == 0 {
		return "", fmt.Errorf("no channel found for handle %s", handle)
	}

	return resp.Items[0].ID, nil
}

// UploadsPlaylistID returns the id of a channel's uploads playlist.
func (c *Client) UploadsPlaylistID(ctx context.Context, channelID string) (string, error) {
	params := url.Values{
		"part": {"contentDetails"},
		"id":   {channelID},
	}

	var resp struct {
		Items []struct {
			ContentDetails struct {
				RelatedPlaylists struct {
					Uploads string `json:"uploads"`
				} `json:"relatedPlaylists"`
			} `json:"contentDetails"`
		} `json:"items"`
	}
	if err := c.get(ctx, "channels", params, &resp); err != nil {
		return "", fmt.Errorf("youtube uploads playlist: %w", err)
	}
	if len(resp.Items) == 0 {
		return "", fmt.Errorf("no channel found for id %s", channelID)
	}

	return resp.Items[0].ContentDetails.RelatedPlaylists.Uploads, nil
}

// PlaylistItems fetches one page of a playlist, newest first. An empty
// pageToken fetches the first page.
func (c *Client) PlaylistItems(ctx context.Context, playlistID, pageToken string) (*PlaylistPage, error) {
	params := url.Values{
		"part":       {"snippet,contentDetails"},
		"playlistId": {playlistID},
		"maxResults": {"50"},
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var page PlaylistPage
	if err := c.get(ctx, "playlistItems", params, &page); err != nil {
		return nil, fmt.Errorf("youtube playlist items: %w", err)
	}

	return &page, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode()), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("HTTP error %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// WatchURL builds the canonical watch URL for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
