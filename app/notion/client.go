package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"newsroom/app/content"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	notionVersion  = "2022-06-28"

	// Notion rejects rich_text values longer than 2000 characters.
	maxRichTextChars = 2000
	maxTags          = 10
)

// Outcome classifies a single upsert.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeError   Outcome = "error"
)

// Client talks to the Notion API. Pages are keyed by the CanonicalId
// property, making Upsert idempotent under retry.
type Client struct {
	token      string
	databaseID string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(token, databaseID string, httpClient *http.Client) *Client {
	return &Client{
		token:      token,
		databaseID: formatUUID(databaseID),
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// formatUUID inserts dashes into a bare 32-hex database id.
func formatUUID(id string) string {
	if len(id) == 32 && !strings.Contains(id, "-") {
		return fmt.Sprintf("%s-%s-%s-%s-%s", id[:8], id[8:12], id[12:16], id[16:20], id[20:])
	}
	return id
}

// Upsert creates or updates the page for an item's canonical id. It never
// panics and never returns an error value: transport failures and non-2xx
// responses are logged and classified as OutcomeError for the caller to count.
func (c *Client) Upsert(ctx context.Context, item content.Item) Outcome {
	pageID, err := c.findPageByCanonicalID(ctx, item.CanonicalID)
	if err != nil {
		slog.Warn("Failed to query destination for existing page", "id", item.CanonicalID, "error", err)
		return OutcomeError
	}

	properties := c.buildProperties(item)

	if pageID != "" {
		if err := c.request(ctx, "PATCH", "/pages/"+pageID, map[string]any{"properties": properties}, nil); err != nil {
			slog.Warn("Failed to update page", "id", item.CanonicalID, "error", err)
			return OutcomeError
		}
		return OutcomeUpdated
	}

	payload := map[string]any{
		"parent":     map[string]any{"database_id": c.databaseID},
		"properties": properties,
	}
	if err := c.request(ctx, "POST", "/pages", payload, nil); err != nil {
		slog.Warn("Failed to create page", "id", item.CanonicalID, "error", err)
		return OutcomeError
	}
	return OutcomeCreated
}

// Clear archives every page in the database and returns the count.
func (c *Client) Clear(ctx context.Context) (int, error) {
	archived := 0
	cursor := ""

	for {
		payload := map[string]any{"page_size": 100}
		if cursor != "" {
			payload["start_cursor"] = cursor
		}

		var page struct {
			Results []struct {
				ID string `json:"id"`
			} `json:"results"`
			HasMore    bool   `json:"has_more"`
			NextCursor string `json:"next_cursor"`
		}
		if err := c.request(ctx, "POST", "/databases/"+c.databaseID+"/query", payload, &page); err != nil {
			return archived, fmt.Errorf("failed to query database: %w", err)
		}

		for _, result := range page.Results {
			if err := c.request(ctx, "PATCH", "/pages/"+result.ID, map[string]any{"archived": true}, nil); err != nil {
				slog.Warn("Failed to archive page", "page_id", result.ID, "error", err)
				continue
			}
			archived++
		}

		if !page.HasMore {
			return archived, nil
		}
		cursor = page.NextCursor
	}
}

func (c *Client) findPageByCanonicalID(ctx context.Context, canonicalID string) (string, error) {
	payload := map[string]any{
		"filter": map[string]any{
			"property":  "CanonicalId",
			"rich_text": map[string]any{"equals": canonicalID},
		},
	}

	var resp struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := c.request(ctx, "POST", "/databases/"+c.databaseID+"/query", payload, &resp); err != nil {
		return "", err
	}

	if len(resp.Results) == 0 {
		return "", nil
	}
	return resp.Results[0].ID, nil
}

func (c *Client) buildProperties(item content.Item) map[string]any {
	properties := map[string]any{
		"Title":       map[string]any{"title": []map[string]any{{"text": map[string]any{"content": truncate(item.Title, maxRichTextChars)}}}},
		"URL":         map[string]any{"url": item.URL},
		"Source":      map[string]any{"select": map[string]any{"name": item.Source}},
		"Type":        map[string]any{"select": map[string]any{"name": string(item.Kind)}},
		"PublishedAt": map[string]any{"date": map[string]any{"start": item.PublishedAt.Format(time.RFC3339)}},
		"IngestedAt":  map[string]any{"date": map[string]any{"start": c.now().Format(time.RFC3339)}},
		"Importance":  map[string]any{"number": item.Importance},
		"CanonicalId": richText(item.CanonicalID),
	}

	if item.Summary != "" {
		properties["Summary"] = richText(truncate(item.Summary, maxRichTextChars))
	}
	if item.ActionableInsight != "" {
		properties["ActionableInsight"] = richText(truncate(item.ActionableInsight, maxRichTextChars))
	}
	if len(item.Tags) > 0 {
		properties["Tags"] = multiSelect(item.Tags, maxTags)
	}
	if len(item.PeopleMatches) > 0 {
		properties["PeopleMatches"] = multiSelect(item.PeopleMatches, len(item.PeopleMatches))
	}
	if item.VideoID != "" {
		properties["VideoId"] = richText(item.VideoID)
	}
	if item.Channel != "" {
		properties["Channel"] = richText(item.Channel)
	}

	return properties
}

func richText(value string) map[string]any {
	return map[string]any{"rich_text": []map[string]any{{"text": map[string]any{"content": value}}}}
}

// multiSelect builds a bounded multi_select value. Notion option names must
// not contain commas.
func multiSelect(values []string, limit int) map[string]any {
	if len(values) > limit {
		values = values[:limit]
	}
	options := make([]map[string]any, 0, len(values))
	for _, value := range values {
		options = append(options, map[string]any{"name": strings.ReplaceAll(value, ",", "")})
	}
	return map[string]any{"multi_select": options}
}

func truncate(value string, limit int) string {
	if len(value) > limit {
		return value[:limit]
	}
	return value
}

func (c *Client) request(ctx context.Context, method, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("HTTP error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
