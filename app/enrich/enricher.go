package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"

	"newsroom/app/content"
)

// BatchSize is the number of items sent to the model per call.
const BatchSize = 10

// maxContentChars bounds the body excerpt per item; plenty for a summary.
const maxContentChars = 10000

// Enricher augments article items with LLM-generated metadata. Enrichment is
// strictly best effort: the primary model gets one try, the fallback model
// one more, and if both fail the batch passes through unmodified. Items are
// never dropped.
type Enricher struct {
	client        *openai.Client
	model         openai.ChatModel
	fallbackModel openai.ChatModel
}

func NewEnricher(client *openai.Client, model, fallbackModel openai.ChatModel) *Enricher {
	return &Enricher{
		client:        client,
		model:         model,
		fallbackModel: fallbackModel,
	}
}

type itemPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	Content     string `json:"content"`
}

type itemResult struct {
	ID                string   `json:"id"`
	Summary           string   `json:"summary"`
	Tags              []string `json:"tags"`
	Importance        int      `json:"importance"`
	KeyEntities       []string `json:"key_entities"`
	ActionableInsight string   `json:"actionable_insight"`
}

// EnrichBatch analyzes one batch of items and returns them in input order.
// Items the model silently omits pass through unmodified with a warning.
func (e *Enricher) EnrichBatch(ctx context.Context, items []content.Item) []content.Item {
	if len(items) == 0 {
		return items
	}

	payload, err := e.buildPayload(items)
	if err != nil {
		slog.Warn("Failed to build enrichment payload, passing batch through", "error", err)
		return items
	}

	results, err := e.call(ctx, e.model, payload)
	if err != nil {
		slog.Warn("Primary enrichment model failed, trying fallback",
			"model", e.model, "fallback", e.fallbackModel, "error", err)

		results, err = e.call(ctx, e.fallbackModel, payload)
		if err != nil {
			slog.Warn("Fallback enrichment model failed, passing batch through",
				"model", e.fallbackModel, "error", err)
			return items
		}
	}

	return e.apply(items, results)
}

func (e *Enricher) buildPayload(items []content.Item) (string, error) {
	payload := make([]itemPayload, 0, len(items))
	for _, item := range items {
		body := item.RawText
		if len(body) > maxContentChars {
			body = body[:maxContentChars]
		}
		payload = append(payload, itemPayload{
			ID:          item.CanonicalID,
			Title:       item.Title,
			Source:      item.Source,
			PublishedAt: item.PublishedAt.String(),
			Content:     body,
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal items: %w", err)
	}
	return string(data), nil
}

func (e *Enricher) call(ctx context.Context, model openai.ChatModel, payload string) (map[string]itemResult, error) {
	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(payload),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("enrichment API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from enrichment model")
	}

	text := cleanJSONResponse(resp.Choices[0].Message.Content)

	var envelope struct {
		Results []itemResult `json:"results"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse enrichment response: %w", err)
	}

	results := make(map[string]itemResult, len(envelope.Results))
	for _, result := range envelope.Results {
		results[result.ID] = result
	}
	return results, nil
}

func (e *Enricher) apply(items []content.Item, results map[string]itemResult) []content.Item {
	enriched := make([]content.Item, 0, len(items))
	for _, item := range items {
		result, ok := results[item.CanonicalID]
		if !ok {
			slog.Warn("Enrichment response omitted item, passing through", "id", item.CanonicalID)
			enriched = append(enriched, item)
			continue
		}

		item.Summary = result.Summary
		item.Tags = result.Tags
		item.Importance = content.ClampImportance(result.Importance)
		item.KeyEntities = result.KeyEntities
		item.ActionableInsight = result.ActionableInsight
		enriched = append(enriched, item)
	}
	return enriched
}

// cleanJSONResponse strips markdown code fences some models wrap around JSON.
func cleanJSONResponse(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
