package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"newsroom/app/content"
)

func completionResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "test-model",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	}
}

func newTestEnricher(srv *httptest.Server) *Enricher {
	client := openai.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(srv.URL),
		option.WithMaxRetries(0),
	)
	return NewEnricher(&client, "primary-model", "fallback-model")
}

func testBatch() []content.Item {
	published := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return []content.Item{
		{
			CanonicalID: "rss:aaa",
			Kind:        content.KindArticle,
			Source:      "AI Blog",
			Title:       "New model released",
			PublishedAt: published,
			RawText:     "A new model was released today.",
		},
		{
			CanonicalID: "rss:bbb",
			Kind:        content.KindArticle,
			Source:      "AI Blog",
			Title:       "Minor tooling update",
			PublishedAt: published,
			RawText:     "A small update to the tooling.",
		},
	}
}

func TestEnrichBatch_Success(t *testing.T) {
	results := `{"results": [
		{"id": "rss:aaa", "summary": "Big release.", "tags": ["AI", "LLM"], "importance": 9, "key_entities": ["Acme AI"], "actionable_insight": "Try the new model."},
		{"id": "rss:bbb", "summary": "Small update.", "tags": ["Tooling"], "importance": 15, "key_entities": [], "actionable_insight": "Nothing urgent."}
	]}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse(results))
	}))
	defer srv.Close()

	enricher := newTestEnricher(srv)
	enriched := enricher.EnrichBatch(context.Background(), testBatch())

	if len(enriched) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(enriched))
	}
	if enriched[0].Summary != "Big release." {
		t.Errorf("Expected summary applied, got %q", enriched[0].Summary)
	}
	if len(enriched[0].Tags) != 2 || enriched[0].Tags[0] != "AI" {
		t.Errorf("Expected tags in order, got %v", enriched[0].Tags)
	}
	if enriched[0].Importance != 9 {
		t.Errorf("Expected importance 9, got %d", enriched[0].Importance)
	}
	// Out-of-range score from the model is clamped, not stored.
	if enriched[1].Importance != 10 {
		t.Errorf("Expected importance clamped to 10, got %d", enriched[1].Importance)
	}
}

func TestEnrichBatch_OmittedItemPassesThrough(t *testing.T) {
	results := `{"results": [
		{"id": "rss:aaa", "summary": "Covered.", "tags": [], "importance": 5, "key_entities": [], "actionable_insight": ""}
	]}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse(results))
	}))
	defer srv.Close()

	enricher := newTestEnricher(srv)
	enriched := enricher.EnrichBatch(context.Background(), testBatch())

	if len(enriched) != 2 {
		t.Fatalf("Expected omitted item to pass through, got %d items", len(enriched))
	}
	if enriched[0].Summary != "Covered." {
		t.Errorf("Expected first item enriched, got %q", enriched[0].Summary)
	}
	if enriched[1].Summary != "" || enriched[1].Importance != 0 {
		t.Errorf("Expected second item unmodified, got summary %q importance %d",
			enriched[1].Summary, enriched[1].Importance)
	}
}

func TestEnrichBatch_BothModelsFail(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	enricher := newTestEnricher(srv)
	batch := testBatch()
	enriched := enricher.EnrichBatch(context.Background(), batch)

	if len(enriched) != len(batch) {
		t.Fatalf("Expected all %d items back unmodified, got %d", len(batch), len(enriched))
	}
	for i, item := range enriched {
		if item.Summary != "" || item.Importance != 0 || item.Tags != nil {
			t.Errorf("Item %d should be unmodified after total enrichment failure: %+v", i, item)
		}
	}
	if requests < 2 {
		t.Errorf("Expected primary and fallback attempts, saw %d requests", requests)
	}
}

func TestEnrichBatch_FallbackModelSucceeds(t *testing.T) {
	results := `{"results": [
		{"id": "rss:aaa", "summary": "Rescued.", "tags": [], "importance": 4, "key_entities": [], "actionable_insight": ""},
		{"id": "rss:bbb", "summary": "Also rescued.", "tags": [], "importance": 3, "key_entities": [], "actionable_insight": ""}
	]}`

	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		models = append(models, body.Model)

		if body.Model == "primary-model" {
			http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse(results))
	}))
	defer srv.Close()

	enricher := newTestEnricher(srv)
	enriched := enricher.EnrichBatch(context.Background(), testBatch())

	if enriched[0].Summary != "Rescued." {
		t.Errorf("Expected fallback enrichment applied, got %q", enriched[0].Summary)
	}
	sawFallback := false
	for _, m := range models {
		if m == "fallback-model" {
			sawFallback = true
		}
	}
	if !sawFallback {
		t.Errorf("Expected a fallback-model request, saw %v", models)
	}
}

func TestEnrichBatch_FencedJSONResponse(t *testing.T) {
	fenced := "```json\n" + `{"results": [{"id": "rss:aaa", "summary": "Fenced.", "tags": [], "importance": 2, "key_entities": [], "actionable_insight": ""}, {"id": "rss:bbb", "summary": "Fenced too.", "tags": [], "importance": 2, "key_entities": [], "actionable_insight": ""}]}` + "\n```"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse(fenced))
	}))
	defer srv.Close()

	enricher := newTestEnricher(srv)
	enriched := enricher.EnrichBatch(context.Background(), testBatch())

	if enriched[0].Summary != "Fenced." {
		t.Errorf("Expected fenced JSON to be parsed, got %q", enriched[0].Summary)
	}
}

func TestEnrichBatch_TruncatesLongContent(t *testing.T) {
	long := make([]byte, maxContentChars*2)
	for i := range long {
		long[i] = 'a'
	}

	var sentContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) == 2 {
			sentContent = body.Messages[1].Content
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse(`{"results": []}`))
	}))
	defer srv.Close()

	enricher := newTestEnricher(srv)
	items := []content.Item{{
		CanonicalID: "rss:long",
		Title:       "Long article",
		RawText:     string(long),
		PublishedAt: time.Now(),
	}}
	enricher.EnrichBatch(context.Background(), items)

	var payload []itemPayload
	if err := json.Unmarshal([]byte(sentContent), &payload); err != nil {
		t.Fatalf("Failed to parse sent payload: %v (content %q)", err, sentContent)
	}
	if len(payload) != 1 {
		t.Fatalf("Expected 1 payload item, got %d", len(payload))
	}
	if len(payload[0].Content) != maxContentChars {
		t.Errorf("Expected content truncated to %d chars, got %d", maxContentChars, len(payload[0].Content))
	}
}
