package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Briefcaster/internal/config"
	"Briefcaster/internal/domain"
	"Briefcaster/internal/ports"
)

func TestSummarizePostsTierPrompt(t *testing.T) {
	t.Parallel()

	longBody := strings.Repeat("x", 5000)
	var prompt string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Model != "gpt-test" || len(body.Messages) != 2 {
			t.Errorf("unexpected payload %+v", body)
		}
		prompt = body.Messages[1].Content
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"**Chips** rallied | again."}}]}`))
	}))
	defer srv.Close()

	client := NewChatGPTClient(config.ChatGPTConfig{Endpoint: srv.URL, Model: "gpt-test", APIKey: "key"})
	client.now = func() time.Time { return time.Date(2025, 10, 13, 7, 0, 0, 0, time.UTC) }

	published := time.Date(2025, 10, 12, 22, 0, 0, 0, time.UTC)
	brief := ports.SectionBrief{
		Topic:       "semiconductors",
		Section:     "technology",
		Tier:        domain.TierDeepAnalysis,
		TargetWords: 600,
		Items: []*domain.ContentItem{
			{Title: "NVDA beats", Body: longBody, SourceName: "Wire", PublishedAt: &published},
		},
	}

	text, err := client.Summarize(context.Background(), brief)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if text != "Chips rallied , again." {
		t.Fatalf("unexpected cleaned text %q", text)
	}

	for _, want := range []string{"[ARTICLE 1]", "about 600 words", "deep-analysis", "October 13, 2025", "2025-10-12 22:00 UTC"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, strings.Repeat("x", 3001)) {
		t.Fatalf("expected preview truncated to 3000 characters")
	}
}

func TestSummarizeRejectsMisconfiguredClient(t *testing.T) {
	t.Parallel()

	client := NewChatGPTClient(config.ChatGPTConfig{})
	_, err := client.Summarize(context.Background(), ports.SectionBrief{Items: []*domain.ContentItem{{Title: "x"}}})
	if err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}

func TestPreviewLength(t *testing.T) {
	t.Parallel()

	if PreviewLength(domain.TierDeepAnalysis) != 3000 || PreviewLength(domain.TierDetailed) != 2000 || PreviewLength(domain.TierComprehensive) != 1500 {
		t.Fatalf("unexpected preview lengths")
	}
}
