package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"Briefcaster/internal/config"
	"Briefcaster/internal/domain"
	"Briefcaster/internal/ports"
)

const maxItemsPerPrompt = 30

// ChatGPTClient implements ports.Summarizer backed by OpenAI-compatible chat APIs.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
	now          func() time.Time
}

var _ ports.Summarizer = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ChatGPTConfig) *ChatGPTClient {
	return &ChatGPTClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		now: time.Now,
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Summarize asks the model for one section of spoken prose.
func (c *ChatGPTClient) Summarize(ctx context.Context, brief ports.SectionBrief) (string, error) {
	if c == nil {
		return "", fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("chatgpt client misconfigured")
	}
	if len(brief.Items) == 0 {
		return "", fmt.Errorf("section %s has no items", brief.Section)
	}

	prompt, err := renderPrompt(brief, c.now())
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(c.systemPrompt)},
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send prompt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("chatgpt returned no choices")
	}

	text := cleanForSpeech(decoded.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("chatgpt returned empty text for section %s", brief.Section)
	}
	return text, nil
}

// PreviewLength is the per-item body budget in the prompt; fewer items get longer previews.
func PreviewLength(tier domain.Tier) int {
	switch tier {
	case domain.TierDeepAnalysis:
		return 3000
	case domain.TierDetailed:
		return 2000
	default:
		return 1500
	}
}

var sectionPrompt = template.Must(template.New("section").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`You are a senior news editor writing one section of a spoken {{.Topic}} briefing.
Date: {{.Date}}
Section: {{.Section}}
Content strategy: {{.Strategy}}
Target length: about {{.TargetWords}} words.

{{.Guidance}}

ARTICLES:
{{range $i, $a := .Articles}}
[ARTICLE {{inc $i}}]
Title: {{$a.Title}}
Source: {{$a.Source}}
Date: {{$a.Date}}
Content: {{$a.Preview}}
--------------------------------------------------
{{end}}
Rules:
- Use only information from these articles and never invent facts, numbers or quotes.
- Mention each company or event once.
- Attribute sources naturally and write in present tense broadcast style.
- Plain text for speech. No asterisks, markdown, headers or pipe characters.
- Do not add a greeting or sign-off.
`))

type promptArticle struct {
	Title   string
	Source  string
	Date    string
	Preview string
}

type promptData struct {
	Topic       string
	Date        string
	Section     string
	Strategy    string
	TargetWords int
	Guidance    string
	Articles    []promptArticle
}

func renderPrompt(brief ports.SectionBrief, now time.Time) (string, error) {
	limit := PreviewLength(brief.Tier)
	data := promptData{
		Topic:       brief.Topic,
		Date:        now.Format("January 2, 2006"),
		Section:     brief.Section,
		Strategy:    string(brief.Tier),
		TargetWords: brief.TargetWords,
		Guidance:    tierGuidance(brief.Tier),
	}
	for i, item := range brief.Items {
		if i == maxItemsPerPrompt {
			break
		}
		date := "unknown"
		if item.PublishedAt != nil {
			date = item.PublishedAt.UTC().Format("2006-01-02 15:04 UTC")
		}
		data.Articles = append(data.Articles, promptArticle{
			Title:   item.Title,
			Source:  item.SourceName,
			Date:    date,
			Preview: item.Preview(limit),
		})
	}

	var buf bytes.Buffer
	if err := sectionPrompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

func tierGuidance(tier domain.Tier) string {
	switch tier {
	case domain.TierDeepAnalysis:
		return "Few stories are available. Explore each one in depth with context and implications."
	case domain.TierDetailed:
		return "A moderate number of stories is available. Analyze each thoroughly."
	default:
		return "Many stories are available. Cover the broad range of developments at standard depth."
	}
}

var speechReplacer = strings.NewReplacer("**", "", "*", "", "|", ",", "#", "")

func cleanForSpeech(text string) string {
	return strings.TrimSpace(speechReplacer.Replace(text))
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You write accurate, listener-friendly news briefings for text-to-speech."
	}
	return prompt
}
