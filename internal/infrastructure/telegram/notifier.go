package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"Briefcaster/internal/domain"
	"Briefcaster/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	maxMessageLen  = 4000
)

// Notifier sends briefing summaries to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// PublishBriefing posts a plain-text digest of the briefing.
func (n *Notifier) PublishBriefing(ctx context.Context, briefing domain.Briefing) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", FormatMessage(briefing))
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

// FormatMessage renders the header, per-section counts and the opening of the text.
func FormatMessage(b domain.Briefing) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s briefing (%s)\n", b.Topic, b.Tier)
	fmt.Fprintf(&sb, "%d words, about %.1f min, sources used: %d of %d\n", b.WordCount, b.Duration.Minutes(), b.SourcesUsed, b.SourcesTotal)

	names := make([]string, 0, len(b.SectionCounts))
	for name := range b.SectionCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "- %s: %d\n", name, b.SectionCounts[name])
	}
	if b.AudioKey != "" {
		fmt.Fprintf(&sb, "audio: %s\n", b.AudioKey)
	}
	sb.WriteString("\n")

	room := maxMessageLen - sb.Len()
	text := []rune(b.Text)
	if room > 0 && len(text) > room {
		text = append(text[:room-1], '…')
	}
	if room > 0 {
		sb.WriteString(string(text))
	}
	return sb.String()
}
