package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"Briefcaster/internal/config"
	"Briefcaster/internal/ports"
)

const wordsPerMinute = 150

// Client talks to an OpenAI-compatible speech service such as Kokoro.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	voice    string
	format   string
	speed    float64
	http     *http.Client
}

var _ ports.SpeechSynthesizer = (*Client)(nil)

// NewClient creates a reusable HTTP client; empty fields fall back to Kokoro defaults.
func NewClient(cfg config.SpeechConfig) *Client {
	c := &Client{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		voice:    cfg.Voice,
		format:   cfg.Format,
		speed:    cfg.Speed,
		http:     &http.Client{Timeout: 10 * time.Minute},
	}
	if c.model == "" {
		c.model = "kokoro"
	}
	if c.voice == "" {
		c.voice = "af_bella"
	}
	if c.format == "" {
		c.format = "mp3"
	}
	if c.speed <= 0 {
		c.speed = 1.0
	}
	return c
}

// Format is the container of the returned audio, used as file extension.
func (c *Client) Format() string {
	return c.format
}

// Synthesize renders text and returns the encoded audio with its estimated duration.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, time.Duration, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, 0, fmt.Errorf("synthesize: empty text")
	}
	if c.endpoint == "" {
		return nil, 0, fmt.Errorf("synthesize: speech endpoint not configured")
	}

	payload := map[string]any{
		"model":           c.model,
		"input":           text,
		"voice":           c.voice,
		"response_format": c.format,
		"speed":           c.speed,
	}

	audio, err := c.post(ctx, "/v1/audio/speech", payload)
	if err != nil {
		return nil, 0, err
	}
	if len(audio) == 0 {
		return nil, 0, fmt.Errorf("synthesize: empty audio response")
	}

	return audio, EstimateDuration(text, c.speed), nil
}

// EstimateDuration assumes the narrator reads 150 words per minute at speed 1.
func EstimateDuration(text string, speed float64) time.Duration {
	if speed <= 0 {
		speed = 1
	}
	words := len(strings.Fields(text))
	minutes := float64(words) / (wordsPerMinute * speed)
	return time.Duration(minutes * float64(time.Minute))
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return audio, nil
}
