package ports

import (
	"context"
	"time"

	"Briefcaster/internal/domain"
)

// SectionBrief is what the summarizer needs to write one section.
type SectionBrief struct {
	Topic       string
	Section     string
	Tier        domain.Tier
	TargetWords int
	Items       []*domain.ContentItem
}

// Summarizer turns a section's items into prose.
type Summarizer interface {
	Summarize(ctx context.Context, brief SectionBrief) (string, error)
}

// SpeechSynthesizer renders normalized text into an encoded audio payload.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, time.Duration, error)
}

// AudioAssembler prepends an optional intro to the main segment.
type AudioAssembler interface {
	Assemble(ctx context.Context, main domain.AudioSegment, introPath string) (domain.AudioSegment, error)
}

// BriefingRepository persists finished briefings.
type BriefingRepository interface {
	Save(ctx context.Context, briefing domain.Briefing) error
	Get(ctx context.Context, id string) (domain.Briefing, error)
	// List returns the newest briefings first; an empty topic matches all.
	List(ctx context.Context, topic string, limit int) ([]domain.Briefing, error)
}

// AudioStore uploads rendered audio and returns its storage key.
type AudioStore interface {
	PutAudio(ctx context.Context, id, path string) (string, error)
}

// Notifier announces finished briefings to Telegram, Kafka or other channels.
type Notifier interface {
	PublishBriefing(ctx context.Context, briefing domain.Briefing) error
}

// Cache stores raw provider responses between runs.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Scheduler controls when recurring briefings execute.
type Scheduler interface {
	Schedule(spec string, job func(time.Time)) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
