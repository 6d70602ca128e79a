package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"Briefcaster/internal/config"
	"Briefcaster/internal/domain"
	"Briefcaster/internal/ports"
)

// BriefingEvent is the message published when a briefing completes.
type BriefingEvent struct {
	ID              string         `json:"id"`
	Topic           string         `json:"topic"`
	Tier            string         `json:"tier"`
	WordCount       int            `json:"word_count"`
	DurationSeconds float64        `json:"duration_seconds"`
	AudioKey        string         `json:"audio_key,omitempty"`
	SectionCounts   map[string]int `json:"section_counts"`
	SourcesUsed     int            `json:"sources_used"`
	SourcesTotal    int            `json:"sources_total"`
	Escalations     int            `json:"escalations"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Publisher emits briefing events to a Kafka topic.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

var _ ports.Notifier = (*Publisher)(nil)

// NewPublisher connects a synchronous producer to the configured brokers.
func NewPublisher(cfg config.KafkaConfig) (*Publisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewPublisherWithProducer(producer, cfg.Topic), nil
}

// NewPublisherWithProducer wraps an existing producer.
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// PublishBriefing sends the event keyed by briefing id.
func (p *Publisher) PublishBriefing(ctx context.Context, b domain.Briefing) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(NewBriefingEvent(b))
	if err != nil {
		return fmt.Errorf("marshal briefing event: %w", err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(b.ID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("send briefing event: %w", err)
	}
	return nil
}

// Close shuts down the producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}

// NewBriefingEvent projects the briefing onto its wire representation.
func NewBriefingEvent(b domain.Briefing) BriefingEvent {
	return BriefingEvent{
		ID:              b.ID,
		Topic:           b.Topic,
		Tier:            string(b.Tier),
		WordCount:       b.WordCount,
		DurationSeconds: b.Duration.Seconds(),
		AudioKey:        b.AudioKey,
		SectionCounts:   b.SectionCounts,
		SourcesUsed:     b.SourcesUsed,
		SourcesTotal:    b.SourcesTotal,
		Escalations:     b.Escalations,
		CreatedAt:       b.CreatedAt,
	}
}
