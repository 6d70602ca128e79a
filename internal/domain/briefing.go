package domain

import "time"

// BriefingRequest carries everything an entry point may configure for one run.
type BriefingRequest struct {
	Topic           string
	DurationMinutes float64
	Window          *Window
	ProduceAudio    bool
}

// BriefingStatus enumerates pipeline milestones.
type BriefingStatus string

const (
	StatusAggregated  BriefingStatus = "aggregated"
	StatusSummarized  BriefingStatus = "summarized"
	StatusSynthesized BriefingStatus = "synthesized"
	StatusDelivered   BriefingStatus = "delivered"
)

// SectionText is the prose generated for one section.
type SectionText struct {
	Name        string
	Text        string
	TargetWords int
	ItemCount   int
}

// AudioSegment is an encoded audio file on local disk.
type AudioSegment struct {
	Path     string
	Duration time.Duration
}

// Briefing is the finished text/audio pair plus metadata handed to storage.
type Briefing struct {
	ID              string
	Topic           string
	Tier            Tier
	Text            string
	Sections        []SectionText
	WordCount       int
	Duration        time.Duration
	AudioKey        string
	SectionCounts   map[string]int
	SourcesUsed     int
	SourcesTotal    int
	Escalations     int
	Status          BriefingStatus
	CoveredEntities []string
	CreatedAt       time.Time
}
