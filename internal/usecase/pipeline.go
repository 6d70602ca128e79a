package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"Briefcaster/internal/aggregation"
	"Briefcaster/internal/domain"
	"Briefcaster/internal/ports"
	"Briefcaster/internal/textnorm"
)

// Aggregator produces the curated content package for one request.
type Aggregator interface {
	Run(ctx context.Context, req domain.BriefingRequest) (*domain.ContentPackage, aggregation.RunReport, error)
}

// PipelineDeps wires all driven adapters into the briefing pipeline.
type PipelineDeps struct {
	Aggregator  Aggregator
	Summarizer  ports.Summarizer
	Synthesizer ports.SpeechSynthesizer
	Assembler   ports.AudioAssembler
	AudioStore  ports.AudioStore
	Repository  ports.BriefingRepository
	Notifiers   []ports.Notifier
	Logger      *slog.Logger
}

// PipelineOptions are the presentation and audio settings of a run.
type PipelineOptions struct {
	// SectionTitles maps section names to the spoken transition, e.g. "Looking ahead".
	SectionTitles map[string]string
	// Deadline bounds aggregation; zero means only the caller's context applies.
	Deadline    time.Duration
	OutputDir   string
	IntroPath   string
	AudioFormat string
}

// Pipeline implements the briefing workflow: aggregate, summarize, normalize,
// optionally voice, persist and announce.
type Pipeline struct {
	aggregator  Aggregator
	summarizer  ports.Summarizer
	synthesizer ports.SpeechSynthesizer
	assembler   ports.AudioAssembler
	audioStore  ports.AudioStore
	repository  ports.BriefingRepository
	notifiers   []ports.Notifier
	opts        PipelineOptions
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps, opts PipelineOptions) *Pipeline {
	if opts.AudioFormat == "" {
		opts.AudioFormat = "mp3"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = os.TempDir()
	}
	return &Pipeline{
		aggregator:  deps.Aggregator,
		summarizer:  deps.Summarizer,
		synthesizer: deps.Synthesizer,
		assembler:   deps.Assembler,
		audioStore:  deps.AudioStore,
		repository:  deps.Repository,
		notifiers:   deps.Notifiers,
		opts:        opts,
		logger:      deps.Logger,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Generate runs one briefing end to end. Aggregation failures come back as
// *domain.BudgetError or *domain.NoContentError; notifier failures are only logged.
func (p *Pipeline) Generate(ctx context.Context, req domain.BriefingRequest) (domain.Briefing, error) {
	if p.aggregator == nil || p.summarizer == nil {
		return domain.Briefing{}, fmt.Errorf("pipeline misconfigured: aggregator and summarizer are required")
	}

	pkg, report, err := p.aggregate(ctx, req)
	if err != nil {
		return domain.Briefing{}, err
	}
	p.info("content aggregated",
		"topic", req.Topic,
		"tier", pkg.StrategyTier,
		"items", pkg.ItemCount(),
		"target_words", pkg.TargetWords(),
		"escalations", report.Escalations,
		"sources", report.SourcesSummary(),
	)

	now := p.now()
	sections, err := p.summarize(ctx, req.Topic, pkg)
	if err != nil {
		return domain.Briefing{}, err
	}

	text := textnorm.Normalize(p.compose(req.Topic, now, sections))
	words := len(strings.Fields(text))

	briefing := domain.Briefing{
		ID:              p.newID(),
		Topic:           req.Topic,
		Tier:            pkg.StrategyTier,
		Text:            text,
		Sections:        sections,
		WordCount:       words,
		Duration:        wordsToDuration(words),
		SectionCounts:   sectionCounts(pkg),
		SourcesUsed:     report.SourcesUsed,
		SourcesTotal:    report.SourcesTotal,
		Escalations:     report.Escalations,
		Status:          domain.StatusSummarized,
		CoveredEntities: pkg.CoveredEntities,
		CreatedAt:       now.UTC(),
	}

	if req.ProduceAudio {
		if err := p.voice(ctx, &briefing); err != nil {
			return domain.Briefing{}, err
		}
	}

	if p.repository != nil {
		if err := p.repository.Save(ctx, briefing); err != nil {
			return domain.Briefing{}, fmt.Errorf("persist briefing %s: %w", briefing.ID, err)
		}
	}

	if p.notify(ctx, briefing) {
		briefing.Status = domain.StatusDelivered
		if p.repository != nil {
			if err := p.repository.Save(ctx, briefing); err != nil {
				p.warn("update delivery status failed", "id", briefing.ID, "error", err)
			}
		}
	}

	p.info("briefing ready", "id", briefing.ID, "words", briefing.WordCount, "duration", briefing.Duration, "status", briefing.Status)
	return briefing, nil
}

func (p *Pipeline) aggregate(ctx context.Context, req domain.BriefingRequest) (*domain.ContentPackage, aggregation.RunReport, error) {
	if p.opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Deadline)
		defer cancel()
	}
	return p.aggregator.Run(ctx, req)
}

// summarize writes each section; failed sections are dropped and only a total failure is fatal.
func (p *Pipeline) summarize(ctx context.Context, topic string, pkg *domain.ContentPackage) ([]domain.SectionText, error) {
	out := make([]domain.SectionText, 0, len(pkg.Sections))
	var errs []error

	for _, section := range pkg.Sections {
		text, err := p.summarizer.Summarize(ctx, ports.SectionBrief{
			Topic:       topic,
			Section:     section.Name,
			Tier:        pkg.StrategyTier,
			TargetWords: section.TargetWords,
			Items:       section.Items,
		})
		if err != nil {
			p.warn("section summary failed", "section", section.Name, "error", err)
			errs = append(errs, fmt.Errorf("section %s: %w", section.Name, err))
			continue
		}
		out = append(out, domain.SectionText{
			Name:        section.Name,
			Text:        strings.TrimSpace(text),
			TargetWords: section.TargetWords,
			ItemCount:   len(section.Items),
		})
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("summarize: every section failed: %w", errors.Join(errs...))
	}
	return out, nil
}

func (p *Pipeline) compose(topic string, now time.Time, sections []domain.SectionText) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Welcome to your %s briefing. It's %s, and here is what moved.\n\n", topic, now.Format("January 2"))
	for _, s := range sections {
		fmt.Fprintf(&sb, "%s.\n\n%s\n\n", p.sectionTitle(s.Name), s.Text)
	}
	fmt.Fprintf(&sb, "That concludes your %s briefing. Thank you for listening.", topic)
	return sb.String()
}

func (p *Pipeline) sectionTitle(name string) string {
	if title := strings.TrimSpace(p.opts.SectionTitles[name]); title != "" {
		return strings.TrimSuffix(title, ".")
	}
	title := strings.NewReplacer("_", " ", "-", " ").Replace(name)
	if title == "" {
		return title
	}
	return strings.ToUpper(title[:1]) + title[1:]
}

// voice synthesizes, prepends the intro and uploads. Any failure on the main segment is fatal.
func (p *Pipeline) voice(ctx context.Context, b *domain.Briefing) error {
	if p.synthesizer == nil {
		return fmt.Errorf("audio requested but no speech synthesizer is configured")
	}

	audio, estimate, err := p.synthesizer.Synthesize(ctx, b.Text)
	if err != nil {
		return fmt.Errorf("synthesize briefing %s: %w", b.ID, err)
	}

	if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	mainPath := filepath.Join(p.opts.OutputDir, b.ID+"."+p.opts.AudioFormat)
	if err := os.WriteFile(mainPath, audio, 0o644); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}

	segment := domain.AudioSegment{Path: mainPath, Duration: estimate}
	if p.assembler != nil {
		segment, err = p.assembler.Assemble(ctx, segment, p.opts.IntroPath)
		if err != nil {
			return err
		}
	}

	b.Duration = segment.Duration
	b.AudioKey = segment.Path
	b.Status = domain.StatusSynthesized

	if p.audioStore != nil {
		key, err := p.audioStore.PutAudio(ctx, b.ID, segment.Path)
		if err != nil {
			p.warn("audio upload failed; keeping local file", "id", b.ID, "path", segment.Path, "error", err)
			return nil
		}
		b.AudioKey = key
	}
	return nil
}

// notify reports whether at least one channel accepted the briefing.
func (p *Pipeline) notify(ctx context.Context, b domain.Briefing) bool {
	delivered := false
	for _, n := range p.notifiers {
		if n == nil {
			continue
		}
		if err := n.PublishBriefing(ctx, b); err != nil {
			p.warn("notifier failed", "id", b.ID, "error", err)
			continue
		}
		delivered = true
	}
	return delivered
}

func sectionCounts(pkg *domain.ContentPackage) map[string]int {
	counts := make(map[string]int, len(pkg.Sections))
	for _, s := range pkg.Sections {
		counts[s.Name] = len(s.Items)
	}
	return counts
}

func wordsToDuration(words int) time.Duration {
	return time.Duration(float64(words) / aggregation.WordsPerMinute * float64(time.Minute))
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
