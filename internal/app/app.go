package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"Briefcaster/internal/aggregation"
	"Briefcaster/internal/api"
	"Briefcaster/internal/audio"
	"Briefcaster/internal/config"
	"Briefcaster/internal/domain"
	"Briefcaster/internal/infrastructure/cache"
	"Briefcaster/internal/infrastructure/feeds"
	"Briefcaster/internal/infrastructure/kafka"
	"Briefcaster/internal/infrastructure/llm"
	"Briefcaster/internal/infrastructure/scheduler"
	"Briefcaster/internal/infrastructure/storage"
	"Briefcaster/internal/infrastructure/telegram"
	"Briefcaster/internal/infrastructure/tts"
	"Briefcaster/internal/logging"
	"Briefcaster/internal/ports"
	"Briefcaster/internal/provider"
	"Briefcaster/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	pipeline   *usecase.Pipeline
	repository ports.BriefingRepository
	closers    []io.Closer
}

// New builds the adapters, storage and notifiers described by cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	adapters := a.buildAdapters(ctx)
	if len(adapters) == 0 {
		a.Close()
		return nil, fmt.Errorf("no content providers enabled")
	}

	orchestrator := aggregation.NewOrchestrator(adapters, AggregationConfig(cfg), baseLogger.With("component", "aggregation"))

	if cfg.ChatGPT.APIKey == "" {
		baseLogger.Warn("OPENAI_API_KEY not set; summaries will fail")
	}

	deps := usecase.PipelineDeps{
		Aggregator: orchestrator,
		Summarizer: llm.NewChatGPTClient(cfg.ChatGPT),
		Logger:     baseLogger.With("component", "pipeline"),
	}

	if cfg.Speech.Endpoint != "" {
		deps.Synthesizer = tts.NewClient(cfg.Speech)
		media := audio.NewFFmpeg(cfg.Audio.Codec, cfg.Audio.Bitrate)
		deps.Assembler = audio.NewAssembler(media, media, cfg.Audio.OutputDir, baseLogger.With("component", "audio"))
	}

	if cfg.Storage.SQLitePath != "" {
		db, err := storage.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, db)
		repo := storage.NewSQLiteRepository(db)
		a.repository = repo
		deps.Repository = repo
	}

	if cfg.Storage.S3.Bucket != "" {
		store, err := storage.NewS3AudioStore(ctx, cfg.Storage.S3)
		if err != nil {
			baseLogger.Warn("s3 disabled", "error", err)
		} else {
			deps.AudioStore = store
		}
	}

	deps.Notifiers = a.buildNotifiers()

	a.pipeline = usecase.NewPipeline(deps, usecase.PipelineOptions{
		SectionTitles: sectionTitles(cfg.Sections),
		Deadline:      cfg.Briefing.Deadline,
		OutputDir:     cfg.Audio.OutputDir,
		IntroPath:     cfg.Audio.IntroPath,
		AudioFormat:   cfg.Speech.Format,
	})
	return a, nil
}

func (a *Application) buildAdapters(ctx context.Context) []provider.Adapter {
	cfg := a.cfg
	opts := feeds.Options{
		Client:    &http.Client{Timeout: cfg.Briefing.AdapterTimeout},
		UserAgent: cfg.Providers.UserAgent,
		Ignore:    cfg.Providers.Ignore,
	}

	registry := provider.NewRegistry()
	if cfg.Providers.Finlight.Enabled {
		registry.Register(feeds.NewFinlightAdapter(cfg.Providers.Finlight, opts, a.logger))
	}
	if cfg.Providers.NewsAPIAI.Enabled {
		registry.Register(feeds.NewNewsAPIAIAdapter(cfg.Providers.NewsAPIAI, opts, a.logger))
	}
	for _, feed := range cfg.Providers.RSS {
		registry.Register(feeds.NewRSSAdapter(feed, opts, a.logger))
	}

	adapters := registry.All()
	if cfg.Cache.Redis.Addr == "" || cfg.Cache.TTL <= 0 {
		return adapters
	}

	redisCache := cache.NewRedisCache(cfg.Cache.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := redisCache.Ping(pingCtx); err != nil {
		a.logger.Warn("redis unavailable; fetch cache disabled", "addr", cfg.Cache.Redis.Addr, "error", err)
		_ = redisCache.Close()
		return adapters
	}
	a.closers = append(a.closers, redisCache)

	cacheLogger := a.logger.With("component", "fetch-cache")
	for i, adapter := range adapters {
		adapters[i] = provider.NewCachedAdapter(adapter, redisCache, cfg.Cache.TTL, cacheLogger)
	}
	return adapters
}

func (a *Application) buildNotifiers() []ports.Notifier {
	var notifiers []ports.Notifier

	tg := a.cfg.Notifications.Telegram
	if tg.BotToken != "" && tg.ChatID != "" {
		notifiers = append(notifiers, telegram.NewNotifier(tg.BotToken, tg.ChatID))
	}

	kcfg := a.cfg.Notifications.Kafka
	if len(kcfg.Brokers) > 0 {
		pub, err := kafka.NewPublisher(kcfg)
		if err != nil {
			a.logger.Warn("kafka disabled", "brokers", kcfg.Brokers, "error", err)
		} else {
			a.closers = append(a.closers, pub)
			notifiers = append(notifiers, pub)
		}
	}
	return notifiers
}

// Request builds a briefing request from CLI-style overrides; zero values take config defaults.
func (a *Application) Request(topic string, durationMinutes float64, lookbackHours int, produceAudio bool) domain.BriefingRequest {
	b := a.cfg.Briefing
	if topic == "" {
		topic = b.DefaultTopic
	}
	if durationMinutes == 0 {
		durationMinutes = b.DefaultDurationMinutes
	}
	if lookbackHours <= 0 {
		lookbackHours = b.LookbackHours
	}

	window := domain.LookbackWindow(time.Now().In(a.cfg.Scheduler.Location()), lookbackHours, b.WeekendAware)
	return domain.BriefingRequest{
		Topic:           topic,
		DurationMinutes: durationMinutes,
		Window:          &window,
		ProduceAudio:    produceAudio,
	}
}

// RunOnce generates a single briefing.
func (a *Application) RunOnce(ctx context.Context, req domain.BriefingRequest) (domain.Briefing, error) {
	return a.pipeline.Generate(ctx, req)
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	b := a.cfg.Briefing
	handler := api.NewHandler(a.pipeline, a.repository, api.Defaults{
		Topic:           b.DefaultTopic,
		DurationMinutes: b.DefaultDurationMinutes,
		LookbackHours:   b.LookbackHours,
		WeekendAware:    b.WeekendAware,
	}, a.logger)

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           api.NewServer(handler, a.cfg.HTTP.APIKey),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Schedule runs the configured cron jobs until ctx is cancelled.
func (a *Application) Schedule(ctx context.Context) error {
	if len(a.cfg.Scheduler.Jobs) == 0 {
		return fmt.Errorf("no scheduled jobs configured")
	}

	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.Location())
	sched := usecase.NewScheduler(driver, a.pipeline, Jobs(a.cfg), a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return err
	}
	for i, next := range driver.Next() {
		a.logger.Info("next run", "job", a.cfg.Scheduler.Jobs[i].Name, "at", next)
	}

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Close releases database, cache and producer connections.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// AggregationConfig converts the YAML catalog and tables into orchestrator policy.
func AggregationConfig(cfg config.Config) aggregation.Config {
	b := cfg.Briefing

	catalog := make([]aggregation.SectionSpec, 0, len(cfg.Sections))
	for _, s := range cfg.Sections {
		catalog = append(catalog, aggregation.SectionSpec{Name: s.Name, Keywords: s.Keywords, Overflow: s.Overflow})
	}

	tables := make(map[domain.Tier]aggregation.TierTable, len(cfg.Budgets))
	for name, budget := range cfg.Budgets {
		table := aggregation.TierTable{Sections: map[string]int{}, Default: budget.Default}
		for _, s := range budget.Sections {
			table.Sections[s.Name] = s.Words
			table.Order = append(table.Order, s.Name)
		}
		tables[domain.Tier(name)] = table
	}

	related := make(map[string][]string, len(b.RelatedTerms))
	for topic, terms := range b.RelatedTerms {
		related[strings.ToLower(strings.TrimSpace(topic))] = terms
	}

	return aggregation.Config{
		Catalog:            catalog,
		Tables:             tables,
		Thresholds:         aggregation.VolumeThresholds{Comprehensive: b.ComprehensiveAt, Detailed: b.DetailedAt},
		MinDurationMinutes: b.MinDurationMinutes,
		MinItems:           b.MinItems,
		MaxItems:           b.MaxItems,
		Fallbacks:          b.Fallbacks,
		RelatedTerms:       related,
		AdapterTimeout:     b.AdapterTimeout,
	}
}

// Jobs converts scheduler entries, filling unset fields from briefing defaults.
func Jobs(cfg config.Config) []usecase.Job {
	jobs := make([]usecase.Job, 0, len(cfg.Scheduler.Jobs))
	for _, j := range cfg.Scheduler.Jobs {
		job := usecase.Job{
			Name:            j.Name,
			Spec:            j.Cron,
			Topic:           j.Topic,
			DurationMinutes: j.DurationMinutes,
			LookbackHours:   j.LookbackHours,
			WeekendAware:    cfg.Briefing.WeekendAware,
			Audio:           j.Audio,
		}
		if job.Topic == "" {
			job.Topic = cfg.Briefing.DefaultTopic
		}
		if job.DurationMinutes == 0 {
			job.DurationMinutes = cfg.Briefing.DefaultDurationMinutes
		}
		if job.LookbackHours <= 0 {
			job.LookbackHours = cfg.Briefing.LookbackHours
		}
		jobs = append(jobs, job)
	}
	return jobs
}

func sectionTitles(sections []config.SectionConfig) map[string]string {
	titles := make(map[string]string, len(sections))
	for _, s := range sections {
		if s.Title != "" {
			titles[s.Name] = s.Title
		}
	}
	return titles
}
