package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"Briefcaster/internal/app"
	"Briefcaster/internal/config"
	"Briefcaster/internal/logging"
)

type options struct {
	Config        string  `long:"config" short:"c" env:"BRIEFCASTER_CONFIG" description:"Path to the YAML configuration file"`
	Topic         string  `long:"topic" short:"t" description:"Briefing topic (defaults to briefing.defaultTopic)"`
	Duration      float64 `long:"duration" short:"d" description:"Target length in minutes"`
	LookbackHours int     `long:"lookback-hours" description:"How far back to look for stories"`
	Audio         bool    `long:"audio" description:"Synthesize and assemble audio"`
	Serve         bool    `long:"serve" description:"Run the HTTP trigger API"`
	Schedule      bool    `long:"schedule" description:"Run configured cron jobs"`
	LogLevel      string  `long:"log-level" description:"Override logging.level (debug, info, warn, error)"`
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	cfg := config.Load(opts.Config)
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	switch {
	case opts.Serve && opts.Schedule:
		runCtx, cancel := context.WithCancel(ctx)
		errCh := make(chan error, 2)
		go func() { errCh <- application.Serve(runCtx) }()
		go func() { errCh <- application.Schedule(runCtx) }()
		first := <-errCh
		cancel()
		err = errors.Join(first, <-errCh)
	case opts.Serve:
		err = application.Serve(ctx)
	case opts.Schedule:
		err = application.Schedule(ctx)
	default:
		req := application.Request(opts.Topic, opts.Duration, opts.LookbackHours, opts.Audio)
		briefing, runErr := application.RunOnce(ctx, req)
		if runErr == nil {
			fmt.Println(briefing.Text)
			logger.Info("briefing ready",
				"id", briefing.ID,
				"tier", briefing.Tier,
				"words", briefing.WordCount,
				"duration", briefing.Duration,
				"audio", briefing.AudioKey,
				"sources", fmt.Sprintf("%d of %d", briefing.SourcesUsed, briefing.SourcesTotal),
			)
		}
		err = runErr
	}

	if err != nil {
		logger.Error("application stopped", "error", err)
		stop()
		application.Close()
		os.Exit(1)
	}
}
