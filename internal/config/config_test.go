package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Sections[len(cfg.Sections)-1].Overflow != true {
		t.Fatalf("expected the last default section to be the overflow bucket")
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "briefcaster.yaml")
	raw := `
logging:
  level: warn
briefing:
  minItems: 3
  adapterTimeout: 5s
  fallbacks: ["markets"]
providers:
  rss:
    - name: example
      url: https://example.org/feed.xml
      extractContent: true
scheduler:
  timezone: America/New_York
  jobs:
    - name: morning
      cron: "0 6 * * 1-5"
      topic: stock market
      durationMinutes: 10
      audio: true
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(finlightKeyEnv, "fl-key")
	t.Setenv(kafkaBrokersEnv, "kafka-1:9092, kafka-2:9092")

	cfg := Load(path)

	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected warn level, got %s", cfg.Logging.Level)
	}
	if cfg.Briefing.MinItems != 3 || cfg.Briefing.AdapterTimeout != 5*time.Second {
		t.Fatalf("unexpected briefing config %+v", cfg.Briefing)
	}
	if cfg.Briefing.MaxItems != 50 {
		t.Fatalf("expected untouched default MaxItems, got %d", cfg.Briefing.MaxItems)
	}
	if len(cfg.Providers.RSS) != 1 || !cfg.Providers.RSS[0].ExtractContent {
		t.Fatalf("unexpected rss feeds %+v", cfg.Providers.RSS)
	}
	if cfg.Providers.Finlight.APIKey != "fl-key" {
		t.Fatalf("expected env override for finlight key")
	}
	if len(cfg.Notifications.Kafka.Brokers) != 2 || cfg.Notifications.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Notifications.Kafka.Brokers)
	}
	if cfg.Scheduler.Location().String() != "America/New_York" {
		t.Fatalf("unexpected location %s", cfg.Scheduler.Location())
	}
	if len(cfg.Sections) == 0 || len(cfg.Budgets) != 3 {
		t.Fatalf("expected default catalog and budgets to survive")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadFallsBackOnBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("briefing: [not: a map"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Load(path)
	if cfg.Briefing.MinItems != defaultConfig().Briefing.MinItems {
		t.Fatalf("expected defaults, got %+v", cfg.Briefing)
	}
}

func TestValidateRejectsMissingTier(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	delete(cfg.Budgets, "detailed")
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing detailed budget")
	}
}

func TestValidateRejectsZeroBudgetDefault(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	detailed := cfg.Budgets["detailed"]
	detailed.Default = 0
	cfg.Budgets["detailed"] = detailed
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for zero default base")
	}

	cfg = defaultConfig()
	deep := cfg.Budgets["deep-analysis"]
	deep.Sections = append([]SectionBudget(nil), deep.Sections...)
	deep.Sections[0].Words = 0
	cfg.Budgets["deep-analysis"] = deep
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for zero section words")
	}
}
