package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "BRIEFCASTER_CONFIG"

	logLevelEnv       = "LOG_LEVEL"
	finlightKeyEnv    = "FINLIGHT_API_KEY"
	newsAPIAIKeyEnv   = "NEWSAPI_AI_KEY"
	openAIKeyEnv      = "OPENAI_API_KEY"
	chatGPTModelEnv   = "CHATGPT_MODEL"
	kokoroURLEnv      = "KOKORO_URL"
	redisAddrEnv      = "REDIS_ADDR"
	redisPasswordEnv  = "REDIS_PASSWORD"
	sqlitePathEnv     = "SQLITE_PATH"
	s3BucketEnv       = "S3_BUCKET"
	awsRegionEnv      = "AWS_REGION"
	kafkaBrokersEnv   = "KAFKA_BROKERS"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	httpAPIKeyEnv     = "BRIEFCASTER_API_KEY"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig               `yaml:"logging"`
	Briefing      BriefingConfig              `yaml:"briefing"`
	Sections      []SectionConfig             `yaml:"sections"`
	Budgets       map[string]TierBudgetConfig `yaml:"budgets"`
	Providers     ProviderConfig              `yaml:"providers"`
	Cache         CacheConfig                 `yaml:"cache"`
	Storage       StorageConfig               `yaml:"storage"`
	ChatGPT       ChatGPTConfig               `yaml:"chatgpt"`
	Speech        SpeechConfig                `yaml:"speech"`
	Audio         AudioConfig                 `yaml:"audio"`
	Notifications NotificationConfig          `yaml:"notifications"`
	HTTP          HTTPConfig                  `yaml:"http"`
	Scheduler     SchedulerConfig             `yaml:"scheduler"`
}

// LoggingConfig selects slog level and handler format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BriefingConfig tunes aggregation policy.
type BriefingConfig struct {
	DefaultTopic           string              `yaml:"defaultTopic"`
	DefaultDurationMinutes float64             `yaml:"defaultDurationMinutes"`
	LookbackHours          int                 `yaml:"lookbackHours"`
	WeekendAware           bool                `yaml:"weekendAware"`
	MinDurationMinutes     float64             `yaml:"minDurationMinutes"`
	MinItems               int                 `yaml:"minItems"`
	MaxItems               int                 `yaml:"maxItems"`
	Fallbacks              []string            `yaml:"fallbacks"`
	RelatedTerms           map[string][]string `yaml:"relatedTerms"`
	AdapterTimeout         time.Duration       `yaml:"adapterTimeout"`
	Deadline               time.Duration       `yaml:"deadline"`
	ComprehensiveAt        int                 `yaml:"comprehensiveAt"`
	DetailedAt             int                 `yaml:"detailedAt"`
}

// SectionConfig is one entry of the ordered section catalog.
type SectionConfig struct {
	Name     string   `yaml:"name"`
	Title    string   `yaml:"title"`
	Keywords []string `yaml:"keywords"`
	Overflow bool     `yaml:"overflow"`
}

// TierBudgetConfig is the base word table of one strategy tier.
type TierBudgetConfig struct {
	Default  int             `yaml:"default"`
	Sections []SectionBudget `yaml:"sections"`
}

// SectionBudget assigns base words to a section.
type SectionBudget struct {
	Name  string `yaml:"name"`
	Words int    `yaml:"words"`
}

// ProviderConfig groups settings for content providers.
type ProviderConfig struct {
	UserAgent string          `yaml:"userAgent"`
	Ignore    []string        `yaml:"ignore"`
	Finlight  FinlightConfig  `yaml:"finlight"`
	NewsAPIAI NewsAPIAIConfig `yaml:"newsapiai"`
	RSS       []FeedConfig    `yaml:"rss"`
}

// FinlightConfig describes the Finlight articles API.
type FinlightConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
	PageSize int    `yaml:"pageSize"`
}

// NewsAPIAIConfig describes the Event Registry (NewsAPI.ai) API.
type NewsAPIAIConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	APIKey      string `yaml:"apiKey"`
	MaxArticles int    `yaml:"maxArticles"`
}

// FeedConfig is a single RSS or Atom feed.
type FeedConfig struct {
	Name           string `yaml:"name"`
	URL            string `yaml:"url"`
	ExtractContent bool   `yaml:"extractContent"`
}

// CacheConfig wires the Redis response cache; an empty address disables it.
type CacheConfig struct {
	Redis RedisConfig   `yaml:"redis"`
	TTL   time.Duration `yaml:"ttl"`
}

// RedisConfig holds connection details.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig covers the briefing database and the audio bucket.
type StorageConfig struct {
	SQLitePath string   `yaml:"sqlitePath"`
	S3         S3Config `yaml:"s3"`
}

// S3Config describes where rendered audio is uploaded; an empty bucket disables upload.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Prefix       string `yaml:"prefix"`
	UsePathStyle bool   `yaml:"usePathStyle"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// SpeechConfig points at an OpenAI-compatible speech endpoint such as Kokoro.
type SpeechConfig struct {
	Endpoint string  `yaml:"endpoint"`
	APIKey   string  `yaml:"apiKey"`
	Model    string  `yaml:"model"`
	Voice    string  `yaml:"voice"`
	Format   string  `yaml:"format"`
	Speed    float64 `yaml:"speed"`
}

// AudioConfig controls assembly of the final file.
type AudioConfig struct {
	IntroPath string `yaml:"introPath"`
	OutputDir string `yaml:"outputDir"`
	Codec     string `yaml:"codec"`
	Bitrate   string `yaml:"bitrate"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// KafkaConfig publishes briefing events; no brokers disables it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// HTTPConfig serves the trigger API.
type HTTPConfig struct {
	Addr   string `yaml:"addr"`
	APIKey string `yaml:"apiKey"`
}

// SchedulerConfig defines recurring briefings.
type SchedulerConfig struct {
	Timezone string           `yaml:"timezone"`
	Jobs     []ScheduleConfig `yaml:"jobs"`
	location *time.Location   `yaml:"-"`
}

// ScheduleConfig is one cron-triggered briefing.
type ScheduleConfig struct {
	Name            string  `yaml:"name"`
	Cron            string  `yaml:"cron"`
	Topic           string  `yaml:"topic"`
	DurationMinutes float64 `yaml:"durationMinutes"`
	LookbackHours   int     `yaml:"lookbackHours"`
	Audio           bool    `yaml:"audio"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// Load reads YAML configuration from path (or $BRIEFCASTER_CONFIG) on top of the
// defaults and applies environment overrides.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg := defaultConfig()
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = fileCfg
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sections) == 0 {
		cfg.Sections = defaultConfig().Sections
	}
	if len(cfg.Budgets) == 0 {
		cfg.Budgets = defaultConfig().Budgets
	}

	return cfg
}

// Validate reports configuration that would make every run fail.
func (c Config) Validate() error {
	if len(c.Sections) == 0 {
		return fmt.Errorf("config: no sections defined")
	}
	for _, tier := range []string{"comprehensive", "detailed", "deep-analysis"} {
		b, ok := c.Budgets[tier]
		if !ok {
			return fmt.Errorf("config: budget table for tier %s is missing", tier)
		}
		if b.Default <= 0 {
			return fmt.Errorf("config: budget table for tier %s needs a positive default", tier)
		}
		for _, s := range b.Sections {
			if s.Words <= 0 {
				return fmt.Errorf("config: section %s in tier %s needs positive words", s.Name, tier)
			}
		}
	}
	for _, job := range c.Scheduler.Jobs {
		if strings.TrimSpace(job.Cron) == "" {
			return fmt.Errorf("config: schedule %q has no cron expression", job.Name)
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(finlightKeyEnv); v != "" {
		c.Providers.Finlight.APIKey = v
	}

	if v := os.Getenv(newsAPIAIKeyEnv); v != "" {
		c.Providers.NewsAPIAI.APIKey = v
	}

	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}

	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}

	if v := os.Getenv(kokoroURLEnv); v != "" {
		c.Speech.Endpoint = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Cache.Redis.Addr = v
	}

	if v := os.Getenv(redisPasswordEnv); v != "" {
		c.Cache.Redis.Password = v
	}

	if v := os.Getenv(sqlitePathEnv); v != "" {
		c.Storage.SQLitePath = v
	}

	if v := os.Getenv(s3BucketEnv); v != "" {
		c.Storage.S3.Bucket = v
	}

	if v := os.Getenv(awsRegionEnv); v != "" {
		c.Storage.S3.Region = v
	}

	if v := os.Getenv(kafkaBrokersEnv); v != "" {
		c.Notifications.Kafka.Brokers = splitList(v)
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(httpAPIKeyEnv); v != "" {
		c.HTTP.APIKey = v
	}

	if v := os.Getenv("BRIEFING_MIN_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Briefing.MinItems = n
		} else {
			log.Printf("config: ignoring BRIEFING_MIN_ITEMS=%q: %v", v, err)
		}
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Briefing: BriefingConfig{
			DefaultTopic:           "stock market",
			DefaultDurationMinutes: 10,
			LookbackHours:          24,
			WeekendAware:           true,
			MinDurationMinutes:     5,
			MinItems:               8,
			MaxItems:               50,
			Fallbacks:              []string{"stock market finance economy", "news"},
			RelatedTerms: map[string][]string{
				"tesla":  {"TSLA", "electric vehicles", "Elon Musk"},
				"nvidia": {"NVDA", "GPU", "semiconductors"},
				"crypto": {"bitcoin", "ethereum", "cryptocurrency"},
			},
			AdapterTimeout:  20 * time.Second,
			Deadline:        45 * time.Second,
			ComprehensiveAt: 15,
			DetailedAt:      8,
		},
		Sections: []SectionConfig{
			{Name: "market-overview", Title: "Market Overview", Keywords: []string{"market", "index", "dow", "nasdaq", "s&p", "volume", "trading"}},
			{Name: "stocks", Title: "Stock Movers", Keywords: []string{"stock", "share", "company", "earnings", "revenue"}},
			{Name: "economic", Title: "Economic News", Keywords: []string{"fed", "inflation", "gdp", "employment", "economic", "rate"}},
			{Name: "technology", Title: "Technology", Keywords: []string{"tech", "software", "ai", "chip", "semiconductor", "cloud"}},
			{Name: "energy", Title: "Energy and Commodities", Keywords: []string{"oil", "energy", "gold", "commodity", "crude", "gas"}},
			{Name: "international", Title: "International", Keywords: []string{"asia", "europe", "china", "japan", "global", "international"}},
			{Name: "headlines", Title: "Other Headlines", Overflow: true},
		},
		Budgets: map[string]TierBudgetConfig{
			"comprehensive": {Default: 80, Sections: []SectionBudget{
				{Name: "market-overview", Words: 150}, {Name: "stocks", Words: 150}, {Name: "economic", Words: 120},
				{Name: "technology", Words: 100}, {Name: "energy", Words: 100}, {Name: "international", Words: 80},
				{Name: "headlines", Words: 60},
			}},
			"detailed": {Default: 100, Sections: []SectionBudget{
				{Name: "market-overview", Words: 200}, {Name: "stocks", Words: 180}, {Name: "economic", Words: 150},
				{Name: "technology", Words: 120}, {Name: "energy", Words: 100}, {Name: "international", Words: 80},
				{Name: "headlines", Words: 80},
			}},
			"deep-analysis": {Default: 150, Sections: []SectionBudget{
				{Name: "market-overview", Words: 250}, {Name: "stocks", Words: 250}, {Name: "economic", Words: 200},
				{Name: "technology", Words: 150}, {Name: "energy", Words: 120}, {Name: "international", Words: 100},
				{Name: "headlines", Words: 100},
			}},
		},
		Providers: ProviderConfig{
			UserAgent: "Briefcaster/1.0",
			Ignore:    []string{"timesofindia.com", "timesofindia.indiatimes.com"},
			Finlight: FinlightConfig{
				Enabled:  true,
				Endpoint: "https://api.finlight.me/v2/articles",
				PageSize: 100,
			},
			NewsAPIAI: NewsAPIAIConfig{
				Enabled:     true,
				Endpoint:    "https://eventregistry.org/api/v1/article/getArticles",
				MaxArticles: 50,
			},
			RSS: []FeedConfig{
				{Name: "cnbc-markets", URL: "https://www.cnbc.com/id/15839069/device/rss/rss.html"},
				{Name: "marketwatch", URL: "https://feeds.content.dowjones.io/public/rss/mw_topstories"},
			},
		},
		Cache: CacheConfig{TTL: 15 * time.Minute},
		Storage: StorageConfig{
			SQLitePath: "briefings.db",
			S3:         S3Config{Region: "us-east-1", Prefix: "briefings/"},
		},
		ChatGPT: ChatGPTConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You are a financial news anchor writing scripts that will be read aloud.",
		},
		Speech: SpeechConfig{
			Endpoint: "http://localhost:8880",
			Model:    "kokoro",
			Voice:    "af_bella",
			Format:   "mp3",
			Speed:    1.0,
		},
		Audio:     AudioConfig{OutputDir: "audio_output", Codec: "libmp3lame", Bitrate: "128k"},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Scheduler: SchedulerConfig{Timezone: defaultTimezone, location: tz},
		Notifications: NotificationConfig{
			Kafka: KafkaConfig{Topic: "briefings.completed"},
		},
	}
}
