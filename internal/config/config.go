package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is constructed once
// at process start and passed into every component constructor.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	AppStore   AppStoreConfig   `yaml:"app_store" mapstructure:"app_store"`
	GooglePlay GooglePlayConfig `yaml:"google_play" mapstructure:"google_play"`
	Sanitize   SanitizeConfig   `yaml:"sanitize" mapstructure:"sanitize"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report"`
	Email      EmailConfig      `yaml:"email" mapstructure:"email"`
	Schedule   ScheduleConfig   `yaml:"schedule" mapstructure:"schedule"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AppStoreConfig configures the App Store review source.
type AppStoreConfig struct {
	AppID        string   `yaml:"app_id" mapstructure:"app_id"`
	Country      string   `yaml:"country" mapstructure:"country"`
	AppName      string   `yaml:"app_name" mapstructure:"app_name"`
	NameVariants []string `yaml:"name_variants" mapstructure:"name_variants"`
	WebURL       string   `yaml:"web_url" mapstructure:"web_url"`
	ScrapeURL    string   `yaml:"scrape_url" mapstructure:"scrape_url"`
	RSSURL       string   `yaml:"rss_url" mapstructure:"rss_url"`
	BatchCap     int      `yaml:"batch_cap" mapstructure:"batch_cap"`
}

// GooglePlayConfig configures the Google Play review source.
type GooglePlayConfig struct {
	AppID       string  `yaml:"app_id" mapstructure:"app_id"`
	Country     string  `yaml:"country" mapstructure:"country"`
	Language    string  `yaml:"language" mapstructure:"language"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	PageSize    int     `yaml:"page_size" mapstructure:"page_size"`
	MaxReviews  int     `yaml:"max_reviews" mapstructure:"max_reviews"`
	PagesPerSec float64 `yaml:"pages_per_sec" mapstructure:"pages_per_sec"`
}

// SanitizeConfig configures the review cleaning pipeline.
type SanitizeConfig struct {
	MinWords     int  `yaml:"min_words" mapstructure:"min_words"`
	EnglishOnly  bool `yaml:"english_only" mapstructure:"english_only"`
	StripEmoji   bool `yaml:"strip_emoji" mapstructure:"strip_emoji"`
	WeeksLookMin int  `yaml:"weeks_lookback_min" mapstructure:"weeks_lookback_min"`
	WeeksLookMax int  `yaml:"weeks_lookback_max" mapstructure:"weeks_lookback_max"`
}

// LLMConfig configures the text-generation backend.
type LLMConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Backend     string  `yaml:"backend" mapstructure:"backend"` // "sdk" or "http"
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// ClassifierConfig configures theme extraction and classification.
type ClassifierConfig struct {
	MaxThemes       int     `yaml:"max_themes" mapstructure:"max_themes"`
	BatchSize       int     `yaml:"batch_size" mapstructure:"batch_size"`
	BatchDelaySecs  float64 `yaml:"batch_delay_secs" mapstructure:"batch_delay_secs"`
	SampleSize      int     `yaml:"sample_size" mapstructure:"sample_size"`
	ExtractionLimit int     `yaml:"extraction_limit" mapstructure:"extraction_limit"`
}

// ReportConfig configures weekly report synthesis.
type ReportConfig struct {
	ProductName    string  `yaml:"product_name" mapstructure:"product_name"`
	TopThemes      int     `yaml:"top_themes" mapstructure:"top_themes"`
	ChunkSize      int     `yaml:"chunk_size" mapstructure:"chunk_size"`
	ThemeDelaySecs float64 `yaml:"theme_delay_secs" mapstructure:"theme_delay_secs"`
	MaxWords       int     `yaml:"max_words" mapstructure:"max_words"`
}

// EmailConfig configures the SMTP collaborator. Missing credentials mean
// "not configured", which is a non-fatal result at send time.
type EmailConfig struct {
	SMTPHost   string   `yaml:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort   int      `yaml:"smtp_port" mapstructure:"smtp_port"`
	SMTPUser   string   `yaml:"smtp_user" mapstructure:"smtp_user"`
	SMTPPass   string   `yaml:"smtp_password" mapstructure:"smtp_password"`
	From       string   `yaml:"from" mapstructure:"from"`
	Recipients []string `yaml:"recipients" mapstructure:"recipients"`
}

// ScheduleConfig configures the recurring weekly trigger.
type ScheduleConfig struct {
	Cron     string `yaml:"cron" mapstructure:"cron"`
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// ServerConfig configures the status HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REVIEWPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "reviews.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("app_store.app_id", "1404871703")
	v.SetDefault("app_store.country", "in")
	v.SetDefault("app_store.app_name", "groww")
	v.SetDefault("app_store.name_variants", []string{"Groww: Stocks, Mutual Fund, IPO", "Groww", "groww"})
	v.SetDefault("app_store.web_url", "https://apps.apple.com")
	v.SetDefault("app_store.scrape_url", "https://amp-api.apps.apple.com")
	v.SetDefault("app_store.rss_url", "https://itunes.apple.com")
	v.SetDefault("app_store.batch_cap", 200)
	v.SetDefault("google_play.app_id", "com.nextbillion.groww")
	v.SetDefault("google_play.country", "in")
	v.SetDefault("google_play.language", "en")
	v.SetDefault("google_play.base_url", "https://play.google.com")
	v.SetDefault("google_play.page_size", 200)
	v.SetDefault("google_play.max_reviews", 5000)
	v.SetDefault("google_play.pages_per_sec", 2)
	v.SetDefault("sanitize.min_words", 4)
	v.SetDefault("sanitize.english_only", true)
	v.SetDefault("sanitize.strip_emoji", true)
	v.SetDefault("sanitize.weeks_lookback_min", 8)
	v.SetDefault("sanitize.weeks_lookback_max", 12)
	v.SetDefault("llm.model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.base_url", "https://api.anthropic.com")
	v.SetDefault("llm.backend", "sdk")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("classifier.max_themes", 5)
	v.SetDefault("classifier.batch_size", 10)
	v.SetDefault("classifier.batch_delay_secs", 4.5)
	v.SetDefault("classifier.sample_size", 100)
	v.SetDefault("classifier.extraction_limit", 500)
	v.SetDefault("report.product_name", "review-pulse")
	v.SetDefault("report.top_themes", 3)
	v.SetDefault("report.chunk_size", 20)
	v.SetDefault("report.theme_delay_secs", 4.5)
	v.SetDefault("report.max_words", 250)
	v.SetDefault("email.smtp_host", "smtp.gmail.com")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("schedule.cron", "0 9 * * 1")
	v.SetDefault("schedule.timezone", "Asia/Kolkata")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
