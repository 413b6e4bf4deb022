// Package config loads and validates ingestor configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Run       RunConfig       `mapstructure:"run"`
	Sources   []SourceConfig  `mapstructure:"sources"`
	Normalize NormalizeConfig `mapstructure:"normalize"`
	Sinks     SinkConfig      `mapstructure:"sinks"`
	DB        DBConfig        `mapstructure:"db"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the metrics/health endpoint served during a run.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// FetchConfig configures the rate-limited fetcher and its retry policy.
type FetchConfig struct {
	UserAgent        string  `mapstructure:"user_agent"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	MaxRetries       int     `mapstructure:"max_retries"`
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
	DefaultRPS       float64 `mapstructure:"default_rps"`
}

// RunConfig governs run-wide batch behavior.
type RunConfig struct {
	Mode               string `mapstructure:"mode"`
	DocumentBudget     int    `mapstructure:"document_budget"`
	RecencyWindowHours int    `mapstructure:"recency_window_hours"`
	DataDir            string `mapstructure:"data_dir"`
}

// SourceConfig describes one auctioneer/government source index.
type SourceConfig struct {
	Name       string  `mapstructure:"name"`
	SitemapURL string  `mapstructure:"sitemap_url"`
	ListingURL string  `mapstructure:"listing_url"`
	Category   string  `mapstructure:"category"`
	RPS        float64 `mapstructure:"rps"`
}

// NormalizeConfig tunes the canonical normalizer.
type NormalizeConfig struct {
	// AllowedDomains upgrades URL confidence; it never gates acceptance.
	AllowedDomains []string `mapstructure:"allowed_domains"`
}

// SinkConfig sets the newline-delimited JSON output files.
type SinkConfig struct {
	ValidPath      string `mapstructure:"valid_path"`
	QuarantinePath string `mapstructure:"quarantine_path"`
}

// DBConfig controls the optional Postgres sinks.
type DBConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// ArchiveConfig selects where raw fetched documents are archived.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for run-completion notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INGESTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetch.user_agent", "arremate-ingestor/1.0")
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_initial_ms", 250)
	v.SetDefault("fetch.backoff_max_ms", 5000)
	v.SetDefault("fetch.default_rps", 1)
	v.SetDefault("run.mode", "incremental")
	v.SetDefault("run.document_budget", 0)
	v.SetDefault("run.recency_window_hours", 48)
	v.SetDefault("run.data_dir", "data")
	v.SetDefault("sinks.valid_path", "data/records.ndjson")
	v.SetDefault("sinks.quarantine_path", "data/quarantine.ndjson")
	v.SetDefault("archive.provider", "local")
	v.SetDefault("archive.base_dir", "data/archive")
	v.SetDefault("archive.prefix", "docs")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Configuration
// errors are the only failures allowed to abort a run before it starts.
func (c Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d].name is required", i)
		}
		if src.SitemapURL == "" && src.ListingURL == "" {
			return fmt.Errorf("source %q needs a sitemap_url or listing_url", src.Name)
		}
		if src.RPS < 0 {
			return fmt.Errorf("source %q rps must be >= 0", src.Name)
		}
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be >= 0")
	}
	if mode := c.Run.Mode; mode != "incremental" && mode != "full" {
		return fmt.Errorf("run.mode must be incremental or full, got %q", mode)
	}
	if c.DB.Enabled && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db is enabled")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	switch c.Archive.Provider {
	case "local", "memory":
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown archive provider %q", c.Archive.Provider)
	}
	return nil
}

// FetchTimeout converts the configured timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// RecencyWindow is how far back incremental discovery looks.
func (c Config) RecencyWindow() time.Duration {
	return time.Duration(c.Run.RecencyWindowHours) * time.Hour
}
