package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Apify    ApifyConfig    `yaml:"apify" mapstructure:"apify"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ApifyConfig holds job-execution service settings.
type ApifyConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// SearchActor runs the directory search stage; ContactActor runs the
	// contact extraction stage.
	SearchActor  string `yaml:"search_actor" mapstructure:"search_actor"`
	ContactActor string `yaml:"contact_actor" mapstructure:"contact_actor"`

	// SubmitRateLimit is the process-wide cap on job submissions per second,
	// shared by all concurrently running tasks.
	SubmitRateLimit float64 `yaml:"submit_rate_limit" mapstructure:"submit_rate_limit"`
}

// PipelineConfig configures orchestration behavior.
type PipelineConfig struct {
	PollIntervalSecs      int `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	SearchTimeoutSecs     int `yaml:"search_timeout_secs" mapstructure:"search_timeout_secs"`
	ExtractionTimeoutSecs int `yaml:"extraction_timeout_secs" mapstructure:"extraction_timeout_secs"`

	// MaxPollErrors is the number of consecutive transient poll failures
	// tolerated before a run is treated as failed.
	MaxPollErrors int `yaml:"max_poll_errors" mapstructure:"max_poll_errors"`

	// FetchPageSize bounds memory when paging through large result datasets.
	FetchPageSize int `yaml:"fetch_page_size" mapstructure:"fetch_page_size"`

	DefaultMaxResults int `yaml:"default_max_results" mapstructure:"default_max_results"`

	// IncludeContactless keeps merged contacts that have no discoverable
	// email (used for manual follow-up lists).
	IncludeContactless bool `yaml:"include_contactless" mapstructure:"include_contactless"`

	// RelevanceMaxDrop is the fraction of contacts the relevance filter may
	// remove before the task is flagged for manual review instead.
	RelevanceMaxDrop float64 `yaml:"relevance_max_drop" mapstructure:"relevance_max_drop"`

	// MaxConcurrentTasks bounds batch-mode fan-out across search tasks.
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks" mapstructure:"max_concurrent_tasks"`
}

// PollInterval returns the poll interval as a duration.
func (c PipelineConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSecs) * time.Second
}

// SearchTimeout returns the directory-search stage time budget.
func (c PipelineConfig) SearchTimeout() time.Duration {
	return time.Duration(c.SearchTimeoutSecs) * time.Second
}

// ExtractionTimeout returns the contact-extraction stage time budget.
func (c PipelineConfig) ExtractionTimeout() time.Duration {
	return time.Duration(c.ExtractionTimeoutSecs) * time.Second
}

// StoreConfig configures the database backend. The connection counts apply
// to the Postgres driver only.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the task submission server.
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
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key needs an entry (empty for secrets): AutomaticEnv
	// only surfaces env overrides for keys viper already knows about.
	v.SetDefault("apify.token", "")
	v.SetDefault("apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("apify.search_actor", "compass~crawler-google-places")
	v.SetDefault("apify.contact_actor", "vdrmota~contact-info-scraper")
	v.SetDefault("apify.submit_rate_limit", 1.0)
	v.SetDefault("pipeline.poll_interval_secs", 3)
	v.SetDefault("pipeline.search_timeout_secs", 600)
	v.SetDefault("pipeline.extraction_timeout_secs", 900)
	v.SetDefault("pipeline.max_poll_errors", 3)
	v.SetDefault("pipeline.fetch_page_size", 250)
	v.SetDefault("pipeline.default_max_results", 100)
	v.SetDefault("pipeline.include_contactless", false)
	v.SetDefault("pipeline.relevance_max_drop", 0.5)
	v.SetDefault("pipeline.max_concurrent_tasks", 3)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadgen.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
