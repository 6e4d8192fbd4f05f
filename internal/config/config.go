package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Tavily    TavilyConfig    `yaml:"tavily" mapstructure:"tavily"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Crawl     CrawlConfig     `yaml:"crawl" mapstructure:"crawl"`
	Research  ResearchConfig  `yaml:"research" mapstructure:"research"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// TavilyConfig holds Tavily API settings.
type TavilyConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	QueryModel    string `yaml:"query_model" mapstructure:"query_model"`
	BriefingModel string `yaml:"briefing_model" mapstructure:"briefing_model"`
	EditorModel   string `yaml:"editor_model" mapstructure:"editor_model"`
}

// CrawlConfig configures the company website crawl.
type CrawlConfig struct {
	MaxDepth     int    `yaml:"max_depth" mapstructure:"max_depth"`
	MaxBreadth   int    `yaml:"max_breadth" mapstructure:"max_breadth"`
	ExtractDepth string `yaml:"extract_depth" mapstructure:"extract_depth"`
}

// ResearchConfig tunes the research pipeline stages.
type ResearchConfig struct {
	MaxQueries          int     `yaml:"max_queries" mapstructure:"max_queries"`
	MaxResults          int     `yaml:"max_results" mapstructure:"max_results"`
	RelevanceThreshold  float64 `yaml:"relevance_threshold" mapstructure:"relevance_threshold"`
	MaxDocsPerCategory  int     `yaml:"max_docs_per_category" mapstructure:"max_docs_per_category"`
	EnrichBatchSize     int     `yaml:"enrich_batch_size" mapstructure:"enrich_batch_size"`
	EnrichMaxBatches    int     `yaml:"enrich_max_batches" mapstructure:"enrich_max_batches"`
	BriefingConcurrency int     `yaml:"briefing_concurrency" mapstructure:"briefing_concurrency"`
	MaxDocChars         int     `yaml:"max_doc_chars" mapstructure:"max_doc_chars"`
	MaxPromptChars      int     `yaml:"max_prompt_chars" mapstructure:"max_prompt_chars"`
	MaxReferences       int     `yaml:"max_references" mapstructure:"max_references"`
}

// ServerConfig configures the HTTP server.
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
	v.SetEnvPrefix("RESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Credentials default to empty so AutomaticEnv can see
	// their keys; viper only reads env vars for keys it already knows.
	v.SetDefault("tavily.key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("store.driver", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("tavily.rate_limit", 10)
	v.SetDefault("tavily.rate_burst", 20)
	v.SetDefault("anthropic.query_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.briefing_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.editor_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("crawl.max_depth", 1)
	v.SetDefault("crawl.max_breadth", 50)
	v.SetDefault("crawl.extract_depth", "advanced")
	v.SetDefault("research.max_queries", 4)
	v.SetDefault("research.max_results", 5)
	v.SetDefault("research.relevance_threshold", 0.4)
	v.SetDefault("research.max_docs_per_category", 30)
	v.SetDefault("research.enrich_batch_size", 20)
	v.SetDefault("research.enrich_max_batches", 3)
	v.SetDefault("research.briefing_concurrency", 2)
	v.SetDefault("research.max_doc_chars", 8000)
	v.SetDefault("research.max_prompt_chars", 120000)
	v.SetDefault("research.max_references", 10)

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

// Validate checks that the settings required to run research are present.
func (c *Config) Validate() error {
	if c.Tavily.Key == "" {
		return eris.New("config: tavily.key is required (RESEARCH_TAVILY_KEY)")
	}
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required (RESEARCH_ANTHROPIC_KEY)")
	}
	if c.Store.Driver != "" && c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver != "" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required when a store driver is set")
	}
	return nil
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
