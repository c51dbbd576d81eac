package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Mail       MailConfig       `yaml:"mail" mapstructure:"mail"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Tavily     TavilyConfig     `yaml:"tavily" mapstructure:"tavily"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
}

// StoreConfig configures the record store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CacheConfig configures the research and document cache.
type CacheConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	TTLHours      int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" mapstructure:"redis_prefix"`
}

// MailConfig locates the exported mailbox folders.
type MailConfig struct {
	Root          string `yaml:"root" mapstructure:"root"`
	DefaultFolder string `yaml:"default_folder" mapstructure:"default_folder"`
}

// OutputConfig configures where prep guides are written.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// SearchConfig configures the web search chain.
type SearchConfig struct {
	Providers          []string `yaml:"providers" mapstructure:"providers"`
	TimeoutSecs        int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxResults         int      `yaml:"max_results" mapstructure:"max_results"`
	RequestsPerSecond  float64  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst              int      `yaml:"burst" mapstructure:"burst"`
	BreakerThreshold   int      `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs   int      `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
	BlockedURLPatterns []string `yaml:"blocked_url_patterns" mapstructure:"blocked_url_patterns"`
}

// TavilyConfig holds Tavily search API settings.
type TavilyConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// JinaConfig holds Jina search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GeminiConfig holds Google Gemini settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GenerationConfig configures the text generation chain used by the composer.
type GenerationConfig struct {
	Providers       []string `yaml:"providers" mapstructure:"providers"`
	TimeoutSecs     int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MinSectionChars int      `yaml:"min_section_chars" mapstructure:"min_section_chars"`
	Temperature     float64  `yaml:"temperature" mapstructure:"temperature"`
}

// ExtractionConfig selects the entity extractor.
type ExtractionConfig struct {
	Mode        string `yaml:"mode" mapstructure:"mode"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PipelineConfig configures the research loops.
type PipelineConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	MaxFollowupQueries  int     `yaml:"max_followup_queries" mapstructure:"max_followup_queries"`
	Loop1Depth          string  `yaml:"loop1_depth" mapstructure:"loop1_depth"`
	Loop2Depth          string  `yaml:"loop2_depth" mapstructure:"loop2_depth"`
	QueryConcurrency    int     `yaml:"query_concurrency" mapstructure:"query_concurrency"`
	TemplatesPath       string  `yaml:"templates_path" mapstructure:"templates_path"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentEmails int `yaml:"max_concurrent_emails" mapstructure:"max_concurrent_emails"`
	MaxEmails           int `yaml:"max_emails" mapstructure:"max_emails"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic  map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     map[string]ModelPricing `yaml:"gemini" mapstructure:"gemini"`
	Perplexity PerplexityPricing       `yaml:"perplexity" mapstructure:"perplexity"`
	Tavily     TavilyPricing           `yaml:"tavily" mapstructure:"tavily"`
	Jina       JinaPricing             `yaml:"jina" mapstructure:"jina"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// PerplexityPricing holds Perplexity pricing.
type PerplexityPricing struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// TavilyPricing holds Tavily credit pricing. Advanced searches cost two credits.
type TavilyPricing struct {
	PerCredit float64 `yaml:"per_credit" mapstructure:"per_credit"`
}

// JinaPricing holds Jina search pricing.
type JinaPricing struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PREP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "interviews.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("cache.driver", "store")
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_prefix", "prep:")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("mail.root", "mail")
	v.SetDefault("mail.default_folder", "INBOX")
	v.SetDefault("output.dir", "output")
	v.SetDefault("search.providers", []string{"tavily", "jina", "perplexity"})
	v.SetDefault("search.timeout_secs", 15)
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.requests_per_second", 2.0)
	v.SetDefault("search.burst", 2)
	v.SetDefault("search.breaker_threshold", 5)
	v.SetDefault("search.breaker_reset_secs", 30)
	v.SetDefault("search.blocked_url_patterns", []string{
		"/login", "/signin", "/sign-in", "/signup", "/auth/", "glassdoor.com/index.htm",
	})
	// Secrets have no useful default but must be known keys, otherwise
	// AutomaticEnv never consults PREP_<PROVIDER>_KEY on Unmarshal.
	for _, provider := range []string{"tavily", "jina", "perplexity", "anthropic", "gemini"} {
		v.SetDefault(provider+".key", "")
	}
	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("generation.providers", []string{"anthropic", "gemini", "perplexity"})
	v.SetDefault("generation.timeout_secs", 60)
	v.SetDefault("generation.min_section_chars", 80)
	v.SetDefault("generation.temperature", 0.3)
	v.SetDefault("extraction.mode", "chain")
	v.SetDefault("extraction.timeout_secs", 30)
	v.SetDefault("pipeline.confidence_threshold", 0.7)
	v.SetDefault("pipeline.max_followup_queries", 3)
	v.SetDefault("pipeline.loop1_depth", "basic")
	v.SetDefault("pipeline.loop2_depth", "advanced")
	v.SetDefault("pipeline.query_concurrency", 4)
	v.SetDefault("pipeline.templates_path", "")
	v.SetDefault("batch.max_concurrent_emails", 3)
	v.SetDefault("batch.max_emails", 10)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pricing.perplexity.per_query", 0.005)
	v.SetDefault("pricing.tavily.per_credit", 0.008)
	v.SetDefault("pricing.jina.per_query", 0.0)
}

// Validate checks the settings a command needs before it touches any
// collaborator. Mode is one of run, serve, cache or records.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	switch c.Cache.Driver {
	case "store", "memory", "none":
	case "redis":
		// an empty prefix makes a ScopeAll clear match every key in the DB
		if strings.TrimSpace(c.Cache.RedisPrefix) == "" {
			errs = append(errs, "cache.redis_prefix is required when cache.driver is redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.driver %q is not supported", c.Cache.Driver))
	}

	switch mode {
	case "run", "serve":
		errs = append(errs, c.validatePipeline()...)
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "cache", "records":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validatePipeline() []string {
	var errs []string
	switch c.Extraction.Mode {
	case "pattern", "llm", "chain":
	default:
		errs = append(errs, fmt.Sprintf("extraction.mode %q is not supported", c.Extraction.Mode))
	}
	if c.Pipeline.ConfidenceThreshold < 0 || c.Pipeline.ConfidenceThreshold > 1 {
		errs = append(errs, "pipeline.confidence_threshold must be between 0 and 1")
	}
	if c.Pipeline.MaxFollowupQueries < 0 {
		errs = append(errs, "pipeline.max_followup_queries must be >= 0")
	}
	for _, d := range []string{c.Pipeline.Loop1Depth, c.Pipeline.Loop2Depth} {
		if d != "basic" && d != "advanced" {
			errs = append(errs, fmt.Sprintf("search depth %q must be basic or advanced", d))
		}
	}
	if c.Search.MaxResults <= 0 {
		errs = append(errs, "search.max_results must be > 0")
	}
	if c.Batch.MaxConcurrentEmails < 1 || c.Batch.MaxConcurrentEmails > 20 {
		errs = append(errs, "batch.max_concurrent_emails must be between 1 and 20")
	}
	return errs
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
