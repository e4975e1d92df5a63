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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Taxonomy   TaxonomyConfig   `yaml:"taxonomy" mapstructure:"taxonomy"`
	Classify   ClassifyConfig   `yaml:"classify" mapstructure:"classify"`
	Arbiter    ArbiterConfig    `yaml:"arbiter" mapstructure:"arbiter"`
	Ollama     OllamaConfig     `yaml:"ollama" mapstructure:"ollama"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Jobs       JobsConfig       `yaml:"jobs" mapstructure:"jobs"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the result-cache backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// TaxonomyConfig locates the reference dataset.
type TaxonomyConfig struct {
	// Path to the taxonomy file (.csv or .xlsx).
	Path string `yaml:"path" mapstructure:"path"`
}

// ClassifyConfig tunes the scoring and narrowing behavior. Channel weights
// are renormalized at load time so they always sum to 1.0; setting keyword
// and domain weights to 0 reproduces a pure embedding-retrieval classifier.
type ClassifyConfig struct {
	LexicalWeight  float64 `yaml:"lexical_weight" mapstructure:"lexical_weight"`
	SemanticWeight float64 `yaml:"semantic_weight" mapstructure:"semantic_weight"`
	KeywordWeight  float64 `yaml:"keyword_weight" mapstructure:"keyword_weight"`
	DomainWeight   float64 `yaml:"domain_weight" mapstructure:"domain_weight"`

	// TopSectors/TopIndustries bound the narrowing passes; TopAlternatives
	// bounds the reported runner-up list.
	TopSectors      int `yaml:"top_sectors" mapstructure:"top_sectors"`
	TopIndustries   int `yaml:"top_industries" mapstructure:"top_industries"`
	TopAlternatives int `yaml:"top_alternatives" mapstructure:"top_alternatives"`

	// MarginThreshold is the minimum gap between the top two composite
	// scores for a decision to be accepted without arbitration.
	MarginThreshold float64 `yaml:"margin_threshold" mapstructure:"margin_threshold"`
}

// ArbiterConfig selects and tunes the generative tie-breaker.
type ArbiterConfig struct {
	// Provider is "anthropic", "ollama", or "off".
	Provider    string `yaml:"provider" mapstructure:"provider"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// OllamaConfig holds local Ollama API settings (embeddings and generation).
type OllamaConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	EmbedModel     string  `yaml:"embed_model" mapstructure:"embed_model"`
	GenerateModel  string  `yaml:"generate_model" mapstructure:"generate_model"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// AnthropicConfig holds Anthropic API settings for the arbiter.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// JobsConfig bounds background classification work.
type JobsConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ExtractionConfig locates the document store written by the acquisition
// collaborator.
type ExtractionConfig struct {
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig configures the HTTP API.
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
	v.SetEnvPrefix("CLASSIFIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/classifier.db")
	v.SetDefault("taxonomy.path", "data/sub_industry_classification.csv")
	v.SetDefault("classify.lexical_weight", 0.35)
	v.SetDefault("classify.semantic_weight", 0.30)
	v.SetDefault("classify.keyword_weight", 0.20)
	v.SetDefault("classify.domain_weight", 0.15)
	v.SetDefault("classify.top_sectors", 5)
	v.SetDefault("classify.top_industries", 5)
	v.SetDefault("classify.top_alternatives", 5)
	v.SetDefault("classify.margin_threshold", 0.05)
	v.SetDefault("arbiter.provider", "ollama")
	v.SetDefault("arbiter.timeout_secs", 60)
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.embed_model", "nomic-embed-text")
	v.SetDefault("ollama.generate_model", "qwen2.5:7b")
	v.SetDefault("ollama.requests_per_sec", 10)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("jobs.max_concurrent", 4)
	v.SetDefault("extraction.data_dir", "data/outputs")
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

// Validate checks settings required to run the classification engine.
func (c *Config) Validate() error {
	if c.Taxonomy.Path == "" {
		return eris.New("config: taxonomy.path is required")
	}
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for postgres")
	}
	if c.Arbiter.Provider == "anthropic" && c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required when arbiter.provider is anthropic")
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
