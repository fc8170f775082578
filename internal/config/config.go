// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/flight-agent-cli/internal/usage"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Agent() AgentConfig
	Budget() usage.Limits
	Source() SourceConfig
	Purchase() PurchaseConfig
	Cache() CacheConfig

	// Flag overrides
	SetSourceFile(path string)
	SetSourceURL(url string)
}

// Config holds the entire application configuration. Sections are read through the
// Interface getters.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	AgentCfg    AgentConfig    `mapstructure:"agent" yaml:"agent"`
	BudgetCfg   usage.Limits   `mapstructure:"budget" yaml:"budget"`
	SourceCfg   SourceConfig   `mapstructure:"source" yaml:"source"`
	PurchaseCfg PurchaseConfig `mapstructure:"purchase" yaml:"purchase"`
	CacheCfg    CacheConfig    `mapstructure:"cache" yaml:"cache"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Agent() AgentConfig       { return c.AgentCfg }
func (c *Config) Budget() usage.Limits     { return c.BudgetCfg }
func (c *Config) Source() SourceConfig     { return c.SourceCfg }
func (c *Config) Purchase() PurchaseConfig { return c.PurchaseCfg }
func (c *Config) Cache() CacheConfig       { return c.CacheCfg }

func (c *Config) SetSourceFile(path string) { c.SourceCfg.File = path }
func (c *Config) SetSourceURL(url string)   { c.SourceCfg.URL = url }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// AgentConfig holds settings shared by every agent.
type AgentConfig struct {
	// MaxRetries bounds the rejected answers of one flight search.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// RequestsPerSecond paces model calls. Zero disables pacing.
	RequestsPerSecond float64         `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	LLM               LLMRouterConfig `mapstructure:"llm" yaml:"llm"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
)

// LLMRouterConfig configures the model routing logic.
type LLMRouterConfig struct {
	DefaultFastModel     string                    `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string                    `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	Models               map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider      LLMProvider       `mapstructure:"provider" yaml:"provider"`
	Model         string            `mapstructure:"model" yaml:"model"`
	APIKey        string            `mapstructure:"api_key" yaml:"api_key"`
	Endpoint      string            `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout    time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature   float32           `mapstructure:"temperature" yaml:"temperature"`
	TopP          float32           `mapstructure:"top_p" yaml:"top_p"`
	TopK          int               `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens     int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
}

// SourceConfig selects where the flight listing is read from. File wins over URL; with
// neither set the built-in listing is used.
type SourceConfig struct {
	File    string        `mapstructure:"file" yaml:"file"`
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// PurchaseConfig configures where purchases are recorded. An empty DatabaseURL only logs them.
type PurchaseConfig struct {
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
}

// CacheConfig configures the extraction cache. An empty RedisAddr disables it.
type CacheConfig struct {
	RedisAddr string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	Password  string        `mapstructure:"password" yaml:"password"`
	DB        int           `mapstructure:"db" yaml:"db"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "flightagent")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Agent --
	v.SetDefault("agent.max_retries", 4)
	v.SetDefault("agent.requests_per_second", 0.0)
	v.SetDefault("agent.llm.default_fast_model", "fast")
	v.SetDefault("agent.llm.default_powerful_model", "powerful")
	v.SetDefault("agent.llm.models", map[string]any{
		"fast": map[string]any{
			"provider":    string(ProviderGemini),
			"model":       "gemini-2.5-flash",
			"api_timeout": "60s",
			"temperature": 0.0,
		},
		"powerful": map[string]any{
			"provider":    string(ProviderGemini),
			"model":       "gemini-2.5-pro",
			"api_timeout": "120s",
			"temperature": 0.0,
		},
	})

	// -- Budget --
	v.SetDefault("budget.request_limit", 15)
	v.SetDefault("budget.request_tokens_limit", 0)
	v.SetDefault("budget.response_tokens_limit", 0)
	v.SetDefault("budget.total_tokens_limit", 0)

	// -- Source --
	v.SetDefault("source.file", "")
	v.SetDefault("source.url", "")
	v.SetDefault("source.timeout", "30s")

	// -- Purchase --
	v.SetDefault("purchase.database_url", "")

	// -- Cache --
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "24h")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("purchase.database_url", "FLIGHTAGENT_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("cache.password", "FLIGHTAGENT_REDIS_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Provider keys fall back to the variables their SDKs document.
	for name, m := range cfg.AgentCfg.LLM.Models {
		if m.APIKey != "" {
			continue
		}
		switch m.Provider {
		case ProviderGemini:
			m.APIKey = os.Getenv("GEMINI_API_KEY")
		case ProviderOpenAI:
			m.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		cfg.AgentCfg.LLM.Models[name] = m
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.AgentCfg.Validate(); err != nil {
		return fmt.Errorf("agent configuration invalid: %w", err)
	}
	b := c.BudgetCfg
	if b.RequestLimit < 0 || b.RequestTokensLimit < 0 || b.ResponseTokensLimit < 0 || b.TotalTokensLimit < 0 {
		return fmt.Errorf("budget limits must not be negative")
	}
	if c.SourceCfg.Timeout < 0 {
		return fmt.Errorf("source.timeout must not be negative")
	}
	if c.CacheCfg.RedisAddr != "" && c.CacheCfg.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be a positive duration when the cache is enabled")
	}
	return nil
}

// Validate checks the agent settings and that both routed models are defined.
func (a *AgentConfig) Validate() error {
	if a.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be a positive integer")
	}
	if a.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	for _, name := range []string{a.LLM.DefaultFastModel, a.LLM.DefaultPowerfulModel} {
		m, ok := a.LLM.Models[name]
		if !ok {
			return fmt.Errorf("llm model %q is routed to but not defined under llm.models", name)
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("llm model %q: %w", name, err)
		}
	}
	return nil
}

// Validate checks a single model entry.
func (m LLMModelConfig) Validate() error {
	switch m.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown provider %q. Supported: [%s, %s]", m.Provider, ProviderGemini, ProviderOpenAI)
	}
	if m.Model == "" {
		return fmt.Errorf("model name is required")
	}
	if m.APITimeout < 0 {
		return fmt.Errorf("api_timeout must not be negative")
	}
	return nil
}
