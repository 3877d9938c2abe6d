package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	internal "github.com/ZanzyTHEbar/insight-agent/insight"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	State     StateConfig     `mapstructure:"state"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Harness   HarnessConfig   `mapstructure:"harness"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig stores process-level settings.
type AppConfig struct {
	Name          string `mapstructure:"name"`
	OutputDir     string `mapstructure:"output_dir"`      // charts/ and reports/ are created below it
	LogLevel      string `mapstructure:"log_level"`       // zerolog level name
	LogFormat     string `mapstructure:"log_format"`      // "console" | "json"
	LogFile       string `mapstructure:"log_file"`        // empty disables the rotating file
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"` // rotation threshold
	LogMaxBackups int    `mapstructure:"log_max_backups"`
	LogMaxAgeDays int    `mapstructure:"log_max_age_days"`
}

// DatabaseConfig stores the analysed data source.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "libsql" | "sqlite"
	Path   string `mapstructure:"path"`
}

// StateConfig stores where conversation turns are persisted.
type StateConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"`
	Path    string `mapstructure:"path"`
}

// LLMConfig stores language model configurations.
type LLMConfig struct {
	Provider     string        `mapstructure:"provider"` // "openai", "anthropic", "ollama", "gemini", "llama"
	Model        string        `mapstructure:"model"`
	BaseURL      string        `mapstructure:"base_url"` // OpenAI-compatible gateway or Ollama host
	APIKey       string        `mapstructure:"api_key"`
	MaxNewTokens int           `mapstructure:"max_new_tokens"`
	Temperature  float32       `mapstructure:"temperature"`
	TopP         float32       `mapstructure:"top_p"`
	Timeout      time.Duration `mapstructure:"timeout"`

	// Local GGUF settings, only read by the llama provider
	ModelPath   string `mapstructure:"model_path"`
	ContextSize int    `mapstructure:"context_size"`
	GPULayers   int    `mapstructure:"gpu_layers"`
	Threads     int    `mapstructure:"threads"`
}

// AgentConfig stores orchestration limits.
type AgentConfig struct {
	MaxSteps             int           `mapstructure:"max_steps"`      // plan steps executed per query
	HistoryWindow        int           `mapstructure:"history_window"` // turns rendered into prompts
	MaxHistory           int           `mapstructure:"max_history"`    // turns retained per session
	ToolTimeout          time.Duration `mapstructure:"tool_timeout"`
	PersistConversations bool          `mapstructure:"persist_conversations"`
}

// HarnessConfig stores LLM call wrappers.
type HarnessConfig struct {
	// Cache settings
	CacheEnabled    bool `mapstructure:"cache_enabled"`
	CacheCapacity   int  `mapstructure:"cache_capacity"`
	CacheTTLSeconds int  `mapstructure:"cache_ttl_seconds"`

	// Rate limiting
	RateLimitEnabled    bool          `mapstructure:"rate_limit_enabled"`
	RateLimitCapacity   int           `mapstructure:"rate_limit_capacity"`    // burst size
	RateLimitRefillRate time.Duration `mapstructure:"rate_limit_refill_rate"` // one token per interval

	// Retries on provider errors
	RetryCount   int           `mapstructure:"retry_count"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`

	EnableTracing    bool `mapstructure:"enable_tracing"`
	ValidateToolArgs bool `mapstructure:"validate_tool_args"` // advisory only, never rejects
}

// ServerConfig stores the HTTP API settings.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxSessions    int           `mapstructure:"max_sessions"`         // least recently used sessions are evicted beyond this
	SessionIdle    time.Duration `mapstructure:"session_idle_timeout"` // zero keeps idle sessions until evicted
}

// TelemetryConfig stores OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viper.Reset()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	viper.AutomaticEnv()
	// Replace dots with underscores in env var names e.g. llm.api_key becomes LLM_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Bare names used by OpenAI-compatible gateways
	_ = viper.BindEnv("llm.api_key", "LLM_API_KEY", "API_KEY")
	_ = viper.BindEnv("llm.base_url", "LLM_BASE_URL", "BASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults and env are used.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &cfg, nil
}

// ConfigFileUsed reports the file LoadConfig read, or "" when defaults were used.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

func setDefaults() {
	viper.SetDefault("app.name", internal.DefaultAppName)
	viper.SetDefault("app.output_dir", internal.DefaultOutputDir)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.log_format", "console")
	viper.SetDefault("app.log_file", internal.DefaultLogFile)
	viper.SetDefault("app.log_max_size_mb", 10)
	viper.SetDefault("app.log_max_backups", 5)
	viper.SetDefault("app.log_max_age_days", 30)

	viper.SetDefault("database.driver", internal.DefaultDatabaseDriver)
	viper.SetDefault("database.path", internal.DefaultDatabasePath)

	viper.SetDefault("state.enabled", true)
	viper.SetDefault("state.driver", internal.DefaultDatabaseDriver)
	viper.SetDefault("state.path", internal.DefaultStatePath)

	viper.SetDefault("llm.provider", internal.DefaultLLMProvider)
	viper.SetDefault("llm.model", internal.DefaultLLMModel)
	viper.SetDefault("llm.base_url", "")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.max_new_tokens", 2048)
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.top_p", 0.9)
	viper.SetDefault("llm.timeout", "120s")
	viper.SetDefault("llm.model_path", "")
	viper.SetDefault("llm.context_size", 4096)
	viper.SetDefault("llm.gpu_layers", 0)
	viper.SetDefault("llm.threads", 4)

	viper.SetDefault("agent.max_steps", 8)
	viper.SetDefault("agent.history_window", 10)
	viper.SetDefault("agent.max_history", 50)
	viper.SetDefault("agent.tool_timeout", "60s")
	viper.SetDefault("agent.persist_conversations", true)

	viper.SetDefault("harness.cache_enabled", true)
	viper.SetDefault("harness.cache_capacity", 256)
	viper.SetDefault("harness.cache_ttl_seconds", 600)
	viper.SetDefault("harness.rate_limit_enabled", true)
	viper.SetDefault("harness.rate_limit_capacity", 10)
	viper.SetDefault("harness.rate_limit_refill_rate", "1s")
	viper.SetDefault("harness.retry_count", 0)
	viper.SetDefault("harness.retry_backoff", "500ms")
	viper.SetDefault("harness.enable_tracing", true)
	viper.SetDefault("harness.validate_tool_args", true)

	viper.SetDefault("server.addr", internal.DefaultServerAddr)
	viper.SetDefault("server.allowed_origins", []string{"*"})
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "300s")
	viper.SetDefault("server.max_sessions", 1000)
	viper.SetDefault("server.session_idle_timeout", "30m")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.service_name", internal.DefaultAppName)
	viper.SetDefault("telemetry.endpoint", "localhost:4317")
	viper.SetDefault("telemetry.insecure", true)
}
