package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/mamaai/")
	v.AddConfigPath("$HOME/.mamaai")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("MAMAAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// LLM provider defaults; "none" runs on heuristics and canned replies
	v.SetDefault("llm.provider", "none")

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 500)
	v.SetDefault("openai.temperature", 0.3)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 2048)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-pro")
	v.SetDefault("gemini.max_tokens", 500)
	v.SetDefault("gemini.temperature", 0.3)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 2048)

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 500)
	v.SetDefault("bedrock.temperature", 0.3)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 2048)

	// Moderation defaults; the relative ordering matters more than the
	// exact values
	v.SetDefault("moderation.pattern_weight", 0.6)
	v.SetDefault("moderation.behavior_weight", 0.3)
	v.SetDefault("moderation.metrics_weight", 0.1)
	v.SetDefault("moderation.thresholds.trusted", 4.0)
	v.SetDefault("moderation.thresholds.neutral", 3.0)
	v.SetDefault("moderation.thresholds.suspicious", 2.0)
	v.SetDefault("moderation.thresholds.banned", 1.0)
	v.SetDefault("moderation.band.low", 2.0)
	v.SetDefault("moderation.band.high", 4.0)
	v.SetDefault("moderation.band.escalated_score", 4.1)

	// Trust defaults
	v.SetDefault("trust.flush_interval", "5m")

	// Rate limit defaults
	v.SetDefault("ratelimit.window", "60s")
	v.SetDefault("ratelimit.max_messages", 5)

	// Recovery defaults
	v.SetDefault("recovery.startup_lookback", "24h")
	v.SetDefault("recovery.periodic_interval", "6h")
	v.SetDefault("recovery.pace", "500ms")
	v.SetDefault("recovery.max_attempts", 3)
	v.SetDefault("recovery.backoff_base", "2s")

	// Monitor defaults
	v.SetDefault("monitor.interval", "10m")
	v.SetDefault("monitor.window", "1h")
	v.SetDefault("monitor.threshold", 5)

	// Telegram defaults
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_ids", []int64{})
	v.SetDefault("telegram.notify_on_spam", true)
	v.SetDefault("telegram.poll_timeout", 30)

	// Delivery defaults
	v.SetDefault("delivery.type", "telegram")

	// Storage defaults
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.sqlite_path", "/data/mamaai.db")
	v.SetDefault("storage.mysql_dsn", "user:password@tcp(localhost:3306)/mamaai?parseTime=true")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetInt64Slice gets an int64 slice value from the configuration
func (c *Config) GetInt64Slice(key string) []int64 {
	raw := c.v.GetIntSlice(key)
	out := make([]int64, len(raw))
	for i, n := range raw {
		out[i] = int64(n)
	}
	return out
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
