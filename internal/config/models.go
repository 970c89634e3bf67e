package config

import (
	"time"

	"github.com/maxtyrsa/mamaai/internal/core"
	"github.com/maxtyrsa/mamaai/internal/recovery"
)

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// TelegramConfig represents the Telegram transport configuration
type TelegramConfig struct {
	Token        string
	AdminIDs     []int64
	NotifyOnSpam bool
	PollTimeout  int
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetTelegram returns the Telegram configuration
func (c *Config) GetTelegram() TelegramConfig {
	return TelegramConfig{
		Token:        c.GetString("telegram.token"),
		AdminIDs:     c.GetInt64Slice("telegram.admin_ids"),
		NotifyOnSpam: c.GetBool("telegram.notify_on_spam"),
		PollTimeout:  c.GetInt("telegram.poll_timeout"),
	}
}

// GetEngine returns the moderation engine configuration
func (c *Config) GetEngine() core.EngineConfig {
	return core.EngineConfig{
		PatternWeight:  c.GetFloat64("moderation.pattern_weight"),
		BehaviorWeight: c.GetFloat64("moderation.behavior_weight"),
		MetricsWeight:  c.GetFloat64("moderation.metrics_weight"),

		TrustedThreshold:    c.GetFloat64("moderation.thresholds.trusted"),
		NeutralThreshold:    c.GetFloat64("moderation.thresholds.neutral"),
		SuspiciousThreshold: c.GetFloat64("moderation.thresholds.suspicious"),
		BannedThreshold:     c.GetFloat64("moderation.thresholds.banned"),

		BandLow:        c.GetFloat64("moderation.band.low"),
		BandHigh:       c.GetFloat64("moderation.band.high"),
		EscalatedScore: c.GetFloat64("moderation.band.escalated_score"),
	}
}

// GetRecovery returns the recovery engine configuration
func (c *Config) GetRecovery() recovery.Config {
	out := recovery.DefaultConfig()
	if d, err := c.GetDuration("recovery.pace"); err == nil {
		out.Pace = d
	}
	if n := c.GetInt("recovery.max_attempts"); n > 0 {
		out.MaxAttempts = n
	}
	if d, err := c.GetDuration("recovery.backoff_base"); err == nil {
		out.BackoffBase = d
	}
	return out
}

// GetMonitor returns the unprocessed-message monitor configuration
func (c *Config) GetMonitor() recovery.MonitorConfig {
	out := recovery.DefaultMonitorConfig()
	if d, err := c.GetDuration("monitor.interval"); err == nil {
		out.Interval = d
	}
	if d, err := c.GetDuration("monitor.window"); err == nil {
		out.Window = d
	}
	if n := c.GetInt("monitor.threshold"); n > 0 {
		out.Threshold = n
	}
	return out
}

// GetRateLimitWindow returns the rate limiter window
func (c *Config) GetRateLimitWindow() time.Duration {
	if d, err := c.GetDuration("ratelimit.window"); err == nil {
		return d
	}
	return 60 * time.Second
}
