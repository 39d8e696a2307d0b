package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
	Retry    RetryConfig    `mapstructure:"retry" validate:"required"`
	Session  SessionConfig  `mapstructure:"session" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// LLMConfig contains the settings for the text and image generation services.
//
// The API keys are optional at load time. The credential is checked when a
// run starts, and a run request may carry its own OpenAI key.
type LLMConfig struct {
	// Provider selects the backend: openai, gemini (text only, images still
	// go through OpenAI) or mock for fully offline runs.
	Provider     string `mapstructure:"provider" validate:"required,oneof=openai gemini mock"`
	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	// BaseURL overrides the OpenAI endpoint (OpenAI-compatible gateways).
	BaseURL      string `mapstructure:"base_url" validate:"omitempty,url"`
	TextModel    string `mapstructure:"text_model" validate:"required"`
	SummaryModel string `mapstructure:"summary_model" validate:"required"`
	ImageModel   string `mapstructure:"image_model" validate:"required"`
	GeminiModel  string `mapstructure:"gemini_model" validate:"required"`

	TextTimeout     time.Duration `mapstructure:"text_timeout" validate:"gt=0"`
	ImageTimeout    time.Duration `mapstructure:"image_timeout" validate:"gt=0"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout" validate:"gt=0"`
}

// PipelineConfig holds the size and concurrency settings of a generation run.
type PipelineConfig struct {
	MainHeadings       int `mapstructure:"main_headings" validate:"gte=1,lte=50"`
	SubHeadings        int `mapstructure:"sub_headings" validate:"gte=1,lte=5"`
	SectionConcurrency int `mapstructure:"section_concurrency" validate:"gte=1"`
	ImageConcurrency   int `mapstructure:"image_concurrency" validate:"gte=1"`
	OutlineMaxTokens   int `mapstructure:"outline_max_tokens" validate:"gt=0"`
	SectionMaxTokens   int `mapstructure:"section_max_tokens" validate:"gt=0"`
	SummaryMaxTokens   int `mapstructure:"summary_max_tokens" validate:"gt=0"`
}

// RetryConfig holds the backoff schedules for the two kinds of upstream calls.
type RetryConfig struct {
	Text  BackoffConfig `mapstructure:"text" validate:"required"`
	Image BackoffConfig `mapstructure:"image" validate:"required"`
}

// BackoffConfig describes one exponential backoff schedule.
type BackoffConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1"`
	Initial     time.Duration `mapstructure:"initial" validate:"gt=0"`
	Max         time.Duration `mapstructure:"max" validate:"gt=0,gtefield=Initial"`
}

// SessionConfig contains the settings for on-disk run sessions.
type SessionConfig struct {
	RootDir         string        `mapstructure:"root_dir" validate:"required"`
	TTL             time.Duration `mapstructure:"ttl" validate:"gt=0"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
	ImagePathPrefix string        `mapstructure:"image_path_prefix"`
}

// AuthConfig contains the API authentication settings.
// An empty secret disables authentication on the HTTP API.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"gt=0"`
}
