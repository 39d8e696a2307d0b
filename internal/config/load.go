package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for every environment variable read by Load.
const EnvPrefix = "LONGFORM"

// boundKeys lists every configuration key so that environment variables are
// picked up even for keys without a default value.
var boundKeys = []string{
	"server.port",
	"server.log_level",
	"llm.provider",
	"llm.openai_api_key",
	"llm.gemini_api_key",
	"llm.base_url",
	"llm.text_model",
	"llm.summary_model",
	"llm.image_model",
	"llm.gemini_model",
	"llm.text_timeout",
	"llm.image_timeout",
	"llm.download_timeout",
	"pipeline.main_headings",
	"pipeline.sub_headings",
	"pipeline.section_concurrency",
	"pipeline.image_concurrency",
	"pipeline.outline_max_tokens",
	"pipeline.section_max_tokens",
	"pipeline.summary_max_tokens",
	"retry.text.max_attempts",
	"retry.text.initial",
	"retry.text.max",
	"retry.image.max_attempts",
	"retry.image.initial",
	"retry.image.max",
	"session.root_dir",
	"session.ttl",
	"session.sweep_interval",
	"session.image_path_prefix",
	"auth.jwt_secret",
	"auth.token_lifetime",
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile behaves like Load but reads the given config file instead of
// searching for config.yaml in the working directory. An empty path searches.
func LoadFile(path string) (*Config, error) {
	// A missing .env file is the normal case outside local development
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range boundKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the struct tags of a configuration.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Default returns a configuration populated with default values only.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults are static and always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.text_model", "gpt-4o")
	v.SetDefault("llm.summary_model", "gpt-4o")
	v.SetDefault("llm.image_model", "dall-e-3")
	v.SetDefault("llm.gemini_model", "gemini-2.0-flash")
	v.SetDefault("llm.text_timeout", 180*time.Second)
	v.SetDefault("llm.image_timeout", 120*time.Second)
	v.SetDefault("llm.download_timeout", 60*time.Second)

	v.SetDefault("pipeline.main_headings", 30)
	v.SetDefault("pipeline.sub_headings", 2)
	v.SetDefault("pipeline.section_concurrency", 5)
	v.SetDefault("pipeline.image_concurrency", 10)
	v.SetDefault("pipeline.outline_max_tokens", 8000)
	v.SetDefault("pipeline.section_max_tokens", 4000)
	v.SetDefault("pipeline.summary_max_tokens", 1000)

	v.SetDefault("retry.text.max_attempts", 5)
	v.SetDefault("retry.text.initial", 2*time.Second)
	v.SetDefault("retry.text.max", 60*time.Second)
	v.SetDefault("retry.image.max_attempts", 3)
	v.SetDefault("retry.image.initial", 2*time.Second)
	v.SetDefault("retry.image.max", 30*time.Second)

	v.SetDefault("session.root_dir", "static/temp")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.sweep_interval", time.Hour)
	v.SetDefault("session.image_path_prefix", "images/")

	v.SetDefault("auth.token_lifetime", 30*24*time.Hour)
}
