package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the service configuration.  Values come from the environment
// with an optional .env file for local development.  DATABASE_URL may be
// empty, in which case the server runs on the in-memory store.
type Config struct {
	Port             string `mapstructure:"PORT"`
	Env              string `mapstructure:"ENV"`
	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	OpenAIAPIKey     string `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel      string `mapstructure:"OPENAI_MODEL_CHAT"`
	VerifyToken      string `mapstructure:"WHATSAPP_VERIFY_TOKEN"`
	NLGTimeoutMillis int    `mapstructure:"NLG_TIMEOUT_MS"`
	MaxTurnRetries   int    `mapstructure:"MAX_TURN_RETRIES"`
	RulesFile        string `mapstructure:"RULES_FILE"`
}

// Load reads the configuration from the environment and the optional .env
// file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("NLG_TIMEOUT_MS", 10000)
	v.SetDefault("MAX_TURN_RETRIES", 3)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("OPENAI_MODEL_CHAT")
	v.BindEnv("WHATSAPP_VERIFY_TOKEN")
	v.BindEnv("NLG_TIMEOUT_MS")
	v.BindEnv("MAX_TURN_RETRIES")
	v.BindEnv("RULES_FILE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.IsProduction() && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required in production")
	}
	return cfg, nil
}

// IsDev returns true when the server runs in development mode.
func (c *Config) IsDev() bool { return c.Env == "development" }

// IsProduction returns true when the server is configured for production.
func (c *Config) IsProduction() bool { return c.Env == "production" }
