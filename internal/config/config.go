package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string   `mapstructure:"PORT"`
	Env                  string   `mapstructure:"ENV"`
	LogLevel             string   `mapstructure:"LOG_LEVEL"`
	DatabaseURL          string   `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL             string   `mapstructure:"REDIS_URL"`
	APIKey               string   `mapstructure:"API_KEY"`
	OperatorJWTSecret    string   `mapstructure:"OPERATOR_JWT_SECRET"`
	WritebackMaxAttempts int      `mapstructure:"WRITEBACK_MAX_ATTEMPTS"`
	CORSOrigins          []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("WRITEBACK_MAX_ATTEMPTS", 3)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("API_KEY")
	v.BindEnv("OPERATOR_JWT_SECRET")
	v.BindEnv("WRITEBACK_MAX_ATTEMPTS")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.IsDev() && cfg.DatabaseURL == "" {
		log.Println("WARNING: DATABASE_URL is not set; using the in-memory store.")
		log.Println("WARNING: All pipeline state is lost on restart. Development only.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Production requires
// a durable store and operator authentication: the in-memory fallback and the
// unauthenticated development bypass are refused outright.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required in production; the in-memory store is development-only")
		}
		if c.APIKey == "" && c.OperatorJWTSecret == "" {
			return fmt.Errorf("API_KEY or OPERATOR_JWT_SECRET is required in production for operator endpoints")
		}
	}
	if c.WritebackMaxAttempts < 1 {
		return fmt.Errorf("WRITEBACK_MAX_ATTEMPTS must be at least 1, got %d", c.WritebackMaxAttempts)
	}
	return nil
}
