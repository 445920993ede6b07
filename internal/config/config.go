package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Interview InterviewConfig
	Scoring   ScoringConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver string
	DSN    string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	// RateLimit is the number of register/login attempts allowed per client
	// per minute.
	RateLimit int
}

type InterviewConfig struct {
	QuestionCount    int
	QuestionSeconds  int
	CatalogPath      string
	AutoAdvanceDelay time.Duration
}

type ScoringConfig struct {
	MinLatency time.Duration
	MaxLatency time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

const defaultJWTSecret = "your-secret-key-change-in-production"

// Load reads an optional .env file and then the environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 0),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:    getEnv("DB_DSN", "mockinterview.db"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", defaultJWTSecret),
			TokenTTL:  getEnvAsDuration("JWT_TTL", 24*time.Hour),
			RateLimit: getEnvAsInt("AUTH_RATE_LIMIT", 20),
		},
		Interview: InterviewConfig{
			QuestionCount:    getEnvAsInt("QUESTION_COUNT", 10),
			QuestionSeconds:  getEnvAsInt("QUESTION_DURATION_SECONDS", 120),
			CatalogPath:      getEnv("QUESTION_CATALOG_PATH", ""),
			AutoAdvanceDelay: getEnvAsDuration("AUTO_ADVANCE_DELAY", 2*time.Second),
		},
		Scoring: ScoringConfig{
			MinLatency: getEnvAsDuration("SCORING_MIN_LATENCY", time.Second),
			MaxLatency: getEnvAsDuration("SCORING_MAX_LATENCY", 3*time.Second),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "console")),
		},
	}
}

func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("SERVER_PORT out of range: %d", c.Server.Port)
	case c.Database.Driver != "sqlite" && c.Database.Driver != "postgres":
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.Database.Driver)
	case c.Database.DSN == "":
		return errors.New("DB_DSN is required")
	case c.Auth.JWTSecret == "":
		return errors.New("JWT_SECRET is required")
	case c.Auth.TokenTTL <= 0:
		return errors.New("JWT_TTL must be positive")
	case c.Auth.RateLimit <= 0:
		return errors.New("AUTH_RATE_LIMIT must be positive")
	case c.Interview.QuestionCount <= 0:
		return errors.New("QUESTION_COUNT must be positive")
	case c.Interview.QuestionSeconds <= 0:
		return errors.New("QUESTION_DURATION_SECONDS must be positive")
	case c.Scoring.MinLatency < 0 || c.Scoring.MaxLatency < c.Scoring.MinLatency:
		return errors.New("SCORING_MIN_LATENCY must be non-negative and not above SCORING_MAX_LATENCY")
	case c.Log.Format != "console" && c.Log.Format != "json":
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.Log.Format)
	}
	return nil
}

// DefaultSecret reports whether the signing secret was left at its
// development default.
func (c *Config) DefaultSecret() bool {
	return c.Auth.JWTSecret == defaultJWTSecret
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
