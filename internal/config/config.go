// Package config loads the gateway's environment-driven configuration. A
// .env file in the working directory is loaded first when present; real
// environment variables win over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Defaults for optional settings.
const (
	DefaultRedisURL = "redis://localhost:6379"
	DefaultPort     = 8000
)

// Config holds every runtime setting. Provider keys for optional features
// (search, fallback LLM, batch STT, persistence) may be empty; the wiring in
// cmd/voxgate disables the feature instead of failing.
type Config struct {
	// DeepgramAPIKey authenticates the streaming speech recogniser. Required.
	DeepgramAPIKey string

	// GroqAPIKey authenticates the primary LLM provider. Required.
	GroqAPIKey string

	// ElevenLabsAPIKey authenticates the primary speech synthesiser. Required.
	ElevenLabsAPIKey string

	// CartesiaAPIKey authenticates the fallback synthesiser. Optional.
	CartesiaAPIKey string

	// TavilyAPIKey authenticates the web search API. Optional; search
	// augmentation is disabled when empty.
	TavilyAPIKey string

	// GeminiAPIKey authenticates the fallback LLM. Optional.
	GeminiAPIKey string

	// OpenAIAPIKey authenticates the batch transcription fallback. Optional.
	OpenAIAPIKey string

	// RedisURL is the history and response cache backend.
	RedisURL string

	// PostgresDSN enables durable session persistence and the sessions REST
	// API. Optional; both are disabled when empty.
	PostgresDSN string

	// Port is the HTTP listen port.
	Port int

	// LogLevel is the slog level parsed from LOG_LEVEL.
	LogLevel slog.Level
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using process environment")
	}

	cfg := &Config{
		DeepgramAPIKey:   os.Getenv("DEEPGRAM_API_KEY"),
		GroqAPIKey:       os.Getenv("GROQ_API_KEY"),
		ElevenLabsAPIKey: os.Getenv("ELEVENLABS_API_KEY"),
		CartesiaAPIKey:   os.Getenv("CARTESIA_API_KEY"),
		TavilyAPIKey:     os.Getenv("TAVILY_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		RedisURL:         envOr("REDIS_URL", DefaultRedisURL),
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		Port:             DefaultPort,
	}

	if raw := os.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("config: PORT %q is not a number", raw)
		}
		cfg.Port = port
	}

	level, err := ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required keys and value ranges, reporting every problem at
// once.
func (c *Config) Validate() error {
	var errs []error
	if c.DeepgramAPIKey == "" {
		errs = append(errs, errors.New("config: DEEPGRAM_API_KEY must be set"))
	}
	if c.GroqAPIKey == "" {
		errs = append(errs, errors.New("config: GROQ_API_KEY must be set"))
	}
	if c.ElevenLabsAPIKey == "" {
		errs = append(errs, errors.New("config: ELEVENLABS_API_KEY must be set"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: port %d out of range", c.Port))
	}
	if c.RedisURL == "" {
		errs = append(errs, errors.New("config: REDIS_URL must not be empty"))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a LOG_LEVEL value to a slog level. Empty selects info.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: unknown LOG_LEVEL %q", s)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
