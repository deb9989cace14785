// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all gateway settings.
type Config struct {
	ListenAddr      string
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	StoreDSN      string
	MongoDatabase string

	OpenAIAPIKey     string
	GeminiAPIKey     string
	ElevenLabsAPIKey string
	ElevenLabsVoice  string

	TextModel           string
	TextFallbackModel   string
	VisionModel         string
	VisionFallbackModel string
	SummaryModel        string
	SystemPrompt        string

	HistoryLimit    int
	TextMaxTokens   int
	VisionMaxTokens int
	Temperature     float64

	RateRPS              float64
	RateBurst            int
	MaxConcurrentStreams int
}

// LoadFromEnv reads CONSULT_* environment variables, applying defaults.
func LoadFromEnv() Config {
	return Config{
		ListenAddr:      envOr("CONSULT_LISTEN_ADDR", ":8080"),
		AllowedOrigins:  splitCSV(os.Getenv("CONSULT_ALLOWED_ORIGINS")),
		RequestTimeout:  envDurationOr("CONSULT_REQUEST_TIMEOUT", 120*time.Second),
		ShutdownTimeout: envDurationOr("CONSULT_SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxBodyBytes:    int64(envIntOr("CONSULT_MAX_BODY_BYTES", 20<<20)),

		StoreDSN:      envOr("CONSULT_STORE_DSN", "memory"),
		MongoDatabase: envOr("CONSULT_MONGO_DATABASE", "consult"),

		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		ElevenLabsAPIKey: os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoice:  envOr("CONSULT_ELEVENLABS_VOICE", "21m00Tcm4TlvDq8ikWAM"),

		TextModel:           envOr("CONSULT_TEXT_MODEL", "gpt-4o-mini"),
		TextFallbackModel:   envOr("CONSULT_TEXT_FALLBACK_MODEL", "gpt-4o"),
		VisionModel:         envOr("CONSULT_VISION_MODEL", "gpt-4o"),
		VisionFallbackModel: envOr("CONSULT_VISION_FALLBACK_MODEL", "gemini-2.0-flash"),
		SummaryModel:        envOr("CONSULT_SUMMARY_MODEL", "gpt-4o-mini"),
		SystemPrompt:        os.Getenv("CONSULT_SYSTEM_PROMPT"),

		HistoryLimit:    envIntOr("CONSULT_HISTORY_LIMIT", 4),
		TextMaxTokens:   envIntOr("CONSULT_TEXT_MAX_TOKENS", 1000),
		VisionMaxTokens: envIntOr("CONSULT_VISION_MAX_TOKENS", 1500),
		Temperature:     envFloatOr("CONSULT_TEMPERATURE", 0.7),

		RateRPS:              envFloatOr("CONSULT_RATE_RPS", 5),
		RateBurst:            envIntOr("CONSULT_RATE_BURST", 10),
		MaxConcurrentStreams: envIntOr("CONSULT_MAX_CONCURRENT_STREAMS", 4),
	}
}

// Validate checks the configuration for startup.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen addr is required")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.TextModel == "" || c.TextFallbackModel == "" {
		return fmt.Errorf("text model pair is required")
	}
	if c.VisionModel == "" || c.VisionFallbackModel == "" {
		return fmt.Errorf("vision model pair is required")
	}
	if strings.HasPrefix(c.VisionFallbackModel, "gemini") && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required for fallback model %s", c.VisionFallbackModel)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2]")
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloatOr(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
