package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"assetforge/internal/scoring"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	DBMaxConns  int
	StorageDir  string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	OpenAIOrg     string

	RenderProvider string
	RenderModel    string
	RenderCost     float64
	PromptCost     float64

	BudgetCeiling           float64
	AcceptanceFloor         float64
	ChargeRetryableFailures bool

	WeightTechnical     float64
	WeightCompositional float64
	WeightStyle         float64
	WeightEmotional     float64

	Workers            int
	MaxAttempts        int
	RenderTimeout      time.Duration
	CompetitionTimeout time.Duration
	RenderPerMinute    int
	RenderBurst        int
	PromptPerMinute    int
	PromptBurst        int
	EventBuffer        int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 8),
		StorageDir:  getEnv("STORAGE_DIR", "./data/artifacts"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:     os.Getenv("OPENAI_ORG"),

		RenderProvider: getEnv("RENDER_PROVIDER", "synthetic"),
		RenderModel:    getEnv("RENDER_MODEL", "gemini-2.5-flash-image"),
		RenderCost:     getEnvFloat("RENDER_COST_PER_CALL", 0.04),
		PromptCost:     getEnvFloat("PROMPT_COST_PER_CALL", 0.002),

		BudgetCeiling:           getEnvFloat("BUDGET_CEILING", 25.0),
		AcceptanceFloor:         getEnvFloat("ACCEPTANCE_FLOOR", 6.0),
		ChargeRetryableFailures: getEnvBool("CHARGE_RETRYABLE_FAILURES", false),

		WeightTechnical:     getEnvFloat("WEIGHT_TECHNICAL", 0.25),
		WeightCompositional: getEnvFloat("WEIGHT_COMPOSITIONAL", 0.25),
		WeightStyle:         getEnvFloat("WEIGHT_STYLE", 0.25),
		WeightEmotional:     getEnvFloat("WEIGHT_EMOTIONAL", 0.25),

		Workers:            getEnvInt("PIPELINE_WORKERS", 4),
		MaxAttempts:        getEnvInt("MAX_ATTEMPTS", 3),
		RenderTimeout:      time.Second * time.Duration(getEnvInt("RENDER_TIMEOUT_SECONDS", 60)),
		CompetitionTimeout: time.Second * time.Duration(getEnvInt("COMPETITION_TIMEOUT_SECONDS", 20)),
		RenderPerMinute:    getEnvInt("RENDER_CALLS_PER_MINUTE", 30),
		RenderBurst:        getEnvInt("RENDER_BURST", 5),
		PromptPerMinute:    getEnvInt("PROMPT_CALLS_PER_MINUTE", 60),
		PromptBurst:        getEnvInt("PROMPT_BURST", 10),
		EventBuffer:        getEnvInt("EVENT_BUFFER", 256),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 0)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		AllowedOrigins:   splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
	}

	if cfg.BudgetCeiling <= 0 {
		return nil, fmt.Errorf("BUDGET_CEILING must be positive")
	}
	if cfg.AcceptanceFloor < 0 || cfg.AcceptanceFloor > 10 {
		return nil, fmt.Errorf("ACCEPTANCE_FLOOR must be within [0, 10]")
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("MAX_ATTEMPTS must be at least 1")
	}
	if err := cfg.ScoringWeights().Validate(); err != nil {
		return nil, err
	}
	switch cfg.RenderProvider {
	case "synthetic":
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when RENDER_PROVIDER=gemini")
		}
	default:
		return nil, fmt.Errorf("unknown RENDER_PROVIDER %q", cfg.RenderProvider)
	}

	return cfg, nil
}

// ScoringWeights assembles the axis weights for the scorer.
func (c *Config) ScoringWeights() scoring.Weights {
	return scoring.Weights{
		Technical:     c.WeightTechnical,
		Compositional: c.WeightCompositional,
		Style:         c.WeightStyle,
		Emotional:     c.WeightEmotional,
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
