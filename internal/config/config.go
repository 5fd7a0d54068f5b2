package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SchemaEmbeddingDimensions is the width of faqs.embedding in migrations/.
// Changing EMBEDDING_DIMENSIONS needs a matching migration.
const SchemaEmbeddingDimensions = 768

type Config struct {
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int    `mapstructure:"DB_MAX_CONNS"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	LogLevel    string `mapstructure:"LOG_LEVEL"`
	Debug       bool   `mapstructure:"DEBUG"`
	ServiceName string `mapstructure:"SERVICE_NAME"`
	Environment string `mapstructure:"ENVIRONMENT"`
	Hostname    string `mapstructure:"HOSTNAME"`
	ServerPort  string `mapstructure:"SERVER_PORT"`

	GeminiAPIKeys        []string      `mapstructure:"-"`
	GeminiModel          string        `mapstructure:"GEMINI_MODEL"`
	EmbeddingModel       string        `mapstructure:"GEMINI_EMBEDDING_MODEL"`
	EmbeddingDimensions  int           `mapstructure:"EMBEDDING_DIMENSIONS"`
	EmbeddingTimeout     time.Duration `mapstructure:"EMBEDDING_TIMEOUT"`
	ModelTimeout         time.Duration `mapstructure:"MODEL_TIMEOUT"`
	ModelMaxRetries      int           `mapstructure:"MODEL_MAX_RETRIES"`
	ModelRetryBaseDelay  time.Duration `mapstructure:"MODEL_RETRY_BASE_DELAY"`
	SimilarityThreshold  float64       `mapstructure:"FAQ_SIMILARITY_THRESHOLD"`
	SharedFAQPool        bool          `mapstructure:"FAQ_SHARED_POOL"`
	HistoryLimit         int           `mapstructure:"HISTORY_LIMIT"`
	HistoryMaxChars      int           `mapstructure:"HISTORY_MAX_CHARS"`
	RateLimitSeconds     int           `mapstructure:"RATE_LIMIT_SECONDS"`
	RateLimitInterval    time.Duration `mapstructure:"-"`
	TenantCacheTTL       time.Duration `mapstructure:"TENANT_CACHE_TTL"`
	WhatsAppVerifyToken  string        `mapstructure:"WHATSAPP_VERIFY_TOKEN"`
	WhatsAppAppSecret    string        `mapstructure:"WHATSAPP_APP_SECRET"`
	WhatsAppAPIToken     string        `mapstructure:"WHATSAPP_API_TOKEN"`
	WhatsAppGraphURL     string        `mapstructure:"WHATSAPP_GRAPH_URL"`
	AdminAPIKey          string        `mapstructure:"ADMIN_API_KEY"`
	AdminRateLimitPerSec float64       `mapstructure:"ADMIN_RATE_LIMIT_RPS"`
}

var keys = []string{
	"DATABASE_URL", "DB_MAX_CONNS", "REDIS_URL",
	"LOG_LEVEL", "DEBUG", "SERVICE_NAME", "ENVIRONMENT", "HOSTNAME", "SERVER_PORT",
	"GEMINI_API_KEYS", "GEMINI_MODEL", "GEMINI_EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS",
	"EMBEDDING_TIMEOUT", "MODEL_TIMEOUT", "MODEL_MAX_RETRIES", "MODEL_RETRY_BASE_DELAY",
	"FAQ_SIMILARITY_THRESHOLD", "FAQ_SHARED_POOL", "HISTORY_LIMIT", "HISTORY_MAX_CHARS",
	"RATE_LIMIT_SECONDS", "TENANT_CACHE_TTL",
	"WHATSAPP_VERIFY_TOKEN", "WHATSAPP_APP_SECRET", "WHATSAPP_API_TOKEN", "WHATSAPP_GRAPH_URL",
	"ADMIN_API_KEY", "ADMIN_RATE_LIMIT_RPS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DEBUG", false)
	v.SetDefault("SERVICE_NAME", "whatsapp-faq-bot")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("HOSTNAME", "whatsapp-faq-bot")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash-lite")
	v.SetDefault("GEMINI_EMBEDDING_MODEL", "text-embedding-004")
	v.SetDefault("EMBEDDING_DIMENSIONS", SchemaEmbeddingDimensions)
	v.SetDefault("EMBEDDING_TIMEOUT", 10*time.Second)
	v.SetDefault("MODEL_TIMEOUT", 20*time.Second)
	v.SetDefault("MODEL_MAX_RETRIES", 3)
	v.SetDefault("MODEL_RETRY_BASE_DELAY", 2*time.Second)
	v.SetDefault("FAQ_SIMILARITY_THRESHOLD", 0.75)
	v.SetDefault("FAQ_SHARED_POOL", false)
	v.SetDefault("HISTORY_LIMIT", 20)
	v.SetDefault("HISTORY_MAX_CHARS", 6000)
	v.SetDefault("RATE_LIMIT_SECONDS", 5)
	v.SetDefault("TENANT_CACHE_TTL", 60*time.Second)
	v.SetDefault("WHATSAPP_GRAPH_URL", "https://graph.facebook.com/v21.0")
	v.SetDefault("ADMIN_RATE_LIMIT_RPS", 5.0)
}

// LoadConfig reads configuration from the environment. Call godotenv.Load
// first if a .env file should be honoured.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	// AutomaticEnv only answers Get calls; binding makes Unmarshal see env-only keys.
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", k, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.GeminiAPIKeys = splitKeys(v.GetString("GEMINI_API_KEYS"))
	cfg.RateLimitInterval = time.Duration(cfg.RateLimitSeconds) * time.Second

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if len(c.GeminiAPIKeys) == 0 {
		return errors.New("GEMINI_API_KEYS is required")
	}
	if c.WhatsAppVerifyToken == "" {
		return errors.New("WHATSAPP_VERIFY_TOKEN is required")
	}
	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("FAQ_SIMILARITY_THRESHOLD must be within [-1, 1], got %v", c.SimilarityThreshold)
	}
	if c.ModelMaxRetries < 1 {
		return fmt.Errorf("MODEL_MAX_RETRIES must be at least 1, got %d", c.ModelMaxRetries)
	}
	if c.RateLimitSeconds < 0 {
		return fmt.Errorf("RATE_LIMIT_SECONDS must not be negative, got %d", c.RateLimitSeconds)
	}
	if c.EmbeddingDimensions != SchemaEmbeddingDimensions {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be %d to match the faqs.embedding column, got %d",
			SchemaEmbeddingDimensions, c.EmbeddingDimensions)
	}
	if c.HistoryMaxChars <= 0 {
		return fmt.Errorf("HISTORY_MAX_CHARS must be positive, got %d", c.HistoryMaxChars)
	}
	return nil
}

// splitKeys splits a comma separated list and drops blanks.
func splitKeys(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if k := strings.TrimSpace(part); k != "" {
			out = append(out, k)
		}
	}
	return out
}
