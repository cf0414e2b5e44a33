package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPort              = "3000"
	DefaultAppURL            = "http://localhost:3000"
	DefaultDeepSeekURL       = "https://api.deepseek.com/v1/chat/completions"
	DefaultDeepSeekModel     = "deepseek-chat"
	DefaultExtractionTimeout = 30 * time.Second
	DefaultMaxUploadBytes    = 5 << 20
)

type Config struct {
	Env     string
	Port    string
	LogMode string

	DatabaseURL string
	JWTSecret   string

	AppURL       string
	CookieDomain string

	GoogleClientID     string
	GoogleClientSecret string

	DeepSeekAPIKey    string
	DeepSeekURL       string
	DeepSeekModel     string
	ExtractionTimeout time.Duration

	MaxUploadBytes int64
	AllowedOrigins []string
}

// Load reads the process environment. DATABASE_URL and JWT_SECRET are required.
func Load() (*Config, error) {
	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", DefaultPort),
		LogMode:            getEnv("LOG_MODE", "development"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AppURL:             strings.TrimRight(getEnv("APP_URL", DefaultAppURL), "/"),
		CookieDomain:       getEnv("COOKIE_DOMAIN", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		DeepSeekAPIKey:     getEnv("DEEPSEEK_API_KEY", ""),
		DeepSeekURL:        getEnv("DEEPSEEK_API_URL", DefaultDeepSeekURL),
		DeepSeekModel:      getEnv("DEEPSEEK_MODEL", DefaultDeepSeekModel),
		ExtractionTimeout:  DefaultExtractionTimeout,
		MaxUploadBytes:     DefaultMaxUploadBytes,
		AllowedOrigins:     allowedOrigins(),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	if raw := getEnv("EXTRACTION_TIMEOUT_SECONDS", ""); raw != "" {
		secs, err := strconv.Atoi(raw)

		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid EXTRACTION_TIMEOUT_SECONDS %q", raw)
		}

		cfg.ExtractionTimeout = time.Duration(secs) * time.Second
	}

	if raw := getEnv("MAX_UPLOAD_BYTES", ""); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)

		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES %q", raw)
		}

		cfg.MaxUploadBytes = n
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production") || strings.EqualFold(c.Env, "prod")
}

func (c *Config) GoogleRedirectURL() string {
	return c.AppURL + "/api/auth/google/callback"
}

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

func allowedOrigins() []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	if clientURL := getEnv("CLIENT_URL", ""); clientURL != "" {
		origins = append(origins, clientURL)
	}

	if raw := getEnv("ALLOWED_ORIGINS", ""); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return origins
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
