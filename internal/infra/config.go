package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	DatabaseURL       string
	RSAPrivateKey     string
	RSAPrivateKeyPath string

	OCRAPIPrefix          string
	OCRTimeout            time.Duration
	MaxOCRConcurrency     int
	MaxRequestConcurrency int
	Retention             time.Duration
	SweepInterval         time.Duration

	LLMAPIKey       string
	LLMModel        string
	LLMBaseURL      string
	LLMPollInterval time.Duration
	LLMMaxWait      time.Duration

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string
	MaxBodyBytes       int64
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RSAPrivateKey:     os.Getenv("RSA_PRIVATE_KEY"),
		RSAPrivateKeyPath: os.Getenv("RSA_PRIVATE_KEY_PATH"),

		OCRAPIPrefix:          strings.TrimRight(strings.TrimSpace(os.Getenv("OCR_API_PREFIX")), "/"),
		OCRTimeout:            time.Second * time.Duration(getEnvInt("OCR_TIMEOUT_SECONDS", 60)),
		MaxOCRConcurrency:     getEnvInt("MAX_OCR_CONCURRENCY", 4),
		MaxRequestConcurrency: getEnvInt("MAX_REQUEST_CONCURRENCY", 4),
		Retention:             time.Minute * time.Duration(getEnvInt("EXPIRE_MINUTES", 60)),
		SweepInterval:         time.Second * time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 60)),

		LLMAPIKey:       strings.TrimSpace(os.Getenv("LLM_API_KEY")),
		LLMModel:        getEnv("LLM_MODEL", "glm-4-plus"),
		LLMBaseURL:      strings.TrimRight(getEnv("LLM_BASE_URL", "https://open.bigmodel.cn/api/paas/v4"), "/"),
		LLMPollInterval: time.Millisecond * time.Duration(getEnvInt("LLM_POLL_INTERVAL_MS", 1000)),
		LLMMaxWait:      time.Second * time.Duration(getEnvInt("LLM_MAX_WAIT_SECONDS", 0)),

		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 32<<20)),
	}

	if strings.TrimSpace(cfg.RSAPrivateKey) == "" && strings.TrimSpace(cfg.RSAPrivateKeyPath) == "" {
		return nil, fmt.Errorf("RSA_PRIVATE_KEY or RSA_PRIVATE_KEY_PATH is required")
	}

	if cfg.OCRAPIPrefix == "" {
		return nil, fmt.Errorf("OCR_API_PREFIX is required")
	}

	if cfg.MaxOCRConcurrency < 1 {
		return nil, fmt.Errorf("MAX_OCR_CONCURRENCY must be positive, got %d", cfg.MaxOCRConcurrency)
	}

	if cfg.MaxRequestConcurrency < 1 {
		return nil, fmt.Errorf("MAX_REQUEST_CONCURRENCY must be positive, got %d", cfg.MaxRequestConcurrency)
	}

	if cfg.Retention <= 0 || cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("EXPIRE_MINUTES and SWEEP_INTERVAL_SECONDS must be positive")
	}

	if cfg.LLMPollInterval <= 0 {
		cfg.LLMPollInterval = time.Second
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
