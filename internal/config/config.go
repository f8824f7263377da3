package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                       string
	DBUrl                      string
	JWTSecret                  string
	AppEnv                     string
	LogLevel                   string
	EnableDocs                 bool
	StripeSecretKey            string
	StripeWebhookSecret        string
	RedisURL                   string
	KafkaBrokers               []string
	KafkaTopic                 string
	JaegerEndpoint             string
	JobSearchAPIURL            string
	JobSearchAPIKey            string
	JobCacheTTL                time.Duration
	InterviewRequestCreditCost int
	PayoutCurrency             string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	creditCost := getEnvInt("INTERVIEW_REQUEST_CREDIT_COST", 1)
	if creditCost <= 0 {
		return nil, fmt.Errorf("INTERVIEW_REQUEST_CREDIT_COST must be greater than 0")
	}

	return &Config{
		Port:                       getEnv("PORT", "8080"),
		DBUrl:                      getEnv("DB_URL", ""),
		JWTSecret:                  jwtSecret,
		AppEnv:                     normalizeEnv(getEnv("APP_ENV", "production")),
		LogLevel:                   strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		EnableDocs:                 getEnvBool("ENABLE_API_DOCS", false),
		StripeSecretKey:            getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:        getEnv("STRIPE_WEBHOOK_SECRET", ""),
		RedisURL:                   getEnv("REDIS_URL", ""),
		KafkaBrokers:               getEnvList("KAFKA_BROKERS"),
		KafkaTopic:                 getEnv("KAFKA_TOPIC", "prepcoach.marketplace"),
		JaegerEndpoint:             getEnv("JAEGER_ENDPOINT", ""),
		JobSearchAPIURL:            getEnv("JOB_SEARCH_API_URL", ""),
		JobSearchAPIKey:            getEnv("JOB_SEARCH_API_KEY", ""),
		JobCacheTTL:                getEnvDuration("JOB_CACHE_TTL", 10*time.Minute),
		InterviewRequestCreditCost: creditCost,
		PayoutCurrency:             strings.ToLower(getEnv("PAYOUT_CURRENCY", "usd")),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return nil
	}
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func (c *Config) DocsEnabled() bool {
	return c != nil && c.EnableDocs && c.AppEnv == "development"
}

func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}
