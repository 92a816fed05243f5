package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"go-medical-image-analyzer/internal/vision"
)

const (
	// DefaultGroqBaseURL is the OpenAI-compatible Groq inference endpoint
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"

	// DefaultQuestion is used when a request carries no question text
	DefaultQuestion = "Analyze this medical image and identify any anomalies."
)

type Config struct {
	Host              string
	Port              string
	RequestTimeout    time.Duration
	ImageFetchTimeout time.Duration
	ModelTimeout      time.Duration
	MaxUploadSize     int64

	GroqAPIKey      string
	GroqBaseURL     string
	Models          []vision.ModelSpec
	ParallelQueries bool

	DefaultQuestion string

	AzureAccountName string
	AzureAccountKey  string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// HasCredential reports whether an API credential is configured. A missing
// key is a recoverable configuration error surfaced per request, not a
// startup failure.
func (c *Config) HasCredential() bool {
	return strings.TrimSpace(c.GroqAPIKey) != ""
}

// HasAzureStorage reports whether Azure blob credentials are configured
func (c *Config) HasAzureStorage() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != ""
}

func LoadFromEnv() (*Config, error) {
	// Optional .env file for local development
	_ = godotenv.Load()

	cfg := &Config{
		Host:              getEnvOrDefault("HOST", "0.0.0.0"),
		Port:              getEnvOrDefault("PORT", "8080"),
		RequestTimeout:    parseDurationOrDefault("REQUEST_TIMEOUT", 150*time.Second),
		ImageFetchTimeout: parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		ModelTimeout:      parseDurationOrDefault("MODEL_TIMEOUT", 60*time.Second),
		MaxUploadSize:     parseIntOrDefault("MAX_UPLOAD_SIZE", 10*1024*1024), // 10MB
		GroqAPIKey:        os.Getenv("GROQ_API_KEY"),
		GroqBaseURL:       getEnvOrDefault("GROQ_BASE_URL", DefaultGroqBaseURL),
		ParallelQueries:   strings.EqualFold(os.Getenv("PARALLEL_QUERIES"), "true"),
		DefaultQuestion:   getEnvOrDefault("DEFAULT_QUESTION", DefaultQuestion),
		AzureAccountName:  os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureAccountKey:   os.Getenv("AZURE_STORAGE_KEY"),
	}

	models, err := parseModelSpecs(os.Getenv("GROQ_MODELS"))
	if err != nil {
		return nil, err
	}
	cfg.Models = models

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE must be > 0 (got %d)", cfg.MaxUploadSize)
	}
	if cfg.RequestTimeout <= 0 || cfg.ImageFetchTimeout <= 0 || cfg.ModelTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, model=%s)",
			cfg.RequestTimeout, cfg.ImageFetchTimeout, cfg.ModelTimeout)
	}
	return cfg, nil
}

// parseModelSpecs parses GROQ_MODELS formatted as
// "Label=model-id;Label=model-id". An empty value yields the default
// two-model configuration; order determines result placement.
func parseModelSpecs(value string) ([]vision.ModelSpec, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return vision.DefaultModelSpecs(), nil
	}

	var specs []vision.ModelSpec
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		label, id, ok := strings.Cut(part, "=")
		label = strings.TrimSpace(label)
		id = strings.TrimSpace(id)
		if !ok || label == "" || id == "" {
			return nil, fmt.Errorf("invalid GROQ_MODELS entry %q (want Label=model-id)", part)
		}
		specs = append(specs, vision.ModelSpec{Label: label, ID: id})
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("GROQ_MODELS contains no model entries: %q", value)
	}
	return specs, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
