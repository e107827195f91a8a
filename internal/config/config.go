package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port               string
	AllowedOrigins     string
	RateLimitPerMinute int

	// Model configuration
	ModelPath    string
	MetadataPath string
	// ORTLibraryPath points at libonnxruntime; empty uses the platform default.
	ORTLibraryPath string

	// Upload handling
	MaxUploadMB         int
	ConfidenceThreshold float64
	ThumbnailSize       int

	// Logging
	LogLevel  string
	LogFormat string

	// Telegram front-end, disabled when empty
	TelegramToken string
}

// Load reads a .env file if present, then the environment. Relative model
// paths are resolved against the project root.
func Load() *Config {
	_ = godotenv.Load()

	root := ProjectRoot()
	return &Config{
		Port:                getEnv("PORT", "8080"),
		AllowedOrigins:      getEnv("ALLOWED_ORIGINS", "*"),
		RateLimitPerMinute:  getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
		ModelPath:           resolve(root, getEnv("MODEL_PATH", filepath.Join("models", "cat_dog_classifier.onnx"))),
		MetadataPath:        resolve(root, getEnv("METADATA_PATH", filepath.Join("models", "model_metadata.json"))),
		ORTLibraryPath:      getEnv("ORT_LIBRARY_PATH", ""),
		MaxUploadMB:         getEnvAsInt("MAX_UPLOAD_MB", 10),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.8),
		ThumbnailSize:       getEnvAsInt("THUMBNAIL_SIZE", 512),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
		TelegramToken:       getEnv("TELEGRAM_TOKEN", ""),
	}
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid PORT %q", c.Port)
	}
	if c.ModelPath == "" {
		return fmt.Errorf("MODEL_PATH is required")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	if c.ConfidenceThreshold < 0.5 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0.5, 1], got %v", c.ConfidenceThreshold)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.RateLimitPerMinute)
	}
	if c.ThumbnailSize < 0 {
		return fmt.Errorf("THUMBNAIL_SIZE must not be negative, got %d", c.ThumbnailSize)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// ProjectRoot is the working directory, or two levels up when running
// from cmd/server.
func ProjectRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if filepath.Base(wd) == "server" && filepath.Base(filepath.Dir(wd)) == "cmd" {
		return filepath.Join(wd, "..", "..")
	}
	return wd
}

func resolve(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
