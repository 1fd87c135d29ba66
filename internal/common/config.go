package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Redis    RedisConfig
	Pipeline PipelineConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr          string
	UploadDir     string
	MaxUploadSize int64
}

// OCRConfig holds text-extraction configuration.
type OCRConfig struct {
	Tesseract   string
	Language    string
	TessdataDir string
	PSM         int
	OEM         int
	Timeout     time.Duration
}

// LLMConfig holds structuring-engine configuration.
type LLMConfig struct {
	APIKey                string
	Model                 string
	BaseURL               string
	ExtractTemperature    float32
	SuggestionTemperature float32
	MaxOutputTokens       int
	Timeout               time.Duration
}

// RedisConfig holds progress-channel configuration. Addr empty means the
// in-memory channel is used instead.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// PipelineConfig holds orchestrator and worker-queue configuration.
type PipelineConfig struct {
	Workers     int
	QueueSize   int
	JobTimeout  time.Duration
	ProgressTTL time.Duration
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          getEnv("HTTP_ADDR", ":8080"),
			UploadDir:     getEnv("UPLOAD_DIR", os.TempDir()),
			MaxUploadSize: getEnvAsInt64("MAX_UPLOAD_BYTES", 10<<20),
		},
		OCR: OCRConfig{
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			Language:    getEnv("TESSERACT_LANG", "eng"),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			PSM:         getEnvAsInt("TESSERACT_PSM", 0),
			OEM:         getEnvAsInt("TESSERACT_OEM", 0),
			Timeout:     getEnvAsDuration("OCR_TIMEOUT", 60*time.Second),
		},
		LLM: LLMConfig{
			APIKey:                getEnv("GEMINI_API_KEY", ""),
			Model:                 getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			BaseURL:               getEnv("GEMINI_BASE_URL", ""),
			ExtractTemperature:    getEnvAsFloat32("GEMINI_EXTRACT_TEMPERATURE", 0.0),
			SuggestionTemperature: getEnvAsFloat32("GEMINI_SUGGESTION_TEMPERATURE", 0.7),
			MaxOutputTokens:       getEnvAsInt("GEMINI_MAX_OUTPUT_TOKENS", 4096),
			Timeout:               getEnvAsDuration("GEMINI_TIMEOUT", 45*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "menudig:"),
		},
		Pipeline: PipelineConfig{
			Workers:     getEnvAsInt("PIPELINE_WORKERS", 4),
			QueueSize:   getEnvAsInt("PIPELINE_QUEUE_SIZE", 256),
			JobTimeout:  getEnvAsDuration("PIPELINE_JOB_TIMEOUT", 3*time.Minute),
			ProgressTTL: getEnvAsDuration("PROGRESS_TTL", 5*time.Minute),
		},
	}
}

// Validate checks the loaded configuration for required settings.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required", nil)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", nil)
	}
	if c.Pipeline.ProgressTTL <= 0 {
		return NewAppError("CONFIG_ERROR", "PROGRESS_TTL must be positive", nil)
	}
	return nil
}

// Helper functions for environment variable parsing.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
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
