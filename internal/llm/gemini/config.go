package gemini

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Config for the Gemini structuring client.
type Config struct {
	APIKey  string // if empty, falls back to env GEMINI_API_KEY
	Model   string // e.g., "gemini-2.5-flash"
	BaseURL string // default https://generativelanguage.googleapis.com/v1beta

	// ExtractTemperature governs the structuring request; kept low so the
	// extracted names, prices, and categories stay literal.
	ExtractTemperature float32
	// SuggestionTemperature governs the best-effort description pass, where
	// limited creative variance is allowed.
	SuggestionTemperature float32

	MaxOutputTokens int
	Timeout         time.Duration // http client timeout
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.SuggestionTemperature <= 0 {
		cfg.SuggestionTemperature = 0.7
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger,
	}
}
