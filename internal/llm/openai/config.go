package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

// Config for the OpenAI-compatible extraction client.
type Config struct {
	APIKey          string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL         string        // default https://api.openai.com/v1
	Model           string        // e.g., "gpt-4o-mini"
	Temperature     float32       // 0 keeps extraction deterministic
	MaxTokens       int           // default 4096
	Timeout         time.Duration // http client timeout
	DefaultCurrency string        // default GBP
	LenientOptional bool          // drop bad optionals and re-validate instead of failing
}

// ConfigFrom maps the application LLM settings onto a client Config.
func ConfigFrom(c common.LLMConfig) Config {
	return Config{
		APIKey:          c.APIKey,
		BaseURL:         c.BaseURL,
		Model:           c.Model,
		Temperature:     c.Temperature,
		Timeout:         c.Timeout,
		LenientOptional: true,
	}
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = constants.DefaultCurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}
