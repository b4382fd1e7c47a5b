package narrate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiNarrator writes narratives with a Gemini model.
type GeminiNarrator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

func NewGeminiNarrator(cfg common.NarrationConfig, logger *slog.Logger) (*GeminiNarrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	key := cfg.GeminiAPIKey
	if key == "" {
		key = os.Getenv("GEMINI_API_KEY")
	}
	cc := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "gpt") {
		model = defaultGeminiModel
	}
	return &GeminiNarrator{client: client, model: model, timeout: cfg.Timeout, logger: logger}, nil
}

func (n *GeminiNarrator) Name() string { return SourceGemini }

func (n *GeminiNarrator) Narrate(ctx context.Context, st *entity.ProcessingState) (string, error) {
	ctx, cancel := common.WithTimeout(ctx, n.timeout)
	defer cancel()

	start := time.Now()
	resp, err := n.client.Models.GenerateContent(ctx, n.model, genai.Text(UserPrompt(st)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](temperature),
		MaxOutputTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	n.logger.Info("narrate.gemini.ok",
		"invoice", st.InvoiceID(),
		"model", n.model,
		"chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
