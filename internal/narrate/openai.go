package narrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
)

// OpenAINarrator writes narratives with a chat completion model.
type OpenAINarrator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

func NewOpenAINarrator(cfg common.NarrationConfig, logger *slog.Logger) *OpenAINarrator {
	if logger == nil {
		logger = slog.Default()
	}
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	oc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAINarrator{
		client:  openai.NewClientWithConfig(oc),
		model:   model,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

func (n *OpenAINarrator) Name() string { return SourceOpenAI }

func (n *OpenAINarrator) Narrate(ctx context.Context, st *entity.ProcessingState) (string, error) {
	ctx, cancel := common.WithTimeout(ctx, n.timeout)
	defer cancel()

	start := time.Now()
	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       n.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: UserPrompt(st)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in completion response")
	}

	n.logger.Info("narrate.openai.ok",
		"invoice", st.InvoiceID(),
		"model", n.model,
		"tokens", resp.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
