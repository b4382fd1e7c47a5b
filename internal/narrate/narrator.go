// Package narrate turns a finished decision into audit-trail prose.
// Narration never changes the decision; when a model is unavailable the
// deterministic template is used instead.
package narrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
)

const (
	SourceOpenAI   = "openai"
	SourceGemini   = "gemini"
	SourceTemplate = "template"
)

// Narrator produces free text for a processed invoice.
type Narrator interface {
	Narrate(ctx context.Context, st *entity.ProcessingState) (string, error)
	Name() string
}

// Result is the narration outcome. Err is set when the fallback was used because
// the configured narrator failed.
type Result struct {
	Text   string
	Source string
	Err    error
}

// Narrate asks n for prose and falls back to the template on any failure or empty answer.
// A nil n goes straight to the template.
func Narrate(ctx context.Context, n Narrator, st *entity.ProcessingState, logger *slog.Logger) Result {
	if logger == nil {
		logger = slog.Default()
	}
	if n == nil {
		return Result{Text: Fallback(st), Source: SourceTemplate}
	}

	text, err := n.Narrate(ctx, st)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty narrative")
	}
	if err != nil {
		wrapped := fmt.Errorf("%w: %s: %v", common.ErrNarrationFailure, n.Name(), err)
		logger.Warn("narrate.fallback",
			"narrator", n.Name(),
			"invoice", st.InvoiceID(),
			"run_id", common.RunIDFromContext(ctx),
			"error", err,
		)
		return Result{Text: Fallback(st), Source: SourceTemplate, Err: wrapped}
	}
	return Result{Text: strings.TrimSpace(text), Source: n.Name()}
}

// New builds the narrator named by cfg.Provider.
func New(cfg common.NarrationConfig, logger *slog.Logger) (Narrator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", SourceTemplate:
		return TemplateNarrator{}, nil
	case SourceOpenAI:
		return NewOpenAINarrator(cfg, logger), nil
	case SourceGemini:
		return NewGeminiNarrator(cfg, logger)
	default:
		return nil, common.NewAppError("CONFIG_ERROR", "unknown narration provider "+cfg.Provider, common.ErrInvalidInput)
	}
}

// TemplateNarrator renders the deterministic narrative only.
type TemplateNarrator struct{}

func (TemplateNarrator) Name() string { return SourceTemplate }

func (TemplateNarrator) Narrate(_ context.Context, st *entity.ProcessingState) (string, error) {
	return Fallback(st), nil
}
