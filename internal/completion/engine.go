package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"overlayd/internal/analyzer"
)

// Model is the slice of the lifecycle manager the engine needs.
type Model interface {
	Ready() bool
	Infer(ctx context.Context, prompt string) (string, error)
}

// Engine builds prompts and runs them against a Model.
type Engine struct {
	model Model
	log   zerolog.Logger
}

func NewEngine(model Model, log zerolog.Logger) *Engine {
	return &Engine{model: model, log: log.With().Str("component", "engine").Logger()}
}

// BuildPrompt renders the prompt for c. The second result is false when no
// template applies to the context's type and features.
func BuildPrompt(c analyzer.Context) (string, bool) {
	f := c.Features
	switch c.Type {
	case analyzer.Code:
		switch {
		case f.Has(analyzer.CodeCompletion):
			if c.Language == "" {
				return "Complete the following code:\n" + c.Content, true
			}
			return fmt.Sprintf("Complete the following %s code:\n%s", c.Language, c.Content), true
		case f.Has(analyzer.LearningSuggestions):
			if c.Language == "" {
				return "Suggest learning resources for the following code:\n" + c.Content, true
			}
			return fmt.Sprintf("Suggest learning resources for %s:\n%s", c.Language, c.Content), true
		}
		return "", false
	default:
		switch {
		case f.Has(analyzer.TextSuggestions):
			return "Suggest improvements for the following text:\n" + c.Content, true
		case f.Has(analyzer.Translation):
			return "Translate the following text to English:\n" + c.Content, true
		case c.Type == analyzer.Web && f.Has(analyzer.LearningSuggestions):
			return "Suggest learning resources for the following topic:\n" + c.Content, true
		}
		return "", false
	}
}

// Label is the short human-readable name of the query BuildPrompt would issue.
func Label(c analyzer.Context) string {
	f := c.Features
	if c.Type == analyzer.Code {
		switch {
		case f.Has(analyzer.CodeCompletion):
			if c.Language == "" {
				return "Complete code"
			}
			return "Complete " + c.Language + " code"
		case f.Has(analyzer.LearningSuggestions):
			if c.Language == "" {
				return "Learning resources"
			}
			return "Learning resources for " + c.Language
		}
		return ""
	}
	switch {
	case f.Has(analyzer.TextSuggestions):
		return "Suggest improvements"
	case f.Has(analyzer.Translation):
		return "Translate to English"
	case c.Type == analyzer.Web && f.Has(analyzer.LearningSuggestions):
		return "Learning resources"
	}
	return ""
}

// GetCompletion produces the model's answer for c. It never blocks waiting for
// the model to become ready.
func (e *Engine) GetCompletion(ctx context.Context, c analyzer.Context) (string, error) {
	prompt, ok := BuildPrompt(c)
	if !ok {
		return "", ErrUnsupportedContext
	}
	if e.model == nil || !e.model.Ready() {
		return "", ErrModelNotReady
	}
	out, err := e.infer(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if KindOf(err) == KindModelNotReady {
			return "", err
		}
		e.log.Warn().Str("event", "inference_failed").Err(err).Msg("completion failed")
		if IsInferenceFailed(err) {
			return "", err
		}
		return "", &InferenceFailedError{Cause: err}
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &InferenceFailedError{Cause: errEmptyCompletion}
	}
	return out, nil
}

func (e *Engine) infer(ctx context.Context, prompt string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", &InferenceFailedError{Cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	return e.model.Infer(ctx, prompt)
}
