package selection

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"overlayd/internal/window"
)

const defaultStepTimeout = 250 * time.Millisecond

var errStrategyPanic = errors.New("strategy panicked")

// Extraction is the outcome of a successful Extract call.
type Extraction struct {
	Text     string
	Strategy string
	// Fallback is set when Text is the whole window text rather than a selection.
	Fallback bool
}

// Extractor tries strategies in priority order and returns the first
// non-empty result.
type Extractor struct {
	strategies  []Strategy
	stepTimeout time.Duration
	log         zerolog.Logger
}

// NewExtractor builds an Extractor. The order of strategies is the priority
// order. A non-positive stepTimeout selects the default per-strategy bound.
func NewExtractor(strategies []Strategy, stepTimeout time.Duration, log zerolog.Logger) *Extractor {
	if stepTimeout <= 0 {
		stepTimeout = defaultStepTimeout
	}
	return &Extractor{
		strategies:  append([]Strategy(nil), strategies...),
		stepTimeout: stepTimeout,
		log:         log.With().Str("component", "extractor").Logger(),
	}
}

// Extract returns the selected text of the window described by wc. The second
// result is false when every strategy missed.
func (e *Extractor) Extract(ctx context.Context, wc window.Context) (Extraction, bool) {
	if wc.Handle == "" {
		return Extraction{}, false
	}
	for _, s := range e.strategies {
		if ctx.Err() != nil {
			return Extraction{}, false
		}
		text, ok := e.try(ctx, s, wc.Handle)
		if !ok {
			continue
		}
		lc, _ := s.(lowConfidence)
		return Extraction{
			Text:     text,
			Strategy: s.Name(),
			Fallback: lc != nil && lc.LowConfidence(),
		}, true
	}
	return Extraction{}, false
}

type stepResult struct {
	text string
	err  error
}

// try runs one strategy in isolation, bounded by the step timeout even when
// the strategy ignores ctx. Errors and panics are absorbed.
func (e *Extractor) try(ctx context.Context, s Strategy, h window.Handle) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	// Buffered so a wedged strategy can still finish after we give up on it.
	out := make(chan stepResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.log.Warn().Str("event", "strategy_panic").Str("strategy", s.Name()).Interface("panic", r).Msg("selection strategy panicked")
				out <- stepResult{err: errStrategyPanic}
			}
		}()
		text, err := s.TryExtract(ctx, h)
		out <- stepResult{text: text, err: err}
	}()

	var res stepResult
	select {
	case res = <-out:
	case <-ctx.Done():
		e.log.Debug().Str("event", "strategy_timeout").Str("strategy", s.Name()).Dur("timeout", e.stepTimeout).Msg("selection strategy exceeded bound")
		return "", false
	}
	if res.err != nil {
		if !errors.Is(res.err, window.ErrUnsupported) && !errors.Is(res.err, errStrategyPanic) {
			e.log.Debug().Str("event", "strategy_error").Str("strategy", s.Name()).Err(res.err).Msg("selection strategy failed")
		}
		return "", false
	}
	if strings.TrimSpace(res.text) == "" {
		return "", false
	}
	return res.text, true
}
