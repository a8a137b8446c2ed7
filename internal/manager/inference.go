package manager

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Infer runs prompt against the loaded model and returns the generated text.
// It fails fast with ErrModelNotReady unless the model is ready; it never
// waits for a load. Panics inside the runtime are returned as errors.
func (m *Manager) Infer(ctx context.Context, prompt string) (out string, err error) {
	if !m.Ready() {
		return "", ErrModelNotReady
	}
	release, err := m.beginGeneration(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	// An unload or Close may have started while we waited for the slot.
	gctx, gcancel := context.WithCancel(ctx)
	defer gcancel()
	m.mu.Lock()
	sess := m.session
	ready := m.state == StateReady && !m.closed
	if ready && sess != nil {
		m.genCancel = gcancel
	}
	m.mu.Unlock()
	if !ready || sess == nil {
		return "", ErrModelNotReady
	}
	defer func() {
		m.mu.Lock()
		m.genCancel = nil
		m.mu.Unlock()
	}()

	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Str("event", "inference_panic").Interface("panic", r).Msg("recovered panic in inference")
			out, err = "", fmt.Errorf("inference panic: %v", r)
		}
	}()

	start := time.Now()
	var b strings.Builder
	final, err := sess.Generate(gctx, prompt, func(tok string) error {
		b.WriteString(tok)
		return nil
	})
	if err != nil {
		return "", err
	}
	m.log.Debug().Str("event", "inference_done").Dur("took", time.Since(start)).Str("finish_reason", final.FinishReason).Msg("inference complete")
	if final.Content != "" {
		return final.Content, nil
	}
	return b.String(), nil
}

// beginGeneration acquires the single in-flight slot. Returns a release func
// to be deferred.
func (m *Manager) beginGeneration(ctx context.Context) (func(), error) {
	select {
	case m.genCh <- struct{}{}:
		return func() { <-m.genCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	}
}

// cancelGeneration aborts the inference currently holding the slot, if any.
func (m *Manager) cancelGeneration() {
	m.mu.Lock()
	cancel := m.genCancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
