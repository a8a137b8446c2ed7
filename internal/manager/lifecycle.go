package manager

import (
	"errors"
	"fmt"
	"time"

	"overlayd/internal/registry"
)

// begin validates and applies the transition from want to next atomically.
// On success it reserves a background slot the caller must hand to goOp.
func (m *Manager) begin(op string, want, next State) (string, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", &TransitionError{Op: op, From: m.state, Reason: "manager closed"}
	}
	if m.state != want {
		from := m.state
		m.mu.Unlock()
		m.log.Debug().Str("event", "transition_rejected").Str("op", op).Str("state", string(from)).Msg("lifecycle request rejected")
		return "", &TransitionError{Op: op, From: from}
	}
	id := m.nextOpID()
	m.state = next
	m.lastOp = id
	m.err = ""
	if next == StateDownloading {
		m.progress = 0
	}
	st := m.statusLocked()
	m.wg.Add(1)
	m.mu.Unlock()
	m.publishState(st)
	return id, nil
}

// goOp runs fn in the background. A panic inside fn is recovered and leaves
// the model unavailable.
func (m *Manager) goOp(op, name string, fn func()) {
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.log.Error().Str("event", "op_panic").Str("op_id", op).Str("op", name).Interface("panic", r).Msg("recovered panic in lifecycle operation")
				m.update(func() {
					m.state = StateUnavailable
					m.err = fmt.Sprintf("%s: panic: %v", name, r)
				})
			}
		}()
		fn()
	}()
}

// RequestDownload starts fetching the configured model. Allowed only while
// unavailable.
func (m *Manager) RequestDownload() (string, error) {
	if m.cfg.ModelURL == "" {
		return "", &TransitionError{Op: "download", From: m.Snapshot().State, Reason: "no model url configured"}
	}
	op, err := m.begin("download", StateUnavailable, StateDownloading)
	if err != nil {
		return "", err
	}
	m.goOp(op, "download", func() { m.runDownload(op) })
	return op, nil
}

// RequestLoad loads the installed model into the runtime. Allowed only while
// unavailable.
func (m *Manager) RequestLoad() (string, error) {
	op, err := m.begin("load", StateUnavailable, StateLoading)
	if err != nil {
		return "", err
	}
	m.goOp(op, "load", func() { m.runLoad(op) })
	return op, nil
}

// RequestUnload releases the loaded model. Allowed only while ready.
func (m *Manager) RequestUnload() (string, error) {
	op, err := m.begin("unload", StateReady, StateUnloading)
	if err != nil {
		return "", err
	}
	m.goOp(op, "unload", func() { m.runUnload(op) })
	return op, nil
}

func (m *Manager) runDownload(op string) {
	start := time.Now()
	m.publish(EventDownloadStart, map[string]any{"op_id": op, "url": m.cfg.ModelURL})
	m.log.Info().Str("event", EventDownloadStart).Str("op_id", op).Str("model", m.cfg.ModelID).Msg("downloading model")

	path, err := m.download(m.ctx, op)
	if err != nil {
		derr := &DownloadError{ModelID: m.cfg.ModelID, Err: err}
		m.log.Error().Str("event", EventDownloadFailed).Str("op_id", op).Err(err).Msg("model download failed")
		m.publish(EventDownloadFailed, map[string]any{"op_id": op, "error": derr.Error()})
		m.update(func() {
			m.state = StateUnavailable
			m.progress = 0
			m.err = derr.Error()
		})
		return
	}
	m.log.Info().Str("event", EventDownloadDone).Str("op_id", op).Str("path", path).Dur("took", time.Since(start)).Msg("model downloaded")
	m.publish(EventDownloadDone, map[string]any{"op_id": op, "path": path})

	if m.cfg.LoadAfterDownload {
		m.update(func() {
			m.installed = true
			m.progress = 1
			m.state = StateLoading
		})
		m.runLoad(op)
		return
	}
	m.update(func() {
		m.installed = true
		m.progress = 1
		m.state = StateUnavailable
	})
}

func (m *Manager) reportProgress(op string, p float64) {
	m.mu.Lock()
	m.progress = p
	m.mu.Unlock()
	m.publish(EventDownloadProgress, map[string]any{"op_id": op, "progress": p})
}

func (m *Manager) runLoad(op string) {
	start := time.Now()
	m.publish(EventLoadStart, map[string]any{"op_id": op})

	sess, budget, err := m.load(op)
	if err != nil {
		lerr := &LoadError{ModelID: m.cfg.ModelID, Err: err}
		m.log.Error().Str("event", EventLoadFailed).Str("op_id", op).Err(err).Msg("model load failed")
		m.publish(EventLoadFailed, map[string]any{"op_id": op, "error": lerr.Error()})
		m.update(func() {
			m.state = StateUnavailable
			m.budget = budget
			m.err = lerr.Error()
		})
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = sess.Close()
		return
	}
	m.session = sess
	m.state = StateReady
	m.installed = true
	m.budget = budget
	st := m.statusLocked()
	m.mu.Unlock()

	m.log.Info().Str("event", EventLoadReady).Str("op_id", op).Str("tier", string(budget.Tier)).Int("ctx", budget.ContextSize).Dur("took", time.Since(start)).Msg("model ready")
	m.publish(EventLoadReady, map[string]any{"op_id": op, "tier": string(budget.Tier), "ctx": budget.ContextSize})
	m.publishState(st)
}

// load resolves the model file, checks it against the memory tier and starts
// the runtime.
func (m *Manager) load(op string) (InferSession, Budget, error) {
	budget := DetectBudget(m.memory)
	if m.adapter == nil {
		return nil, budget, ErrDependencyUnavailable("no runtime adapter for " + m.cfg.Runtime)
	}
	mdl, err := m.scanner.Find(m.cfg.ModelsDir, m.cfg.ModelID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return nil, budget, ErrModelNotFound(m.cfg.ModelID)
		}
		return nil, budget, err
	}
	if mdl.SizeBytes > budget.CeilingBytes {
		return nil, budget, fmt.Errorf("%w: %d bytes > %d (tier %s)", ErrModelTooLarge, mdl.SizeBytes, budget.CeilingBytes, budget.Tier)
	}
	params := m.cfg.Params
	params.ContextSize = budget.ContextSize
	m.log.Info().Str("event", EventLoadStart).Str("op_id", op).Str("path", mdl.Path).Str("tier", string(budget.Tier)).Msg("loading model")
	sess, err := m.adapter.Start(m.ctx, mdl.Path, params)
	if err != nil {
		if sess != nil {
			_ = sess.Close()
		}
		return nil, budget, err
	}
	return sess, budget, nil
}

func (m *Manager) runUnload(op string) {
	m.publish(EventUnloadStart, map[string]any{"op_id": op})

	// Taking the inference slot waits for the in-flight generation to finish.
	// Past the drain timeout the generation is cancelled, but the session is
	// still only closed once it has returned.
	t := time.NewTimer(m.cfg.DrainTimeout)
	select {
	case m.genCh <- struct{}{}:
		t.Stop()
	case <-t.C:
		m.log.Warn().Str("event", EventUnloadTimeout).Str("op_id", op).Dur("timeout", m.cfg.DrainTimeout).Msg("inference still running; cancelling it")
		m.publish(EventUnloadTimeout, map[string]any{"op_id": op})
		m.cancelGeneration()
		m.genCh <- struct{}{}
	}

	m.mu.Lock()
	sess := m.session
	m.session = nil
	m.mu.Unlock()
	if sess != nil {
		if err := sess.Close(); err != nil {
			m.log.Warn().Str("event", "session_close_failed").Str("op_id", op).Err(err).Msg("closing session failed")
		}
	}
	<-m.genCh
	m.update(func() { m.state = StateUnavailable })
	m.log.Info().Str("event", EventUnloadDone).Str("op_id", op).Msg("model unloaded")
	m.publish(EventUnloadDone, map[string]any{"op_id": op})
}
