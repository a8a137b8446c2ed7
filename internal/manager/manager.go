package manager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"overlayd/internal/registry"
)

// Manager owns the single model: its lifecycle state, the runtime session and
// the one in-flight inference slot.
//
// All state transitions happen under mu. Long-running work (download, load,
// unload) runs on background goroutines tracked by wg and reports through the
// EventPublisher.
type Manager struct {
	mu        sync.RWMutex
	state     State
	progress  float64
	installed bool
	budget    Budget
	err       string
	lastOp    string
	session   InferSession
	closed    bool

	// genCh has capacity one: a token in it means an inference (or a drain)
	// holds the model.
	genCh chan struct{}
	// genCancel aborts the inference holding genCh. Guarded by mu.
	genCancel context.CancelFunc

	cfg       ManagerConfig
	adapter   InferenceAdapter
	fetcher   Fetcher
	memory    HostMemory
	scanner   *registry.GGUFScanner
	publisher EventPublisher
	log       zerolog.Logger

	opSeq  atomic.Uint64
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWithConfig constructs a Manager from ManagerConfig. An adapter that cannot
// be built is not fatal: loads fail with a dependency error instead.
func NewWithConfig(cfg ManagerConfig) *Manager {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		state:     StateUnavailable,
		genCh:     make(chan struct{}, 1),
		cfg:       cfg,
		fetcher:   cfg.Fetcher,
		memory:    cfg.Memory,
		scanner:   registry.NewGGUFScanner(),
		publisher: cfg.Publisher,
		log:       cfg.Logger.With().Str("component", "manager").Logger(),
		ctx:       ctx,
		cancel:    cancel,
	}
	m.adapter = cfg.Adapter
	if m.adapter == nil {
		a, err := newAdapter(cfg)
		if err != nil {
			m.log.Warn().Str("event", "adapter_unavailable").Str("runtime", cfg.Runtime).Err(err).Msg("runtime not available")
		}
		m.adapter = a
	}
	if _, err := m.scanner.Find(cfg.ModelsDir, cfg.ModelID); err == nil {
		m.installed = true
	}
	m.budget = DetectBudget(m.memory)
	return m
}

// Snapshot returns the current status.
func (m *Manager) Snapshot() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	return Status{
		State:     m.state,
		Progress:  m.progress,
		Tier:      m.budget.Tier,
		ModelID:   m.cfg.ModelID,
		Installed: m.installed,
		Runtime:   m.cfg.Runtime,
		LastOp:    m.lastOp,
		Err:       m.err,
	}
}

// Ready reports whether a model is loaded and accepting inference.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateReady && m.session != nil
}

// Budget returns the memory budget computed at construction or at the last load.
func (m *Manager) Budget() Budget {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.budget
}

// LlamaBuilt reports whether the in-process llama runtime is compiled in.
func LlamaBuilt() bool { return llamaBuilt }

// Close aborts background operations, releases the loaded model and stops any
// runtime processes. It is safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.cancelGeneration()
	m.wg.Wait()

	// The session is only released once no inference holds it.
	m.genCh <- struct{}{}
	m.mu.Lock()
	sess := m.session
	m.session = nil
	m.state = StateUnavailable
	m.mu.Unlock()

	var err error
	if sess != nil {
		err = sess.Close()
	}
	<-m.genCh
	if sa, ok := m.adapter.(stopAller); ok {
		sa.StopAll()
	}
	return err
}

func (m *Manager) nextOpID() string {
	return fmt.Sprintf("op-%d", m.opSeq.Add(1))
}

// publish sends a lifecycle event. Never call with mu held.
func (m *Manager) publish(name string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	m.publisher.Publish(Event{Name: name, ModelID: m.cfg.ModelID, Fields: fields})
}

// publishState emits a state event carrying st.
func (m *Manager) publishState(st Status) {
	m.publish(EventState, map[string]any{
		"state":     string(st.State),
		"progress":  st.Progress,
		"tier":      string(st.Tier),
		"installed": st.Installed,
		"error":     st.Err,
	})
}

// update mutates state under the lock and publishes the resulting status.
func (m *Manager) update(mutate func()) Status {
	m.mu.Lock()
	mutate()
	st := m.statusLocked()
	m.mu.Unlock()
	m.publishState(st)
	return st
}
