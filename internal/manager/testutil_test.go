package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// writeGGUF creates a model file of size bytes starting with the GGUF magic.
func writeGGUF(t *testing.T, dir, name string, size int) string {
	t.Helper()
	if size < len(ggufMagic) {
		size = len(ggufMagic)
	}
	b := make([]byte, size)
	copy(b, ggufMagic)
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return p
}

// fakeAdapter is a lightweight in-memory adapter used for tests.
type fakeAdapter struct {
	mu         sync.Mutex
	startErr   error
	startPanic bool
	tokens     []string
	genErr     error
	genPanic   bool
	// startGate, when non-nil, holds Start until closed.
	startGate chan struct{}
	// block, when non-nil, holds Generate until closed or ctx is done.
	block chan struct{}
	// ignoreCtx makes a blocked Generate wait for block alone.
	ignoreCtx bool
	entered   chan struct{}
	params    InferParams
	path      string
	starts    int
	closed    int
	// generating counts Generate calls in progress; overlap records a Close
	// issued while one was running.
	generating int
	overlap    bool
}

func (f *fakeAdapter) Start(_ context.Context, modelPath string, params InferParams) (InferSession, error) {
	if f.startGate != nil {
		<-f.startGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startPanic {
		panic("runtime exploded")
	}
	f.starts++
	f.path = modelPath
	f.params = params
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &fakeSession{f: f}, nil
}

func (f *fakeAdapter) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *fakeAdapter) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeSession struct{ f *fakeAdapter }

func (f *fakeAdapter) overlapped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlap
}

func (s *fakeSession) Generate(ctx context.Context, prompt string, onToken func(string) error) (FinalResult, error) {
	s.f.mu.Lock()
	s.f.generating++
	s.f.mu.Unlock()
	defer func() {
		s.f.mu.Lock()
		s.f.generating--
		s.f.mu.Unlock()
	}()
	if s.f.entered != nil {
		s.f.entered <- struct{}{}
	}
	if s.f.genPanic {
		panic("generate exploded")
	}
	if s.f.block != nil && s.f.ignoreCtx {
		<-s.f.block
	} else if s.f.block != nil {
		select {
		case <-s.f.block:
		case <-ctx.Done():
			return FinalResult{}, ctx.Err()
		}
	}
	if s.f.genErr != nil {
		return FinalResult{}, s.f.genErr
	}
	for _, t := range s.f.tokens {
		if err := onToken(t); err != nil {
			return FinalResult{}, err
		}
	}
	return FinalResult{FinishReason: "stop"}, nil
}

func (s *fakeSession) Close() error {
	s.f.mu.Lock()
	s.f.closed++
	if s.f.generating > 0 {
		s.f.overlap = true
	}
	s.f.mu.Unlock()
	return nil
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

// waitState polls until the manager reaches want or the test times out.
func waitState(t *testing.T, m *Manager, want State) Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st := m.Snapshot()
		if st.State == want {
			return st
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", m.Snapshot().State, want)
	return Status{}
}

// waitEvent polls until pub has seen name.
func waitEvent(t *testing.T, pub *MemoryPublisher, name string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if pub.Has(name) {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("event %q not published; got %v", name, pub.Names())
}

// newTestManager builds a manager over a temp models dir with a fake adapter
// and plenty of memory (tier A).
func newTestManager(t *testing.T, a *fakeAdapter, mutate func(*ManagerConfig)) (*Manager, *MemoryPublisher, string) {
	t.Helper()
	dir := t.TempDir()
	pub := NewMemoryPublisher()
	cfg := ManagerConfig{
		ModelsDir:    dir,
		ModelID:      "tiny.Q4_0.gguf",
		DrainTimeout: 200 * time.Millisecond,
		RetryDelay:   time.Millisecond,
		Adapter:      a,
		Memory:       FixedMemory(16 * GiB),
		Publisher:    pub,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m := NewWithConfig(cfg)
	t.Cleanup(func() { _ = m.Close() })
	return m, pub, dir
}

var errBoom = errors.New("boom")
