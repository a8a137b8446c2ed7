package overlay

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"overlayd/internal/manager"
	"overlayd/internal/window"
)

const testModelID = "tiny.Q4_0.gguf"

// fakeDesk is a desktop whose foreground window and selection tests can change.
type fakeDesk struct {
	window.NullDesktop
	mu    sync.Mutex
	title string
	app   string
	sel   string
}

func (d *fakeDesk) set(title, app, sel string) {
	d.mu.Lock()
	d.title, d.app, d.sel = title, app, sel
	d.mu.Unlock()
}

func (d *fakeDesk) ForegroundWindow(context.Context) (window.Handle, error) { return "0x1", nil }

func (d *fakeDesk) WindowTitle(context.Context, window.Handle) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title, nil
}

func (d *fakeDesk) AppName(context.Context, window.Handle) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.app, nil
}

func (d *fakeDesk) AccessibleSelection(context.Context, window.Handle) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sel, nil
}

// fakeRuntime answers every prompt with reply.
type fakeRuntime struct{ reply string }

func (r fakeRuntime) Start(context.Context, string, manager.InferParams) (manager.InferSession, error) {
	return fakeSession(r), nil
}

type fakeSession struct{ reply string }

func (s fakeSession) Generate(ctx context.Context, _ string, onToken func(string) error) (manager.FinalResult, error) {
	if err := ctx.Err(); err != nil {
		return manager.FinalResult{}, err
	}
	if err := onToken(s.reply); err != nil {
		return manager.FinalResult{}, err
	}
	return manager.FinalResult{FinishReason: "stop"}, nil
}

func (fakeSession) Close() error { return nil }

type testEnv struct {
	o    *Overlay
	desk *fakeDesk
	reg  *prometheus.Registry
}

func newTestOverlay(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	b := make([]byte, 64)
	copy(b, "GGUF")
	if err := os.WriteFile(filepath.Join(dir, testModelID), b, 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	desk := &fakeDesk{}
	reg := prometheus.NewRegistry()
	o := New(Config{
		Desktop:      desk,
		DesktopName:  "test",
		ProbeTimeout: 100 * time.Millisecond,
		StepTimeout:  100 * time.Millisecond,
		Interval:     5 * time.Millisecond,
		Manager: manager.ManagerConfig{
			ModelsDir:    dir,
			ModelID:      testModelID,
			DrainTimeout: 200 * time.Millisecond,
			Adapter:      fakeRuntime{reply: "  fib = memoized  "},
			Memory:       manager.FixedMemory(16 * manager.GiB),
		},
		Registerer: reg,
		Logger:     zerolog.Nop(),
	})
	t.Cleanup(func() { _ = o.Close() })
	return testEnv{o: o, desk: desk, reg: reg}
}

func loadModel(t *testing.T, o *Overlay) {
	t.Helper()
	if _, err := o.RequestModelLoad(); err != nil {
		t.Fatalf("load: %v", err)
	}
	eventually(t, "model ready", o.Ready)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
