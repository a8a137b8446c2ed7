//go:build integration

package manager

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// buildTestBinary builds the fake llama server used for subprocess tests and returns its path.
func buildTestBinary(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "fake_llama_server")
	cmd := exec.Command("go", "build", "-o", bin, "./testdata/fake_llama_server.go")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build fake server: %v: %s", err, string(out))
	}
	return bin
}

func TestSpawnAdapter_StartGenerateClose(t *testing.T) {
	bin := buildTestBinary(t)
	pub := NewMemoryPublisher()
	a := NewSpawnAdapter(ManagerConfig{
		LlamaBin:       bin,
		LlamaPortStart: 31000,
		LlamaPortEnd:   31050,
		Publisher:      pub,
	}).(*spawnAdapter)

	sess, err := a.Start(testCtx(t), "m1.gguf", InferParams{ContextSize: 1024})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if pid, _, ok := a.getProcInfo("m1.gguf"); !ok || pid <= 0 {
		t.Fatalf("process not tracked")
	}
	var b strings.Builder
	if _, err := sess.Generate(testCtx(t), "echo these words", func(tok string) error {
		b.WriteString(tok)
		return nil
	}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := strings.TrimSpace(b.String()); got != "echo these words" {
		t.Fatalf("got %q", got)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, _, ok := a.getProcInfo("m1.gguf"); ok {
		t.Fatalf("process still tracked after Close")
	}
	for _, name := range []string{EventSpawnStart, EventSpawnReady, EventSpawnStop} {
		if !pub.Has(name) {
			t.Fatalf("missing %s in %v", name, pub.Names())
		}
	}
}

func TestSpawnAdapter_EarlyExit(t *testing.T) {
	bin, err := exec.LookPath("false")
	if err != nil {
		t.Skip("no false binary")
	}
	pub := NewMemoryPublisher()
	a := NewSpawnAdapter(ManagerConfig{LlamaBin: bin, Publisher: pub})
	if _, err := a.Start(testCtx(t), "m.gguf", InferParams{}); err == nil {
		t.Fatalf("expected error due to early exit")
	}
	if !pub.Has(EventSpawnStart) || !pub.Has(EventSpawnExit) {
		t.Fatalf("expected spawn_start and spawn_exit, got %v", pub.Names())
	}
}

func TestSpawnAdapter_MissingBinary(t *testing.T) {
	a := NewSpawnAdapter(ManagerConfig{LlamaBin: filepath.Join(t.TempDir(), "missing")})
	if _, err := a.Start(testCtx(t), "m.gguf", InferParams{}); !IsDependencyUnavailable(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestManager_SpawnRuntimeEndToEnd(t *testing.T) {
	bin := buildTestBinary(t)
	dir := t.TempDir()
	writeGGUF(t, dir, "m.gguf", 64)
	m := NewWithConfig(ManagerConfig{
		ModelsDir:         dir,
		ModelID:           "m.gguf",
		LlamaBin:          bin,
		LlamaReadyTimeout: 10 * time.Second,
		Memory:            FixedMemory(16 * GiB),
	})
	defer m.Close()
	if _, err := m.RequestLoad(); err != nil {
		t.Fatalf("RequestLoad: %v", err)
	}
	waitState(t, m, StateReady)
	out, err := m.Infer(testCtx(t), "hello there")
	if err != nil || strings.TrimSpace(out) != "hello there" {
		t.Fatalf("Infer = %q, %v", out, err)
	}
}
