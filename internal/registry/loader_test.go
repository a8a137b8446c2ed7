package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, size int) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
}

func TestGGUFScanner_ScanFiltersGGUF(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"b.gguf", "A.GGUF", "not-model.txt", "model.bin"} {
		writeFile(t, dir, f, 4)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.gguf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	models, err := NewGGUFScanner().Scan(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %+v", models)
	}
	if models[0].ID != "A.GGUF" || models[1].ID != "b.gguf" {
		t.Fatalf("unexpected order: %s, %s", models[0].ID, models[1].ID)
	}
	if models[1].SizeBytes != 4 || !filepath.IsAbs(models[1].Path) {
		t.Fatalf("unexpected model: %+v", models[1])
	}
}

func TestGGUFScanner_ExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	if err := os.Mkdir(filepath.Join(home, "models"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(home, "models"), "x.gguf", 1)

	models, err := NewGGUFScanner().Scan("~/models")
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(models) != 1 || models[0].ID != "x.gguf" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestGGUFScanner_Find(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "phi-2.Q4_K_M.gguf", 10)
	s := NewGGUFScanner()

	m, err := s.Find(dir, "phi-2.Q4_K_M.gguf")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if m.SizeBytes != 10 || m.Quant != "Q4_K_M" || m.Name != "phi-2 (Q4_K_M)" {
		t.Fatalf("unexpected model: %+v", m)
	}
	for _, id := range []string{"missing.gguf", "", "../phi-2.Q4_K_M.gguf"} {
		if _, err := s.Find(dir, id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Find(%q) err = %v, want ErrNotFound", id, err)
		}
	}
}

func TestGGUFScanner_MissingDir(t *testing.T) {
	if _, err := NewGGUFScanner().Scan(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
