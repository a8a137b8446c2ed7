package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nmodels_dir: /tmp\nmodel_id: m1.gguf\ndebounce_ms: 0\ndisabled_features: [translation]\nllama_extra_args: [\"--mlock\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.ModelsDir != "/tmp" || cfg.ModelID != "m1.gguf" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.DebounceMS == nil || *cfg.DebounceMS != 0 {
		t.Fatalf("explicit zero debounce lost: %v", cfg.DebounceMS)
	}
	if len(cfg.DisabledFeatures) != 1 || cfg.DisabledFeatures[0] != "translation" || cfg.LlamaExtraArgs[0] != "--mlock" {
		t.Fatalf("unexpected lists: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","models_dir":"/m","runtime":"server","server_url":"http://127.0.0.1:8080","auto_load":true}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.Runtime != "server" || cfg.ServerURL != "http://127.0.0.1:8080" || !cfg.AutoLoad {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nmodel_url=\"https://example.com/m.gguf\"\nmodel_size_bytes=1024\nprobe_timeout_ms=90\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.ModelURL != "https://example.com/m.gguf" || cfg.ModelSizeBytes != 1024 || cfg.ProbeTimeoutMS != 90 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	bad := writeTempFile(t, d, "bad.json", "{")
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "bad.json") {
		t.Fatalf("expected parse error naming the file, got %v", err)
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg.Addr != DefaultAddr || cfg.Runtime != DefaultRuntime || cfg.ModelID != DefaultModelID {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.DebounceMS == nil || *cfg.DebounceMS != DefaultDebounceMS || cfg.ProbeTimeoutMS != DefaultProbeTimeoutMS {
		t.Fatalf("unexpected timing defaults: %+v", cfg)
	}
	if !strings.HasSuffix(cfg.ModelsDir, filepath.Join("overlayd", "models")) {
		t.Fatalf("models dir = %q", cfg.ModelsDir)
	}
	zero := 0
	if got := (Config{DebounceMS: &zero}).WithDefaults(); *got.DebounceMS != 0 {
		t.Fatalf("explicit zero debounce overridden")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{"OVERLAYD_ADDR": "0.0.0.0:1", "OVERLAYD_LOG_LEVEL": " debug "}
	cfg := Config{Addr: ":2", LogLevel: "info"}.ApplyEnv(func(k string) string { return env[k] })
	if cfg.Addr != "0.0.0.0:1" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	cfg = Config{Addr: ":2"}.ApplyEnv(func(string) string { return "" })
	if cfg.Addr != ":2" {
		t.Fatalf("empty env overrode addr")
	}
}

func TestValidate(t *testing.T) {
	neg := -1
	cases := map[string]Config{
		"runtime":        {Runtime: "gpu"},
		"server url":     {Runtime: "server"},
		"model path":     {ModelID: "../x.gguf"},
		"debounce":       {DebounceMS: &neg},
		"ports":          {LlamaPortStart: 10, LlamaPortEnd: 5},
		"feature":        {DisabledFeatures: []string{"telepathy"}},
	}
	for name, c := range cases {
		if err := c.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if err := (Config{}).WithDefaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}
