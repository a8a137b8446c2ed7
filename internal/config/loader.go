package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`

	ModelsDir         string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	ModelID           string `json:"model_id" yaml:"model_id" toml:"model_id"`
	ModelURL          string `json:"model_url" yaml:"model_url" toml:"model_url"`
	ModelSHA256       string `json:"model_sha256" yaml:"model_sha256" toml:"model_sha256"`
	ModelSizeBytes    int64  `json:"model_size_bytes" yaml:"model_size_bytes" toml:"model_size_bytes"`
	LoadAfterDownload bool   `json:"load_after_download" yaml:"load_after_download" toml:"load_after_download"`
	// AutoLoad loads an installed model at startup.
	AutoLoad bool `json:"auto_load" yaml:"auto_load" toml:"auto_load"`

	Runtime        string   `json:"runtime" yaml:"runtime" toml:"runtime"`
	LlamaBin       string   `json:"llama_bin" yaml:"llama_bin" toml:"llama_bin"`
	LlamaThreads   int      `json:"llama_threads" yaml:"llama_threads" toml:"llama_threads"`
	LlamaNGL       int      `json:"llama_ngl" yaml:"llama_ngl" toml:"llama_ngl"`
	LlamaPortStart int      `json:"llama_port_start" yaml:"llama_port_start" toml:"llama_port_start"`
	LlamaPortEnd   int      `json:"llama_port_end" yaml:"llama_port_end" toml:"llama_port_end"`
	LlamaExtraArgs []string `json:"llama_extra_args" yaml:"llama_extra_args" toml:"llama_extra_args"`
	ServerURL      string   `json:"server_url" yaml:"server_url" toml:"server_url"`
	ServerAPIKey   string   `json:"server_api_key" yaml:"server_api_key" toml:"server_api_key"`

	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Temperature float64 `json:"temperature" yaml:"temperature" toml:"temperature"`

	ProbeTimeoutMS int `json:"probe_timeout_ms" yaml:"probe_timeout_ms" toml:"probe_timeout_ms"`
	// DebounceMS delays completion requests; nil selects the default, 0 disables.
	DebounceMS     *int `json:"debounce_ms" yaml:"debounce_ms" toml:"debounce_ms"`
	DrainTimeoutMS int  `json:"drain_timeout_ms" yaml:"drain_timeout_ms" toml:"drain_timeout_ms"`

	MonitorOnStart   bool     `json:"monitor_on_start" yaml:"monitor_on_start" toml:"monitor_on_start"`
	DisabledFeatures []string `json:"disabled_features" yaml:"disabled_features" toml:"disabled_features"`
	CORSOrigins      []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Defaults applied by WithDefaults.
const (
	DefaultAddr           = "127.0.0.1:7777"
	DefaultLogLevel       = "info"
	DefaultModelID        = "phi-2.Q4_K_M.gguf"
	DefaultRuntime        = "spawn"
	DefaultMaxTokens      = 256
	DefaultProbeTimeoutMS = 150
	DefaultDebounceMS     = 150
	DefaultDrainTimeoutMS = 5000
)

// configFile is the path of the config file under the XDG config dirs.
const configFile = "overlayd/config.yaml"

// DefaultModelsDir is the per-user data directory for downloaded models.
func DefaultModelsDir() string {
	return filepath.Join(xdg.DataHome, "overlayd", "models")
}

// FindConfigFile returns the first existing config file in the XDG config
// search path, or "" if there is none.
func FindConfigFile() string {
	p, err := xdg.SearchConfigFile(configFile)
	if err != nil {
		return ""
	}
	return p
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// ApplyEnv overlays OVERLAYD_* environment variables onto c. getenv is
// os.Getenv in production.
func (c Config) ApplyEnv(getenv func(string) string) Config {
	if v := strings.TrimSpace(getenv("OVERLAYD_ADDR")); v != "" {
		c.Addr = v
	}
	if v := strings.TrimSpace(getenv("OVERLAYD_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	return c
}

// WithDefaults fills every unspecified field.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir()
	}
	if c.ModelID == "" {
		c.ModelID = DefaultModelID
	}
	if c.Runtime == "" {
		c.Runtime = DefaultRuntime
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.ProbeTimeoutMS <= 0 {
		c.ProbeTimeoutMS = DefaultProbeTimeoutMS
	}
	if c.DebounceMS == nil {
		d := DefaultDebounceMS
		c.DebounceMS = &d
	}
	if c.DrainTimeoutMS <= 0 {
		c.DrainTimeoutMS = DefaultDrainTimeoutMS
	}
	return c
}

var knownFeatures = map[string]bool{
	"code_completion":      true,
	"text_suggestions":     true,
	"learning_suggestions": true,
	"translation":          true,
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Runtime {
	case "", "spawn", "server", "llama":
	default:
		return fmt.Errorf("runtime: unknown value %q (want spawn, server or llama)", c.Runtime)
	}
	if c.Runtime == "server" && c.ServerURL == "" {
		return fmt.Errorf("runtime server requires server_url")
	}
	if c.ModelID != "" && filepath.Base(c.ModelID) != c.ModelID {
		return fmt.Errorf("model_id must be a file name, got %q", c.ModelID)
	}
	if c.DebounceMS != nil && *c.DebounceMS < 0 {
		return fmt.Errorf("debounce_ms must not be negative")
	}
	if c.LlamaPortEnd < c.LlamaPortStart {
		return fmt.Errorf("llama_port_end %d is below llama_port_start %d", c.LlamaPortEnd, c.LlamaPortStart)
	}
	for _, f := range c.DisabledFeatures {
		if !knownFeatures[f] {
			return fmt.Errorf("disabled_features: unknown feature %q", f)
		}
	}
	return nil
}
