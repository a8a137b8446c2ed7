package manager

import (
	"time"

	"github.com/rs/zerolog"
)

// Runtime names accepted in ManagerConfig.Runtime.
const (
	RuntimeSpawn  = "spawn"
	RuntimeServer = "server"
	RuntimeLlama  = "llama"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultDrainTimeout     = 5 * time.Second
	defaultDownloadAttempts = 3
	defaultRetryDelay       = 5 * time.Second
	defaultReadyTimeout     = 30 * time.Second
	defaultLlamaBin         = "llama-server"
	defaultLlamaHost        = "127.0.0.1"
	defaultMaxTokens        = 256
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// ModelsDir holds downloaded model files.
	ModelsDir string
	// ModelID is the file name of the managed model inside ModelsDir.
	ModelID string
	// ModelURL is fetched by RequestDownload.
	ModelURL string
	// Optional download verification.
	ModelSHA256    string
	ModelSizeBytes int64
	// LoadAfterDownload chains a load onto a successful download.
	LoadAfterDownload bool

	DrainTimeout     time.Duration
	DownloadAttempts int
	RetryDelay       time.Duration

	// Runtime selects the inference backend: spawn (default), server or llama.
	Runtime string
	// Spawn runtime: llama-server binary and listening parameters.
	LlamaBin          string
	LlamaHost         string
	LlamaPortStart    int
	LlamaPortEnd      int
	LlamaThreads      int
	LlamaNGL          int
	LlamaExtraArgs    []string
	LlamaReadyTimeout time.Duration
	// Server runtime: an already running OpenAI-compatible server.
	ServerURL    string
	ServerAPIKey string
	// Params are the generation parameters for every completion.
	Params InferParams

	// Collaborators. Nil values select production implementations.
	Memory    HostMemory
	Adapter   InferenceAdapter
	Fetcher   Fetcher
	Publisher EventPublisher
	Logger    zerolog.Logger
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = defaultDrainTimeout
	}
	if c.DownloadAttempts <= 0 {
		c.DownloadAttempts = defaultDownloadAttempts
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	} else if c.RetryDelay == 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.Runtime == "" {
		c.Runtime = RuntimeSpawn
	}
	if c.LlamaBin == "" {
		c.LlamaBin = defaultLlamaBin
	}
	if c.LlamaHost == "" {
		c.LlamaHost = defaultLlamaHost
	}
	if c.LlamaReadyTimeout <= 0 {
		c.LlamaReadyTimeout = defaultReadyTimeout
	}
	if c.Params.MaxTokens <= 0 {
		c.Params.MaxTokens = defaultMaxTokens
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	if c.Fetcher == nil {
		c.Fetcher = NewHTTPFetcher(nil)
	}
	return c
}

// newAdapter builds the runtime named by cfg.Runtime.
func newAdapter(cfg ManagerConfig) (InferenceAdapter, error) {
	switch cfg.Runtime {
	case RuntimeSpawn:
		return NewSpawnAdapter(cfg), nil
	case RuntimeServer:
		if cfg.ServerURL == "" {
			return nil, ErrDependencyUnavailable("server runtime requires a server url")
		}
		return NewServerAdapter(cfg.ServerURL, cfg.ServerAPIKey, 2*time.Minute, 5*time.Second, cfg.Logger), nil
	case RuntimeLlama:
		return NewLlamaAdapter(cfg.LlamaThreads), nil
	default:
		return nil, ErrDependencyUnavailable("unknown runtime: " + cfg.Runtime)
	}
}
