package manager

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// serverAdapter talks to an already running llama.cpp (or other
// OpenAI-compatible) server. The model path is passed as the model name.
type serverAdapter struct {
	baseURL        string
	apiKey         string
	reqTimeout     time.Duration
	connectTimeout time.Duration
	httpClient     *http.Client
	log            zerolog.Logger
}

// NewServerAdapter constructs a server-backed adapter.
func NewServerAdapter(baseURL, apiKey string, reqTimeout, connectTimeout time.Duration, log zerolog.Logger) InferenceAdapter {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout=0: every request carries a context deadline instead.
	return &serverAdapter{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		reqTimeout:     reqTimeout,
		connectTimeout: connectTimeout,
		httpClient:     &http.Client{Transport: tr, Timeout: 0},
		log:            log.With().Str("adapter", "llama_server").Logger(),
	}
}

type serverSession struct {
	a      *serverAdapter
	model  string
	params InferParams
}

// Start verifies the server is reachable so that a load fails early rather
// than on the first completion.
func (a *serverAdapter) Start(ctx context.Context, modelPath string, params InferParams) (InferSession, error) {
	if !healthy(ctx, a.httpClient, a.baseURL, a.connectTimeout+time.Second) {
		return nil, errors.New("llama server not reachable at " + a.baseURL)
	}
	return &serverSession{a: a, model: strings.TrimSpace(modelPath), params: params}, nil
}

func (s *serverSession) Generate(ctx context.Context, prompt string, onToken func(string) error) (FinalResult, error) {
	if s.a.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.a.reqTimeout)
		defer cancel()
	}
	return streamCompletion(ctx, s.a.httpClient, s.a.baseURL, s.a.apiKey, newCompletionRequest(s.model, prompt, s.params), onToken, s.a.log)
}

func (s *serverSession) Close() error { return nil }
