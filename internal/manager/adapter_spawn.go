package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// spawnAdapter runs one llama-server subprocess per model path and talks to it
// over its OpenAI-compatible HTTP API.
type spawnAdapter struct {
	cfg        ManagerConfig
	mu         sync.Mutex
	procs      map[string]*procInfo // key: modelPath
	httpClient *http.Client
	publisher  EventPublisher
	log        zerolog.Logger
}

type procInfo struct {
	cmd     *exec.Cmd
	baseURL string
	pid     int
	exited  chan struct{}
}

// NewSpawnAdapter constructs a subprocess-backed adapter from cfg's Llama* fields.
func NewSpawnAdapter(cfg ManagerConfig) InferenceAdapter {
	cfg = cfg.withDefaults()
	return &spawnAdapter{
		cfg:        cfg,
		procs:      make(map[string]*procInfo),
		httpClient: &http.Client{Timeout: 0},
		publisher:  cfg.Publisher,
		log:        cfg.Logger.With().Str("adapter", "llama_subprocess").Logger(),
	}
}

type spawnSession struct {
	a         *spawnAdapter
	modelPath string
	baseURL   string
	params    InferParams
	once      sync.Once
}

func (a *spawnAdapter) Start(ctx context.Context, modelPath string, params InferParams) (InferSession, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("modelPath is empty")
	}
	baseURL, err := a.ensureProcess(ctx, modelPath, params)
	if err != nil {
		return nil, err
	}
	return &spawnSession{a: a, modelPath: modelPath, baseURL: baseURL, params: params}, nil
}

func (s *spawnSession) Generate(ctx context.Context, prompt string, onToken func(string) error) (FinalResult, error) {
	return streamCompletion(ctx, s.a.httpClient, s.baseURL, "", newCompletionRequest("", prompt, s.params), onToken, s.a.log)
}

// Close stops the process serving this session.
func (s *spawnSession) Close() error {
	var err error
	s.once.Do(func() { err = s.a.Stop(s.modelPath) })
	return err
}

// ensureProcess starts (or reuses a healthy) llama-server for modelPath and
// waits until it answers health checks.
func (a *spawnAdapter) ensureProcess(ctx context.Context, modelPath string, params InferParams) (string, error) {
	if pid, base, ok := a.getProcInfo(modelPath); ok {
		if healthy(ctx, a.httpClient, base, time.Second) {
			return base, nil
		}
		a.log.Warn().Str("event", "unhealthy").Int("pid", pid).Str("model", modelPath).Msg("restarting llama-server")
		_ = a.Stop(modelPath)
	}

	host := a.cfg.LlamaHost
	var port int
	var err error
	if a.cfg.LlamaPortStart > 0 && a.cfg.LlamaPortEnd >= a.cfg.LlamaPortStart {
		port, err = pickPortInRange(host, a.cfg.LlamaPortStart, a.cfg.LlamaPortEnd)
	} else {
		port, err = pickFreePort(host)
	}
	if err != nil {
		return "", err
	}
	baseURL := fmt.Sprintf("http://%s:%d", host, port)

	args := []string{"-m", modelPath, "--host", host, "--port", strconv.Itoa(port)}
	if params.ContextSize > 0 {
		args = append(args, "-c", strconv.Itoa(params.ContextSize))
	}
	if a.cfg.LlamaNGL > 0 {
		args = append(args, "-ngl", strconv.Itoa(a.cfg.LlamaNGL))
	}
	if a.cfg.LlamaThreads > 0 {
		args = append(args, "-t", strconv.Itoa(a.cfg.LlamaThreads))
	}
	args = append(args, a.cfg.LlamaExtraArgs...)

	// The process must outlive ctx, so it is not bound to it.
	cmd := exec.Command(a.cfg.LlamaBin, args...)
	var stderr lockedBuffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return "", ErrDependencyUnavailable(fmt.Sprintf("start llama-server: %v", err))
	}
	pid := cmd.Process.Pid
	a.log.Info().Str("event", "start").Str("model", modelPath).Int("pid", pid).Str("host", host).Int("port", port).Msg("llama-server started")
	a.publisher.Publish(Event{Name: EventSpawnStart, ModelID: modelPath, Fields: map[string]any{"pid": pid, "host": host, "port": port}})

	p := &procInfo{cmd: cmd, baseURL: baseURL, pid: pid, exited: make(chan struct{})}
	waitErrCh := make(chan error, 1)
	go func() {
		waitErrCh <- cmd.Wait()
		close(p.exited)
	}()
	a.mu.Lock()
	a.procs[modelPath] = p
	a.mu.Unlock()

	deadline := time.NewTimer(a.cfg.LlamaReadyTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		if healthy(ctx, a.httpClient, baseURL, time.Second) {
			a.log.Info().Str("event", "ready").Str("model", modelPath).Int("pid", pid).Str("url", baseURL).Msg("llama-server ready")
			a.publisher.Publish(Event{Name: EventSpawnReady, ModelID: modelPath, Fields: map[string]any{"pid": pid, "url": baseURL}})
			return baseURL, nil
		}
		select {
		case werr := <-waitErrCh:
			a.forget(modelPath, p)
			tail := stderr.Tail(4096)
			a.log.Warn().Str("event", "exit_early").Str("model", modelPath).Int("pid", pid).AnErr("wait_err", werr).Msg("llama-server exited before ready")
			a.publisher.Publish(Event{Name: EventSpawnExit, ModelID: modelPath, Fields: map[string]any{"pid": pid, "before_ready": true}})
			if werr != nil {
				return "", fmt.Errorf("llama-server exited early: %v; stderr tail: %s", werr, tail)
			}
			return "", fmt.Errorf("llama-server exited before ready: %s", baseURL)
		case <-deadline.C:
			_ = a.Stop(modelPath)
			a.log.Warn().Str("event", "timeout").Str("model", modelPath).Int("pid", pid).Msg("llama-server not ready in time")
			a.publisher.Publish(Event{Name: EventSpawnTimeout, ModelID: modelPath, Fields: map[string]any{"pid": pid}})
			return "", fmt.Errorf("llama-server not ready in time: %s", baseURL)
		case <-ctx.Done():
			_ = a.Stop(modelPath)
			return "", ctx.Err()
		case <-tick.C:
		}
	}
}

func (a *spawnAdapter) forget(modelPath string, p *procInfo) {
	a.mu.Lock()
	if a.procs[modelPath] == p {
		delete(a.procs, modelPath)
	}
	a.mu.Unlock()
}

func (a *spawnAdapter) getProcInfo(modelPath string) (pid int, baseURL string, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p := a.procs[modelPath]; p != nil {
		return p.pid, p.baseURL, true
	}
	return 0, "", false
}

// Stop terminates the llama-server for modelPath, if present: SIGTERM first,
// SIGKILL after two seconds.
func (a *spawnAdapter) Stop(modelPath string) error {
	a.mu.Lock()
	p := a.procs[modelPath]
	delete(a.procs, modelPath)
	a.mu.Unlock()
	if p == nil || p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.exited:
	case <-time.After(2 * time.Second):
		_ = p.cmd.Process.Kill()
		<-p.exited
	}
	a.log.Info().Str("event", "stop").Str("model", modelPath).Int("pid", p.pid).Msg("llama-server stopped")
	a.publisher.Publish(Event{Name: EventSpawnStop, ModelID: modelPath, Fields: map[string]any{"pid": p.pid}})
	return nil
}

// StopAll terminates all managed subprocesses. Best effort.
func (a *spawnAdapter) StopAll() {
	a.mu.Lock()
	paths := make([]string, 0, len(a.procs))
	for k := range a.procs {
		paths = append(paths, k)
	}
	a.mu.Unlock()
	for _, path := range paths {
		_ = a.Stop(path)
	}
}

func pickPortInRange(host string, start, end int) (int, error) {
	for p := start; p <= end; p++ {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err != nil {
			continue
		}
		_ = l.Close()
		return p, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected addr: %s", l.Addr())
	}
	return addr.Port, nil
}

// lockedBuffer collects subprocess stderr; the exec package writes to it from
// its own goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Tail(n int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return s
}
