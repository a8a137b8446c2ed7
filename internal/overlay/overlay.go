package overlay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"overlayd/internal/analyzer"
	"overlayd/internal/completion"
	"overlayd/internal/manager"
	"overlayd/internal/selection"
	"overlayd/internal/window"
)

// ErrEmptyText is returned by RequestCompletion for blank input.
var ErrEmptyText = errors.New("completion text is empty")

// Config assembles an Overlay. Zero values select defaults.
type Config struct {
	// Desktop supplies window metadata and selections; nil means no desktop.
	Desktop     window.Desktop
	DesktopName string

	ProbeTimeout time.Duration
	StepTimeout  time.Duration
	Interval     time.Duration
	Debounce     time.Duration

	DisabledFeatures []analyzer.Feature

	// Manager configures the model lifecycle. Its Publisher, if set, still
	// receives every event.
	Manager manager.ManagerConfig

	// Registerer receives the pipeline metrics; nil uses a private registry.
	Registerer prometheus.Registerer
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Overlay is the facade over the whole pipeline.
type Overlay struct {
	desktopName string
	now         func() time.Time
	started     time.Time
	log         zerolog.Logger

	monitor  *selection.Monitor
	analyzer *analyzer.Analyzer
	queue    *completion.Queue
	mgr      *manager.Manager
	hub      *statusHub
	metrics  *metrics

	mu       sync.Mutex
	lastSkip string

	// dispatchMu is held while an event is handled, so DisableMonitoring can
	// wait out a submission already under way.
	dispatchMu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	stopStats func()
	closeOnce sync.Once
}

// New builds the pipeline and starts the dispatcher. Monitoring stays off
// until EnableMonitoring is called.
func New(cfg Config) *Overlay {
	if cfg.Desktop == nil {
		cfg.Desktop = window.NullDesktop{}
		if cfg.DesktopName == "" {
			cfg.DesktopName = "null"
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.NewRegistry()
	}
	log := cfg.Logger

	hub := newStatusHub(log.With().Str("component", "status").Logger())
	mcfg := cfg.Manager
	if mcfg.Publisher != nil {
		mcfg.Publisher = manager.MultiPublisher{hub, mcfg.Publisher}
	} else {
		mcfg.Publisher = hub
	}
	mcfg.Logger = log
	mgr := manager.NewWithConfig(mcfg)

	probe := window.NewProbe(cfg.Desktop, cfg.ProbeTimeout, log)
	ext := selection.NewExtractor(selection.DefaultStrategies(cfg.Desktop), cfg.StepTimeout, log)
	mon := selection.NewMonitor(probe, ext, selection.MonitorOptions{
		Interval: cfg.Interval,
		Logger:   log,
		Now:      cfg.Now,
	})

	o := &Overlay{
		desktopName: cfg.DesktopName,
		now:         cfg.Now,
		started:     cfg.Now(),
		log:         log.With().Str("component", "overlay").Logger(),
		monitor:     mon,
		analyzer:    analyzer.New(analyzer.Options{Disabled: cfg.DisabledFeatures}),
		mgr:         mgr,
		hub:         hub,
		done:        make(chan struct{}),
	}

	o.metrics = newMetrics(cfg.Registerer, func() float64 { return float64(o.queue.Stats().Stale) })
	engine := completion.NewEngine(timedModel{Model: mgr, hist: o.metrics.inference}, log)
	o.queue = completion.NewQueue(engine, completion.QueueOptions{
		Debounce: cfg.Debounce,
		Logger:   log,
	})
	o.metrics.setState(mgr.Snapshot().State)

	hub.onState = o.metrics.setState
	hub.snapshot = mgr.Snapshot
	o.stopStats = o.queue.OnResult(o.metrics.observeResult)

	o.ctx, o.cancel = context.WithCancel(context.Background())
	go o.dispatch()
	return o
}

// EnableMonitoring starts watching the foreground window. Idempotent.
func (o *Overlay) EnableMonitoring() {
	if !o.monitor.Running() {
		o.log.Info().Str("event", "monitor_enable").Msg("selection monitoring enabled")
	}
	o.monitor.Start()
}

// DisableMonitoring stops watching and returns once the poll loop has exited.
// Selections observed before the call and not yet submitted are dropped.
// Idempotent.
func (o *Overlay) DisableMonitoring() {
	if o.monitor.Running() {
		o.log.Info().Str("event", "monitor_disable").Msg("selection monitoring disabled")
	}
	o.monitor.Stop()

	o.dispatchMu.Lock()
	n := o.drainEvents()
	o.dispatchMu.Unlock()
	if n > 0 {
		o.log.Debug().Str("event", "selections_dropped").Int("count", n).Msg("buffered selections dropped on disable")
	}
}

// MonitoringEnabled reports whether the monitor is running.
func (o *Overlay) MonitoringEnabled() bool { return o.monitor.Running() }

// RequestModelDownload starts fetching the configured model and returns the
// operation id.
func (o *Overlay) RequestModelDownload() (string, error) { return o.mgr.RequestDownload() }

// RequestModelLoad starts loading the installed model.
func (o *Overlay) RequestModelLoad() (string, error) { return o.mgr.RequestLoad() }

// RequestModelUnload starts releasing the loaded model.
func (o *Overlay) RequestModelUnload() (string, error) { return o.mgr.RequestUnload() }

// ModelStatus returns the current model status.
func (o *Overlay) ModelStatus() manager.Status { return o.mgr.Snapshot() }

// Ready reports whether completions can run.
func (o *Overlay) Ready() bool { return o.mgr.Ready() }

// OnCompletionReady registers cb for every delivered completion result. The
// returned function unregisters it.
func (o *Overlay) OnCompletionReady(cb func(completion.Result)) func() {
	return o.queue.OnResult(cb)
}

// SubscribeResults returns a channel of delivered completion results.
func (o *Overlay) SubscribeResults() (<-chan completion.Result, func()) {
	return o.queue.Subscribe()
}

// OnStatusChange registers cb for every model lifecycle change.
func (o *Overlay) OnStatusChange(cb func(StatusChange)) func() {
	return o.hub.onChange(cb)
}

// SubscribeStatus returns a channel of model lifecycle changes.
func (o *Overlay) SubscribeStatus() (<-chan StatusChange, func()) {
	return o.hub.subscribe()
}

// Describe classifies text in wc without submitting anything.
func (o *Overlay) Describe(text string, wc window.Context) (analyzer.Context, string) {
	c := o.analyzer.Analyze(text, wc)
	return c, completion.Label(c)
}

// RequestCompletion submits text for completion regardless of the monitor and
// returns the request id. The result arrives through the result channels.
func (o *Overlay) RequestCompletion(text string, wc window.Context) (uint64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyText
	}
	c, label := o.Describe(text, wc)
	if c.Features.Empty() {
		return 0, completion.ErrUnsupportedContext
	}
	if !o.mgr.Ready() {
		return 0, completion.ErrModelNotReady
	}
	id := o.queue.Submit(text, c, label)
	if id == 0 {
		return 0, errors.New("overlay closed")
	}
	o.metrics.submitted.Inc()
	return id, nil
}

// Close stops monitoring, cancels pending work, unloads the model and closes
// every subscription. It is safe to call more than once.
func (o *Overlay) Close() error {
	var err error
	o.closeOnce.Do(func() {
		o.monitor.Stop()
		o.cancel()
		<-o.done
		o.stopStats()
		o.queue.Close()
		err = o.mgr.Close()
		o.hub.close()
	})
	return err
}
