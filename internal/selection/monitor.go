package selection

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"overlayd/internal/window"
)

const (
	DefaultInterval = 200 * time.Millisecond
	defaultBuffer   = 16
)

// Event is one observed change of the selected text.
type Event struct {
	Text       string
	Window     window.Context
	ObservedAt time.Time
	Strategy   string
	Fallback   bool
	// Session identifies the Start that produced the event.
	Session uint64
}

// Prober yields the current foreground window context. window.Probe satisfies it.
type Prober interface {
	Probe(ctx context.Context) window.Context
}

// TextExtractor yields the selected text of a window. *Extractor satisfies it.
type TextExtractor interface {
	Extract(ctx context.Context, wc window.Context) (Extraction, bool)
}

// MonitorOptions tunes a Monitor. Zero values select defaults.
type MonitorOptions struct {
	Interval time.Duration
	Buffer   int
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Stats counts monitor activity since construction.
type Stats struct {
	Polls   uint64 `json:"polls"`
	Events  uint64 `json:"events"`
	Misses  uint64 `json:"misses"`
	Panics  uint64 `json:"panics"`
	Running bool   `json:"running"`
}

// Monitor polls the foreground window for selection changes.
//
// Only the loop goroutine touches lastText; Stop joins the loop and Start
// holds mu while launching it, so two loops never overlap.
type Monitor struct {
	probe    Prober
	ext      TextExtractor
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
	events   chan Event

	mu      sync.Mutex
	running bool
	session uint64
	cancel  context.CancelFunc
	done    chan struct{}

	lastText string
	hasLast  bool

	polls  atomic.Uint64
	sent   atomic.Uint64
	misses atomic.Uint64
	panics atomic.Uint64
}

func NewMonitor(p Prober, x TextExtractor, opts MonitorOptions) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Monitor{
		probe:    p,
		ext:      x,
		interval: opts.Interval,
		now:      opts.Now,
		log:      opts.Logger.With().Str("component", "monitor").Logger(),
		events:   make(chan Event, opts.Buffer),
	}
}

// Events is the monitor's output. The channel is never closed; it outlives
// Stop so that the monitor can be restarted.
func (m *Monitor) Events() <-chan Event { return m.events }

// Start launches the polling loop. Calling Start on a running monitor is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	m.session++
	go m.loop(ctx, m.done, m.session)
	m.log.Info().Str("event", "monitor_start").Dur("interval", m.interval).Msg("selection monitor started")
}

// Stop halts the loop and waits for it to exit. No event is sent after Stop
// returns. Calling Stop on a stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.cancel()
	<-m.done
	m.running = false
	m.cancel, m.done = nil, nil
	m.log.Info().Str("event", "monitor_stop").Msg("selection monitor stopped")
}

// Session returns the id stamped on events of the current run, or 0 while
// stopped. Events from earlier runs may still sit in the Events buffer.
func (m *Monitor) Session() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return 0
	}
	return m.session
}

func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) Stats() Stats {
	return Stats{
		Polls:   m.polls.Load(),
		Events:  m.sent.Load(),
		Misses:  m.misses.Load(),
		Panics:  m.panics.Load(),
		Running: m.Running(),
	}
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}, session uint64) {
	defer close(done)
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		m.pollOnce(ctx, session)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (m *Monitor) pollOnce(ctx context.Context, session uint64) {
	defer func() {
		if r := recover(); r != nil {
			m.panics.Add(1)
			m.log.Error().Str("event", "monitor_panic").Interface("panic", r).Msg("recovered panic in selection poll")
		}
	}()
	if ctx.Err() != nil {
		return
	}
	m.polls.Add(1)
	wc := m.probe.Probe(ctx)
	ex, ok := m.ext.Extract(ctx, wc)
	if !ok {
		// A miss leaves lastText alone: re-selecting the same text after a
		// focus change is not a new selection.
		m.misses.Add(1)
		return
	}
	if m.hasLast && ex.Text == m.lastText {
		return
	}
	ev := Event{
		Text:       ex.Text,
		Window:     wc,
		ObservedAt: m.now(),
		Strategy:   ex.Strategy,
		Fallback:   ex.Fallback,
		Session:    session,
	}
	select {
	case m.events <- ev:
		m.lastText, m.hasLast = ex.Text, true
		m.sent.Add(1)
		m.log.Debug().Str("event", "selection").Str("strategy", ex.Strategy).Str("app", wc.AppName).Int("len", len(ex.Text)).Msg("selection changed")
	case <-ctx.Done():
	}
}
