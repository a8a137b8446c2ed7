package window

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const defaultProbeTimeout = 150 * time.Millisecond

// Probe snapshots the foreground window. It never fails: any OS error, panic
// or timeout produces the empty Context.
type Probe struct {
	src     Source
	timeout time.Duration
	log     zerolog.Logger
}

// NewProbe builds a Probe over src. A non-positive timeout selects the default.
func NewProbe(src Source, timeout time.Duration, log zerolog.Logger) *Probe {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &Probe{src: src, timeout: timeout, log: log.With().Str("component", "probe").Logger()}
}

// Probe returns the current foreground window context within the configured
// time bound.
func (p *Probe) Probe(ctx context.Context) Context {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Buffered so the query goroutine can always finish even after a timeout.
	out := make(chan Context, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.log.Warn().Str("event", "probe_panic").Interface("panic", r).Msg("window query panicked")
				out <- Context{}
			}
		}()
		out <- p.query(ctx)
	}()

	select {
	case wc := <-out:
		return wc
	case <-ctx.Done():
		p.log.Debug().Str("event", "probe_timeout").Dur("timeout", p.timeout).Msg("window query exceeded bound")
		return Context{}
	}
}

func (p *Probe) query(ctx context.Context) Context {
	h, err := p.src.ForegroundWindow(ctx)
	if err != nil || h == "" {
		return Context{}
	}
	title, err := p.src.WindowTitle(ctx, h)
	if err != nil {
		return Context{}
	}
	// Many windows carry no owning process; the title still classifies them.
	app, err := p.src.AppName(ctx, h)
	if err != nil {
		p.log.Debug().Str("event", "app_name_unavailable").Err(err).Msg("window has no app name")
		app = ""
	}
	// A late answer after the deadline is treated like a timeout.
	if ctx.Err() != nil {
		return Context{}
	}
	return Context{
		AppName:       NormalizeApp(app),
		Title:         title,
		FileExtension: InferExtension(title),
		Handle:        h,
	}
}
