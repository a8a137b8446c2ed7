package overlay

import (
	"overlayd/internal/selection"
	"overlayd/pkg/types"
)

// dispatch turns monitor events into completion requests until Close.
func (o *Overlay) dispatch() {
	defer close(o.done)
	events := o.monitor.Events()
	for {
		select {
		case <-o.ctx.Done():
			return
		case ev := <-events:
			o.dispatchMu.Lock()
			if ev.Session == o.monitor.Session() {
				o.handle(ev)
			} else {
				o.log.Debug().Str("event", "selection_dropped").Uint64("session", ev.Session).Msg("selection from a stopped monitor run")
			}
			o.dispatchMu.Unlock()
		}
	}
}

// drainEvents discards whatever the monitor left buffered. Callers hold
// dispatchMu.
func (o *Overlay) drainEvents() int {
	n := 0
	for {
		select {
		case <-o.monitor.Events():
			n++
		default:
			return n
		}
	}
}

func (o *Overlay) handle(ev selection.Event) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error().Str("event", "dispatch_panic").Interface("panic", r).Msg("recovered panic while dispatching selection")
		}
	}()
	o.metrics.selections.Inc()

	c, label := o.Describe(ev.Text, ev.Window)
	switch {
	case c.Features.Empty():
		o.skip(SkipNoFeatures, ev)
		return
	case !o.mgr.Ready():
		o.skip(SkipModelNotReady, ev)
		return
	}
	id := o.queue.Submit(ev.Text, c, label)
	if id == 0 {
		return
	}
	o.metrics.submitted.Inc()
	o.setLastSkip("")
	o.log.Debug().
		Str("event", "submitted").
		Uint64("request_id", id).
		Str("type", c.Type.String()).
		Str("language", c.Language).
		Str("strategy", ev.Strategy).
		Bool("fallback", ev.Fallback).
		Msg("selection submitted")
}

func (o *Overlay) skip(reason string, ev selection.Event) {
	o.metrics.skipped.WithLabelValues(reason).Inc()
	o.setLastSkip(reason)
	o.log.Debug().Str("event", "skipped").Str("reason", reason).Str("app", ev.Window.AppName).Msg("selection not submitted")
}

func (o *Overlay) setLastSkip(reason string) {
	o.mu.Lock()
	o.lastSkip = reason
	o.mu.Unlock()
}

// LastSkip returns why the most recent selection was not submitted, or "" if
// it was.
func (o *Overlay) LastSkip() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastSkip
}

// Status aggregates model, monitor and queue state for clients.
func (o *Overlay) Status() types.StatusResponse {
	ms := o.monitor.Stats()
	qs := o.queue.Stats()
	return types.StatusResponse{
		Model: ToModelStatus(o.mgr.Snapshot()),
		Monitor: types.MonitorStatus{
			Running: ms.Running,
			Polls:   ms.Polls,
			Events:  ms.Events,
			Misses:  ms.Misses,
			Panics:  ms.Panics,
		},
		Queue: types.QueueStatus{
			Current:   qs.Current,
			Submitted: qs.Submitted,
			Stale:     qs.Stale,
			Delivered: qs.Delivered,
			Failed:    qs.Failed,
		},
		Desktop:       o.desktopName,
		LastSkip:      o.LastSkip(),
		UptimeSeconds: int64(o.now().Sub(o.started).Seconds()),
	}
}
