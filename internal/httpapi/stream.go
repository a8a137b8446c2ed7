package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
)

// serverBaseCtx is canceled on shutdown so that open streams end with the
// server. Defaults to Background.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by stream handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts returns a context that is canceled when either a or b is done.
// The returned cancel func must be called to release the goroutine when handler ends.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
			cancel()
		case <-b.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

var openStreams atomic.Int64

// acquireStream reserves a stream slot, writing 429 when none is left.
func acquireStream(w http.ResponseWriter) (func(), bool) {
	n := openStreams.Add(1)
	if limit := maxStreams; limit > 0 && n > limit {
		openStreams.Add(-1)
		IncrementBackpressure("streams")
		writeJSONError(w, http.StatusTooManyRequests, "too many open streams")
		return nil, false
	}
	streamsOpen.Inc()
	return func() {
		openStreams.Add(-1)
		streamsOpen.Dec()
	}, true
}

// streamNDJSON writes each value received from ch as one JSON line until the
// client goes away, the server shuts down or ch is closed.
func streamNDJSON[T any](w http.ResponseWriter, r *http.Request, ch <-chan T, render func(T) any) {
	release, ok := acquireStream(w)
	if !ok {
		return
	}
	defer release()

	w.Header().Set("Content-Type", ndjsonContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}
	flush()

	out := io.Writer(w)
	if requestLogLevel(r) >= LevelDebug {
		out = io.MultiWriter(w, &loggingLineWriter{path: r.URL.Path})
	}
	enc := json.NewEncoder(out)

	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			if err := enc.Encode(render(v)); err != nil {
				return
			}
			flush()
		}
	}
}
