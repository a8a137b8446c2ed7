package overlay

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"overlayd/internal/completion"
)

// timedModel records the latency of every inference that reached the model.
type timedModel struct {
	completion.Model
	hist prometheus.Observer
}

func (t timedModel) Infer(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := t.Model.Infer(ctx, prompt)
	if !errors.Is(err, completion.ErrModelNotReady) {
		t.hist.Observe(time.Since(start).Seconds())
	}
	return out, err
}
