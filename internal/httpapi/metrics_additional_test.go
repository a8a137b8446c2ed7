package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIncrementBackpressure_IncrementsCounter(t *testing.T) {
	baseline := testutil.ToFloat64(backpressureTotal.WithLabelValues("streams"))
	IncrementBackpressure("streams")
	IncrementBackpressure("streams")
	got := testutil.ToFloat64(backpressureTotal.WithLabelValues("streams"))
	if got < baseline+2 {
		t.Fatalf("expected backpressure counter >= %v, got %v", baseline+2, got)
	}

	// Empty reason should default to "unspecified"
	before := testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified"))
	IncrementBackpressure("")
	after := testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified"))
	if after < before+1 {
		t.Fatalf("expected unspecified reason to increment by at least 1: before=%v after=%v", before, after)
	}
}

func TestAcquireStream_TracksOpenGauge(t *testing.T) {
	before := testutil.ToFloat64(streamsOpen)
	release, ok := acquireStream(httptest.NewRecorder())
	if !ok {
		t.Fatalf("stream slot refused")
	}
	if got := testutil.ToFloat64(streamsOpen); got != before+1 {
		t.Fatalf("streams_open = %v, want %v", got, before+1)
	}
	release()
	if got := testutil.ToFloat64(streamsOpen); got != before {
		t.Fatalf("streams_open after release = %v, want %v", got, before)
	}
}
