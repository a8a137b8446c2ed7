package selection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"overlayd/internal/window"
)

type stubStrategy struct {
	name   string
	text   string
	err    error
	panics bool
	block  bool
	// wedged, when non-nil, holds TryExtract until closed regardless of ctx.
	wedged chan struct{}
	calls  int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) TryExtract(ctx context.Context, _ window.Handle) (string, error) {
	if s.wedged != nil {
		<-s.wedged
		return "late", nil
	}
	s.calls++
	if s.panics {
		panic("boom")
	}
	if s.block {
		<-ctx.Done()
		return "late", ctx.Err()
	}
	return s.text, s.err
}

type lowStub struct{ stubStrategy }

func (*lowStub) LowConfidence() bool { return true }

var testWindow = window.Context{AppName: "code", Title: "main.py - Code", FileExtension: ".py", Handle: "0x1"}

func TestExtract_FirstNonEmptyWins(t *testing.T) {
	a := &stubStrategy{name: "a", text: "   "}
	b := &stubStrategy{name: "b", text: "hello"}
	c := &stubStrategy{name: "c", text: "never"}
	x := NewExtractor([]Strategy{a, b, c}, 0, zerolog.Nop())

	got, ok := x.Extract(context.Background(), testWindow)
	if !ok {
		t.Fatalf("expected a result")
	}
	if got.Text != "hello" || got.Strategy != "b" || got.Fallback {
		t.Fatalf("unexpected extraction: %+v", got)
	}
	if c.calls != 0 {
		t.Fatalf("later strategy consulted %d times", c.calls)
	}
}

func TestExtract_ErrorAndPanicFallThrough(t *testing.T) {
	a := &stubStrategy{name: "a", err: errors.New("denied")}
	b := &stubStrategy{name: "b", panics: true}
	c := &lowStub{stubStrategy{name: "c", text: "whole window"}}
	x := NewExtractor([]Strategy{a, b, c}, 0, zerolog.Nop())

	got, ok := x.Extract(context.Background(), testWindow)
	if !ok {
		t.Fatalf("expected fallback result")
	}
	if got.Text != "whole window" || !got.Fallback {
		t.Fatalf("unexpected extraction: %+v", got)
	}
}

func TestExtract_StepTimeout(t *testing.T) {
	a := &stubStrategy{name: "slow", block: true}
	b := &stubStrategy{name: "b", text: "ok"}
	x := NewExtractor([]Strategy{a, b}, 10*time.Millisecond, zerolog.Nop())

	start := time.Now()
	got, ok := x.Extract(context.Background(), testWindow)
	if !ok || got.Text != "ok" {
		t.Fatalf("expected second strategy, got %+v ok=%v", got, ok)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("step timeout not honoured")
	}
}

func TestExtract_StepTimeoutIgnoredByStrategy(t *testing.T) {
	wedged := make(chan struct{})
	defer close(wedged)
	a := &stubStrategy{name: "wedged", wedged: wedged}
	b := &stubStrategy{name: "b", text: "ok"}
	x := NewExtractor([]Strategy{a, b}, 10*time.Millisecond, zerolog.Nop())

	res := make(chan Extraction, 1)
	go func() {
		got, _ := x.Extract(context.Background(), testWindow)
		res <- got
	}()
	select {
	case got := <-res:
		if got.Text != "ok" || got.Strategy != "b" {
			t.Fatalf("expected second strategy, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("wedged strategy held Extract past its step timeout")
	}
}

func TestExtract_AllMiss(t *testing.T) {
	x := NewExtractor([]Strategy{
		&stubStrategy{name: "a", err: window.ErrUnsupported},
		&stubStrategy{name: "b"},
	}, 0, zerolog.Nop())
	if _, ok := x.Extract(context.Background(), testWindow); ok {
		t.Fatalf("expected a miss")
	}
}

func TestExtract_NoWindow(t *testing.T) {
	a := &stubStrategy{name: "a", text: "x"}
	x := NewExtractor([]Strategy{a}, 0, zerolog.Nop())
	if _, ok := x.Extract(context.Background(), window.Context{}); ok {
		t.Fatalf("expected a miss without a window")
	}
	if a.calls != 0 {
		t.Fatalf("strategy consulted without a window")
	}
}

type editReader struct{ buf window.EditBuffer }

func (r editReader) EditSelection(context.Context, window.Handle) (window.EditBuffer, error) {
	return r.buf, nil
}

func TestEditControl_Slicing(t *testing.T) {
	cases := []struct {
		name string
		buf  window.EditBuffer
		want string
	}{
		{"forward", window.EditBuffer{Text: "hello world", Start: 6, End: 11}, "world"},
		{"reversed", window.EditBuffer{Text: "hello world", Start: 5, End: 0}, "hello"},
		{"empty range", window.EditBuffer{Text: "hello", Start: 2, End: 2}, ""},
		{"clamped", window.EditBuffer{Text: "abc", Start: -4, End: 99}, "abc"},
		{"runes", window.EditBuffer{Text: "héllo wörld", Start: 6, End: 11}, "wörld"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EditControl{Reader: editReader{tc.buf}}.TryExtract(context.Background(), "h")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

type textReader struct{ text string }

func (r textReader) WindowText(context.Context, window.Handle) (string, error) { return r.text, nil }

func TestWindowText_TrimsAndFlags(t *testing.T) {
	s := WindowText{Reader: textReader{"\n  body text \t"}}
	got, err := s.TryExtract(context.Background(), "h")
	if err != nil || got != "body text" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if !s.LowConfidence() {
		t.Fatalf("window text must be low confidence")
	}
}

func TestDefaultStrategies_Order(t *testing.T) {
	got := DefaultStrategies(window.NullDesktop{})
	want := []string{"edit_control", "accessibility", "window_text"}
	if len(got) != len(want) {
		t.Fatalf("got %d strategies", len(got))
	}
	for i, s := range got {
		if s.Name() != want[i] {
			t.Fatalf("strategy %d = %s want %s", i, s.Name(), want[i])
		}
	}
}
