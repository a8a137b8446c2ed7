package manager

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func streamServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" && r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "bad key", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, l := range lines {
			_, _ = w.Write([]byte(l + "\n"))
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func collect(t *testing.T, sess InferSession) (string, FinalResult) {
	t.Helper()
	var b strings.Builder
	final, err := sess.Generate(testCtx(t), "Say hi", func(tok string) error {
		b.WriteString(tok)
		return nil
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return b.String(), final
}

func TestServerAdapter_SSEStream(t *testing.T) {
	ts := streamServer(t,
		`data: {"choices":[{"text":"Hello"}]}`,
		``,
		`data: {"choices":[{"delta":{"content":" World"},"finish_reason":"stop"}]}`,
		`data: [DONE]`,
		`data: {"choices":[{"text":"ignored"}]}`,
	)
	a := NewServerAdapter(ts.URL, "secret", 5*time.Second, time.Second, zerolog.Nop())
	sess, err := a.Start(testCtx(t), "tiny", InferParams{MaxTokens: 8})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sess.Close()
	got, final := collect(t, sess)
	if got != "Hello World" || final.Content != "Hello World" || final.FinishReason != "stop" {
		t.Fatalf("got %q final=%+v", got, final)
	}
}

func TestServerAdapter_NativeAndUnknownLines(t *testing.T) {
	ts := streamServer(t,
		`{"content":"raw","stop":false}`,
		`: keep-alive`,
		`data: {"content":" json","stop":true}`,
	)
	a := NewServerAdapter(ts.URL, "", 5*time.Second, time.Second, zerolog.Nop())
	sess, err := a.Start(testCtx(t), "tiny", InferParams{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got, _ := collect(t, sess); got != "raw json" {
		t.Fatalf("got %q", got)
	}
}

func TestServerAdapter_HTTPError(t *testing.T) {
	ts := streamServer(t)
	a := NewServerAdapter(ts.URL, "wrong", 5*time.Second, time.Second, zerolog.Nop())
	sess, err := a.Start(testCtx(t), "tiny", InferParams{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err = sess.Generate(testCtx(t), "x", func(string) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("err = %v", err)
	}
}

func TestServerAdapter_UnreachableFailsStart(t *testing.T) {
	ts := streamServer(t)
	url := ts.URL
	ts.Close()
	a := NewServerAdapter(url, "", time.Second, 100*time.Millisecond, zerolog.Nop())
	if _, err := a.Start(testCtx(t), "tiny", InferParams{}); err == nil {
		t.Fatalf("expected Start to fail against a closed server")
	}
}

func TestStreamCompletion_CallbackErrorStops(t *testing.T) {
	ts := streamServer(t,
		`data: {"choices":[{"text":"a"}]}`,
		`data: {"choices":[{"text":"b"}]}`,
	)
	calls := 0
	_, err := streamCompletion(context.Background(), http.DefaultClient, ts.URL, "", newCompletionRequest("", "x", InferParams{}),
		func(string) error { calls++; return errBoom }, zerolog.Nop())
	if err != errBoom || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestPickFreePort_ReturnsPositivePort(t *testing.T) {
	p, err := pickFreePort("127.0.0.1")
	if err != nil || p <= 0 {
		t.Fatalf("pickFreePort error=%v port=%d", err, p)
	}
}
