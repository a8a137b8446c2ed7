package completion

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"overlayd/internal/analyzer"
	"overlayd/internal/window"
)

type fakeModel struct {
	ready   bool
	out     string
	err     error
	panics  bool
	prompts []string
}

func (m *fakeModel) Ready() bool { return m.ready }

func (m *fakeModel) Infer(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.panics {
		panic("kaboom")
	}
	return m.out, m.err
}

func ctxOf(typ analyzer.Type, lang, content string, fs ...analyzer.Feature) analyzer.Context {
	return analyzer.Context{Content: content, Type: typ, Language: lang, Features: analyzer.NewFeatureSet(fs...)}
}

func TestBuildPrompt(t *testing.T) {
	cases := []struct {
		name string
		c    analyzer.Context
		want string
		ok   bool
	}{
		{"code completion", ctxOf(analyzer.Code, "python", "def f(", analyzer.CodeCompletion, analyzer.LearningSuggestions),
			"Complete the following python code:\ndef f(", true},
		{"code no language", ctxOf(analyzer.Code, "", "x :=", analyzer.CodeCompletion),
			"Complete the following code:\nx :=", true},
		{"code learning only", ctxOf(analyzer.Code, "rust", "fn", analyzer.LearningSuggestions),
			"Suggest learning resources for rust:\nfn", true},
		{"text improvements", ctxOf(analyzer.Text, "", "teh cat", analyzer.TextSuggestions, analyzer.Translation),
			"Suggest improvements for the following text:\nteh cat", true},
		{"web translation only", ctxOf(analyzer.Web, "", "hola", analyzer.Translation),
			"Translate the following text to English:\nhola", true},
		{"web learning only", ctxOf(analyzer.Web, "", "monads", analyzer.LearningSuggestions),
			"Suggest learning resources for the following topic:\nmonads", true},
		{"text learning only", ctxOf(analyzer.Text, "", "x", analyzer.LearningSuggestions), "", false},
		{"generic", ctxOf(analyzer.Generic, "", "x"), "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := BuildPrompt(tc.c)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("got (%q,%v) want (%q,%v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestBuildPrompt_FromAnalyzer(t *testing.T) {
	c := analyzer.Analyze("def f(", window.Context{AppName: "code", FileExtension: ".py"})
	got, ok := BuildPrompt(c)
	if !ok || got != "Complete the following python code:\ndef f(" {
		t.Fatalf("got (%q,%v)", got, ok)
	}
	if Label(c) != "Complete python code" {
		t.Fatalf("label = %q", Label(c))
	}
}

func TestGetCompletion_UnsupportedSkipsModel(t *testing.T) {
	m := &fakeModel{ready: true, out: "x"}
	e := NewEngine(m, zerolog.Nop())
	_, err := e.GetCompletion(context.Background(), ctxOf(analyzer.Generic, "", "x"))
	if !IsUnsupportedContext(err) {
		t.Fatalf("expected unsupported context, got %v", err)
	}
	if len(m.prompts) != 0 {
		t.Fatalf("model consulted")
	}
}

func TestGetCompletion_NotReadyFailsFast(t *testing.T) {
	m := &fakeModel{ready: false}
	e := NewEngine(m, zerolog.Nop())
	_, err := e.GetCompletion(context.Background(), ctxOf(analyzer.Text, "", "x", analyzer.TextSuggestions))
	if !errors.Is(err, ErrModelNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
	if KindOf(err) != KindModelNotReady {
		t.Fatalf("kind = %q", KindOf(err))
	}
}

func TestGetCompletion_Failures(t *testing.T) {
	c := ctxOf(analyzer.Text, "", "x", analyzer.TextSuggestions)
	for name, m := range map[string]*fakeModel{
		"error": {ready: true, err: errors.New("backend died")},
		"panic": {ready: true, panics: true},
		"empty": {ready: true, out: "  \n"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewEngine(m, zerolog.Nop()).GetCompletion(context.Background(), c)
			if !IsInferenceFailed(err) {
				t.Fatalf("expected inference failure, got %v", err)
			}
		})
	}
}

func TestGetCompletion_TrimsOutput(t *testing.T) {
	m := &fakeModel{ready: true, out: "  better text\n"}
	got, err := NewEngine(m, zerolog.Nop()).GetCompletion(context.Background(), ctxOf(analyzer.Text, "", "x", analyzer.TextSuggestions))
	if err != nil || got != "better text" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if m.prompts[0] != "Suggest improvements for the following text:\nx" {
		t.Fatalf("prompt = %q", m.prompts[0])
	}
}
