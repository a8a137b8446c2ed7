//go:build llama

package manager

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with in-process llama support.
const llamaBuilt = true

// llamaAdapter loads models in-process through go-llama.cpp.
type llamaAdapter struct {
	threads int
}

func NewLlamaAdapter(threads int) InferenceAdapter {
	return &llamaAdapter{threads: threads}
}

// llamaSession owns the loaded model.
type llamaSession struct {
	model   *llama.LLama
	threads int
	params  InferParams
}

func (a *llamaAdapter) Start(ctx context.Context, modelPath string, params InferParams) (InferSession, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var mo []llama.ModelOption
	if params.ContextSize > 0 {
		mo = append(mo, llama.SetContext(params.ContextSize))
	}
	m, err := llama.New(modelPath, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaSession{model: m, threads: a.threads, params: params}, nil
}

func (s *llamaSession) Generate(ctx context.Context, prompt string, onToken func(string) error) (FinalResult, error) {
	if s.model == nil {
		return FinalResult{}, errors.New("llama model not initialized")
	}
	// Returning false from the callback stops prediction; this is how
	// cancellation reaches the C side.
	s.model.SetTokenCallback(func(tok string) bool {
		if ctx.Err() != nil {
			return false
		}
		return onToken(tok) == nil
	})
	text, err := s.model.Predict(prompt, predictOptions(s.params, s.threads)...)
	if ctx.Err() != nil {
		return FinalResult{}, ctx.Err()
	}
	if err != nil {
		return FinalResult{}, err
	}
	return FinalResult{Content: text, FinishReason: "stop"}, nil
}

func (s *llamaSession) Close() error {
	if s.model != nil {
		s.model.Free()
		s.model = nil
	}
	return nil
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orFloat(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts our adapter params into go-llama.cpp options.
func predictOptions(p InferParams, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(orInt(p.MaxTokens, defaultMaxTokens)),
		llama.SetThreads(orInt(threads, 1)),
		llama.SetTopP(orFloat(p.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(orInt(p.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(orFloat(p.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(orFloat(p.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if p.Seed != 0 {
		po = append(po, llama.SetSeed(p.Seed))
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	return po
}
