package manager

import "context"

// InferenceAdapter abstracts the model runtime used by the Manager.
type InferenceAdapter interface {
	// Start loads the model at modelPath and returns a session bound to it.
	// ctx bounds the load; the session outlives it.
	Start(ctx context.Context, modelPath string, params InferParams) (InferSession, error)
}

// InferSession is a loaded model.
type InferSession interface {
	// Generate streams tokens for the given prompt. The onToken callback will be invoked
	// for each token. Implementations must return when the context is canceled.
	Generate(ctx context.Context, prompt string, onToken func(string) error) (FinalResult, error)
	// Close releases the model and any process backing it.
	Close() error
}

// stopAller is implemented by adapters that own background processes.
type stopAller interface {
	StopAll()
}

// InferParams captures generation parameters passed to the adapter.
type InferParams struct {
	Temperature   float32
	TopP          float32
	TopK          int
	MaxTokens     int
	Stop          []string
	Seed          int
	RepeatPenalty float32
	// ContextSize is filled by the manager from the memory tier.
	ContextSize int
}

// FinalResult summarizes the generation after streaming.
type FinalResult struct {
	Content      string
	Usage        Usage
	FinishReason string
}

// Usage contains token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
