//go:build !llama

package manager

import "context"

// llamaBuilt indicates this binary was compiled with in-process llama support.
const llamaBuilt = false

// llamaAdapter is compiled when the 'llama' build tag is not set, keeping
// default builds CGO-free. Start always fails.
type llamaAdapter struct{}

func NewLlamaAdapter(threads int) InferenceAdapter { return llamaAdapter{} }

func (llamaAdapter) Start(context.Context, string, InferParams) (InferSession, error) {
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
