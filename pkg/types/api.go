package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// OpResponse acknowledges an accepted lifecycle request.
type OpResponse struct {
	// Operation identifier; completion is reported on the event stream.
	// example: op-3
	OpID string `json:"op_id" example:"op-3"`
}

// ModelStatus describes the managed model.
type ModelStatus struct {
	// Lifecycle state: unavailable, downloading, loading, ready or unloading.
	// example: ready
	State string `json:"state" example:"ready"`
	// Download progress between 0 and 1.
	// example: 0.42
	Progress float64 `json:"progress" example:"0.42"`
	// Memory tier (A, B or C).
	// example: B
	Tier string `json:"tier" example:"B"`
	// Configured model file name.
	// example: phi-2.Q4_K_M.gguf
	ModelID string `json:"model_id" example:"phi-2.Q4_K_M.gguf"`
	// Whether the model file is present on disk.
	// example: true
	Installed bool `json:"installed" example:"true"`
	// Runtime backing the model (spawn, server or llama).
	// example: spawn
	Runtime string `json:"runtime" example:"spawn"`
	// Last lifecycle error, if any.
	Error string `json:"error,omitempty"`
}

// MonitorStatus describes the selection monitor.
type MonitorStatus struct {
	// Whether monitoring is enabled.
	// example: true
	Running bool `json:"running" example:"true"`
	// Number of polls performed.
	Polls uint64 `json:"polls"`
	// Number of selection events emitted.
	Events uint64 `json:"events"`
	// Number of polls without a selection.
	Misses uint64 `json:"misses"`
	// Number of recovered panics.
	Panics uint64 `json:"panics"`
}

// QueueStatus describes the completion request queue.
type QueueStatus struct {
	// Id of the most recent request.
	// example: 17
	Current uint64 `json:"current" example:"17"`
	Submitted uint64 `json:"submitted"`
	// Requests superseded before producing a result.
	Stale     uint64 `json:"stale"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Model   ModelStatus   `json:"model"`
	Monitor MonitorStatus `json:"monitor"`
	Queue   QueueStatus   `json:"queue"`
	// Desktop backend in use (x11 or null).
	// example: x11
	Desktop string `json:"desktop" example:"x11"`
	// Why the last selection was not submitted, if it was skipped.
	// example: model_not_ready
	LastSkip string `json:"last_skip,omitempty" example:"model_not_ready"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
}

// CompletionRequest asks for a completion of explicitly supplied text.
type CompletionRequest struct {
	// Text to complete or explain.
	// example: def fib(n):
	Text string `json:"text" example:"def fib(n):"`
	// Application name used for context classification.
	// example: code
	AppName string `json:"app_name,omitempty" example:"code"`
	// Window title used for file extension inference.
	// example: fib.py - Visual Studio Code
	WindowTitle string `json:"window_title,omitempty" example:"fib.py - Visual Studio Code"`
	// File extension; overrides inference from the title.
	// example: .py
	FileExtension string `json:"file_extension,omitempty" example:".py"`
}

// CompletionAccepted acknowledges a queued completion request.
type CompletionAccepted struct {
	// example: 18
	RequestID uint64 `json:"request_id" example:"18"`
	// Short description of the query.
	// example: Complete python code
	Label string `json:"label" example:"Complete python code"`
}

// CompletionResult is one line of GET /completions/stream.
type CompletionResult struct {
	// example: 18
	RequestID uint64 `json:"request_id" example:"18"`
	// example: Complete python code
	Label string `json:"label" example:"Complete python code"`
	// Generated text, empty on failure.
	Text string `json:"text,omitempty"`
	// Failure kind: model_not_ready, inference_failed or unsupported_context.
	Kind string `json:"kind,omitempty"`
	// Failure message.
	Error string `json:"error,omitempty"`
}

// StatusEvent is one line of GET /events/stream.
type StatusEvent struct {
	// Event name (state, download_progress, load_ready, ...).
	// example: state
	Event string      `json:"event" example:"state"`
	Model ModelStatus `json:"model"`
}
