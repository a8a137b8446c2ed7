// Package manager owns the lifecycle of the single local model: download,
// load, unload and inference. It is structured into small files by concern:
//
//   - manager.go: Manager type, construction, status and Close.
//   - lifecycle.go: RequestDownload/RequestLoad/RequestUnload state machine.
//   - download.go: fetch with retries, GGUF verification, atomic install.
//   - inference.go: Infer and the single in-flight generation slot.
//   - memory.go: host memory tiers (procfs MemAvailable).
//   - config.go: ManagerConfig, package defaults and runtime selection.
//   - errors.go: error types and helpers (IsModelNotReady, IsTransitionRejected, ...).
//   - events.go: EventPublisher and event names.
//
// Runtimes:
//
//   - spawn (default): one llama-server subprocess per model, spoken to over
//     its OpenAI-compatible streaming API. CGO-free.
//   - server: an already running OpenAI-compatible server.
//   - llama: in-process go-llama.cpp, enabled with `-tags=llama`. A stub that
//     refuses to load is compiled otherwise.
//
// Every lifecycle request is validated synchronously and then runs in the
// background; completion is reported through the EventPublisher and Snapshot.
package manager
