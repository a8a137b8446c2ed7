package manager

// Event names published by the manager and its adapters.
const (
	EventState            = "state"
	EventDownloadStart    = "download_start"
	EventDownloadProgress = "download_progress"
	EventDownloadDone     = "download_done"
	EventDownloadFailed   = "download_failed"
	EventLoadStart        = "load_start"
	EventLoadReady        = "load_ready"
	EventLoadFailed       = "load_failed"
	EventUnloadStart      = "unload_start"
	EventUnloadDone       = "unload_done"
	EventUnloadTimeout    = "unload_timeout"
	EventSpawnStart       = "spawn_start"
	EventSpawnReady       = "spawn_ready"
	EventSpawnExit        = "spawn_exit"
	EventSpawnTimeout     = "spawn_timeout"
	EventSpawnStop        = "spawn_stop"
)

// Event represents a manager lifecycle event.
// Minimal and stable: name + model ID and optional fields via key/values.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// PublisherFunc adapts a function to EventPublisher.
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(e Event) { f(e) }

// MultiPublisher fans each event out to every publisher in order.
type MultiPublisher []EventPublisher

func (mp MultiPublisher) Publish(e Event) {
	for _, p := range mp {
		if p != nil {
			p.Publish(e)
		}
	}
}
