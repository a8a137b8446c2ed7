package manager

import "sync"

// MemoryPublisher stores events in-memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns the event names in publish order, skipping the given names.
func (p *MemoryPublisher) Names(skip ...string) []string {
	drop := make(map[string]bool, len(skip))
	for _, s := range skip {
		drop[s] = true
	}
	var out []string
	for _, e := range p.Events() {
		if !drop[e.Name] {
			out = append(out, e.Name)
		}
	}
	return out
}

// Has reports whether an event with the given name was published.
func (p *MemoryPublisher) Has(name string) bool {
	for _, e := range p.Events() {
		if e.Name == name {
			return true
		}
	}
	return false
}
