package overlay

import (
	"sync"

	"github.com/rs/zerolog"

	"overlayd/internal/manager"
)

const statusBuffer = 16

// StatusChange is one manager event together with the model status observed
// right after it.
type StatusChange struct {
	Event  string
	Status manager.Status
}

// statusHub fans manager events out to subscribers. A subscriber that falls
// behind loses its oldest undelivered change.
type statusHub struct {
	snapshot func() manager.Status
	onState  func(manager.State)
	log      zerolog.Logger

	mu     sync.Mutex
	subs   map[int]chan StatusChange
	nextID int
	closed bool
}

func newStatusHub(log zerolog.Logger) *statusHub {
	return &statusHub{subs: make(map[int]chan StatusChange), log: log}
}

// Publish implements manager.EventPublisher.
func (h *statusHub) Publish(e manager.Event) {
	if h.snapshot == nil {
		return
	}
	st := h.snapshot()
	if h.onState != nil {
		h.onState(st.State)
	}
	change := StatusChange{Event: e.Name, Status: st}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- change:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- change:
		default:
		}
	}
}

func (h *statusHub) subscribe() (<-chan StatusChange, func()) {
	ch := make(chan StatusChange, statusBuffer)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// onChange runs cb for every change on a goroutine owned by the registration.
func (h *statusHub) onChange(cb func(StatusChange)) func() {
	ch, cancel := h.subscribe()
	go func() {
		for c := range ch {
			h.invoke(cb, c)
		}
	}()
	return cancel
}

func (h *statusHub) invoke(cb func(StatusChange), c StatusChange) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Str("event", "callback_panic").Interface("panic", r).Msg("status callback panicked")
		}
	}()
	cb(c)
}

func (h *statusHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
