package preview

import "sync"

// Channel delivers content-saved events.
type Channel interface {
	Subscribe(fn func(ContentSavedEvent)) (unsubscribe func())
}

// ChannelFunc is a function adapter for Channel.
type ChannelFunc func(fn func(ContentSavedEvent)) (unsubscribe func())

// Subscribe implements Channel.
func (f ChannelFunc) Subscribe(fn func(ContentSavedEvent)) (unsubscribe func()) {
	return f(fn)
}

// Hub fans content-saved events out to the subscribers of a session. A
// session is one open preview page.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[int]func(ContentSavedEvent)
	next int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]func(ContentSavedEvent))}
}

// Subscribe registers fn for events published to sessionID.
func (h *Hub) Subscribe(sessionID string, fn func(ContentSavedEvent)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[int]func(ContentSavedEvent))
	}
	h.subs[sessionID][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[sessionID], id)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
		})
	}
}

// Publish delivers ev to every subscriber of sessionID and returns how many
// there were. Subscribers run on the caller's goroutine.
func (h *Hub) Publish(sessionID string, ev ContentSavedEvent) int {
	h.mu.RLock()
	fns := make([]func(ContentSavedEvent), 0, len(h.subs[sessionID]))
	for _, fn := range h.subs[sessionID] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
	return len(fns)
}

// Sessions returns the number of sessions with at least one subscriber.
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Channel returns the Channel of one session.
func (h *Hub) Channel(sessionID string) Channel {
	return ChannelFunc(func(fn func(ContentSavedEvent)) func() {
		return h.Subscribe(sessionID, fn)
	})
}
