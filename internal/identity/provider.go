package identity

import (
	"sync"

	"github.com/spec-kit/order-insights/internal/domain"
)

// CancelFunc tears down a subscription. Safe to call more than once.
type CancelFunc func()

// Provider delivers sign-in and sign-out events. A nil identity means the
// user signed out.
type Provider interface {
	OnChange(fn func(identity *domain.Identity)) CancelFunc
}

// Hub is the in-process Provider: the auth service announces sign-ins and
// sign-outs, subscribers (the role resolver) receive them in order.
type Hub struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(*domain.Identity)
	current   *domain.Identity
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{listeners: make(map[int]func(*domain.Identity))}
}

// OnChange registers fn and, when someone is signed in, immediately replays
// the current identity the way an auth state listener replays the signed-in
// user on attach. Nothing fires for an empty hub: before the first
// announcement the session state is unknown, not signed out, and delivering
// nil here would wrongly discard a still-valid cached role.
func (h *Hub) OnChange(fn func(identity *domain.Identity)) CancelFunc {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	current := h.current
	h.mu.Unlock()

	if current != nil {
		fn(current)
	}

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Announce publishes a new identity (nil for sign-out) to all subscribers.
func (h *Hub) Announce(identity *domain.Identity) {
	h.mu.Lock()
	h.current = identity
	fns := make([]func(*domain.Identity), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}
