package stream

import "github.com/spec-kit/order-insights/internal/domain"

// CancelFunc cancels an active subscription. Idempotent.
type CancelFunc func()

// Source delivers live order snapshots. Every emission carries the entire
// current order set, never a delta: once on subscribe and again after every
// change. onErr reports a terminal subscription failure; no further
// emissions follow it.
type Source interface {
	Subscribe(onEmit func(orders []domain.Order), onErr func(error)) CancelFunc
}
