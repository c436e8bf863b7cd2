package stats

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/order-insights/internal/cache"
	"github.com/spec-kit/order-insights/internal/domain"
	"github.com/spec-kit/order-insights/internal/observability"
	"github.com/spec-kit/order-insights/internal/stream"
)

// State is the engine lifecycle position.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateLive          State = "live"
	StateError         State = "error"
)

// ErrAlreadyStarted is returned when Start is called while a subscription is
// still active. Callers must observe Stop completing first.
var ErrAlreadyStarted = errors.New("stats: engine already started, call Stop first")

// rollupKeyPrefix keys persisted rollups in the durable cache by editor email.
const rollupKeyPrefix = "editor_stats:"

// RollupKey returns the durable cache key for one editor's rollup.
func RollupKey(email string) string {
	return rollupKeyPrefix + email
}

// Snapshot is the engine's published view: lifecycle state plus the latest
// rollup set. On StateError the rollups are the last good set.
type Snapshot struct {
	State   State
	Rollups []domain.EditorRollup
}

// Dependencies bundles engine collaborators so tests can supply fakes for
// all of them.
type Dependencies struct {
	Source  stream.Source
	Store   cache.Store
	Roster  []domain.Editor
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// Engine turns full order snapshots into per-editor rollups. Every emission
// triggers a complete recompute; the previous rollup set is replaced
// atomically, persisted to the durable cache, and published to subscribers.
// Full recompute is O(orders x editors), chosen for guaranteed consistency
// with the latest snapshot at the volumes this team sees.
type Engine struct {
	source  stream.Source
	store   cache.Store
	roster  []domain.Editor
	logger  *zap.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	state   State
	rollups []domain.EditorRollup
	editors []domain.Editor
	gen     uint64
	cancel  stream.CancelFunc

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// NewEngine creates an engine in the uninitialized state.
func NewEngine(deps Dependencies) *Engine {
	return &Engine{
		source:  deps.Source,
		store:   deps.Store,
		roster:  deps.Roster,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		state:   StateUninitialized,
		subs:    make(map[int]func(Snapshot)),
	}
}

// scopeEditors resolves the aggregation scope: the team leader rolls up the
// full static roster, an editor rolls up only themselves. An editor signing
// in from outside the roster still gets a rollup, with a display name
// derived from their address.
func (e *Engine) scopeEditors(role domain.Role, ident domain.Identity) []domain.Editor {
	if role == domain.RoleTeamLeader {
		editors := make([]domain.Editor, len(e.roster))
		copy(editors, e.roster)
		return editors
	}
	for _, editor := range e.roster {
		if editor.Email == ident.Email {
			return []domain.Editor{editor}
		}
	}
	return []domain.Editor{{Email: ident.Email, Name: domain.DisplayNameFromEmail(ident.Email)}}
}

// Start opens exactly one order stream subscription for the given role and
// identity. It hydrates the last persisted rollups from the durable cache
// first, so subscribers see data before the first live emission arrives.
// Returns ErrAlreadyStarted if a previous subscription has not been stopped.
func (e *Engine) Start(role domain.Role, ident domain.Identity) error {
	e.mu.Lock()
	if e.cancel != nil {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.editors = e.scopeEditors(role, ident)
	e.gen++
	gen := e.gen
	e.state = StateLoading
	e.rollups = e.hydrateLocked()
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	e.publish(snapshot)

	cancel := e.source.Subscribe(
		func(orders []domain.Order) { e.apply(gen, orders) },
		func(err error) { e.streamFailed(gen, err) },
	)

	e.mu.Lock()
	if gen != e.gen {
		// Stop raced us; tear the fresh subscription down immediately.
		e.mu.Unlock()
		cancel()
		return nil
	}
	e.cancel = cancel
	e.mu.Unlock()
	return nil
}

// hydrateLocked reads persisted rollups for the active scope. Corrupt
// entries are dropped silently; the next emission rewrites them anyway.
func (e *Engine) hydrateLocked() []domain.EditorRollup {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var rollups []domain.EditorRollup
	for _, editor := range e.editors {
		raw, ok, err := e.store.Get(ctx, RollupKey(editor.Email))
		if err != nil || !ok {
			continue
		}
		var rollup domain.EditorRollup
		if err := json.Unmarshal([]byte(raw), &rollup); err != nil {
			e.logger.Warn("discarding corrupt cached rollup", zap.String("editor", editor.Email), zap.Error(err))
			continue
		}
		rollups = append(rollups, rollup)
	}
	return rollups
}

// apply processes one stream emission. Emissions from a superseded
// subscription carry a stale generation and are discarded before touching
// state; this is what keeps a late emission from an old role from
// overwriting fresher rollups.
func (e *Engine) apply(gen uint64, orders []domain.Order) {
	started := time.Now()

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	rollups := BuildAll(e.editors, orders)
	e.rollups = rollups
	e.state = StateLive
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordEmission(len(orders), time.Since(started))
	}

	// Cache writes are fire and forget: a failed write must never block
	// publishing the in-memory rollups.
	go e.persist(rollups)

	e.publish(snapshot)
}

func (e *Engine) persist(rollups []domain.EditorRollup) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, rollup := range rollups {
		payload, err := json.Marshal(rollup)
		if err != nil {
			continue
		}
		if err := e.store.Set(ctx, RollupKey(rollup.Email), string(payload)); err != nil {
			e.logger.Warn("persisting rollup", zap.String("editor", rollup.Email), zap.Error(err))
			if e.metrics != nil {
				e.metrics.RecordCacheWriteFailure()
			}
		}
	}
}

// streamFailed transitions to the error state, retaining the last good
// rollup set for continued display.
func (e *Engine) streamFailed(gen uint64, err error) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.state = StateError
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	e.logger.Error("order stream failed, keeping last rollups", zap.Error(err))
	e.publish(snapshot)
}

// Stop cancels the active subscription. Once Stop returns, no emission from
// the cancelled subscription can be applied. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.gen++
	cancel := e.cancel
	e.cancel = nil
	e.state = StateUninitialized
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Refresh clears the persisted rollups for the active scope and republishes
// a loading state. It does not force a new emission: the still-active
// subscription redelivers the current snapshot on its own schedule, and
// every emission is authoritative regardless.
func (e *Engine) Refresh(ctx context.Context) {
	e.mu.Lock()
	editors := make([]domain.Editor, len(e.editors))
	copy(editors, e.editors)
	e.rollups = nil
	e.state = StateLoading
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	for _, editor := range editors {
		if err := e.store.Remove(ctx, RollupKey(editor.Email)); err != nil {
			e.logger.Warn("clearing cached rollup", zap.String("editor", editor.Email), zap.Error(err))
		}
	}

	e.publish(snapshot)
}

// Snapshot returns the current state and rollup set.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// RollupFor returns the current rollup for one editor email.
func (e *Engine) RollupFor(email string) (domain.EditorRollup, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rollup := range e.rollups {
		if rollup.Email == email {
			return rollup, true
		}
	}
	return domain.EditorRollup{}, false
}

// OnUpdate registers a subscriber for published snapshots.
func (e *Engine) OnUpdate(fn func(Snapshot)) stream.CancelFunc {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	rollups := make([]domain.EditorRollup, len(e.rollups))
	copy(rollups, e.rollups)
	return Snapshot{State: e.state, Rollups: rollups}
}

func (e *Engine) publish(snapshot Snapshot) {
	e.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
