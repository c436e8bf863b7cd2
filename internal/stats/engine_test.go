package stats

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/order-insights/internal/cache"
	"github.com/spec-kit/order-insights/internal/domain"
	"github.com/spec-kit/order-insights/internal/stream"
)

// fakeSource hands the test direct control over emissions, including the
// ability to fire a handler from an already-cancelled subscription.
type fakeSource struct {
	mu         sync.Mutex
	onEmit     func([]domain.Order)
	onErr      func(error)
	subscribes int
	cancels    int
}

func (f *fakeSource) Subscribe(onEmit func([]domain.Order), onErr func(error)) stream.CancelFunc {
	f.mu.Lock()
	f.onEmit = onEmit
	f.onErr = onErr
	f.subscribes++
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.cancels++
		f.mu.Unlock()
	}
}

func (f *fakeSource) emit(orders []domain.Order) {
	f.mu.Lock()
	fn := f.onEmit
	f.mu.Unlock()
	fn(orders)
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	fn := f.onErr
	f.mu.Unlock()
	fn(err)
}

// handler returns the current emission callback so tests can keep a stale
// reference across Stop/Start.
func (f *fakeSource) handler() func([]domain.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onEmit
}

func newTestEngine(source stream.Source, store cache.Store) *Engine {
	return NewEngine(Dependencies{
		Source: source,
		Store:  store,
		Roster: []domain.Editor{alice, bob},
		Logger: zap.NewNop(),
	})
}

func waitForKey(t *testing.T, store cache.Store, key string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if val, ok, _ := store.Get(context.Background(), key); ok {
			return val
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("key %q never appeared in cache", key)
	return ""
}

func TestEngineLiveOnEmission(t *testing.T) {
	source := &fakeSource{}
	store := cache.NewMemory()
	engine := newTestEngine(source, store)

	var snapshots []Snapshot
	engine.OnUpdate(func(s Snapshot) { snapshots = append(snapshots, s) })

	if err := engine.Start(domain.RoleTeamLeader, domain.Identity{Email: "vivek@mm.com"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer engine.Stop()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	source.emit([]domain.Order{
		makeOrder("o1", alice.Email, domain.OrderStatusCompleted, base, timePtr(base.Add(time.Hour))),
		makeOrder("o2", bob.Email, domain.OrderStatusPending, base, nil),
	})

	snap := engine.Snapshot()
	if snap.State != StateLive {
		t.Fatalf("state = %q, want live", snap.State)
	}
	if len(snap.Rollups) != 2 {
		t.Fatalf("got %d rollups, want full roster", len(snap.Rollups))
	}
	if snap.Rollups[0].TotalCompleted != 1 {
		t.Errorf("alice completed = %d, want 1", snap.Rollups[0].TotalCompleted)
	}

	if len(snapshots) < 2 {
		t.Fatalf("got %d published snapshots, want loading + live", len(snapshots))
	}
	if snapshots[0].State != StateLoading {
		t.Errorf("first published state = %q, want loading", snapshots[0].State)
	}
	if snapshots[len(snapshots)-1].State != StateLive {
		t.Errorf("last published state = %q, want live", snapshots[len(snapshots)-1].State)
	}
}

func TestEngineEditorScope(t *testing.T) {
	source := &fakeSource{}
	engine := newTestEngine(source, cache.NewMemory())

	if err := engine.Start(domain.RoleEditor, domain.Identity{Email: bob.Email}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer engine.Stop()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	// The editor receives the same full collection; scoping is not a
	// correctness requirement of the collaborator.
	source.emit([]domain.Order{
		makeOrder("o1", alice.Email, domain.OrderStatusPending, base, nil),
		makeOrder("o2", bob.Email, domain.OrderStatusInProgress, base, nil),
	})

	snap := engine.Snapshot()
	if len(snap.Rollups) != 1 {
		t.Fatalf("editor scope produced %d rollups, want 1", len(snap.Rollups))
	}
	if snap.Rollups[0].Email != bob.Email || snap.Rollups[0].TotalAssigned != 1 {
		t.Errorf("rollup = %+v, want bob with one assignment", snap.Rollups[0])
	}
}

func TestEngineStartWhileActiveFails(t *testing.T) {
	source := &fakeSource{}
	engine := newTestEngine(source, cache.NewMemory())

	if err := engine.Start(domain.RoleEditor, domain.Identity{Email: alice.Email}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer engine.Stop()

	if err := engine.Start(domain.RoleTeamLeader, domain.Identity{Email: "vivek@mm.com"}); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start error = %v, want ErrAlreadyStarted", err)
	}
}

func TestEngineLateEmissionFromStaleSubscriptionIgnored(t *testing.T) {
	source := &fakeSource{}
	engine := newTestEngine(source, cache.NewMemory())

	if err := engine.Start(domain.RoleEditor, domain.Identity{Email: alice.Email}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stale := source.handler()

	engine.Stop()
	if err := engine.Start(domain.RoleTeamLeader, domain.Identity{Email: "vivek@mm.com"}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer engine.Stop()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	source.emit([]domain.Order{
		makeOrder("fresh", bob.Email, domain.OrderStatusInProgress, base, nil),
	})
	// A straggler from the old editor subscription arrives after the new
	// one is live. It must never be applied.
	stale([]domain.Order{
		makeOrder("stale-1", alice.Email, domain.OrderStatusPending, base, nil),
		makeOrder("stale-2", alice.Email, domain.OrderStatusPending, base, nil),
	})

	snap := engine.Snapshot()
	if snap.State != StateLive {
		t.Fatalf("state = %q, want live", snap.State)
	}
	if len(snap.Rollups) != 2 {
		t.Fatalf("got %d rollups, want full roster under team-leader scope", len(snap.Rollups))
	}
	for _, rollup := range snap.Rollups {
		if rollup.Email == alice.Email && rollup.TotalAssigned != 0 {
			t.Errorf("stale emission was applied: alice assigned = %d", rollup.TotalAssigned)
		}
		if rollup.Email == bob.Email && rollup.TotalAssigned != 1 {
			t.Errorf("fresh emission lost: bob assigned = %d", rollup.TotalAssigned)
		}
	}
}

func TestEngineStreamErrorRetainsLastGoodRollups(t *testing.T) {
	source := &fakeSource{}
	engine := newTestEngine(source, cache.NewMemory())

	if err := engine.Start(domain.RoleTeamLeader, domain.Identity{Email: "vivek@mm.com"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer engine.Stop()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	source.emit([]domain.Order{
		makeOrder("o1", alice.Email, domain.OrderStatusPending, base, nil),
	})
	source.fail(errors.New("listener connection dropped"))

	snap := engine.Snapshot()
	if snap.State != StateError {
		t.Fatalf("state = %q, want error", snap.State)
	}
	if len(snap.Rollups) != 2 || snap.Rollups[0].TotalAssigned != 1 {
		t.Error("last good rollups were not retained in error state")
	}
}

func TestEngineHydratesFromCache(t *testing.T) {
	store := cache.NewMemory()
	cached := domain.EditorRollup{Email: alice.Email, Name: alice.Name, TotalAssigned: 7, TotalCompleted: 4, CurrentWorkload: 3}
	payload, _ := json.Marshal(cached)
	_ = store.Set(context.Background(), RollupKey(alice.Email), string(payload))

	engine := newTestEngine(&fakeSource{}, store)
	if err := engine.Start(domain.RoleEditor, domain.Identity{Email: alice.Email}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer engine.Stop()

	snap := engine.Snapshot()
	if snap.State != StateLoading {
		t.Fatalf("state = %q, want loading before first emission", snap.State)
	}
	if len(snap.Rollups) != 1 || snap.Rollups[0].TotalAssigned != 7 {
		t.Errorf("hydrated rollups = %+v, want cached alice", snap.Rollups)
	}
}

func TestEnginePersistsRollupsByEmail(t *testing.T) {
	source := &fakeSource{}
	store := cache.NewMemory()
	engine := newTestEngine(source, store)

	if err := engine.Start(domain.RoleTeamLeader, domain.Identity{Email: "vivek@mm.com"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer engine.Stop()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	source.emit([]domain.Order{
		makeOrder("o1", alice.Email, domain.OrderStatusCompleted, base, timePtr(base.Add(time.Hour))),
	})

	raw := waitForKey(t, store, RollupKey(alice.Email))
	var persisted domain.EditorRollup
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		t.Fatalf("persisted rollup unparsable: %v", err)
	}
	if persisted.TotalCompleted != 1 {
		t.Errorf("persisted completed = %d, want 1", persisted.TotalCompleted)
	}
	waitForKey(t, store, RollupKey(bob.Email))
}

func TestEngineRefreshClearsCacheAndRepublishesLoading(t *testing.T) {
	source := &fakeSource{}
	store := cache.NewMemory()
	engine := newTestEngine(source, store)

	if err := engine.Start(domain.RoleTeamLeader, domain.Identity{Email: "vivek@mm.com"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer engine.Stop()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	source.emit([]domain.Order{
		makeOrder("o1", alice.Email, domain.OrderStatusPending, base, nil),
	})
	waitForKey(t, store, RollupKey(alice.Email))

	engine.Refresh(context.Background())

	if _, ok, _ := store.Get(context.Background(), RollupKey(alice.Email)); ok {
		t.Error("refresh left cached rollup behind")
	}
	if state := engine.Snapshot().State; state != StateLoading {
		t.Fatalf("state after refresh = %q, want loading", state)
	}

	// The still-active subscription redelivers; the engine recovers on its own.
	source.emit([]domain.Order{
		makeOrder("o1", alice.Email, domain.OrderStatusPending, base, nil),
	})
	if state := engine.Snapshot().State; state != StateLive {
		t.Fatalf("state after redelivery = %q, want live", state)
	}
}

func TestEngineStopIsIdempotent(t *testing.T) {
	source := &fakeSource{}
	engine := newTestEngine(source, cache.NewMemory())

	if err := engine.Start(domain.RoleEditor, domain.Identity{Email: alice.Email}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	engine.Stop()
	engine.Stop()

	if state := engine.Snapshot().State; state != StateUninitialized {
		t.Fatalf("state = %q, want uninitialized", state)
	}
	if err := engine.Start(domain.RoleEditor, domain.Identity{Email: alice.Email}); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	engine.Stop()
}
