package roles

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/order-insights/internal/cache"
	"github.com/spec-kit/order-insights/internal/domain"
	"github.com/spec-kit/order-insights/internal/identity"
)

// CacheKey is where the resolved session role persists between restarts.
const CacheKey = "user_role_cache"

// Listener receives role changes. identity is nil after sign-out, in which
// case role is empty.
type Listener func(identity *domain.Identity, role domain.Role)

// Dependencies bundles resolver collaborators.
type Dependencies struct {
	Store           cache.Store
	Provider        identity.Provider
	TeamLeaderEmail string
	TTL             time.Duration
	Logger          *zap.Logger
	Now             func() time.Time
}

// Resolver maps identities to access roles and keeps the resolution in a
// time-boxed durable cache so a restart does not block on the identity
// provider.
type Resolver struct {
	store      cache.Store
	provider   identity.Provider
	teamLeader string
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
	cancel    identity.CancelFunc
}

// NewResolver creates the resolver.
func NewResolver(deps Dependencies) *Resolver {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Resolver{
		store:      deps.Store,
		provider:   deps.Provider,
		teamLeader: deps.TeamLeaderEmail,
		ttl:        ttl,
		logger:     deps.Logger,
		now:        now,
		listeners:  make(map[int]Listener),
	}
}

// Resolve maps an email to its role. Pure and total: the designated address
// is the team leader, everyone else is an editor.
func (r *Resolver) Resolve(email string) domain.Role {
	if email == r.teamLeader {
		return domain.RoleTeamLeader
	}
	return domain.RoleEditor
}

// LoadCached reads the persisted session role. Absent, unparsable, or
// expired entries are a miss, never an error; bad entries are removed so the
// next read is clean.
func (r *Resolver) LoadCached(ctx context.Context) (*domain.SessionRole, bool) {
	raw, ok, err := r.store.Get(ctx, CacheKey)
	if err != nil {
		r.logger.Warn("reading role cache", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var session domain.SessionRole
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		r.logger.Warn("discarding corrupt role cache entry", zap.Error(err))
		_ = r.store.Remove(ctx, CacheKey)
		return nil, false
	}
	if r.now().Sub(session.CachedAt) > r.ttl {
		_ = r.store.Remove(ctx, CacheKey)
		return nil, false
	}
	return &session, true
}

// OnIdentityChange handles one identity provider event: sign-in resolves,
// caches, and publishes the role; sign-out drops the cache entry and
// publishes the signed-out state.
func (r *Resolver) OnIdentityChange(ctx context.Context, ident *domain.Identity) {
	if ident == nil {
		if err := r.store.Remove(ctx, CacheKey); err != nil {
			r.logger.Warn("clearing role cache", zap.Error(err))
		}
		r.publish(nil, "")
		return
	}

	role := r.Resolve(ident.Email)
	session := domain.SessionRole{Email: ident.Email, Role: role, CachedAt: r.now()}
	if payload, err := json.Marshal(session); err == nil {
		if err := r.store.Set(ctx, CacheKey, string(payload)); err != nil {
			r.logger.Warn("caching role", zap.Error(err))
		}
	}
	r.publish(ident, role)
}

// RefreshFromCacheOnStartup publishes a cached role, if one is still valid,
// before the identity provider delivers its first event. The first live
// event always supersedes it.
func (r *Resolver) RefreshFromCacheOnStartup(ctx context.Context) {
	session, ok := r.LoadCached(ctx)
	if !ok {
		return
	}
	r.logger.Info("hydrated role from cache", zap.String("role", string(session.Role)))
	r.publish(&domain.Identity{Email: session.Email}, session.Role)
}

// Start subscribes to the identity provider. Call Close to detach.
func (r *Resolver) Start(ctx context.Context) {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	cancel := r.provider.OnChange(func(ident *domain.Identity) {
		r.OnIdentityChange(ctx, ident)
	})

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
}

// Close detaches from the identity provider. Idempotent.
func (r *Resolver) Close() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// OnRoleChange registers a listener for published (identity, role) pairs.
func (r *Resolver) OnRoleChange(fn Listener) identity.CancelFunc {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

func (r *Resolver) publish(ident *domain.Identity, role domain.Role) {
	r.mu.Lock()
	fns := make([]Listener, 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(ident, role)
	}
}
