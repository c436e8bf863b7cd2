package roles

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/order-insights/internal/cache"
	"github.com/spec-kit/order-insights/internal/domain"
	"github.com/spec-kit/order-insights/internal/identity"
)

const leaderEmail = "vivek@mm.com"

func newTestResolver(store cache.Store, now func() time.Time) *Resolver {
	return NewResolver(Dependencies{
		Store:           store,
		Provider:        identity.NewHub(),
		TeamLeaderEmail: leaderEmail,
		TTL:             24 * time.Hour,
		Logger:          zap.NewNop(),
		Now:             now,
	})
}

func TestResolve(t *testing.T) {
	r := newTestResolver(cache.NewMemory(), nil)

	tests := []struct {
		email string
		want  domain.Role
	}{
		{"vivek@mm.com", domain.RoleTeamLeader},
		{"tarun@mm.com", domain.RoleEditor},
		{"somebody@else.com", domain.RoleEditor},
		{"VIVEK@mm.com", domain.RoleEditor}, // case sensitive, like the address book
	}
	for _, tt := range tests {
		if got := r.Resolve(tt.email); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}

func TestLoadCachedTTLBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		cachedAt time.Time
		wantHit  bool
	}{
		{"just inside window", now.Add(-24*time.Hour + time.Millisecond), true},
		{"just outside window", now.Add(-24*time.Hour - time.Millisecond), false},
		{"exactly at boundary", now.Add(-24 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := cache.NewMemory()
			r := newTestResolver(store, func() time.Time { return now })

			payload, _ := json.Marshal(domain.SessionRole{
				Email:    "tarun@mm.com",
				Role:     domain.RoleEditor,
				CachedAt: tt.cachedAt,
			})
			if err := store.Set(context.Background(), CacheKey, string(payload)); err != nil {
				t.Fatalf("seeding cache: %v", err)
			}

			session, ok := r.LoadCached(context.Background())
			if ok != tt.wantHit {
				t.Fatalf("LoadCached hit = %v, want %v", ok, tt.wantHit)
			}
			if tt.wantHit && session.Email != "tarun@mm.com" {
				t.Errorf("session email = %q, want tarun@mm.com", session.Email)
			}
			if !tt.wantHit {
				if _, present, _ := store.Get(context.Background(), CacheKey); present {
					t.Error("expired entry was not removed")
				}
			}
		})
	}
}

func TestLoadCachedCorruptEntryIsMiss(t *testing.T) {
	store := cache.NewMemory()
	r := newTestResolver(store, nil)

	if err := store.Set(context.Background(), CacheKey, "{not json"); err != nil {
		t.Fatalf("seeding cache: %v", err)
	}

	if _, ok := r.LoadCached(context.Background()); ok {
		t.Fatal("corrupt entry reported as hit")
	}
	if _, present, _ := store.Get(context.Background(), CacheKey); present {
		t.Error("corrupt entry was not removed")
	}
}

func TestOnIdentityChangeSignIn(t *testing.T) {
	store := cache.NewMemory()
	r := newTestResolver(store, nil)

	var gotIdent *domain.Identity
	var gotRole domain.Role
	r.OnRoleChange(func(ident *domain.Identity, role domain.Role) {
		gotIdent, gotRole = ident, role
	})

	r.OnIdentityChange(context.Background(), &domain.Identity{Email: leaderEmail})

	if gotIdent == nil || gotIdent.Email != leaderEmail {
		t.Fatalf("published identity = %+v, want %s", gotIdent, leaderEmail)
	}
	if gotRole != domain.RoleTeamLeader {
		t.Fatalf("published role = %q, want team-leader", gotRole)
	}

	raw, ok, _ := store.Get(context.Background(), CacheKey)
	if !ok {
		t.Fatal("session role was not cached")
	}
	var session domain.SessionRole
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		t.Fatalf("cached payload unparsable: %v", err)
	}
	if session.Role != domain.RoleTeamLeader || session.Email != leaderEmail {
		t.Errorf("cached session = %+v", session)
	}
	if session.CachedAt.IsZero() {
		t.Error("cached session missing timestamp")
	}
}

func TestOnIdentityChangeSignOut(t *testing.T) {
	store := cache.NewMemory()
	r := newTestResolver(store, nil)
	r.OnIdentityChange(context.Background(), &domain.Identity{Email: "tarun@mm.com"})

	published := false
	r.OnRoleChange(func(ident *domain.Identity, role domain.Role) {
		published = true
		if ident != nil || role != "" {
			t.Errorf("sign-out published (%+v, %q), want (nil, empty)", ident, role)
		}
	})

	r.OnIdentityChange(context.Background(), nil)

	if !published {
		t.Fatal("sign-out was not published")
	}
	if _, ok, _ := store.Get(context.Background(), CacheKey); ok {
		t.Error("cache entry survived sign-out")
	}
}

func TestRefreshFromCacheOnStartupSupersededByLiveEvent(t *testing.T) {
	store := cache.NewMemory()
	hub := identity.NewHub()
	r := NewResolver(Dependencies{
		Store:           store,
		Provider:        hub,
		TeamLeaderEmail: leaderEmail,
		Logger:          zap.NewNop(),
	})

	payload, _ := json.Marshal(domain.SessionRole{
		Email:    leaderEmail,
		Role:     domain.RoleTeamLeader,
		CachedAt: time.Now(),
	})
	_ = store.Set(context.Background(), CacheKey, string(payload))

	var roleEvents []domain.Role
	r.OnRoleChange(func(_ *domain.Identity, role domain.Role) {
		roleEvents = append(roleEvents, role)
	})

	r.RefreshFromCacheOnStartup(context.Background())
	r.Start(context.Background())
	defer r.Close()
	hub.Announce(&domain.Identity{Email: "tarun@mm.com"})

	if len(roleEvents) < 2 {
		t.Fatalf("got %d role events, want at least 2 (cached then live)", len(roleEvents))
	}
	if roleEvents[0] != domain.RoleTeamLeader {
		t.Errorf("first event = %q, want cached team-leader", roleEvents[0])
	}
	if roleEvents[len(roleEvents)-1] != domain.RoleEditor {
		t.Errorf("last event = %q, want live editor", roleEvents[len(roleEvents)-1])
	}
}
