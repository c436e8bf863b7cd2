package identity

import (
	"testing"

	"github.com/spec-kit/order-insights/internal/domain"
)

func TestHubDeliversAnnouncements(t *testing.T) {
	hub := NewHub()

	var got []*domain.Identity
	hub.OnChange(func(ident *domain.Identity) { got = append(got, ident) })

	hub.Announce(&domain.Identity{Email: "tarun@mm.com"})
	hub.Announce(nil)

	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0] == nil || got[0].Email != "tarun@mm.com" {
		t.Errorf("first event = %+v, want tarun@mm.com", got[0])
	}
	if got[1] != nil {
		t.Errorf("second event = %+v, want nil sign-out", got[1])
	}
}

func TestHubReplaysCurrentIdentityOnAttach(t *testing.T) {
	hub := NewHub()
	hub.Announce(&domain.Identity{Email: "roop@mm.com"})

	var got *domain.Identity
	hub.OnChange(func(ident *domain.Identity) { got = ident })

	if got == nil || got.Email != "roop@mm.com" {
		t.Fatalf("replayed identity = %+v, want roop@mm.com", got)
	}
}

func TestHubEmptyDoesNotReplay(t *testing.T) {
	hub := NewHub()

	fired := false
	hub.OnChange(func(*domain.Identity) { fired = true })

	if fired {
		t.Fatal("empty hub replayed an event on attach")
	}
}

func TestHubCancelDetaches(t *testing.T) {
	hub := NewHub()

	count := 0
	cancel := hub.OnChange(func(*domain.Identity) { count++ })
	hub.Announce(&domain.Identity{Email: "tarun@mm.com"})
	cancel()
	hub.Announce(nil)

	if count != 1 {
		t.Fatalf("listener fired %d times after cancel, want 1", count)
	}
}
