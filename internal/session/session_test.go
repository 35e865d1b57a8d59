package session

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/remote"
	"github.com/daygraph/daygraph/internal/store"
)

func TestSessionRequiresOwner(t *testing.T) {
	t.Parallel()

	m := NewManager(remote.NewMemoryStore(), zap.NewNop(), nil)
	if _, err := m.Session(context.Background(), ""); !errors.Is(err, store.ErrUnauthenticated) {
		t.Errorf("Session(\"\") error = %v, want ErrUnauthenticated", err)
	}
}

func TestSessionIsCachedPerOwner(t *testing.T) {
	t.Parallel()

	m := NewManager(remote.NewMemoryStore(), zap.NewNop(), nil)

	first, err := m.Session(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	again, err := m.Session(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if first != again {
		t.Error("same owner resolved to different sessions")
	}
	if first.OwnerID() != "owner-1" {
		t.Errorf("OwnerID() = %q", first.OwnerID())
	}

	other, err := m.Session(context.Background(), "owner-2")
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if other == first {
		t.Error("different owners share a session")
	}
}

func TestSessionIsolatesOwners(t *testing.T) {
	t.Parallel()

	m := NewManager(remote.NewMemoryStore(), zap.NewNop(), nil)
	ctx := context.Background()

	one, _ := m.Session(ctx, "owner-1")
	if _, err := one.Nodes().Create(ctx, store.NodeDraft{Title: "mine"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	two, _ := m.Session(ctx, "owner-2")
	if got := len(two.Nodes().Nodes()); got != 0 {
		t.Errorf("owner-2 sees %d foreign nodes", got)
	}
}

func TestTimeboxIsCachedPerDate(t *testing.T) {
	t.Parallel()

	m := NewManager(remote.NewMemoryStore(), zap.NewNop(), nil)
	ctx := context.Background()

	sess, err := m.Session(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}

	day, err := sess.Timebox(ctx, "2026-01-02")
	if err != nil {
		t.Fatalf("Timebox() error = %v", err)
	}
	same, err := sess.Timebox(ctx, "2026-01-02")
	if err != nil {
		t.Fatalf("Timebox() error = %v", err)
	}
	if day != same {
		t.Error("same date resolved to different timeboxes")
	}

	other, err := sess.Timebox(ctx, "2026-01-03")
	if err != nil {
		t.Fatalf("Timebox() error = %v", err)
	}
	if other == day {
		t.Error("different dates share a timebox")
	}
}
