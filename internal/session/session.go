// Package session hands out the per-owner store instances. Stores are
// constructed once per owner per process and passed by reference, replacing
// the module-singleton pattern with explicit injection.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/daygraph/daygraph/internal/remote"
	"github.com/daygraph/daygraph/internal/store"
	"github.com/daygraph/daygraph/internal/timebox"
)

// Session bundles one owner's stores.
type Session struct {
	mu        sync.Mutex
	manager   *Manager
	ownerID   string
	nodes     *store.NodeStore
	timeboxes map[string]*timebox.Store
}

// Manager creates and caches sessions keyed by owner.
type Manager struct {
	mu       sync.Mutex
	remote   remote.Store
	logger   *zap.Logger
	events   store.EventSink
	sessions map[string]*Session
}

// NewManager creates a session manager over the given collaborators.
func NewManager(r remote.Store, logger *zap.Logger, events store.EventSink) *Manager {
	if events == nil {
		events = store.NopSink{}
	}
	return &Manager{
		remote:   r,
		logger:   logger,
		events:   events,
		sessions: map[string]*Session{},
	}
}

// Session returns the owner's session, loading the node collection on first
// use.
func (m *Manager) Session(ctx context.Context, ownerID string) (*Session, error) {
	if ownerID == "" {
		return nil, store.ErrUnauthenticated
	}

	m.mu.Lock()
	sess, ok := m.sessions[ownerID]
	if !ok {
		sess = &Session{
			manager:   m,
			ownerID:   ownerID,
			nodes:     store.NewNodeStore(m.remote, m.logger, store.WithEvents(m.events)),
			timeboxes: map[string]*timebox.Store{},
		}
		m.sessions[ownerID] = sess
	}
	m.mu.Unlock()

	if !ok {
		if err := sess.nodes.Load(ctx, ownerID); err != nil {
			m.mu.Lock()
			delete(m.sessions, ownerID)
			m.mu.Unlock()
			return nil, err
		}
	}
	return sess, nil
}

// OwnerID returns the session's owner.
func (s *Session) OwnerID() string {
	return s.ownerID
}

// Nodes returns the owner's node store.
func (s *Session) Nodes() *store.NodeStore {
	return s.nodes
}

// Timebox returns the owner's schedule store for one day, loading its
// persisted tasks on first use.
func (s *Session) Timebox(ctx context.Context, date string) (*timebox.Store, error) {
	s.mu.Lock()
	tb, ok := s.timeboxes[date]
	if !ok {
		tb = timebox.New(s.manager.remote, s.manager.logger, s.ownerID, date,
			timebox.WithEvents(s.manager.events))
		s.timeboxes[date] = tb
	}
	s.mu.Unlock()

	if !ok {
		if err := tb.Load(ctx); err != nil {
			s.mu.Lock()
			delete(s.timeboxes, date)
			s.mu.Unlock()
			return nil, err
		}
	}
	return tb, nil
}
