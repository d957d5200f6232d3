package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/domain"
	"github.com/dkeye/Callbox/internal/metrics"
)

// PresenceListener is told about every successful bind and unbind while the
// registry lock is held, together with all live connections at that instant.
// OnAttach runs under the same lock for each new connection, so whatever it
// sends precedes any later change.
type PresenceListener interface {
	OnPresenceChange(change domain.PresenceChange, live []core.SignalConnection)
	OnAttach(id core.ConnectionID, conn core.SignalConnection)
}

type connEntry struct {
	Conn      core.SignalConnection
	User      *domain.User
	CreatedAt time.Time
}

// Registry maps live connections to the identity they joined as.
type Registry struct {
	mu       sync.RWMutex
	conns    map[core.ConnectionID]*connEntry
	byUser   map[domain.UserID]core.ConnectionID
	listener PresenceListener
	now      func() time.Time
}

func NewRegistry(listener PresenceListener) *Registry {
	return &Registry{
		conns:    make(map[core.ConnectionID]*connEntry),
		byUser:   make(map[domain.UserID]core.ConnectionID),
		listener: listener,
		now:      time.Now,
	}
}

// Attach registers a live connection that has not joined yet and lets the
// listener greet it before any other presence change can reach it.
func (r *Registry) Attach(id core.ConnectionID, conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; !ok {
		metrics.ConnectionsLive.Inc()
	}
	r.conns[id] = &connEntry{Conn: conn, CreatedAt: r.now()}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Msg("attached connection")
	if r.listener != nil {
		r.listener.OnAttach(id, conn)
	}
}

// Bind registers or refreshes the identity of a connection. Binding an
// identity that is already reachable elsewhere moves it to this connection.
func (r *Registry) Bind(id core.ConnectionID, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrInvalidJoin
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[id]
	if !ok {
		return core.ErrConnectionClosed
	}
	if entry.User != nil && entry.User.ID != user.ID {
		return domain.AlreadyJoined(entry.User.ID)
	}

	prev, had := r.byUser[user.ID]
	u := *user
	entry.User = &u
	r.byUser[user.ID] = id

	kind := domain.PresenceJoined
	if had {
		kind = domain.PresenceRefreshed
	}
	log.Info().
		Str("module", "app.registry").
		Str("conn", string(id)).
		Str("user", string(user.ID)).
		Str("previous_conn", string(prev)).
		Str("kind", kind.String()).
		Msg("bound identity")
	r.notifyLocked(domain.PresenceChange{
		Kind:         kind,
		Entry:        presenceEntry(&u, id),
		ConnectionID: string(id),
		At:           r.now(),
	})
	return nil
}

// Resolve returns the active connection of an identity.
func (r *Registry) Resolve(user domain.UserID) (core.ConnectionID, core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUser[user]
	if !ok {
		return "", nil, false
	}
	return id, r.conns[id].Conn, true
}

// Unbind removes a connection. It returns the identity that became
// unreachable, which only happens when id was that identity's active
// connection. Unknown ids are ignored.
func (r *Registry) Unbind(id core.ConnectionID) (*domain.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	delete(r.conns, id)
	metrics.ConnectionsLive.Dec()

	change := domain.PresenceChange{
		Kind:         domain.PresenceConnectionClosed,
		ConnectionID: string(id),
		At:           r.now(),
	}
	var gone *domain.User
	if entry.User != nil && r.byUser[entry.User.ID] == id {
		delete(r.byUser, entry.User.ID)
		change.Kind = domain.PresenceLeft
		change.Entry = presenceEntry(entry.User, id)
		gone = entry.User
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("kind", change.Kind.String()).Msg("unbind connection")
	r.notifyLocked(change)
	return gone, gone != nil
}

// Conn returns the connection registered under id.
func (r *Registry) Conn(id core.ConnectionID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return e.Conn, true
}

// UserOf returns the identity a connection joined as.
func (r *Registry) UserOf(id core.ConnectionID) (*domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.User == nil {
		return nil, false
	}
	u := *e.User
	return &u, true
}

// User returns the record of a reachable identity.
func (r *Registry) User(user domain.UserID) (*domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUser[user]
	if !ok {
		return nil, false
	}
	u := *r.conns[id].User
	return &u, true
}

func (r *Registry) liveLocked() []core.SignalConnection {
	out := make([]core.SignalConnection, 0, len(r.conns))
	for _, e := range r.conns {
		out = append(out, e.Conn)
	}
	return out
}

func (r *Registry) notifyLocked(change domain.PresenceChange) {
	if r.listener == nil {
		return
	}
	r.listener.OnPresenceChange(change, r.liveLocked())
}

func presenceEntry(u *domain.User, id core.ConnectionID) domain.PresenceEntry {
	return domain.PresenceEntry{UserID: u.ID, DisplayName: u.DisplayName, ConnectionID: string(id)}
}
