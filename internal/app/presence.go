package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/domain"
	"github.com/dkeye/Callbox/internal/metrics"
)

// Broadcaster pushes presence changes to clients. Welcome greets a single new
// connection with its id and the current online set.
type Broadcaster interface {
	Broadcast(change domain.PresenceChange, snapshot []domain.PresenceEntry, live []core.SignalConnection)
	Welcome(id core.ConnectionID, conn core.SignalConnection, snapshot []domain.PresenceEntry)
}

// PresenceSink receives every change after it was applied. Publish must not
// block: it runs under the registry lock.
type PresenceSink interface {
	Publish(change domain.PresenceChange)
}

// PresenceTracker keeps the online set derived from registry changes, in
// insertion order.
type PresenceTracker struct {
	mu      sync.RWMutex
	entries []domain.PresenceEntry
	index   map[domain.UserID]int

	broadcaster Broadcaster
	sinks       []PresenceSink
}

func NewPresenceTracker(b Broadcaster, sinks ...PresenceSink) *PresenceTracker {
	return &PresenceTracker{
		index:       make(map[domain.UserID]int),
		broadcaster: b,
		sinks:       sinks,
	}
}

func (t *PresenceTracker) OnPresenceChange(change domain.PresenceChange, live []core.SignalConnection) {
	t.mu.Lock()
	t.applyLocked(change)
	snap := t.snapshotLocked()
	t.mu.Unlock()

	metrics.UsersOnline.Set(float64(len(snap)))
	log.Debug().Str("module", "app.presence").Str("kind", change.Kind.String()).Str("user", string(change.Entry.UserID)).Int("online", len(snap)).Int("live", len(live)).Msg("presence changed")

	if t.broadcaster != nil {
		t.broadcaster.Broadcast(change, snap, live)
	}
	for _, s := range t.sinks {
		s.Publish(change)
	}
}

func (t *PresenceTracker) OnAttach(id core.ConnectionID, conn core.SignalConnection) {
	if t.broadcaster == nil {
		return
	}
	t.broadcaster.Welcome(id, conn, t.Snapshot())
}

func (t *PresenceTracker) applyLocked(change domain.PresenceChange) {
	e := change.Entry
	switch change.Kind {
	case domain.PresenceJoined, domain.PresenceRefreshed:
		if i, ok := t.index[e.UserID]; ok {
			t.entries[i] = e
			return
		}
		t.index[e.UserID] = len(t.entries)
		t.entries = append(t.entries, e)
	case domain.PresenceLeft:
		i, ok := t.index[e.UserID]
		if !ok {
			return
		}
		t.entries = append(t.entries[:i], t.entries[i+1:]...)
		delete(t.index, e.UserID)
		for j := i; j < len(t.entries); j++ {
			t.index[t.entries[j].UserID] = j
		}
	case domain.PresenceConnectionClosed:
	}
}

// Snapshot returns the online set in insertion order.
func (t *PresenceTracker) Snapshot() []domain.PresenceEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

func (t *PresenceTracker) snapshotLocked() []domain.PresenceEntry {
	out := make([]domain.PresenceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// FullSnapshotBroadcaster sends the whole online set to every live connection
// on any change, plus a peer-left notice when an identity went away.
type FullSnapshotBroadcaster struct {
	Sender *Sender
}

type encodedEvent struct {
	frame core.Frame
	typ   string
}

func encodeEvent(ev core.Event) (encodedEvent, error) {
	f, err := core.Encode(ev)
	return encodedEvent{frame: f, typ: ev.EventType()}, err
}

func (b FullSnapshotBroadcaster) Welcome(id core.ConnectionID, conn core.SignalConnection, snapshot []domain.PresenceEntry) {
	if !b.Sender.Send(conn, core.AssignedConnectionID{ConnectionID: id}) {
		return
	}
	b.Sender.Send(conn, core.PresenceSnapshot{Users: snapshot})
}

func (b FullSnapshotBroadcaster) Broadcast(change domain.PresenceChange, snapshot []domain.PresenceEntry, live []core.SignalConnection) {
	snap, err := encodeEvent(core.PresenceSnapshot{Users: snapshot})
	if err != nil {
		log.Error().Err(err).Str("module", "app.presence").Msg("encode snapshot")
		return
	}
	out := []encodedEvent{snap}
	if change.Kind == domain.PresenceLeft {
		left, err := encodeEvent(core.PeerLeft{
			UserID:       change.Entry.UserID,
			ConnectionID: core.ConnectionID(change.ConnectionID),
		})
		if err == nil {
			out = append(out, left)
		}
	}

	for _, conn := range live {
		for _, ev := range out {
			if !b.Sender.SendFrame(conn, ev.frame, ev.typ) {
				break
			}
		}
	}
	metrics.PresenceBroadcasts.Inc()
}
