package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/core/coretest"
	"github.com/dkeye/Callbox/internal/domain"
)

type harness struct {
	reg      *Registry
	presence *PresenceTracker
	calls    *CallManager
	conns    map[domain.UserID]*coretest.Conn
}

func newHarness(t *testing.T, users ...domain.UserID) *harness {
	t.Helper()
	sender := NewSender(SimplePolicy{})
	presence := NewPresenceTracker(FullSnapshotBroadcaster{Sender: sender})
	reg := NewRegistry(presence)
	h := &harness{
		reg:      reg,
		presence: presence,
		calls:    NewCallManager(reg, NewSignalRelay(reg, sender)),
		conns:    make(map[domain.UserID]*coretest.Conn),
	}
	for _, u := range users {
		h.join(t, u, core.ConnectionID("conn-"+string(u)))
	}
	return h
}

func (h *harness) join(t *testing.T, id domain.UserID, connID core.ConnectionID) *coretest.Conn {
	t.Helper()
	conn := coretest.NewConn()
	h.reg.Attach(connID, conn)
	user, err := domain.NewUser(id, "Name "+string(id), "")
	require.NoError(t, err)
	require.NoError(t, h.reg.Bind(connID, user))
	h.conns[id] = conn
	return conn
}

func (h *harness) caller(id domain.UserID) core.Caller {
	return core.Caller{UserID: id, DisplayName: "Name " + string(id)}
}

func (h *harness) resetAll() {
	for _, c := range h.conns {
		c.Reset()
	}
}

type recordingListener struct {
	changes  []domain.PresenceChange
	live     []int
	attached []core.ConnectionID
}

func (l *recordingListener) OnAttach(id core.ConnectionID, _ core.SignalConnection) {
	l.attached = append(l.attached, id)
}

func (l *recordingListener) OnPresenceChange(change domain.PresenceChange, live []core.SignalConnection) {
	l.changes = append(l.changes, change)
	l.live = append(l.live, len(live))
}
