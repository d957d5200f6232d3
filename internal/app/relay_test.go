package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/core/coretest"
)

func TestRelay_DeliversToCurrentConnection(t *testing.T) {
	h := newHarness(t, "a")
	relay := NewSignalRelay(h.reg, NewSender(SimplePolicy{}))
	fresh := h.join(t, "a", "conn-a2")
	fresh.Reset()

	assert.True(t, relay.Deliver("a", core.Pong{}))
	_, ok := fresh.Last(core.EventPong)
	assert.True(t, ok)
}

func TestRelay_UnresolvedTargetIsNoop(t *testing.T) {
	h := newHarness(t, "a")
	h.resetAll()
	relay := NewSignalRelay(h.reg, NewSender(SimplePolicy{}))

	assert.False(t, relay.Deliver("nobody", core.Pong{}))
	assert.Empty(t, h.conns["a"].Messages())
}

func TestSender_ClosedConnection(t *testing.T) {
	conn := coretest.NewConn()
	conn.Close()
	s := NewSender(nil)
	assert.False(t, s.Send(conn, core.Pong{}))
}

func TestSender_BackpressurePolicies(t *testing.T) {
	tests := []struct {
		name       string
		policy     Policy
		wantClosed bool
	}{
		{name: "disconnect", policy: PolicyByName("disconnect"), wantClosed: true},
		{name: "drop", policy: PolicyByName("drop"), wantClosed: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := coretest.NewBoundedConn(1)
			s := NewSender(tt.policy)
			require.True(t, s.Send(conn, core.Pong{}))
			assert.False(t, s.Send(conn, core.Pong{}))
			assert.Equal(t, tt.wantClosed, conn.Closed())
		})
	}
}
