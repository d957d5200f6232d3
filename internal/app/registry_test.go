package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/core/coretest"
	"github.com/dkeye/Callbox/internal/domain"
)

func mustUser(t *testing.T, id domain.UserID) *domain.User {
	t.Helper()
	u, err := domain.NewUser(id, "", "")
	require.NoError(t, err)
	return u
}

func TestRegistry_BindResolveUnbind(t *testing.T) {
	l := &recordingListener{}
	r := NewRegistry(l)
	conn := coretest.NewConn()
	r.Attach("c1", conn)

	_, _, ok := r.Resolve("u1")
	assert.False(t, ok)

	require.NoError(t, r.Bind("c1", mustUser(t, "u1")))
	id, got, ok := r.Resolve("u1")
	require.True(t, ok)
	assert.Equal(t, "c1", string(id))
	assert.Same(t, conn, got)

	user, offline := r.Unbind("c1")
	require.True(t, offline)
	assert.Equal(t, domain.UserID("u1"), user.ID)
	_, _, ok = r.Resolve("u1")
	assert.False(t, ok)

	require.Len(t, l.changes, 2)
	assert.Equal(t, domain.PresenceJoined, l.changes[0].Kind)
	assert.Equal(t, domain.PresenceLeft, l.changes[1].Kind)
	assert.Equal(t, []int{1, 0}, l.live)
	assert.Equal(t, []core.ConnectionID{"c1"}, l.attached)
}

func TestRegistry_BindRejectsMissingIdentity(t *testing.T) {
	r := NewRegistry(nil)
	r.Attach("c1", coretest.NewConn())

	err := r.Bind("c1", &domain.User{})
	assert.ErrorIs(t, err, domain.ErrInvalidJoin)

	err = r.Bind("c1", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidJoin)
}

func TestRegistry_BindIsIdempotentPerConnection(t *testing.T) {
	l := &recordingListener{}
	r := NewRegistry(l)
	r.Attach("c1", coretest.NewConn())

	require.NoError(t, r.Bind("c1", mustUser(t, "u1")))
	require.NoError(t, r.Bind("c1", mustUser(t, "u1")))

	id, _, ok := r.Resolve("u1")
	require.True(t, ok)
	assert.Equal(t, "c1", string(id))
	require.Len(t, l.changes, 2)
	assert.Equal(t, domain.PresenceRefreshed, l.changes[1].Kind)
}

func TestRegistry_RebindIsLastWriterWins(t *testing.T) {
	r := NewRegistry(nil)
	r.Attach("old", coretest.NewConn())
	r.Attach("new", coretest.NewConn())

	require.NoError(t, r.Bind("old", mustUser(t, "u1")))
	require.NoError(t, r.Bind("new", mustUser(t, "u1")))

	id, _, ok := r.Resolve("u1")
	require.True(t, ok)
	assert.Equal(t, "new", string(id))

	// The superseded transport closing late must not take the identity offline.
	_, offline := r.Unbind("old")
	assert.False(t, offline)
	id, _, ok = r.Resolve("u1")
	require.True(t, ok)
	assert.Equal(t, "new", string(id))

	_, offline = r.Unbind("new")
	assert.True(t, offline)
}

func TestRegistry_RejectsIdentitySwitch(t *testing.T) {
	r := NewRegistry(nil)
	r.Attach("c1", coretest.NewConn())
	require.NoError(t, r.Bind("c1", mustUser(t, "u1")))

	err := r.Bind("c1", mustUser(t, "u2"))
	assert.ErrorIs(t, err, domain.ErrInvalidJoin)
	assert.ErrorIs(t, err, domain.ErrAlreadyJoined)

	_, _, ok := r.Resolve("u2")
	assert.False(t, ok)
}

func TestRegistry_BindUnknownConnection(t *testing.T) {
	r := NewRegistry(nil)
	err := r.Bind("ghost", mustUser(t, "u1"))
	assert.Error(t, err)
	_, _, ok := r.Resolve("u1")
	assert.False(t, ok)
}

func TestRegistry_UnbindUnjoinedAndUnknown(t *testing.T) {
	l := &recordingListener{}
	r := NewRegistry(l)
	r.Attach("c1", coretest.NewConn())

	_, offline := r.Unbind("c1")
	assert.False(t, offline)
	_, offline = r.Unbind("c1")
	assert.False(t, offline)

	require.Len(t, l.changes, 1)
	assert.Equal(t, domain.PresenceConnectionClosed, l.changes[0].Kind)
}
