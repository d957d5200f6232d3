package store

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Callbox/internal/app"
	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/core/coretest"
	"github.com/dkeye/Callbox/internal/domain"
)

func newMirror(t *testing.T, buffer int) (*PresenceMirror, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewPresenceMirror(client, "test:", buffer), mr
}

// mirrored reads the presence set back from redis, sorted by identity.
func mirrored(t *testing.T, m *PresenceMirror) []domain.PresenceEntry {
	t.Helper()
	ctx := context.Background()
	ids, err := m.client.SMembers(ctx, m.onlineKey()).Result()
	require.NoError(t, err)
	sort.Strings(ids)
	out := make([]domain.PresenceEntry, 0, len(ids))
	for _, id := range ids {
		fields, err := m.client.HGetAll(ctx, m.userKey(domain.UserID(id))).Result()
		require.NoError(t, err)
		out = append(out, domain.PresenceEntry{
			UserID:       domain.UserID(id),
			DisplayName:  fields["displayName"],
			ConnectionID: fields["connectionId"],
		})
	}
	return out
}

func runMirror(t *testing.T, m *PresenceMirror) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func TestPresenceMirror_FollowsRegistry(t *testing.T) {
	m, mr := newMirror(t, 16)
	runMirror(t, m)

	presence := app.NewPresenceTracker(nil, m)
	reg := app.NewRegistry(presence)
	for _, id := range []string{"c1", "c2"} {
		reg.Attach(core.ConnectionID(id), coretest.NewConn())
	}
	alice, _ := domain.NewUser("u1", "Alice", "")
	bob, _ := domain.NewUser("u2", "Bob", "")
	require.NoError(t, reg.Bind("c1", alice))
	require.NoError(t, reg.Bind("c2", bob))

	require.Eventually(t, func() bool {
		ok, _ := mr.SIsMember("test:presence:online", "u2")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Alice", mr.HGet("test:presence:user:u1", "displayName"))

	reg.Unbind("c1")
	require.Eventually(t, func() bool {
		ok, _ := mr.SIsMember("test:presence:online", "u1")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, mr.Exists("test:presence:user:u1"))

	assert.Equal(t, []domain.PresenceEntry{{UserID: "u2", DisplayName: "Bob", ConnectionID: "c2"}}, mirrored(t, m))
}

func TestPresenceMirror_ResetClearsPreviousRun(t *testing.T) {
	m, mr := newMirror(t, 16)
	_, err := mr.SAdd("test:presence:online", "ghost")
	require.NoError(t, err)
	mr.HSet("test:presence:user:ghost", "displayName", "Ghost")
	require.NoError(t, mr.Set("other:key", "kept"))

	require.NoError(t, m.Reset(context.Background()))
	assert.False(t, mr.Exists("test:presence:online"))
	assert.False(t, mr.Exists("test:presence:user:ghost"))
	assert.True(t, mr.Exists("other:key"))
}

func TestPresenceMirror_PublishNeverBlocks(t *testing.T) {
	m, _ := newMirror(t, 1)
	change := domain.PresenceChange{Kind: domain.PresenceJoined, Entry: domain.PresenceEntry{UserID: "u1"}}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			m.Publish(change)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	assert.Len(t, m.changes, 1)

	m.Publish(domain.PresenceChange{Kind: domain.PresenceConnectionClosed})
	assert.Len(t, m.changes, 1)
}

func TestNewRedisClientErrors(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = NewRedisClient(ctx, "redis://"+addr)
	assert.Error(t, err)
}
