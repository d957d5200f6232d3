package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/Callbox/internal/domain"
)

func TestCallRateLimiter_SlidingWindow(t *testing.T) {
	rl := NewCallRateLimiter(2, time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u2"), "limits are per identity")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("u1"))
}

func TestCallRateLimiter_Prune(t *testing.T) {
	rl := NewCallRateLimiter(1, time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("u1")
	now = now.Add(30 * time.Second)
	rl.Allow("u2")
	now = now.Add(40 * time.Second)
	rl.Prune()

	assert.NotContains(t, rl.history, domain.UserID("u1"))
	assert.Contains(t, rl.history, domain.UserID("u2"))
}

func TestCallRateLimiter_Disabled(t *testing.T) {
	rl := NewCallRateLimiter(0, time.Minute)
	assert.Nil(t, rl)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("u1"))
	}
	rl.Prune()
}
