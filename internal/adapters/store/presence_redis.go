// Package store mirrors the in-memory presence set into redis so an external
// user directory can read who is online.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Callbox/internal/domain"
	"github.com/dkeye/Callbox/internal/metrics"
)

// NewRedisClient parses url and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// PresenceMirror is an app.PresenceSink. Changes are queued and written by Run;
// when the queue is full the change is dropped and the mirror resyncs on the
// next restart. The in-memory tracker stays authoritative.
type PresenceMirror struct {
	client  *redis.Client
	prefix  string
	changes chan domain.PresenceChange
}

func NewPresenceMirror(client *redis.Client, prefix string, buffer int) *PresenceMirror {
	if buffer <= 0 {
		buffer = 256
	}
	return &PresenceMirror{
		client:  client,
		prefix:  prefix,
		changes: make(chan domain.PresenceChange, buffer),
	}
}

func (m *PresenceMirror) onlineKey() string { return m.prefix + "presence:online" }

func (m *PresenceMirror) userKey(id domain.UserID) string {
	return m.prefix + "presence:user:" + string(id)
}

func (m *PresenceMirror) Publish(change domain.PresenceChange) {
	if change.Kind == domain.PresenceConnectionClosed {
		return
	}
	select {
	case m.changes <- change:
	default:
		metrics.PresenceMirrorEvents.WithLabelValues("dropped").Inc()
		log.Warn().Str("module", "store.presence").Str("user", string(change.Entry.UserID)).Msg("mirror queue full, change dropped")
	}
}

// Run clears whatever a previous process left behind and applies queued
// changes until ctx is done.
func (m *PresenceMirror) Run(ctx context.Context) error {
	if err := m.Reset(ctx); err != nil {
		return err
	}
	log.Info().Str("module", "store.presence").Str("prefix", m.prefix).Msg("presence mirror running")
	for {
		select {
		case <-ctx.Done():
			return nil
		case change := <-m.changes:
			if err := m.apply(ctx, change); err != nil {
				metrics.PresenceMirrorEvents.WithLabelValues("error").Inc()
				log.Error().Err(err).Str("module", "store.presence").Str("user", string(change.Entry.UserID)).Msg("mirror write failed")
				continue
			}
			metrics.PresenceMirrorEvents.WithLabelValues("applied").Inc()
		}
	}
}

func (m *PresenceMirror) apply(ctx context.Context, change domain.PresenceChange) error {
	e := change.Entry
	pipe := m.client.TxPipeline()
	switch change.Kind {
	case domain.PresenceJoined, domain.PresenceRefreshed:
		pipe.HSet(ctx, m.userKey(e.UserID), map[string]any{
			"displayName":  e.DisplayName,
			"connectionId": e.ConnectionID,
			"since":        change.At.UTC().Format(time.RFC3339Nano),
		})
		pipe.SAdd(ctx, m.onlineKey(), string(e.UserID))
	case domain.PresenceLeft:
		pipe.Del(ctx, m.userKey(e.UserID))
		pipe.SRem(ctx, m.onlineKey(), string(e.UserID))
	default:
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("apply %s: %w", change.Kind, err)
	}
	return nil
}

// Reset removes every mirrored entry.
func (m *PresenceMirror) Reset(ctx context.Context) error {
	ids, err := m.client.SMembers(ctx, m.onlineKey()).Result()
	if err != nil {
		return fmt.Errorf("list online users: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, m.userKey(domain.UserID(id)))
	}
	keys = append(keys, m.onlineKey())
	if err := m.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("reset presence: %w", err)
	}
	return nil
}
