// Package sessioncache provides an optional Redis-backed snapshot cache for
// the mutable slice of SessionConfig a running session may update in-place
// (currently: speech speed, voice) via AssistantConfigUpdateRequest. It lets
// a Session Coordinator that restarts within the same process lifetime
// rehydrate the last known settings across a reconnect. It is not
// cross-process persistence of conversation history. Keys are prefixed,
// values JSON, and every Save applies a TTL.
package sessioncache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Load when no snapshot exists for a session ID.
var ErrNotFound = errors.New("sessioncache: snapshot not found")

// Snapshot is the mutable subset of SessionConfig worth rehydrating.
type Snapshot struct {
	Voice       string  `json:"voice"`
	SpeechSpeed float64 `json:"speech_speed"`
}

// Cache is a Redis-backed Snapshot store keyed by session ID.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default 24h snapshot lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithPrefix overrides the default "voiceorchestrator" Redis key prefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

// New builds a Cache over client.
func New(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{client: client, ttl: 24 * time.Hour, prefix: "voiceorchestrator"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) key(sessionID string) string {
	return fmt.Sprintf("%s:session:%s:config", c.prefix, sessionID)
}

// Save persists snap for sessionID with the configured TTL.
func (c *Cache) Save(ctx context.Context, sessionID string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("sessioncache: marshal: %w", err)
	}
	if err := c.client.Set(ctx, c.key(sessionID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("sessioncache: set: %w", err)
	}
	return nil
}

// Load retrieves the last snapshot saved for sessionID.
func (c *Cache) Load(ctx context.Context, sessionID string) (Snapshot, error) {
	data, err := c.client.Get(ctx, c.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("sessioncache: get: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("sessioncache: unmarshal: %w", err)
	}
	return snap, nil
}
