// Package cache keeps the fast, expiring copy of in-progress cooking sessions in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/cookmate/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL is applied when no TTL is configured
const DefaultSessionTTL = time.Hour

// Connect parses a Redis URL and verifies the connection with a ping
func Connect(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// SessionCache stores CachedSession documents under session:{id} with a sliding TTL
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionCache creates a session cache. A non-positive ttl falls back to DefaultSessionTTL.
func NewSessionCache(client *redis.Client, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionCache{client: client, ttl: ttl}
}

func sessionKey(id uuid.UUID) string {
	return "session:" + id.String()
}

func timerKey(sessionID uuid.UUID, timerID string) string {
	return "timer:" + sessionID.String() + ":" + timerID
}

// Get returns the cached session, or nil when the entry is absent or expired
func (c *SessionCache) Get(ctx context.Context, id uuid.UUID) (*models.CachedSession, error) {
	raw, err := c.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached session: %w", err)
	}

	var entry models.CachedSession
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cached session: %w", err)
	}
	entry.Context.Normalize()
	if entry.Timers == nil {
		entry.Timers = []models.CookingTimer{}
	}
	return &entry, nil
}

// Set writes the entry and resets its TTL
func (c *SessionCache) Set(ctx context.Context, entry *models.CachedSession) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cached session: %w", err)
	}
	if err := c.client.Set(ctx, sessionKey(entry.SessionID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cached session: %w", err)
	}
	return nil
}

// Update applies mutate to the entry when one exists and writes it back with a fresh TTL.
// It returns nil, nil when there is nothing to update; a miss never creates an entry.
func (c *SessionCache) Update(ctx context.Context, id uuid.UUID, mutate func(*models.CachedSession)) (*models.CachedSession, error) {
	entry, err := c.Get(ctx, id)
	if err != nil || entry == nil {
		return nil, err
	}
	mutate(entry)
	if err := c.Set(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Delete removes the session entry and is a no-op when it is already gone
func (c *SessionCache) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete cached session: %w", err)
	}
	return nil
}

// SetTimer stores a timer that expires on its own when it ends
func (c *SessionCache) SetTimer(ctx context.Context, sessionID uuid.UUID, timer models.CookingTimer) error {
	raw, err := json.Marshal(timer)
	if err != nil {
		return fmt.Errorf("failed to encode timer: %w", err)
	}
	ttl := time.Until(timer.EndsAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := c.client.Set(ctx, timerKey(sessionID, timer.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write timer: %w", err)
	}
	return nil
}

// GetTimer returns a running timer, or nil once it has finished or been cancelled
func (c *SessionCache) GetTimer(ctx context.Context, sessionID uuid.UUID, timerID string) (*models.CookingTimer, error) {
	raw, err := c.client.Get(ctx, timerKey(sessionID, timerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read timer: %w", err)
	}
	var timer models.CookingTimer
	if err := json.Unmarshal(raw, &timer); err != nil {
		return nil, fmt.Errorf("failed to decode timer: %w", err)
	}
	return &timer, nil
}

// DeleteTimer removes a timer and reports whether it was still running
func (c *SessionCache) DeleteTimer(ctx context.Context, sessionID uuid.UUID, timerID string) (bool, error) {
	n, err := c.client.Del(ctx, timerKey(sessionID, timerID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete timer: %w", err)
	}
	return n > 0, nil
}

// Ping checks if Redis is reachable
func (c *SessionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
