package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"showpass-core/internal/logger"
	"showpass-core/internal/models"
)

// EventCache keeps event snapshots in Redis for a short TTL so receipt
// assembly and recommendation display don't hammer the backend with the
// same event lookups. A nil cache (or nil client) is a valid no-op cache.
type EventCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewEventCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *EventCache {
	return &EventCache{client: client, ttl: ttl, log: log}
}

func eventKey(eventID int64) string {
	return fmt.Sprintf("event_snapshot:%d", eventID)
}

// Get returns the cached snapshot or nil on miss. Cache failures degrade to
// a miss; they never fail the lookup.
func (c *EventCache) Get(ctx context.Context, eventID int64) *models.Event {
	if c == nil || c.client == nil {
		return nil
	}

	raw, err := c.client.Get(ctx, eventKey(eventID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		if c.log != nil {
			c.log.Warn("CACHE", fmt.Sprintf("event %d lookup failed: %v", eventID, err))
		}
		return nil
	}

	var event models.Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		if c.log != nil {
			c.log.Warn("CACHE", fmt.Sprintf("event %d entry corrupt, dropping: %v", eventID, err))
		}
		c.client.Del(ctx, eventKey(eventID))
		return nil
	}
	return &event
}

func (c *EventCache) Put(ctx context.Context, event *models.Event) {
	if c == nil || c.client == nil || event == nil {
		return
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, eventKey(event.ID), raw, c.ttl).Err(); err != nil && c.log != nil {
		c.log.Warn("CACHE", fmt.Sprintf("failed to store event %d: %v", event.ID, err))
	}
}
