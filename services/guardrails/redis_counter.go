// Copyright (C) 2025 Clawdesk (engineering@clawdesk.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package guardrails

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisCounter is a Redis-backed ActionCounter for multi-instance
// deployments, where every service replica must see the same per-ticket
// action counts.
//
// Description:
//
//	Each ticket maps to a sorted set keyed by clawdesk:taskgate:<ticket>,
//	scored by Unix milliseconds. Record trims entries older than the
//	retention horizon and refreshes the key TTL, so abandoned tickets
//	expire out of Redis on their own. Counting is a ZCOUNT over the
//	cutoff range.
//
// Thread Safety: Safe for concurrent use; Redis serializes the commands.
type RedisCounter struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisCounter creates a counter over an existing Redis client. Zero
// retention defaults to 24 hours.
func NewRedisCounter(client *redis.Client, retention time.Duration) *RedisCounter {
	if client == nil {
		panic("NewRedisCounter: client must not be nil")
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisCounter{client: client, retention: retention}
}

func (c *RedisCounter) key(ticketID string) string {
	return "clawdesk:taskgate:" + ticketID
}

func (c *RedisCounter) Record(ctx context.Context, ticketID string) error {
	now := time.Now()
	key := c.key(ticketID)
	floor := now.Add(-c.retention).UnixMilli()

	pipe := c.client.TxPipeline()
	// Member must be unique per action; two actions in the same
	// millisecond would otherwise collapse into one entry.
	pipe.ZAdd(ctx, key, &redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d:%s", now.UnixMilli(), uuid.NewString()),
	})
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", floor))
	pipe.Expire(ctx, key, c.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("guardrails: record action: %w", err)
	}
	return nil
}

func (c *RedisCounter) CountSince(ctx context.Context, ticketID string, cutoff time.Time) (int, error) {
	n, err := c.client.ZCount(ctx, c.key(ticketID),
		fmt.Sprintf("%d", cutoff.UnixMilli()), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("guardrails: count actions: %w", err)
	}
	return int(n), nil
}
