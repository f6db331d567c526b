// Copyright (C) 2025 linguamonkey.app <dev@linguamonkey.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// presence:{userId} -> last-seen unix nanos, sliding TTL
	presencePrefix = "presence:"
)

// PresenceTracker keeps per-user online state as TTL'd Redis keys.
// Entries are overwrite-only; concurrent touches are last-write-wins.
type PresenceTracker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPresenceTracker(rdb *redis.Client, ttl time.Duration) *PresenceTracker {
	return &PresenceTracker{rdb: rdb, ttl: ttl}
}

// Touch marks the user online and slides the expiry window.
func (t *PresenceTracker) Touch(ctx context.Context, userID string) error {
	key := presencePrefix + userID
	if err := t.rdb.Set(ctx, key, time.Now().UnixNano(), t.ttl).Err(); err != nil {
		return fmt.Errorf("failed to touch presence: %w", err)
	}
	return nil
}

// Offline drops the entry immediately, used when the user's last
// connection closes.
func (t *PresenceTracker) Offline(ctx context.Context, userID string) error {
	if err := t.rdb.Del(ctx, presencePrefix+userID).Err(); err != nil {
		return fmt.Errorf("failed to clear presence: %w", err)
	}
	return nil
}

func (t *PresenceTracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := t.rdb.Exists(ctx, presencePrefix+userID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check presence: %w", err)
	}
	return n > 0, nil
}

// LastSeen returns the recorded timestamp and whether the user is
// currently considered online.
func (t *PresenceTracker) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	val, err := t.rdb.Get(ctx, presencePrefix+userID).Int64()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read presence: %w", err)
	}
	return time.Unix(0, val), true, nil
}
