// Package cache stores generated learning paths in Redis
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/Chandra-cc/personalized-learning/internal/metrics"
	"github.com/Chandra-cc/personalized-learning/internal/models"
)

const keyPrefix = "learning:path:"

// Entry is a cached path
type Entry struct {
	Steps    []models.PersonalizedStep `json:"steps"`
	Enhanced bool                      `json:"enhanced"`
}

// PathCache looks up and stores paths by goal and preference profile
type PathCache interface {
	Get(ctx context.Context, goal string, prefs *models.PreferenceProfile) (*Entry, error)
	Set(ctx context.Context, goal string, prefs *models.PreferenceProfile, e *Entry) error
}

// RedisPathCache implements PathCache on Redis
type RedisPathCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisPathCache creates a cache with the given entry TTL
func NewRedisPathCache(client redis.UniversalClient, ttl time.Duration) *RedisPathCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisPathCache{client: client, ttl: ttl}
}

// Get returns the cached entry or nil on a miss
func (c *RedisPathCache) Get(ctx context.Context, goal string, prefs *models.PreferenceProfile) (*Entry, error) {
	key, err := Key(goal, prefs)
	if err != nil {
		return nil, err
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheLookups.WithLabelValues("miss").Inc()
			return nil, nil
		}
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to read cached path: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to decode cached path: %w", err)
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &e, nil
}

// Set stores an entry
func (c *RedisPathCache) Set(ctx context.Context, goal string, prefs *models.PreferenceProfile, e *Entry) error {
	key, err := Key(goal, prefs)
	if err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode path: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache path: %w", err)
	}
	return nil
}

// Key derives the cache key from the resolved goal and the fields of the
// profile that affect path generation
func Key(goal string, prefs *models.PreferenceProfile) (string, error) {
	var profile []byte
	if prefs != nil {
		p := *prefs
		p.UpdatedAt = time.Time{}
		b, err := json.Marshal(p)
		if err != nil {
			return "", fmt.Errorf("failed to encode preferences: %w", err)
		}
		profile = b
	}

	h := sha256.New()
	h.Write([]byte(goal))
	h.Write([]byte{0})
	h.Write(profile)
	return keyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// Noop is a PathCache that never stores anything
type Noop struct{}

// Get always misses
func (Noop) Get(context.Context, string, *models.PreferenceProfile) (*Entry, error) {
	return nil, nil
}

// Set discards the entry
func (Noop) Set(context.Context, string, *models.PreferenceProfile, *Entry) error {
	return nil
}
