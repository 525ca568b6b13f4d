package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	dom "miniblog/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	keyFeedGen    = "feed:gen"
	keyFeedPrefix = "feed:all:"
)

// FeedCache caches the full post feed (posts joined with authors) in Redis.
//
// Entries are keyed by a generation number that Invalidate bumps. A reader that loaded
// the store before a write can only fill the slot of the generation it started with,
// which nobody reads any more, so a stale feed never becomes visible.
type FeedCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFeedCache returns a new FeedCache.
func NewFeedCache(rdb *redis.Client, ttl time.Duration) *FeedCache {
	return &FeedCache{rdb: rdb, ttl: ttl}
}

func feedKey(gen int64) string { return keyFeedPrefix + strconv.FormatInt(gen, 10) }

// Generation returns the current feed generation; 0 before the first write.
func (c *FeedCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, keyFeedGen).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Get returns the feed cached for gen or nil if miss.
func (c *FeedCache) Get(ctx context.Context, gen int64) ([]dom.PostView, error) {
	b, err := c.rdb.Get(ctx, feedKey(gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	list := []dom.PostView{}
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Set stores the feed loaded under gen.
func (c *FeedCache) Set(ctx context.Context, gen int64, list []dom.PostView) error {
	if list == nil {
		list = []dom.PostView{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, feedKey(gen), b, c.ttl).Err()
}

// Invalidate starts a new generation after any post write and drops the previous entry.
func (c *FeedCache) Invalidate(ctx context.Context) error {
	gen, err := c.rdb.Incr(ctx, keyFeedGen).Result()
	if err != nil {
		return err
	}
	return c.rdb.Del(ctx, feedKey(gen-1)).Err()
}
