// Package availcache caches computed availability in Redis. Invalidation
// is mark-dirty rather than delete: a mutation writes a timestamp into a
// per-organizer dirty hash, and a cached entry is only served when it was
// computed after every mark that scopes it. This keeps invalidation O(1)
// per mutation regardless of how many (date, timezone, attendee-count)
// variants are cached.
package availcache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/model"
	"github.com/rifat-karim/meetslot/services/scheduling-service/internal/timeutil"
)

// WildcardDate marks an organizer-wide mutation that dirties every cached
// date, e.g. a weekly rule or buffer change.
const WildcardDate = "*"

// Key identifies one cached availability result.
type Key struct {
	OrganizerID   string
	EventTypeID   string
	Date          timeutil.Date
	Timezone      string
	AttendeeCount int
}

func (k Key) String() string {
	return fmt.Sprintf("avail:%s:%s:%s:%s:%d", k.OrganizerID, k.EventTypeID, k.Date, k.Timezone, k.AttendeeCount)
}

func dirtyKey(organizerID string) string {
	return "avail:dirty:" + organizerID
}

// DirtyScope describes what a storage mutation invalidates. A zero Date
// means the whole organizer (all dates).
type DirtyScope struct {
	OrganizerID string
	Date        timeutil.Date
}

// Entry is the cached payload.
type Entry struct {
	Slots      []model.Slot `json:"slots"`
	ComputedAt time.Time    `json:"computed_at"`
	ComputeMS  int64        `json:"compute_ms"`
}

// Cache is the Redis-backed availability cache.
type Cache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func New(rdb redis.Cmdable, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// Get returns the cached entry for key, or nil when the entry is absent or
// has been dirtied by a later mutation.
func (c *Cache) Get(ctx context.Context, key Key) (*Entry, error) {
	raw, err := c.rdb.Get(ctx, key.String()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}

	stale, err := c.isStale(ctx, key, e.ComputedAt)
	if err != nil {
		return nil, err
	}
	if stale {
		return nil, nil
	}
	return &e, nil
}

// Put stores a freshly computed entry.
func (c *Cache) Put(ctx context.Context, key Key, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.rdb.Set(ctx, key.String(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// MarkDirty records that data affecting the scope changed. Entries computed
// before the mark will no longer be served.
func (c *Cache) MarkDirty(ctx context.Context, scope DirtyScope) error {
	field := WildcardDate
	if !scope.Date.IsZero() {
		field = scope.Date.String()
	}
	now := time.Now().UTC().UnixNano()
	if err := c.rdb.HSet(ctx, dirtyKey(scope.OrganizerID), field, now).Err(); err != nil {
		return fmt.Errorf("mark dirty: %w", err)
	}
	// The dirty hash outlives every entry it can invalidate.
	if err := c.rdb.Expire(ctx, dirtyKey(scope.OrganizerID), 2*c.ttl).Err(); err != nil {
		return fmt.Errorf("mark dirty expire: %w", err)
	}
	return nil
}

func (c *Cache) isStale(ctx context.Context, key Key, computedAt time.Time) (bool, error) {
	marks, err := c.rdb.HMGet(ctx, dirtyKey(key.OrganizerID), key.Date.String(), WildcardDate).Result()
	if err != nil {
		return false, fmt.Errorf("read dirty marks: %w", err)
	}
	for _, m := range marks {
		if m == nil {
			continue
		}
		s, ok := m.(string)
		if !ok {
			continue
		}
		nanos, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		if !computedAt.After(time.Unix(0, nanos)) {
			return true, nil
		}
	}
	return false, nil
}

// ReadyCheck pings Redis for the readiness endpoint.
func (c *Cache) ReadyCheck(ctx context.Context) error {
	if pinger, ok := c.rdb.(interface {
		Ping(ctx context.Context) *redis.StatusCmd
	}); ok {
		return pinger.Ping(ctx).Err()
	}
	return nil
}
