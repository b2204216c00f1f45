package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/highspring/timesheets/internal/event_bus"
	"github.com/highspring/timesheets/internal/utils"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Key identifies a cached query, e.g. {"timesheets", "12"}.
// Invalidating a key also invalidates every key it is a prefix of.
type Key []string

func K(parts ...any) Key {
	key := make(Key, 0, len(parts))
	for _, p := range parts {
		key = append(key, fmt.Sprint(p))
	}
	return key
}

func (k Key) String() string {
	return strings.Join(k, "/")
}

func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

type entry struct {
	key      Key
	value    any
	storedAt time.Time
}

// Cache is the shared read-through store for server state.
// It is never authoritative: mutations invalidate, they never patch.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	epoch   uint64
	group   singleflight.Group
	clock   utils.Clock
	ttl     time.Duration
}

// New creates a cache. Entries older than ttl are refetched; ttl 0 keeps them until invalidated.
func New(clock utils.Clock, ttl time.Duration) *Cache {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Cache{
		entries: make(map[string]entry),
		clock:   clock,
		ttl:     ttl,
	}
}

func (c *Cache) Get(key Key) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.clock.Now().Sub(e.storedAt) > c.ttl {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Set(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = entry{key: key, value: value, storedAt: c.clock.Now()}
}

func (c *Cache) storeIfCurrent(key Key, value any, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	c.entries[key.String()] = entry{key: key, value: value, storedAt: c.clock.Now()}
	return true
}

func (c *Cache) currentEpoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// Invalidate drops every entry under any of the given prefixes.
// Fetches that started before the call still return to their callers but are not stored.
func (c *Cache) Invalidate(prefixes ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	for s, e := range c.entries {
		for _, p := range prefixes {
			if e.key.HasPrefix(p) {
				delete(c.entries, s)
				break
			}
		}
	}
	log.Tracef("cache: invalidated %v", prefixes)
}

// Clear drops everything.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	clear(c.entries)
	log.Debug("cache: cleared")
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Fetch returns the cached value for key or loads it with fetch.
// Concurrent callers for the same key share one load. The load outlives the
// cancellation of any single caller; each caller stops waiting when its own
// ctx is done.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	epoch := c.currentEpoch()
	flight := fmt.Sprintf("%d|%s", epoch, key.String())
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flight, func() (any, error) {
		value, err := fetch(loadCtx)
		if err != nil {
			return nil, err
		}
		if !c.storeIfCurrent(key, value, epoch) {
			log.Debugf("cache: discarded stale result for %s", key)
		}
		return value, nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// InvalidateOn invalidates prefixes whenever eventType is published on bus.
func (c *Cache) InvalidateOn(bus *event_bus.EventBus, eventType event_bus.EventType, prefixes ...Key) (unsubscribe func()) {
	return bus.Subscribe(eventType, func(e event_bus.Event) error {
		c.Invalidate(prefixes...)
		return nil
	})
}

// ClearOn empties the cache whenever eventType is published on bus.
func (c *Cache) ClearOn(bus *event_bus.EventBus, eventType event_bus.EventType) (unsubscribe func()) {
	return bus.Subscribe(eventType, func(e event_bus.Event) error {
		c.Clear()
		return nil
	})
}
