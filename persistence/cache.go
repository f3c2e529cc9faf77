package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/aperoland/aperoland-chat/types"
	lru "github.com/hashicorp/golang-lru"
)

type cachedHistory struct {
	limit int
	msgs  []types.ChatMessage
}

// CachedGateway keeps the latest query result of the most recently queried rooms. Any write to a room evicts it.
// A result read while a write to its room was in progress is returned but not cached.
type CachedGateway struct {
	Gateway
	cache *lru.Cache

	mu sync.Mutex
	// write generation per room, purges bump epoch
	generations map[string]uint64
	epoch       uint64
}

type generation struct {
	room  uint64
	epoch uint64
}

func NewCachedGateway(gw Gateway, size int) (*CachedGateway, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedGateway{Gateway: gw, cache: cache, generations: make(map[string]uint64)}, nil
}

func (c *CachedGateway) generation(room string) generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return generation{room: c.generations[room], epoch: c.epoch}
}

func (c *CachedGateway) invalidate(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[room]++
	c.cache.Remove(room)
}

func (c *CachedGateway) Append(ctx context.Context, msg types.ChatMessage) error {
	err := c.Gateway.Append(ctx, msg)
	c.invalidate(msg.IdEvent)
	return err
}

// Query answers from the cache if the room was last queried with the same limit. Callers must not modify the result.
func (c *CachedGateway) Query(ctx context.Context, room string, limit int) ([]types.ChatMessage, error) {
	if v, ok := c.cache.Get(room); ok {
		if h := v.(cachedHistory); h.limit == limit {
			return h.msgs, nil
		}
	}
	before := c.generation(room)
	msgs, err := c.Gateway.Query(ctx, room, limit)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[room] == before.room && c.epoch == before.epoch {
		c.cache.Add(room, cachedHistory{limit: limit, msgs: msgs})
	}
	return msgs, nil
}

func (c *CachedGateway) DeleteRoom(ctx context.Context, room string) (int, error) {
	n, err := c.Gateway.DeleteRoom(ctx, room)
	c.invalidate(room)
	return n, err
}

func (c *CachedGateway) Purge(ctx context.Context, before time.Time) (int, error) {
	n, err := c.Gateway.Purge(ctx, before)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.cache.Purge()
	return n, err
}
