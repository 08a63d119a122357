package inbox

import (
	"container/list"
	"context"
	"sync"

	"github.com/rbaliyan/inbox/store"
)

// cachedDirectory is a read-through cache over store.Directory.
//
// Inbox-to-owner bindings are immutable after creation, so entries are
// cached with no TTL and never invalidated mid-process; only a restart
// clears them. Negative results are cached too: a lookup for an absent
// inbox short-circuits the backing store just like a hit. If the
// immutability invariant is ever relaxed (owner transfer), the
// owner-changing operation must invalidate here explicitly.
//
// The sentinel "shared" inbox never reaches the backing store at all.
type cachedDirectory struct {
	backing store.Directory
	cache   *lruCache // nil when caching is disabled
}

func newCachedDirectory(backing store.Directory, capacity int) *cachedDirectory {
	d := &cachedDirectory{backing: backing}
	if capacity > 0 {
		d.cache = newLRUCache(capacity)
	}
	return d
}

// Resolve resolves an inbox identifier, consulting the cache first.
// A cached nil means a cached negative result.
func (d *cachedDirectory) Resolve(ctx context.Context, inboxID string) (*store.Inbox, error) {
	if inboxID == store.SharedInboxID {
		return store.SharedInbox, nil
	}

	if d.cache != nil {
		if v, ok := d.cache.get(inboxID); ok {
			if v == nil {
				return nil, store.ErrNotFound
			}
			return v, nil
		}
	}

	in, err := d.backing.ResolveInbox(ctx, inboxID)
	if err != nil {
		if store.IsNotFound(err) {
			if d.cache != nil {
				d.cache.put(inboxID, nil)
			}
			return nil, store.ErrNotFound
		}
		// Transient failures are not cached.
		return nil, err
	}

	if d.cache != nil {
		d.cache.put(inboxID, in)
	}
	return in, nil
}

// lruCache is a fixed-capacity LRU map from inbox id to resolution
// result. A nil value is a cached negative result. Safe for concurrent
// use; the cache is read-mostly so a single mutex is fine.
type lruCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
}

type lruEntry struct {
	key   string
	value *store.Inbox
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

func (c *lruCache) get(key string) (*store.Inbox, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry).value, true
}

func (c *lruCache) put(key string, value *store.Inbox) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*lruEntry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&lruEntry{key: key, value: value})

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruEntry).key)
	}
}
