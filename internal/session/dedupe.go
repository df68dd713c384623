package session

import (
	"container/list"
	"sync"
)

// DedupeCache is a bounded LRU of recently-seen event keys. The original
// implementation reset an unbounded set once it reached 100 entries,
// losing recent history all at once (see
// original_source/server/event_handlers.py's processed_messages set and
// spec.md §9's Open Question asking for a bounded LRU instead); this
// evicts the single oldest entry as capacity is reached, so recent history
// is never dropped in bulk.
type DedupeCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	index    map[string]*list.Element
}

func NewDedupeCache(capacity int) *DedupeCache {
	if capacity <= 0 {
		capacity = 4096
	}
	return &DedupeCache{
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[string]*list.Element),
	}
}

// SeenOrMark reports whether key was already present, and if not, marks it
// seen. This is the single atomic dedupe check-and-set the Event Router
// needs for the (channel, event-ts, author) key.
func (c *DedupeCache) SeenOrMark(key string) (alreadySeen bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		c.ll.MoveToFront(el)
		return true
	}

	el := c.ll.PushFront(key)
	c.index[key] = el

	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.index, oldest.Value.(string))
		}
	}
	return false
}
