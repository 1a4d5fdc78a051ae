// Package dedup guards against re-delivery of inbound webhook messages.
//
// The upstream channel is at-least-once: the same logical message can arrive
// again with the same message ID after a retry. Deduplicator remembers the
// most recent IDs in insertion order so ordinary re-deliveries produce no
// visible effects, while keeping memory bounded.
package dedup

import (
	"container/list"
	"sync"
)

// DefaultCapacity is the number of message IDs retained before eviction.
const DefaultCapacity = 1000

// Deduplicator is a concurrency-safe, insertion-ordered set of message IDs
// capped at a fixed capacity. When the cap is exceeded the oldest ~10% of
// entries are evicted in insertion order, which keeps admission O(1)
// amortized without tracking access recency.
type Deduplicator struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	seen     map[string]*list.Element
}

// New creates a Deduplicator with the given capacity. Non-positive values
// fall back to DefaultCapacity.
func New(capacity int) *Deduplicator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Deduplicator{
		capacity: capacity,
		order:    list.New(),
		seen:     make(map[string]*list.Element, capacity),
	}
}

// Seen reports whether the message ID was already recorded.
func (d *Deduplicator) Seen(messageID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[messageID]
	return ok
}

// Record admits a message ID into the set. Recording an ID that is already
// present is a no-op and does not refresh its position.
func (d *Deduplicator) Record(messageID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[messageID]; ok {
		return
	}
	d.seen[messageID] = d.order.PushBack(messageID)
	if d.order.Len() > d.capacity {
		d.evictOldest()
	}
}

// Len returns the number of retained IDs.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}

// evictOldest drops the oldest ~10% of entries. Caller holds d.mu.
func (d *Deduplicator) evictOldest() {
	n := d.capacity / 10
	if n < 1 {
		n = 1
	}
	for i := 0; i < n && d.order.Len() > 0; i++ {
		front := d.order.Front()
		delete(d.seen, front.Value.(string))
		d.order.Remove(front)
	}
}
