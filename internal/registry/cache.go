package registry

import (
	"slices"
	"sync"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

type cacheKey struct {
	slot telephony.SlotID
	kind telephony.EventKind
}

// StateCache holds the last known value per (slot, kind). Values go in and
// come out as clones, so callers may not mutate what the cache holds.
type StateCache struct {
	mu     sync.RWMutex
	values map[cacheKey]telephony.Value
}

func NewStateCache() *StateCache {
	return &StateCache{
		values: make(map[cacheKey]telephony.Value),
	}
}

func (c *StateCache) Get(slot telephony.SlotID, kind telephony.EventKind) (telephony.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[cacheKey{slot, kind}]
	if !ok {
		return nil, false
	}
	return v.Clone(), true
}

func (c *StateCache) Store(slot telephony.SlotID, v telephony.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[cacheKey{slot, v.Kind()}] = v.Clone()
}

// CachedEntry lists the kinds with a cached value on one slot.
type CachedEntry struct {
	Slot  telephony.SlotID      `json:"slot"`
	Kinds []telephony.EventKind `json:"kinds"`
}

// Entries returns the cached kinds grouped by slot, both in ascending order.
func (c *StateCache) Entries() []CachedEntry {
	c.mu.RLock()
	bySlot := make(map[telephony.SlotID]telephony.Mask)
	for k := range c.values {
		bySlot[k.slot] |= k.kind.Mask()
	}
	c.mu.RUnlock()

	out := make([]CachedEntry, 0, len(bySlot))
	for slot, m := range bySlot {
		out = append(out, CachedEntry{Slot: slot, Kinds: m.Kinds()})
	}
	slices.SortFunc(out, func(a, b CachedEntry) int { return int(a.Slot) - int(b.Slot) })
	return out
}

func (c *StateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
