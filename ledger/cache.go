/*
cache.go - Read-through balance cache

PURPOSE:
  Maps account ID to the last-known derived balance, trading recomputation
  cost for a staleness risk bounded by an explicit invalidation protocol.

STALENESS CONTRACT:
  Invalidation is synchronous with the write's commit acknowledgment: a
  caller that writes and then reads must never observe the pre-write balance.
  Time-based expiry exists only as a safety net, never as the mechanism.

INVALIDATION vs. EVICTION:
  - Invalidation marks a value unusable; the next read recomputes.
  - Eviction is capacity-driven removal; a miss is always
    correctness-preserving, just slower.
  The two are never conflated: per-account version counters survive eviction,
  so the correctness protocol does not depend on an entry being resident.

RACE DISCIPLINE:
  Get captures the account's version before computing outside the lock, and
  stores the result only if the version is unchanged. A computation that
  raced with an invalidation is discarded - lost updates are permitted only
  in the direction of "more invalidation", never "less".

CONSTRUCTION:
  Explicitly constructed and dependency-injected, lifetime tied to the
  service process. No hidden singleton; tests get a fresh cache each.
*/
package ledger

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceCache is a bounded read-through cache of derived account balances.
// Safe for concurrent use.
type BalanceCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration // 0 = no expiry

	// versions persists across evictions. It is the source of truth for
	// "has this account been written since?". Entries removed only when the
	// account itself is deleted (Forget).
	versions map[string]uint64
	entries  map[string]*cacheEntry
	lru      *list.List // front = most recently used, values are account IDs

	now func() time.Time // test seam
}

type cacheEntry struct {
	balance  decimal.Decimal
	version  uint64
	storedAt time.Time
	elem     *list.Element
}

// NewBalanceCache creates a cache holding at most capacity entries, each
// usable for at most ttl (0 disables the expiry safety net).
func NewBalanceCache(capacity int, ttl time.Duration) *BalanceCache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &BalanceCache{
		capacity: capacity,
		ttl:      ttl,
		versions: make(map[string]uint64),
		entries:  make(map[string]*cacheEntry),
		lru:      list.New(),
		now:      time.Now,
	}
}

// Get returns the cached balance for the account, computing and storing it
// via compute on a miss. compute runs outside the cache lock.
func (c *BalanceCache) Get(ctx context.Context, accountID string, compute func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	c.mu.Lock()
	version := c.versions[accountID]
	if e, ok := c.entries[accountID]; ok && e.version == version && !c.expiredLocked(e) {
		c.lru.MoveToFront(e.elem)
		balance := e.balance
		c.mu.Unlock()
		return balance, nil
	}
	c.mu.Unlock()

	balance, err := compute(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[accountID] != version {
		// An invalidation landed while we computed. The result may be stale;
		// return it to this caller (it was correct when read) but do not
		// resurrect the entry.
		return balance, nil
	}
	c.storeLocked(accountID, balance, version)
	return balance, nil
}

// Invalidate marks the account's cached balance unusable. Called after every
// committed write affecting the account, before the write is acknowledged.
func (c *BalanceCache) Invalidate(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[accountID]++
	c.removeLocked(accountID)
}

// Forget drops all cache state for an account, including its version
// counter. Only for account deletion.
func (c *BalanceCache) Forget(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.versions, accountID)
	c.removeLocked(accountID)
}

// Len returns the number of resident entries.
func (c *BalanceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *BalanceCache) expiredLocked(e *cacheEntry) bool {
	return c.ttl > 0 && c.now().After(e.storedAt.Add(c.ttl))
}

func (c *BalanceCache) storeLocked(accountID string, balance decimal.Decimal, version uint64) {
	if e, ok := c.entries[accountID]; ok {
		e.balance = balance
		e.version = version
		e.storedAt = c.now()
		c.lru.MoveToFront(e.elem)
		return
	}
	e := &cacheEntry{
		balance:  balance,
		version:  version,
		storedAt: c.now(),
		elem:     c.lru.PushFront(accountID),
	}
	c.entries[accountID] = e

	// Capacity-driven eviction. Versions are deliberately kept.
	for len(c.entries) > c.capacity {
		back := c.lru.Back()
		if back == nil {
			break
		}
		c.removeLocked(back.Value.(string))
	}
}

func (c *BalanceCache) removeLocked(accountID string) {
	if e, ok := c.entries[accountID]; ok {
		c.lru.Remove(e.elem)
		delete(c.entries, accountID)
	}
}
