package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/SweetVinegar/021up-game/internal/app"
)

// CachedCustody decorates a CustodyLedger with a TTL cache over BalanceOf,
// collapsing concurrent lookups with singleflight. Balances are only a
// display input; the escrow request itself always re-verifies at the
// ledger, so a slightly stale read here is harmless. Mutating calls pass
// through and drop the affected cache entries.
type CachedCustody struct {
	inner app.CustodyLedger
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedBalance
}

type cachedBalance struct {
	amount    int64
	expiresAt time.Time
}

func NewCachedCustody(inner app.CustodyLedger, ttl time.Duration) *CachedCustody {
	return &CachedCustody{
		inner: inner,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedBalance),
	}
}

func (c *CachedCustody) BalanceOf(ctx context.Context, address string) (int64, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[address]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.amount, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(address, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[address]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.amount, nil
		}
		c.mu.RUnlock()

		amount, err := c.inner.BalanceOf(ctx, address)
		if err != nil {
			return int64(0), err
		}

		c.mu.Lock()
		c.cache[address] = cachedBalance{amount: amount, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return amount, nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

func (c *CachedCustody) Escrow(ctx context.Context, from string, amount int64) (string, error) {
	ref, err := c.inner.Escrow(ctx, from, amount)
	if err == nil {
		c.invalidate(from)
	}
	return ref, err
}

func (c *CachedCustody) Release(ctx context.Context, to string, amount int64) (string, error) {
	ref, err := c.inner.Release(ctx, to, amount)
	if err == nil {
		c.invalidate(to)
	}
	return ref, err
}

func (c *CachedCustody) Refund(ctx context.Context, to string, amount int64) (string, error) {
	ref, err := c.inner.Refund(ctx, to, amount)
	if err == nil {
		c.invalidate(to)
	}
	return ref, err
}

func (c *CachedCustody) invalidate(address string) {
	c.mu.Lock()
	delete(c.cache, address)
	c.mu.Unlock()
}

func (c *CachedCustody) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
