package pools

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"alphaRouter/internal/metrics"
	"alphaRouter/internal/model"
)

// CachingV2Provider serves pair state from memory when the cached entry was
// recorded at the requested block, or when no block is requested.
type CachingV2Provider struct {
	inner  V2Provider
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[common.Address]*model.V2Pool
	pending sync.WaitGroup
}

func NewCachingV2Provider(inner V2Provider, logger *zap.Logger) *CachingV2Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingV2Provider{
		inner:   inner,
		logger:  logger,
		entries: make(map[common.Address]*model.V2Pool),
	}
}

func (c *CachingV2Provider) GetPoolAddress(tokenA, tokenB model.Asset) (common.Address, model.Asset, model.Asset) {
	return c.inner.GetPoolAddress(tokenA, tokenB)
}

func (c *CachingV2Provider) GetPools(ctx context.Context, pairs []V2Pair, opts FetchOptions) (*V2Accessor, error) {
	hits := make([]*model.V2Pool, 0, len(pairs))
	misses := make([]V2Pair, 0, len(pairs))
	seen := make(map[common.Address]struct{}, len(pairs))

	c.mu.RLock()
	for _, pair := range pairs {
		addr, _, _ := c.inner.GetPoolAddress(pair.TokenA, pair.TokenB)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		cached, ok := c.entries[addr]
		if ok && (opts.BlockNumber == nil || cached.BlockNumber == *opts.BlockNumber) {
			hits = append(hits, cached)
			continue
		}
		misses = append(misses, pair)
	}
	c.mu.RUnlock()

	metrics.PoolCacheHits.WithLabelValues(string(model.ProtocolV2)).Add(float64(len(hits)))
	metrics.PoolCacheMisses.WithLabelValues(string(model.ProtocolV2)).Add(float64(len(misses)))

	if len(misses) == 0 {
		return NewV2Accessor(hits...), nil
	}

	fetched, err := c.inner.GetPools(ctx, misses, opts)
	if err != nil {
		return nil, err
	}
	fresh := fetched.GetAllPools()

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		c.mu.Lock()
		for _, pool := range fresh {
			c.entries[pool.Address] = pool
		}
		c.mu.Unlock()
	}()

	c.logger.Debug("v2 pool cache",
		zap.Int("hits", len(hits)),
		zap.Int("misses", len(misses)),
		zap.Int("fetched", len(fresh)),
	)
	return NewV2Accessor(append(hits, fresh...)...), nil
}

// Wait blocks until background cache writes have landed.
func (c *CachingV2Provider) Wait() {
	c.pending.Wait()
}

// CacheLifetime controls how long concentrated-liquidity entries are served.
type CacheLifetime int

const (
	// RequestLifetime keeps entries for a single routing request.
	RequestLifetime CacheLifetime = iota
	// ProcessLifetime keeps entries until the provider is discarded.
	ProcessLifetime
)

func (l CacheLifetime) String() string {
	if l == ProcessLifetime {
		return "process"
	}
	return "request"
}

// CachingV3Provider serves pool state from memory once populated, without
// checking the block it was read at. With RequestLifetime, ForRequest hands
// out an empty cache per routing request and the root itself stores nothing.
type CachingV3Provider struct {
	inner    V3Provider
	lifetime CacheLifetime
	scoped   bool
	logger   *zap.Logger

	mu      sync.RWMutex
	entries map[common.Address]*model.V3Pool
}

func NewCachingV3Provider(inner V3Provider, lifetime CacheLifetime, logger *zap.Logger) *CachingV3Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingV3Provider{
		inner:    inner,
		lifetime: lifetime,
		logger:   logger,
		entries:  make(map[common.Address]*model.V3Pool),
	}
}

// Lifetime reports the configured entry lifetime.
func (c *CachingV3Provider) Lifetime() CacheLifetime {
	return c.lifetime
}

// ForRequest returns the provider to use for one routing request.
func (c *CachingV3Provider) ForRequest() V3Provider {
	if c.lifetime == ProcessLifetime {
		return c
	}
	scoped := NewCachingV3Provider(c.inner, RequestLifetime, c.logger)
	scoped.scoped = true
	return scoped
}

// stores reports whether GetPools keeps entries in this instance.
func (c *CachingV3Provider) stores() bool {
	return c.lifetime == ProcessLifetime || c.scoped
}

func (c *CachingV3Provider) GetPoolAddress(tokenA, tokenB model.Asset, fee model.FeeAmount) (common.Address, model.Asset, model.Asset) {
	return c.inner.GetPoolAddress(tokenA, tokenB, fee)
}

func (c *CachingV3Provider) GetPools(ctx context.Context, pairs []V3Pair, opts FetchOptions) (*V3Accessor, error) {
	if !c.stores() {
		return c.inner.GetPools(ctx, pairs, opts)
	}
	hits := make([]*model.V3Pool, 0, len(pairs))
	misses := make([]V3Pair, 0, len(pairs))
	seen := make(map[common.Address]struct{}, len(pairs))

	c.mu.RLock()
	for _, pair := range pairs {
		addr, _, _ := c.inner.GetPoolAddress(pair.TokenA, pair.TokenB, pair.Fee)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		if cached, ok := c.entries[addr]; ok {
			hits = append(hits, cached)
			continue
		}
		misses = append(misses, pair)
	}
	c.mu.RUnlock()

	metrics.PoolCacheHits.WithLabelValues(string(model.ProtocolV3)).Add(float64(len(hits)))
	metrics.PoolCacheMisses.WithLabelValues(string(model.ProtocolV3)).Add(float64(len(misses)))

	if len(misses) == 0 {
		return NewV3Accessor(hits...), nil
	}

	fetched, err := c.inner.GetPools(ctx, misses, opts)
	if err != nil {
		return nil, err
	}
	fresh := fetched.GetAllPools()

	c.mu.Lock()
	for _, pool := range fresh {
		c.entries[pool.Address] = pool
	}
	c.mu.Unlock()

	c.logger.Debug("v3 pool cache",
		zap.Int("hits", len(hits)),
		zap.Int("misses", len(misses)),
		zap.Int("fetched", len(fresh)),
		zap.Stringer("lifetime", c.lifetime),
	)
	return NewV3Accessor(append(hits, fresh...)...), nil
}
