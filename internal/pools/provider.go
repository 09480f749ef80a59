package pools

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"alphaRouter/internal/model"
)

// V2Pair asks for the constant-product pair between two assets.
type V2Pair struct {
	TokenA model.Asset
	TokenB model.Asset
}

// V3Pair asks for the concentrated-liquidity pool of two assets at a fee tier.
type V3Pair struct {
	TokenA model.Asset
	TokenB model.Asset
	Fee    model.FeeAmount
}

// FetchOptions pins pool reads to a block. Nil means latest.
type FetchOptions struct {
	BlockNumber *uint64
}

// V2Provider loads constant-product pair state.
type V2Provider interface {
	GetPools(ctx context.Context, pairs []V2Pair, opts FetchOptions) (*V2Accessor, error)
	GetPoolAddress(tokenA, tokenB model.Asset) (common.Address, model.Asset, model.Asset)
}

// V3Provider loads concentrated-liquidity pool state.
type V3Provider interface {
	GetPools(ctx context.Context, pairs []V3Pair, opts FetchOptions) (*V3Accessor, error)
	GetPoolAddress(tokenA, tokenB model.Asset, fee model.FeeAmount) (common.Address, model.Asset, model.Asset)
}

// RequestScoped is implemented by providers that hand out a fresh view per
// routing request.
type RequestScoped[P any] interface {
	ForRequest() P
}

// Accessor is a read-only lookup over fetched pools.
type Accessor[P model.Pool] struct {
	byKey     map[string]P
	byAddress map[common.Address]P
	all       []P
}

func newAccessor[P model.Pool]() *Accessor[P] {
	return &Accessor[P]{
		byKey:     make(map[string]P),
		byAddress: make(map[common.Address]P),
	}
}

func (a *Accessor[P]) add(key string, pool P) {
	if _, ok := a.byAddress[pool.PoolAddress()]; ok {
		return
	}
	a.byKey[key] = pool
	a.byAddress[pool.PoolAddress()] = pool
	a.all = append(a.all, pool)
}

// GetPoolByAddress returns the pool deployed at address.
func (a *Accessor[P]) GetPoolByAddress(address common.Address) (P, bool) {
	pool, ok := a.byAddress[address]
	return pool, ok
}

// GetAllPools returns every fetched pool in fetch order.
func (a *Accessor[P]) GetAllPools() []P {
	out := make([]P, len(a.all))
	copy(out, a.all)
	return out
}

// Len returns the number of fetched pools.
func (a *Accessor[P]) Len() int {
	return len(a.all)
}

// V2Accessor looks up constant-product pairs.
type V2Accessor struct {
	*Accessor[*model.V2Pool]
}

// NewV2Accessor builds an accessor over pools.
func NewV2Accessor(pools ...*model.V2Pool) *V2Accessor {
	acc := &V2Accessor{newAccessor[*model.V2Pool]()}
	for _, pool := range pools {
		acc.add(v2Key(pool.Token0, pool.Token1), pool)
	}
	return acc
}

// GetPool returns the pair between tokenA and tokenB in either order.
func (a *V2Accessor) GetPool(tokenA, tokenB model.Asset) (*model.V2Pool, bool) {
	pool, ok := a.byKey[v2Key(tokenA, tokenB)]
	return pool, ok
}

// V3Accessor looks up concentrated-liquidity pools.
type V3Accessor struct {
	*Accessor[*model.V3Pool]
}

// NewV3Accessor builds an accessor over pools.
func NewV3Accessor(pools ...*model.V3Pool) *V3Accessor {
	acc := &V3Accessor{newAccessor[*model.V3Pool]()}
	for _, pool := range pools {
		acc.add(v3Key(pool.Token0, pool.Token1, pool.Fee), pool)
	}
	return acc
}

// GetPool returns the pool of tokenA and tokenB at fee in either token order.
func (a *V3Accessor) GetPool(tokenA, tokenB model.Asset, fee model.FeeAmount) (*model.V3Pool, bool) {
	pool, ok := a.byKey[v3Key(tokenA, tokenB, fee)]
	return pool, ok
}

func v2Key(a, b model.Asset) string {
	t0, t1 := model.SortAssets(a, b)
	return t0.Key() + "/" + t1.Key()
}

func v3Key(a, b model.Asset, fee model.FeeAmount) string {
	t0, t1 := model.SortAssets(a, b)
	return t0.Key() + "/" + t1.Key() + "/" + fee.String()
}
