package tokens

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"alphaRouter/internal/dex"
	"alphaRouter/internal/model"
	"alphaRouter/internal/multicall"
)

// AssetCache caches resolved assets by address.
type AssetCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.Asset
}

func NewAssetCache() *AssetCache {
	return &AssetCache{data: make(map[common.Address]model.Asset)}
}

func (c *AssetCache) Get(address common.Address) (model.Asset, bool) {
	c.mu.RLock()
	asset, ok := c.data[address]
	c.mu.RUnlock()
	return asset, ok
}

func (c *AssetCache) Set(address common.Address, asset model.Asset) {
	c.mu.Lock()
	c.data[address] = asset
	c.mu.Unlock()
}

// MetadataProvider resolves ERC20 assets through batched decimals and symbol
// calls. Tokens exposing a bytes32 symbol are retried with the legacy ABI.
type MetadataProvider struct {
	chainID   uint64
	multicall multicall.Executor
	cache     *AssetCache
	logger    *zap.Logger
}

// NewMetadataProvider seeds the cache with known assets.
func NewMetadataProvider(chainID uint64, executor multicall.Executor, known []model.Asset, logger *zap.Logger) *MetadataProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := NewAssetCache()
	for _, asset := range known {
		if !asset.Native {
			cache.Set(asset.Address, asset)
		}
	}
	return &MetadataProvider{chainID: chainID, multicall: executor, cache: cache, logger: logger}
}

// GetAssets resolves every address it can. Tokens whose decimals call fails
// are left out of the result.
func (p *MetadataProvider) GetAssets(ctx context.Context, addresses []common.Address, block *uint64) (map[common.Address]model.Asset, error) {
	out := make(map[common.Address]model.Asset, len(addresses))
	seen := make(map[common.Address]struct{}, len(addresses))
	var missing []common.Address
	for _, addr := range addresses {
		if _, done := seen[addr]; done {
			continue
		}
		seen[addr] = struct{}{}
		if asset, ok := p.cache.Get(addr); ok {
			out[addr] = asset
			continue
		}
		missing = append(missing, addr)
	}
	if len(missing) == 0 {
		return out, nil
	}

	stringABI, err := dex.ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := dex.ERC20Bytes32ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	calls := make([]multicall.Call, 0, 2*len(missing))
	for _, addr := range missing {
		calls = append(calls,
			multicall.Call{Target: addr, ABI: stringABI, Method: "decimals"},
			multicall.Call{Target: addr, ABI: stringABI, Method: "symbol"},
		)
	}
	opts := multicall.Options{BlockNumber: block}
	batch, err := p.multicall.Call(ctx, calls, opts)
	if err != nil {
		return nil, fmt.Errorf("fetch token metadata: %w", err)
	}

	var legacy []common.Address
	for i, addr := range missing {
		decimalsRes, symbolRes := batch.Results[2*i], batch.Results[2*i+1]
		if !decimalsRes.Success || len(decimalsRes.Values) == 0 {
			p.logger.Debug("token decimals fetch failed", zap.String("token", addr.Hex()))
			continue
		}
		decimals, err := dex.AsUint8(decimalsRes.Values[0])
		if err != nil {
			continue
		}
		asset := model.NewToken(p.chainID, addr, decimals, "")
		if symbolRes.Success && len(symbolRes.Values) > 0 {
			if symbol, ok := symbolRes.Values[0].(string); ok {
				asset.Symbol = symbol
			}
		} else {
			legacy = append(legacy, addr)
		}
		out[addr] = asset
	}

	if len(legacy) > 0 {
		legacyCalls := make([]multicall.Call, len(legacy))
		for i, addr := range legacy {
			legacyCalls[i] = multicall.Call{Target: addr, ABI: bytes32ABI, Method: "symbol"}
		}
		if legacyBatch, err := p.multicall.Call(ctx, legacyCalls, opts); err == nil {
			for i, addr := range legacy {
				res := legacyBatch.Results[i]
				if !res.Success || len(res.Values) == 0 {
					continue
				}
				if symbol, ok := dex.Bytes32ToString(res.Values[0]); ok {
					asset := out[addr]
					asset.Symbol = symbol
					out[addr] = asset
				}
			}
		} else {
			p.logger.Warn("legacy symbol fetch failed", zap.Int("tokens", len(legacy)), zap.Error(err))
		}
	}

	for _, addr := range missing {
		if asset, ok := out[addr]; ok {
			p.cache.Set(addr, asset)
		}
	}
	return out, nil
}

// GetAsset resolves a single address.
func (p *MetadataProvider) GetAsset(ctx context.Context, address common.Address) (model.Asset, error) {
	assets, err := p.GetAssets(ctx, []common.Address{address}, nil)
	if err != nil {
		return model.Asset{}, err
	}
	asset, ok := assets[address]
	if !ok {
		return model.Asset{}, fmt.Errorf("token %s has no decimals", address.Hex())
	}
	return asset, nil
}
