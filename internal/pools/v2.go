package pools

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"alphaRouter/internal/chains"
	"alphaRouter/internal/dex"
	"alphaRouter/internal/model"
	"alphaRouter/internal/multicall"
)

// OnChainV2Provider reads reserves of derived pair addresses.
type OnChainV2Provider struct {
	chain     *chains.Chain
	multicall multicall.Executor
	addresses *dex.AddressCache
	logger    *zap.Logger
}

func NewOnChainV2Provider(chain *chains.Chain, executor multicall.Executor, logger *zap.Logger) *OnChainV2Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnChainV2Provider{
		chain:     chain,
		multicall: executor,
		addresses: dex.NewAddressCache(),
		logger:    logger,
	}
}

// GetPoolAddress derives the pair address and returns the sorted tokens.
func (p *OnChainV2Provider) GetPoolAddress(tokenA, tokenB model.Asset) (common.Address, model.Asset, model.Asset) {
	token0, token1 := model.SortAssets(tokenA, tokenB)
	if addr, ok := p.addresses.Get(token0.Address, token1.Address, 0); ok {
		return addr, token0, token1
	}
	addr := dex.ComputeV2PairAddress(p.chain.Addresses.V2Factory, p.chain.Addresses.V2InitCodeHash, token0.Address, token1.Address)
	p.addresses.Set(token0.Address, token1.Address, 0, addr)
	return addr, token0, token1
}

// GetPools fetches reserves for the distinct pairs. Pairs that fail to load or
// hold an empty reserve are dropped.
func (p *OnChainV2Provider) GetPools(ctx context.Context, pairs []V2Pair, opts FetchOptions) (*V2Accessor, error) {
	type request struct {
		address common.Address
		token0  model.Asset
		token1  model.Asset
	}
	seen := make(map[common.Address]struct{}, len(pairs))
	requests := make([]request, 0, len(pairs))
	for _, pair := range pairs {
		if pair.TokenA.Equal(pair.TokenB) {
			continue
		}
		addr, token0, token1 := p.GetPoolAddress(pair.TokenA, pair.TokenB)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		requests = append(requests, request{address: addr, token0: token0, token1: token1})
	}
	if len(requests) == 0 {
		return NewV2Accessor(), nil
	}

	pairABI, err := dex.V2PairABI()
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	calls := make([]multicall.Call, len(requests))
	for i, req := range requests {
		calls[i] = multicall.Call{Target: req.address, ABI: pairABI, Method: "getReserves"}
	}
	batch, err := p.multicall.Call(ctx, calls, multicall.Options{BlockNumber: opts.BlockNumber})
	if err != nil {
		return nil, fmt.Errorf("fetch reserves: %w", err)
	}

	out := make([]*model.V2Pool, 0, len(requests))
	for i, req := range requests {
		res := batch.Results[i]
		if !res.Success || len(res.Values) < 2 {
			p.logger.Debug("drop v2 pair",
				zap.String("pair", req.address.Hex()),
				zap.Error(resultErr(res)),
			)
			continue
		}
		reserve0, err0 := dex.AsBigInt(res.Values[0])
		reserve1, err1 := dex.AsBigInt(res.Values[1])
		if err0 != nil || err1 != nil {
			p.logger.Debug("drop v2 pair", zap.String("pair", req.address.Hex()), zap.String("reason", "bad reserves"))
			continue
		}
		if reserve0.Sign() == 0 || reserve1.Sign() == 0 {
			p.logger.Debug("drop v2 pair", zap.String("pair", req.address.Hex()), zap.String("reason", "empty reserves"))
			continue
		}
		out = append(out, &model.V2Pool{
			Token0:      req.token0,
			Token1:      req.token1,
			Reserve0:    reserve0,
			Reserve1:    reserve1,
			Address:     req.address,
			BlockNumber: batch.BlockNumber,
		})
	}
	return NewV2Accessor(out...), nil
}
