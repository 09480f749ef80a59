package pools

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"alphaRouter/internal/chains"
	"alphaRouter/internal/dex"
	"alphaRouter/internal/model"
	"alphaRouter/internal/multicall"
)

// OnChainV3Provider reads slot0 and liquidity of derived pool addresses.
type OnChainV3Provider struct {
	chain     *chains.Chain
	multicall multicall.Executor
	addresses *dex.AddressCache
	logger    *zap.Logger
}

func NewOnChainV3Provider(chain *chains.Chain, executor multicall.Executor, logger *zap.Logger) *OnChainV3Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnChainV3Provider{
		chain:     chain,
		multicall: executor,
		addresses: dex.NewAddressCache(),
		logger:    logger,
	}
}

// GetPoolAddress derives the pool address and returns the sorted tokens.
func (p *OnChainV3Provider) GetPoolAddress(tokenA, tokenB model.Asset, fee model.FeeAmount) (common.Address, model.Asset, model.Asset) {
	token0, token1 := model.SortAssets(tokenA, tokenB)
	if addr, ok := p.addresses.Get(token0.Address, token1.Address, fee); ok {
		return addr, token0, token1
	}
	addr := dex.ComputeV3PoolAddress(p.chain.Addresses.V3Factory, p.chain.Addresses.V3InitCodeHash, token0.Address, token1.Address, fee)
	p.addresses.Set(token0.Address, token1.Address, fee, addr)
	return addr, token0, token1
}

type v3Request struct {
	address common.Address
	token0  model.Asset
	token1  model.Asset
	fee     model.FeeAmount
}

// GetPools fetches state for the distinct pools among pairs. Pools that fail
// to load or report a zero price are dropped.
func (p *OnChainV3Provider) GetPools(ctx context.Context, pairs []V3Pair, opts FetchOptions) (*V3Accessor, error) {
	seen := make(map[common.Address]struct{}, len(pairs))
	requests := make([]v3Request, 0, len(pairs))
	for _, pair := range pairs {
		if pair.TokenA.Equal(pair.TokenB) {
			continue
		}
		addr, token0, token1 := p.GetPoolAddress(pair.TokenA, pair.TokenB, pair.Fee)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		requests = append(requests, v3Request{address: addr, token0: token0, token1: token1, fee: pair.Fee})
	}
	if len(requests) == 0 {
		return NewV3Accessor(), nil
	}

	poolABI, err := dex.V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	slot0Calls := make([]multicall.Call, len(requests))
	liquidityCalls := make([]multicall.Call, len(requests))
	for i, req := range requests {
		slot0Calls[i] = multicall.Call{Target: req.address, ABI: poolABI, Method: "slot0"}
		liquidityCalls[i] = multicall.Call{Target: req.address, ABI: poolABI, Method: "liquidity"}
	}

	mcOpts := multicall.Options{BlockNumber: opts.BlockNumber}
	var slot0s, liquidities *multicall.Batch
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		batch, err := p.multicall.Call(gctx, slot0Calls, mcOpts)
		if err != nil {
			return fmt.Errorf("fetch slot0: %w", err)
		}
		slot0s = batch
		return nil
	})
	g.Go(func() error {
		batch, err := p.multicall.Call(gctx, liquidityCalls, mcOpts)
		if err != nil {
			return fmt.Errorf("fetch liquidity: %w", err)
		}
		liquidities = batch
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*model.V3Pool, 0, len(requests))
	dropped := 0
	for i, req := range requests {
		pool, err := decodeV3Pool(req, slot0s.Results[i], liquidities.Results[i])
		if err != nil {
			dropped++
			p.logger.Debug("drop v3 pool",
				zap.String("pool", req.address.Hex()),
				zap.String("pair", req.token0.String()+"/"+req.token1.String()),
				zap.Stringer("fee", req.fee),
				zap.Error(err),
			)
			continue
		}
		out = append(out, pool)
	}
	if dropped > 0 {
		p.logger.Debug("v3 pools dropped", zap.Int("dropped", dropped), zap.Int("requested", len(requests)))
	}
	return NewV3Accessor(out...), nil
}

func decodeV3Pool(req v3Request, slot0, liquidity multicall.Result) (*model.V3Pool, error) {
	if !slot0.Success {
		return nil, fmt.Errorf("slot0: %w", resultErr(slot0))
	}
	if !liquidity.Success {
		return nil, fmt.Errorf("liquidity: %w", resultErr(liquidity))
	}
	if len(slot0.Values) < 2 || len(liquidity.Values) < 1 {
		return nil, fmt.Errorf("short return data")
	}
	sqrtPrice, err := dex.AsBigInt(slot0.Values[0])
	if err != nil {
		return nil, fmt.Errorf("sqrt price: %w", err)
	}
	if sqrtPrice.Sign() == 0 {
		return nil, fmt.Errorf("pool not initialized")
	}
	tickBig, err := dex.AsBigInt(slot0.Values[1])
	if err != nil {
		return nil, fmt.Errorf("tick: %w", err)
	}
	tick, err := dex.Int24FromBig(tickBig)
	if err != nil {
		return nil, fmt.Errorf("tick: %w", err)
	}
	liq, err := dex.AsBigInt(liquidity.Values[0])
	if err != nil {
		return nil, fmt.Errorf("liquidity: %w", err)
	}
	return &model.V3Pool{
		Token0:       req.token0,
		Token1:       req.token1,
		Fee:          req.fee,
		SqrtPriceX96: sqrtPrice,
		Liquidity:    liq,
		Tick:         tick,
		Address:      req.address,
	}, nil
}

func resultErr(r multicall.Result) error {
	if r.Err != nil {
		return r.Err
	}
	return fmt.Errorf("call failed")
}
