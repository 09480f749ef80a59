package gas

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"alphaRouter/internal/chains"
	"alphaRouter/internal/model"
	"alphaRouter/internal/pools"
)

// Model estimates execution cost for quotes of one venue kind.
type Model interface {
	Estimate(q *model.RouteQuote) model.GasEstimate
}

// Models groups the per-kind gas models of one request.
type Models struct {
	V3    Model
	V2    Model
	Mixed Model
}

// For returns the model matching a route protocol.
func (m Models) For(protocol model.Protocol) Model {
	switch protocol {
	case model.ProtocolV2:
		return m.V2
	case model.ProtocolMixed:
		return m.Mixed
	default:
		return m.V3
	}
}

// Pricer converts wei into quote token and USD token units.
type Pricer struct {
	gasPrice    *big.Int
	quoteToken  model.Asset
	native      model.Asset
	nativeQuote model.Pool
	usdPool     model.Pool
	usdToken    model.Asset
}

// Convert prices units of gas. Missing pricing pools yield zero cost.
func (p *Pricer) Convert(units uint64) model.GasEstimate {
	wei := new(big.Int).Mul(new(big.Int).SetUint64(units), p.gasPrice)
	est := model.GasEstimate{
		GasUnits:       units,
		GasCostInToken: model.ZeroAmount(p.quoteToken),
		GasCostInUSD:   model.ZeroAmount(p.usdToken),
	}
	switch {
	case p.quoteToken.Equal(p.native):
		est.GasCostInToken = model.NewAmount(p.quoteToken, wei)
	case p.nativeQuote != nil:
		est.GasCostInToken = model.NewAmount(p.quoteToken, model.FloorRat(scale(wei, p.nativeQuote.PriceOf(p.native))))
	}
	if p.usdPool != nil {
		est.GasCostInUSD = model.NewAmount(p.usdToken, model.FloorRat(scale(wei, p.usdPool.PriceOf(p.native))))
	}
	return est
}

// GasPrice returns the wei price used by the pricer.
func (p *Pricer) GasPrice() *big.Int {
	return new(big.Int).Set(p.gasPrice)
}

func scale(wei *big.Int, price *big.Rat) *big.Rat {
	return new(big.Rat).Mul(new(big.Rat).SetInt(wei), price)
}

// Factory builds gas models for a request, resolving the pools that price the
// native asset against the quote token and a USD stable.
type Factory struct {
	chain  *chains.Chain
	v3     pools.V3Provider
	v2     pools.V2Provider
	logger *zap.Logger
}

func NewFactory(chain *chains.Chain, v3 pools.V3Provider, v2 pools.V2Provider, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{chain: chain, v3: v3, v2: v2, logger: logger}
}

// BuildRequest is the per-request input of Factory.Build.
type BuildRequest struct {
	GasPriceWei *big.Int
	QuoteToken  model.Asset
	BlockNumber *uint64
	V3Provider  pools.V3Provider
}

// Build resolves pricing pools and returns the models of all venue kinds.
func (f *Factory) Build(ctx context.Context, req BuildRequest) (Models, error) {
	if req.GasPriceWei == nil || req.GasPriceWei.Sign() < 0 {
		return Models{}, fmt.Errorf("invalid gas price")
	}
	v3 := f.v3
	if req.V3Provider != nil {
		v3 = req.V3Provider
	}
	native := f.chain.WrappedNative
	opts := pools.FetchOptions{BlockNumber: req.BlockNumber}

	pricer := &Pricer{gasPrice: new(big.Int).Set(req.GasPriceWei), quoteToken: req.QuoteToken, native: native}
	if len(f.chain.USDTokens) > 0 {
		pricer.usdToken = f.chain.USDTokens[0]
	}

	var pairs []pools.V3Pair
	if !req.QuoteToken.Equal(native) {
		for _, fee := range model.AllFeeAmounts {
			pairs = append(pairs, pools.V3Pair{TokenA: native, TokenB: req.QuoteToken, Fee: fee})
		}
	}
	for _, usd := range f.chain.USDTokens {
		for _, fee := range model.AllFeeAmounts {
			pairs = append(pairs, pools.V3Pair{TokenA: native, TokenB: usd, Fee: fee})
		}
	}
	if v3 != nil && len(pairs) > 0 {
		acc, err := v3.GetPools(ctx, pairs, opts)
		if err != nil {
			return Models{}, fmt.Errorf("fetch gas pricing pools: %w", err)
		}
		var bestUSD *model.V3Pool
		for _, pool := range acc.GetAllPools() {
			if !pool.Involves(native) {
				continue
			}
			other := model.OtherToken(pool, native)
			if other.Equal(req.QuoteToken) {
				if cur, ok := pricer.nativeQuote.(*model.V3Pool); !ok || pool.Liquidity.Cmp(cur.Liquidity) > 0 {
					pricer.nativeQuote = pool
				}
			}
			if isUSD(f.chain, other) && (bestUSD == nil || pool.Liquidity.Cmp(bestUSD.Liquidity) > 0) {
				bestUSD = pool
			}
		}
		if bestUSD != nil {
			pricer.usdPool = bestUSD
			pricer.usdToken = model.OtherToken(bestUSD, native)
		}
	}

	if pricer.nativeQuote == nil && !req.QuoteToken.Equal(native) && f.v2 != nil && f.chain.V2Supported {
		acc, err := f.v2.GetPools(ctx, []pools.V2Pair{{TokenA: native, TokenB: req.QuoteToken}}, opts)
		if err != nil {
			f.logger.Warn("native pricing pair fetch failed", zap.Error(err))
		} else if pair, ok := acc.GetPool(native, req.QuoteToken); ok {
			pricer.nativeQuote = pair
		}
	}
	if pricer.nativeQuote == nil && !req.QuoteToken.Equal(native) {
		f.logger.Info("no native pricing pool, gas cost in quote token is zero",
			zap.String("quote_token", req.QuoteToken.String()),
		)
	}

	return NewModels(f.chain.Gas, pricer), nil
}

func isUSD(chain *chains.Chain, asset model.Asset) bool {
	for _, usd := range chain.USDTokens {
		if usd.Equal(asset) {
			return true
		}
	}
	return false
}

// NewPricer builds a pricer from already resolved pools. Either pool may be nil.
func NewPricer(gasPrice *big.Int, quoteToken, native model.Asset, nativeQuote, usdPool model.Pool) *Pricer {
	p := &Pricer{gasPrice: new(big.Int).Set(gasPrice), quoteToken: quoteToken, native: native, nativeQuote: nativeQuote, usdPool: usdPool}
	if usdPool != nil {
		p.usdToken = model.OtherToken(usdPool, native)
	}
	return p
}

// NewModels builds the per-kind models over a shared pricer.
func NewModels(costs chains.GasCosts, pricer *Pricer) Models {
	return Models{
		V3:    &V3Model{gas: costs, pricer: pricer},
		V2:    &V2Model{gas: costs, pricer: pricer},
		Mixed: &MixedModel{gas: costs, pricer: pricer},
	}
}
