package pools

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"go.uber.org/zap"

	"alphaRouter/internal/model"
)

// ListRequest describes the pools a routing request may need.
type ListRequest struct {
	ChainID     uint64
	Protocol    model.Protocol
	TokenIn     model.Asset
	TokenOut    model.Asset
	BaseTokens  []model.Asset
	BlockNumber *uint64
}

// Lister returns known pools ranked by TVL, highest first.
type Lister interface {
	ListPools(ctx context.Context, req ListRequest) ([]model.ListedPool, error)
}

// DerivedLister lists pools without an index: it derives every pool between
// the request tokens and the base tokens, keeps the ones that exist, and ranks
// them by on-chain liquidity. TVLUSD holds that liquidity proxy.
type DerivedLister struct {
	v2     V2Provider
	v3     V3Provider
	fees   []model.FeeAmount
	logger *zap.Logger
}

func NewDerivedLister(v2 V2Provider, v3 V3Provider, logger *zap.Logger) *DerivedLister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DerivedLister{v2: v2, v3: v3, fees: model.AllFeeAmounts, logger: logger}
}

func (l *DerivedLister) ListPools(ctx context.Context, req ListRequest) ([]model.ListedPool, error) {
	tokens := distinctAssets(append([]model.Asset{req.TokenIn, req.TokenOut}, req.BaseTokens...))
	opts := FetchOptions{BlockNumber: req.BlockNumber}

	var listed []model.ListedPool
	switch req.Protocol {
	case model.ProtocolV3:
		if l.v3 == nil {
			return nil, fmt.Errorf("v3 provider not configured")
		}
		pairs := make([]V3Pair, 0, len(tokens)*len(tokens)*len(l.fees)/2)
		for i := 0; i < len(tokens); i++ {
			for j := i + 1; j < len(tokens); j++ {
				for _, fee := range l.fees {
					pairs = append(pairs, V3Pair{TokenA: tokens[i], TokenB: tokens[j], Fee: fee})
				}
			}
		}
		acc, err := l.v3.GetPools(ctx, pairs, opts)
		if err != nil {
			return nil, fmt.Errorf("derive v3 pools: %w", err)
		}
		for _, pool := range acc.GetAllPools() {
			listed = append(listed, model.ListedPool{
				ChainID:  req.ChainID,
				Protocol: model.ProtocolV3,
				Address:  pool.Address,
				Token0:   pool.Token0.Address,
				Token1:   pool.Token1.Address,
				Fee:      pool.Fee,
				TVLUSD:   bigToFloat(pool.Liquidity),
			})
		}
	case model.ProtocolV2:
		if l.v2 == nil {
			return nil, fmt.Errorf("v2 provider not configured")
		}
		pairs := make([]V2Pair, 0, len(tokens)*len(tokens)/2)
		for i := 0; i < len(tokens); i++ {
			for j := i + 1; j < len(tokens); j++ {
				pairs = append(pairs, V2Pair{TokenA: tokens[i], TokenB: tokens[j]})
			}
		}
		acc, err := l.v2.GetPools(ctx, pairs, opts)
		if err != nil {
			return nil, fmt.Errorf("derive v2 pools: %w", err)
		}
		for _, pool := range acc.GetAllPools() {
			k := new(big.Int).Mul(pool.Reserve0, pool.Reserve1)
			listed = append(listed, model.ListedPool{
				ChainID:  req.ChainID,
				Protocol: model.ProtocolV2,
				Address:  pool.Address,
				Token0:   pool.Token0.Address,
				Token1:   pool.Token1.Address,
				TVLUSD:   bigToFloat(k.Sqrt(k)),
			})
		}
	default:
		return nil, fmt.Errorf("unsupported protocol %s", req.Protocol)
	}

	sort.SliceStable(listed, func(i, j int) bool { return listed[i].TVLUSD > listed[j].TVLUSD })
	l.logger.Debug("derived pools", zap.String("protocol", string(req.Protocol)), zap.Int("count", len(listed)))
	return listed, nil
}

func distinctAssets(in []model.Asset) []model.Asset {
	out := make([]model.Asset, 0, len(in))
	for _, a := range in {
		dup := false
		for _, b := range out {
			if a.Equal(b) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, a)
		}
	}
	return out
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
