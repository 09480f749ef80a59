package router

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"alphaRouter/internal/metrics"
	"alphaRouter/internal/model"
	"alphaRouter/internal/pools"
	"alphaRouter/internal/tokens"
)

// AssetResolver turns token addresses into assets.
type AssetResolver interface {
	GetAssets(ctx context.Context, addresses []common.Address, block *uint64) (map[common.Address]model.Asset, error)
}

// RiskSource reports fee-on-transfer and transfer-blocking tokens.
type RiskSource interface {
	GetRisk(ctx context.Context, tokens []common.Address, block *uint64) map[common.Address]tokens.Risk
}

type selectionRequest struct {
	tokenIn       common.Address
	tokenOut      common.Address
	baseTokens    []common.Address
	wrappedNative common.Address
	tradeType     model.TradeType
	// direct is used when no listed pool connects tokenIn and tokenOut.
	direct []model.ListedPool
}

// selectCandidatePools applies the top-N heuristics to listings sorted by TVL
// and returns the selected pools in selection order without duplicates.
func selectCandidatePools(sorted []model.ListedPool, sel PoolSelection, req selectionRequest) []model.ListedPool {
	seen := make(map[common.Address]struct{})
	markSeen := func(ps []model.ListedPool) {
		for _, p := range ps {
			seen[p.Address] = struct{}{}
		}
	}
	isSeen := func(p model.ListedPool) bool {
		_, ok := seen[p.Address]
		return ok
	}
	take := func(n int, keep func(model.ListedPool) bool) []model.ListedPool {
		var out []model.ListedPool
		for _, p := range sorted {
			if len(out) >= n {
				break
			}
			if keep(p) {
				out = append(out, p)
			}
		}
		return out
	}

	withBase := func(token common.Address) []model.ListedPool {
		var out []model.ListedPool
		for _, base := range req.baseTokens {
			out = append(out, take(sel.TopNWithEachBaseToken, func(p model.ListedPool) bool {
				return p.Connects(base, token)
			})...)
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].TVLUSD > out[j].TVLUSD })
		if len(out) > sel.TopNWithBaseToken {
			out = out[:sel.TopNWithBaseToken]
		}
		return out
	}
	baseIn := withBase(req.tokenIn)
	baseOut := withBase(req.tokenOut)

	direct := take(sel.TopNDirectSwaps, func(p model.ListedPool) bool {
		return !isSeen(p) && p.Connects(req.tokenIn, req.tokenOut)
	})
	if len(direct) == 0 && sel.TopNDirectSwaps > 0 {
		direct = req.direct
	}
	markSeen(direct)

	// The native/quote pool prices gas in the quote token.
	var nativeQuote []model.ListedPool
	quoteToken := req.tokenOut
	if req.tradeType == model.ExactOutput {
		quoteToken = req.tokenIn
	}
	if quoteToken != req.wrappedNative {
		nativeQuote = take(1, func(p model.ListedPool) bool {
			return p.Connects(req.wrappedNative, quoteToken)
		})
	}
	markSeen(nativeQuote)

	topByTVL := take(sel.TopN, func(p model.ListedPool) bool { return !isSeen(p) })
	markSeen(topByTVL)

	usingIn := take(sel.TopNTokenInOut, func(p model.ListedPool) bool {
		return !isSeen(p) && p.Involves(req.tokenIn)
	})
	markSeen(usingIn)
	usingOut := take(sel.TopNTokenInOut, func(p model.ListedPool) bool {
		return !isSeen(p) && p.Involves(req.tokenOut)
	})
	markSeen(usingOut)

	secondHops := func(first []model.ListedPool, token common.Address) []model.ListedPool {
		var out []model.ListedPool
		for _, p := range first {
			hop := p.Other(token)
			out = append(out, take(sel.TopNSecondHop, func(q model.ListedPool) bool {
				return !isSeen(q) && q.Involves(hop)
			})...)
		}
		return out
	}
	secondIn := secondHops(usingIn, req.tokenIn)
	markSeen(secondIn)
	secondOut := secondHops(usingOut, req.tokenOut)
	markSeen(secondOut)

	groups := [][]model.ListedPool{baseIn, baseOut, direct, nativeQuote, topByTVL, usingIn, usingOut, secondIn, secondOut}
	var out []model.ListedPool
	dedup := make(map[common.Address]struct{})
	for _, group := range groups {
		for _, p := range group {
			if _, ok := dedup[p.Address]; ok {
				continue
			}
			dedup[p.Address] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

type candidateRequest struct {
	tokenIn   model.Asset
	tokenOut  model.Asset
	tradeType model.TradeType
	block     *uint64
	selection PoolSelection
}

// listCandidates lists pools of one kind, drops pools touching blocked
// tokens, selects candidates and resolves their token assets.
func (r *AlphaRouter) listCandidates(ctx context.Context, lister pools.Lister, protocol model.Protocol, req candidateRequest, direct []model.ListedPool) ([]model.ListedPool, map[common.Address]model.Asset, map[common.Address]tokens.Risk, error) {
	if lister == nil {
		return nil, nil, nil, fmt.Errorf("no %s pool lister configured", protocol)
	}
	listed, err := lister.ListPools(ctx, pools.ListRequest{
		ChainID:     r.chain.ID,
		Protocol:    protocol,
		TokenIn:     req.tokenIn,
		TokenOut:    req.tokenOut,
		BaseTokens:  r.chain.BaseTokens,
		BlockNumber: req.block,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list %s pools: %w", protocol, err)
	}

	var risks map[common.Address]tokens.Risk
	if r.risk != nil {
		risks = r.risk.GetRisk(ctx, listedTokens(listed), req.block)
		blocked := tokens.Blocked(risks)
		if len(blocked) > 0 {
			kept := listed[:0]
			for _, p := range listed {
				_, b0 := blocked[p.Token0]
				_, b1 := blocked[p.Token1]
				if !b0 && !b1 {
					kept = append(kept, p)
				}
			}
			r.logger.Debug("dropped pools with blocked tokens",
				zap.String("protocol", string(protocol)),
				zap.Int("blocked_tokens", len(blocked)),
				zap.Int("remaining", len(kept)),
			)
			listed = kept
		}
	}
	sort.SliceStable(listed, func(i, j int) bool { return listed[i].TVLUSD > listed[j].TVLUSD })

	bases := make([]common.Address, len(r.chain.BaseTokens))
	for i, b := range r.chain.BaseTokens {
		bases[i] = b.Address
	}
	selected := selectCandidatePools(listed, req.selection, selectionRequest{
		tokenIn:       req.tokenIn.Address,
		tokenOut:      req.tokenOut.Address,
		baseTokens:    bases,
		wrappedNative: r.chain.WrappedNative.Address,
		tradeType:     req.tradeType,
		direct:        direct,
	})
	metrics.CandidatePools.WithLabelValues(string(protocol)).Observe(float64(len(selected)))

	assets := map[common.Address]model.Asset{
		req.tokenIn.Address:  req.tokenIn,
		req.tokenOut.Address: req.tokenOut,
	}
	for _, b := range r.chain.BaseTokens {
		assets[b.Address] = b
	}
	var unknown []common.Address
	for _, addr := range listedTokens(selected) {
		if _, ok := assets[addr]; !ok {
			unknown = append(unknown, addr)
		}
	}
	if len(unknown) > 0 && r.assets != nil {
		resolved, err := r.assets.GetAssets(ctx, unknown, req.block)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("resolve candidate tokens: %w", err)
		}
		for addr, asset := range resolved {
			assets[addr] = asset
		}
	}

	r.logger.Debug("selected candidate pools",
		zap.String("protocol", string(protocol)),
		zap.Int("listed", len(listed)),
		zap.Int("selected", len(selected)),
	)
	return selected, assets, risks, nil
}

func (r *AlphaRouter) v3Candidates(ctx context.Context, provider pools.V3Provider, req candidateRequest) ([]*model.V3Pool, error) {
	var direct []model.ListedPool
	for _, fee := range model.AllFeeAmounts {
		addr, t0, t1 := provider.GetPoolAddress(req.tokenIn, req.tokenOut, fee)
		direct = append(direct, model.ListedPool{
			ChainID: r.chain.ID, Protocol: model.ProtocolV3, Address: addr,
			Token0: t0.Address, Token1: t1.Address, Fee: fee,
		})
	}
	selected, assets, _, err := r.listCandidates(ctx, r.v3Lister, model.ProtocolV3, req, direct)
	if err != nil {
		return nil, err
	}

	pairs := make([]pools.V3Pair, 0, len(selected))
	for _, p := range selected {
		a, okA := assets[p.Token0]
		b, okB := assets[p.Token1]
		if !okA || !okB {
			r.logger.Debug("skip pool with unresolved token", zap.String("pool", p.Address.Hex()))
			continue
		}
		pairs = append(pairs, pools.V3Pair{TokenA: a, TokenB: b, Fee: p.Fee})
	}
	acc, err := provider.GetPools(ctx, pairs, pools.FetchOptions{BlockNumber: req.block})
	if err != nil {
		return nil, fmt.Errorf("fetch v3 candidate pools: %w", err)
	}
	return acc.GetAllPools(), nil
}

func (r *AlphaRouter) v2Candidates(ctx context.Context, req candidateRequest) ([]*model.V2Pool, map[common.Address]tokens.Risk, error) {
	addr, t0, t1 := r.v2.GetPoolAddress(req.tokenIn, req.tokenOut)
	direct := []model.ListedPool{{
		ChainID: r.chain.ID, Protocol: model.ProtocolV2, Address: addr,
		Token0: t0.Address, Token1: t1.Address,
	}}
	selected, assets, risks, err := r.listCandidates(ctx, r.v2Lister, model.ProtocolV2, req, direct)
	if err != nil {
		return nil, nil, err
	}

	pairs := make([]pools.V2Pair, 0, len(selected))
	for _, p := range selected {
		a, okA := assets[p.Token0]
		b, okB := assets[p.Token1]
		if !okA || !okB {
			r.logger.Debug("skip pair with unresolved token", zap.String("pair", p.Address.Hex()))
			continue
		}
		pairs = append(pairs, pools.V2Pair{TokenA: a, TokenB: b})
	}
	acc, err := r.v2.GetPools(ctx, pairs, pools.FetchOptions{BlockNumber: req.block})
	if err != nil {
		return nil, nil, fmt.Errorf("fetch v2 candidate pairs: %w", err)
	}
	return acc.GetAllPools(), risks, nil
}

func listedTokens(listed []model.ListedPool) []common.Address {
	seen := make(map[common.Address]struct{}, len(listed)*2)
	out := make([]common.Address, 0, len(listed)*2)
	for _, p := range listed {
		for _, t := range []common.Address{p.Token0, p.Token1} {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
