package pools

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"alphaRouter/internal/chains"
	"alphaRouter/internal/dex"
	"alphaRouter/internal/model"
	"alphaRouter/internal/multicall"
)

var (
	tokenA = model.NewToken(1, common.HexToAddress("0x00000000000000000000000000000000000000a1"), 18, "AAA")
	tokenB = model.NewToken(1, common.HexToAddress("0x00000000000000000000000000000000000000b2"), 6, "BBB")
	tokenC = model.NewToken(1, common.HexToAddress("0x00000000000000000000000000000000000000c3"), 18, "CCC")
)

type fakeExecutor struct {
	mu        sync.Mutex
	block     uint64
	slot0     map[common.Address]*big.Int
	liquidity map[common.Address]*big.Int
	reserves  map[common.Address][2]*big.Int
	batches   map[string]int
	calls     map[string]int
}

func newFakeExecutor(block uint64) *fakeExecutor {
	return &fakeExecutor{
		block:     block,
		slot0:     make(map[common.Address]*big.Int),
		liquidity: make(map[common.Address]*big.Int),
		reserves:  make(map[common.Address][2]*big.Int),
		batches:   make(map[string]int),
		calls:     make(map[string]int),
	}
}

func (f *fakeExecutor) Call(ctx context.Context, calls []multicall.Call, opts multicall.Options) (*multicall.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	block := f.block
	if opts.BlockNumber != nil {
		block = *opts.BlockNumber
	}
	batch := &multicall.Batch{BlockNumber: block, Results: make([]multicall.Result, len(calls))}
	for i, call := range calls {
		f.calls[call.Method]++
		switch call.Method {
		case "slot0":
			if sqrt, ok := f.slot0[call.Target]; ok {
				batch.Results[i] = multicall.Result{Success: true, Values: []interface{}{sqrt, big.NewInt(-5), uint16(0), uint16(1), uint16(1), uint8(0), true}}
			}
		case "liquidity":
			if liq, ok := f.liquidity[call.Target]; ok {
				batch.Results[i] = multicall.Result{Success: true, Values: []interface{}{liq}}
			}
		case "getReserves":
			if r, ok := f.reserves[call.Target]; ok {
				batch.Results[i] = multicall.Result{Success: true, Values: []interface{}{r[0], r[1], uint32(0)}}
			}
		}
	}
	if len(calls) > 0 {
		f.batches[calls[0].Method]++
	}
	return batch, nil
}

func mainnet(t *testing.T) *chains.Chain {
	t.Helper()
	c, err := chains.Get(chains.Mainnet)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	return c
}

func TestOnChainV3ProviderDedupesAndJoins(t *testing.T) {
	c := mainnet(t)
	exec := newFakeExecutor(10)
	provider := NewOnChainV3Provider(c, exec, nil)

	live, _, _ := provider.GetPoolAddress(tokenA, tokenB, model.FeeMedium)
	uninit, _, _ := provider.GetPoolAddress(tokenA, tokenB, model.FeeLow)
	exec.slot0[live] = new(big.Int).Set(dex.Q96)
	exec.liquidity[live] = big.NewInt(1_000_000)
	exec.slot0[uninit] = big.NewInt(0)
	exec.liquidity[uninit] = big.NewInt(5)

	acc, err := provider.GetPools(context.Background(), []V3Pair{
		{TokenA: tokenA, TokenB: tokenB, Fee: model.FeeMedium},
		{TokenA: tokenB, TokenB: tokenA, Fee: model.FeeMedium},
		{TokenA: tokenA, TokenB: tokenB, Fee: model.FeeLow},
		{TokenA: tokenA, TokenB: tokenC, Fee: model.FeeHigh},
	}, FetchOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.calls["slot0"] != 3 || exec.calls["liquidity"] != 3 {
		t.Fatalf("expected 3 deduped calls per sub-batch, got %v", exec.calls)
	}
	if exec.batches["slot0"] != 1 || exec.batches["liquidity"] != 1 {
		t.Fatalf("expected one batch per sub-batch, got %v", exec.batches)
	}
	if acc.Len() != 1 {
		t.Fatalf("expected only the initialized pool, got %d", acc.Len())
	}
	pool, ok := acc.GetPool(tokenB, tokenA, model.FeeMedium)
	if !ok {
		t.Fatalf("pool not found by reversed pair")
	}
	if pool.Liquidity.Int64() != 1_000_000 || pool.Tick != -5 || pool.SqrtPriceX96.Cmp(dex.Q96) != 0 {
		t.Fatalf("pool state mismatch: %+v", pool)
	}
	if !pool.Token0.Equal(tokenA) || !pool.Token1.Equal(tokenB) {
		t.Fatalf("tokens not sorted: %s/%s", pool.Token0, pool.Token1)
	}
	if _, ok := acc.GetPoolByAddress(live); !ok {
		t.Fatalf("pool not found by address")
	}
}

func TestOnChainV2ProviderDropsFailedPairs(t *testing.T) {
	c := mainnet(t)
	exec := newFakeExecutor(77)
	provider := NewOnChainV2Provider(c, exec, nil)

	live, _, _ := provider.GetPoolAddress(tokenA, tokenB)
	empty, _, _ := provider.GetPoolAddress(tokenA, tokenC)
	exec.reserves[live] = [2]*big.Int{big.NewInt(100), big.NewInt(200)}
	exec.reserves[empty] = [2]*big.Int{big.NewInt(0), big.NewInt(200)}

	acc, err := provider.GetPools(context.Background(), []V2Pair{
		{TokenA: tokenA, TokenB: tokenB},
		{TokenA: tokenA, TokenB: tokenC},
		{TokenA: tokenB, TokenB: tokenC},
	}, FetchOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acc.Len() != 1 {
		t.Fatalf("expected one pair, got %d", acc.Len())
	}
	pool, ok := acc.GetPool(tokenB, tokenA)
	if !ok {
		t.Fatalf("pair not found")
	}
	if pool.BlockNumber != 77 {
		t.Fatalf("block mismatch: %d", pool.BlockNumber)
	}
	in, out := pool.ReservesOf(tokenB)
	if in.Int64() != 200 || out.Int64() != 100 {
		t.Fatalf("reserves mismatch: %s %s", in, out)
	}
}

type countingV2Provider struct {
	*OnChainV2Provider
	mu    sync.Mutex
	calls int
	pairs int
}

func (p *countingV2Provider) GetPools(ctx context.Context, pairs []V2Pair, opts FetchOptions) (*V2Accessor, error) {
	p.mu.Lock()
	p.calls++
	p.pairs += len(pairs)
	p.mu.Unlock()
	return p.OnChainV2Provider.GetPools(ctx, pairs, opts)
}

func TestCachingV2ProviderRefetchesOnNewBlock(t *testing.T) {
	c := mainnet(t)
	exec := newFakeExecutor(100)
	inner := &countingV2Provider{OnChainV2Provider: NewOnChainV2Provider(c, exec, nil)}
	addr, _, _ := inner.GetPoolAddress(tokenA, tokenB)
	exec.reserves[addr] = [2]*big.Int{big.NewInt(1000), big.NewInt(2000)}

	cache := NewCachingV2Provider(inner, nil)
	pairs := []V2Pair{{TokenA: tokenA, TokenB: tokenB}}
	blockB := uint64(100)

	if _, err := cache.GetPools(context.Background(), pairs, FetchOptions{BlockNumber: &blockB}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cache.Wait()

	acc, err := cache.GetPools(context.Background(), pairs, FetchOptions{BlockNumber: &blockB})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected cache hit at same block, inner calls %d", inner.calls)
	}
	if pool, _ := acc.GetPool(tokenA, tokenB); pool.BlockNumber != 100 {
		t.Fatalf("cached block mismatch: %d", pool.BlockNumber)
	}

	if _, err := cache.GetPools(context.Background(), pairs, FetchOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected cache hit without block, inner calls %d", inner.calls)
	}

	exec.reserves[addr] = [2]*big.Int{big.NewInt(1100), big.NewInt(1900)}
	nextBlock := blockB + 1
	acc, err = cache.GetPools(context.Background(), pairs, FetchOptions{BlockNumber: &nextBlock})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected refetch at B+1, inner calls %d", inner.calls)
	}
	pool, _ := acc.GetPool(tokenA, tokenB)
	if pool.BlockNumber != 101 || pool.Reserve0.Int64() != 1100 {
		t.Fatalf("stale pool returned: %+v", pool)
	}

	cache.Wait()
	if _, err := cache.GetPools(context.Background(), pairs, FetchOptions{BlockNumber: &nextBlock}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected cache updated to B+1, inner calls %d", inner.calls)
	}
}

type countingV3Provider struct {
	*OnChainV3Provider
	calls int
}

func (p *countingV3Provider) GetPools(ctx context.Context, pairs []V3Pair, opts FetchOptions) (*V3Accessor, error) {
	p.calls++
	return p.OnChainV3Provider.GetPools(ctx, pairs, opts)
}

func TestCachingV3ProviderIgnoresBlock(t *testing.T) {
	c := mainnet(t)
	exec := newFakeExecutor(100)
	inner := &countingV3Provider{OnChainV3Provider: NewOnChainV3Provider(c, exec, nil)}
	addr, _, _ := inner.GetPoolAddress(tokenA, tokenB, model.FeeMedium)
	exec.slot0[addr] = new(big.Int).Set(dex.Q96)
	exec.liquidity[addr] = big.NewInt(10)

	cache := NewCachingV3Provider(inner, ProcessLifetime, nil)
	pairs := []V3Pair{{TokenA: tokenA, TokenB: tokenB, Fee: model.FeeMedium}}
	b1, b2 := uint64(100), uint64(200)

	if _, err := cache.GetPools(context.Background(), pairs, FetchOptions{BlockNumber: &b1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.ForRequest().GetPools(context.Background(), pairs, FetchOptions{BlockNumber: &b2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected unconditional hit, inner calls %d", inner.calls)
	}
}

func TestCachingV3ProviderRequestLifetime(t *testing.T) {
	c := mainnet(t)
	exec := newFakeExecutor(100)
	inner := &countingV3Provider{OnChainV3Provider: NewOnChainV3Provider(c, exec, nil)}
	addr, _, _ := inner.GetPoolAddress(tokenA, tokenB, model.FeeMedium)
	exec.slot0[addr] = new(big.Int).Set(dex.Q96)
	exec.liquidity[addr] = big.NewInt(10)

	cache := NewCachingV3Provider(inner, RequestLifetime, nil)
	pairs := []V3Pair{{TokenA: tokenA, TokenB: tokenB, Fee: model.FeeMedium}}

	first := cache.ForRequest()
	if _, err := first.GetPools(context.Background(), pairs, FetchOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := first.GetPools(context.Background(), pairs, FetchOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected hit within a request, inner calls %d", inner.calls)
	}
	if _, err := cache.ForRequest().GetPools(context.Background(), pairs, FetchOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected a new request to refetch, inner calls %d", inner.calls)
	}
}

func TestDerivedListerRanksByLiquidity(t *testing.T) {
	c := mainnet(t)
	exec := newFakeExecutor(1)
	v3 := NewOnChainV3Provider(c, exec, nil)
	small, _, _ := v3.GetPoolAddress(tokenA, tokenB, model.FeeLow)
	large, _, _ := v3.GetPoolAddress(tokenA, tokenC, model.FeeMedium)
	exec.slot0[small] = new(big.Int).Set(dex.Q96)
	exec.liquidity[small] = big.NewInt(10)
	exec.slot0[large] = new(big.Int).Set(dex.Q96)
	exec.liquidity[large] = big.NewInt(1000)

	lister := NewDerivedLister(nil, v3, nil)
	listed, err := lister.ListPools(context.Background(), ListRequest{
		ChainID:    1,
		Protocol:   model.ProtocolV3,
		TokenIn:    tokenA,
		TokenOut:   tokenB,
		BaseTokens: []model.Asset{tokenC, tokenA},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(listed))
	}
	if listed[0].Address != large || listed[1].Address != small {
		t.Fatalf("ranking mismatch: %+v", listed)
	}
	if exec.calls["slot0"] != 3*len(model.AllFeeAmounts) {
		t.Fatalf("expected every pair and fee tier probed, got %d", exec.calls["slot0"])
	}
}

func TestDerivedListerOverRequestLifetimeRootRefetches(t *testing.T) {
	c := mainnet(t)
	exec := newFakeExecutor(1)
	inner := &countingV3Provider{OnChainV3Provider: NewOnChainV3Provider(c, exec, nil)}
	first, _, _ := inner.GetPoolAddress(tokenA, tokenB, model.FeeLow)
	second, _, _ := inner.GetPoolAddress(tokenA, tokenB, model.FeeMedium)
	exec.slot0[first] = new(big.Int).Set(dex.Q96)
	exec.liquidity[first] = big.NewInt(1000)
	exec.slot0[second] = new(big.Int).Set(dex.Q96)
	exec.liquidity[second] = big.NewInt(10)

	root := NewCachingV3Provider(inner, RequestLifetime, nil)
	lister := NewDerivedLister(nil, root, nil)
	req := ListRequest{ChainID: 1, Protocol: model.ProtocolV3, TokenIn: tokenA, TokenOut: tokenB}

	b1 := uint64(1)
	req.BlockNumber = &b1
	listed, err := lister.ListPools(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) == 0 || listed[0].Address != first {
		t.Fatalf("expected %s ranked first at block 1, got %+v", first.Hex(), listed)
	}

	exec.liquidity[second] = big.NewInt(1_000_000)
	b2 := uint64(500)
	req.BlockNumber = &b2
	listed, err = lister.ListPools(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) == 0 || listed[0].Address != second {
		t.Fatalf("expected %s ranked first at block 500, got %+v", second.Hex(), listed)
	}
	if inner.calls != 2 {
		t.Fatalf("expected the root to pass both listings through, inner calls %d", inner.calls)
	}
	if len(root.entries) != 0 {
		t.Fatalf("expected the root to store nothing, got %d entries", len(root.entries))
	}
}
