package gas

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"alphaRouter/internal/chains"
	"alphaRouter/internal/dex"
	"alphaRouter/internal/model"
	"alphaRouter/internal/pools"
)

func mainnet(t *testing.T) *chains.Chain {
	t.Helper()
	c, err := chains.Get(chains.Mainnet)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	return c
}

func usdc(c *chains.Chain) model.Asset { return c.USDTokens[0] }

// 1 WETH = 2500 USDC: token0Price = 1e18 / 2500e6 = 4e8 = (2e4)^2.
func wethUSDCPool(c *chains.Chain, liquidity int64, addr string) *model.V3Pool {
	t0, t1 := model.SortAssets(c.WrappedNative, usdc(c))
	return &model.V3Pool{
		Token0:       t0,
		Token1:       t1,
		Fee:          model.FeeLow,
		SqrtPriceX96: new(big.Int).Mul(big.NewInt(20_000), dex.Q96),
		Liquidity:    big.NewInt(liquidity),
		Address:      common.HexToAddress(addr),
	}
}

func quoteFor(t *testing.T, pools []model.Pool, in, out model.Asset, tradeType model.TradeType, ticks []uint32) *model.RouteQuote {
	t.Helper()
	route, err := model.NewRoute(pools, in, out)
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	quoteToken := out
	if tradeType == model.ExactOutput {
		quoteToken = in
	}
	return &model.RouteQuote{
		Route:                       route,
		TradeType:                   tradeType,
		Percent:                     100,
		Quote:                       model.NewAmount(quoteToken, big.NewInt(1_000_000_000)),
		QuoteToken:                  quoteToken,
		InitializedTicksCrossedList: ticks,
	}
}

func TestHeuristicUnits(t *testing.T) {
	costs := mainnet(t).Gas
	if got := v3Units(costs, 1, 0); got != 128_000 {
		t.Fatalf("single hop units mismatch: %d", got)
	}
	if got := v3Units(costs, 2, 5); got != 317_000 {
		t.Fatalf("two hop units mismatch: %d", got)
	}
	if got := v2Units(costs, 2); got != 135_000 {
		t.Fatalf("v2 units mismatch: %d", got)
	}
}

func TestPricerConvertsThroughNativePool(t *testing.T) {
	c := mainnet(t)
	pool := wethUSDCPool(c, 100, "0x01")
	pricer := NewPricer(big.NewInt(10_000_000_000), usdc(c), c.WrappedNative, pool, pool)

	est := pricer.Convert(100_000)
	if est.GasCostInToken.Raw.Int64() != 2_500_000 {
		t.Fatalf("quote token cost mismatch: %s", est.GasCostInToken.Raw)
	}
	if est.GasCostInUSD.Raw.Int64() != 2_500_000 || !est.GasCostInUSD.Asset.Equal(usdc(c)) {
		t.Fatalf("usd cost mismatch: %s", est.GasCostInUSD)
	}
}

func TestPricerNativeQuoteToken(t *testing.T) {
	c := mainnet(t)
	pricer := NewPricer(big.NewInt(3), c.WrappedNative, c.WrappedNative, nil, nil)
	est := pricer.Convert(10)
	if est.GasCostInToken.Raw.Int64() != 30 {
		t.Fatalf("native cost mismatch: %s", est.GasCostInToken.Raw)
	}
	if !est.GasCostInUSD.IsZero() {
		t.Fatalf("usd cost should be zero without a usd pool")
	}
}

func TestPricerWithoutPoolIsZero(t *testing.T) {
	c := mainnet(t)
	other := model.NewToken(1, common.HexToAddress("0x00000000000000000000000000000000000000e1"), 18, "EEE")
	pricer := NewPricer(big.NewInt(10), other, c.WrappedNative, nil, nil)
	if est := pricer.Convert(100); !est.GasCostInToken.IsZero() || est.GasUnits != 100 {
		t.Fatalf("expected zero cost with units kept: %+v", est)
	}
}

func TestGasAdjustmentDirection(t *testing.T) {
	c := mainnet(t)
	pool := wethUSDCPool(c, 100, "0x01")

	exactIn := quoteFor(t, []model.Pool{pool}, c.WrappedNative, usdc(c), model.ExactInput, []uint32{2})
	models := NewModels(c.Gas, NewPricer(big.NewInt(10_000_000_000), usdc(c), c.WrappedNative, pool, pool))
	exactIn.ApplyGas(models.For(exactIn.Route.Protocol).Estimate(exactIn))
	if exactIn.QuoteAdjustedForGas.Cmp(exactIn.Quote) >= 0 {
		t.Fatalf("exact input gas adjustment must reduce output: %s >= %s", exactIn.QuoteAdjustedForGas.Raw, exactIn.Quote.Raw)
	}
	if exactIn.GasEstimate != 2_000+80_000+15_000+62_000 {
		t.Fatalf("gas estimate mismatch: %d", exactIn.GasEstimate)
	}

	exactOut := quoteFor(t, []model.Pool{pool}, usdc(c), c.WrappedNative, model.ExactOutput, nil)
	exactOut.ApplyGas(models.For(exactOut.Route.Protocol).Estimate(exactOut))
	if exactOut.QuoteAdjustedForGas.Cmp(exactOut.Quote) <= 0 {
		t.Fatalf("exact output gas adjustment must increase input: %s <= %s", exactOut.QuoteAdjustedForGas.Raw, exactOut.Quote.Raw)
	}
}

func TestMixedModelCombinesHeuristics(t *testing.T) {
	c := mainnet(t)
	pool := wethUSDCPool(c, 100, "0x01")
	dai := c.USDTokens[2]
	t0, t1 := model.SortAssets(usdc(c), dai)
	pair := &model.V2Pool{Token0: t0, Token1: t1, Reserve0: big.NewInt(1e9), Reserve1: big.NewInt(1e9), Address: common.HexToAddress("0x02")}

	q := quoteFor(t, []model.Pool{pool, pair}, c.WrappedNative, dai, model.ExactInput, []uint32{2, 0})
	models := NewModels(c.Gas, NewPricer(big.NewInt(1), dai, c.WrappedNative, nil, nil))
	est := models.For(model.ProtocolMixed).Estimate(q)
	if est.GasUnits != 159_000+115_000 {
		t.Fatalf("mixed units mismatch: %d", est.GasUnits)
	}
}

type staticV3Provider struct {
	pools []*model.V3Pool
	calls int
}

func (p *staticV3Provider) GetPools(ctx context.Context, pairs []pools.V3Pair, opts pools.FetchOptions) (*pools.V3Accessor, error) {
	p.calls++
	return pools.NewV3Accessor(p.pools...), nil
}

func (p *staticV3Provider) GetPoolAddress(a, b model.Asset, fee model.FeeAmount) (common.Address, model.Asset, model.Asset) {
	t0, t1 := model.SortAssets(a, b)
	return common.Address{}, t0, t1
}

func TestFactoryPicksDeepestPricingPool(t *testing.T) {
	c := mainnet(t)
	shallow := wethUSDCPool(c, 10, "0x01")
	shallow.SqrtPriceX96 = new(big.Int).Mul(big.NewInt(10_000), dex.Q96)
	deep := wethUSDCPool(c, 1_000, "0x02")
	provider := &staticV3Provider{pools: []*model.V3Pool{shallow, deep}}

	factory := NewFactory(c, provider, nil, nil)
	models, err := factory.Build(context.Background(), BuildRequest{GasPriceWei: big.NewInt(10_000_000_000), QuoteToken: usdc(c)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("expected one pricing pool fetch, got %d", provider.calls)
	}
	q := quoteFor(t, []model.Pool{deep}, c.WrappedNative, usdc(c), model.ExactInput, []uint32{1})
	est := models.V3.Estimate(q)
	want := new(big.Int).Mul(big.NewInt(int64(est.GasUnits)), big.NewInt(10_000_000_000))
	want.Mul(want, big.NewInt(25))
	want.Quo(want, big.NewInt(10_000_000_000))
	if est.GasCostInToken.Raw.Cmp(want) != 0 {
		t.Fatalf("cost should use the deep pool price: %s != %s", est.GasCostInToken.Raw, want)
	}
}
