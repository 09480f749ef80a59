package router

import (
	"context"
	"math/big"
	"testing"

	"alphaRouter/internal/dex"
	"alphaRouter/internal/model"
)

type scriptedRouter struct {
	calls   int
	respond func(amount model.Amount, quoteCurrency model.Asset) *model.SwapPlan
}

func (r *scriptedRouter) Route(_ context.Context, amount model.Amount, quoteCurrency model.Asset, _ model.TradeType, _ *SwapOptions, cfg *Config) (*model.SwapPlan, error) {
	r.calls++
	return r.respond(amount, quoteCurrency), nil
}

func singleRoutePlan(route model.Route, in model.Amount, out model.Amount, sqrtAfter []*big.Int) *model.SwapPlan {
	return &model.SwapPlan{
		TradeType: model.ExactInput,
		Amount:    in,
		Routes: []model.RouteQuote{{
			Route:                 route,
			TradeType:             model.ExactInput,
			Percent:               100,
			Amount:                in,
			Quote:                 out,
			QuoteToken:            out.Asset,
			SqrtPriceX96AfterList: sqrtAfter,
		}},
	}
}

// position spans ticks [-60, 60] around a pool at tick 0.
func position() model.Position {
	return model.Position{
		Pool:      v3Pool(tokenA, tokenB, model.FeeMedium, "0x01"),
		TickLower: -60,
		TickUpper: 60,
	}
}

func ratioConfig(maxIterations int) RatioConfig {
	cfg := DefaultRatioConfig()
	cfg.MaxIterations = maxIterations
	return cfg
}

func TestRouteToRatioNoSwapNeeded(t *testing.T) {
	router := &scriptedRouter{respond: func(model.Amount, model.Asset) *model.SwapPlan {
		t.Fatalf("router must not be called")
		return nil
	}}
	solver := NewRatioSolver(router, nil)

	res, err := solver.RouteToRatio(context.Background(),
		model.NewAmount(tokenA, big.NewInt(1000)),
		model.NewAmount(tokenB, big.NewInt(1000)),
		position(), ratioConfig(6))
	if err != nil {
		t.Fatalf("route to ratio: %v", err)
	}
	if res.Status != model.RatioNoSwapNeeded {
		t.Fatalf("status mismatch: %s", res.Status)
	}
	if router.calls != 0 {
		t.Fatalf("router called %d times", router.calls)
	}
}

func TestRouteToRatioMaxIterations(t *testing.T) {
	v2 := mustRoute(t, tokenA, tokenB, v2Pool(tokenA, tokenB, "0x11"))
	router := &scriptedRouter{respond: func(amount model.Amount, out model.Asset) *model.SwapPlan {
		return singleRoutePlan(v2, amount, model.NewAmount(out, big.NewInt(1)), nil)
	}}
	solver := NewRatioSolver(router, nil)

	res, err := solver.RouteToRatio(context.Background(),
		model.NewAmount(tokenA, big.NewInt(1_000_000)),
		model.NewAmount(tokenB, big.NewInt(0)),
		position(), ratioConfig(2))
	if err != nil {
		t.Fatalf("route to ratio: %v", err)
	}
	if res.Status != model.RatioNoRouteFound || res.Error != "max iterations exceeded" {
		t.Fatalf("unexpected result: %s %q", res.Status, res.Error)
	}
	if res.Iterations != 2 || router.calls != 2 {
		t.Fatalf("iterations %d calls %d", res.Iterations, router.calls)
	}
}

func TestRouteToRatioConverges(t *testing.T) {
	v2 := mustRoute(t, tokenA, tokenB, v2Pool(tokenA, tokenB, "0x11"))
	router := &scriptedRouter{respond: func(amount model.Amount, out model.Asset) *model.SwapPlan {
		return singleRoutePlan(v2, amount, model.NewAmount(out, amount.Raw), nil)
	}}
	solver := NewRatioSolver(router, nil)

	// Balances are passed in reverse order on purpose.
	res, err := solver.RouteToRatio(context.Background(),
		model.NewAmount(tokenB, big.NewInt(0)),
		model.NewAmount(tokenA, big.NewInt(1_000_000)),
		position(), ratioConfig(6))
	if err != nil {
		t.Fatalf("route to ratio: %v", err)
	}
	if res.Status != model.RatioSuccess || res.Iterations != 1 {
		t.Fatalf("unexpected result: %s after %d", res.Status, res.Iterations)
	}
	if res.Plan == nil || !res.Plan.Routes[0].Amount.Asset.Equal(tokenA) {
		t.Fatalf("expected a plan selling token A")
	}
	if res.PostSwapTargetPool == nil || res.PostSwapTargetPool.Tick != 0 {
		t.Fatalf("target pool should be unchanged")
	}
}

func TestRouteToRatioClampsWhenPriceLeavesRange(t *testing.T) {
	pos := position()
	through := mustRoute(t, tokenA, tokenB, pos.Pool)
	outside, err := dex.GetSqrtRatioAtTick(120)
	if err != nil {
		t.Fatalf("sqrt ratio: %v", err)
	}
	router := &scriptedRouter{respond: func(amount model.Amount, out model.Asset) *model.SwapPlan {
		return singleRoutePlan(through, amount, model.NewAmount(out, amount.Raw), []*big.Int{outside})
	}}
	solver := NewRatioSolver(router, nil)

	res, err := solver.RouteToRatio(context.Background(),
		model.NewAmount(tokenA, big.NewInt(1_000_000)),
		model.NewAmount(tokenB, big.NewInt(0)),
		pos, ratioConfig(6))
	if err != nil {
		t.Fatalf("route to ratio: %v", err)
	}
	if res.Status != model.RatioSuccess || res.Iterations != 2 {
		t.Fatalf("unexpected result: %s after %d", res.Status, res.Iterations)
	}
	if res.OptimalRatio.Sign() != 0 {
		t.Fatalf("ratio should be clamped to zero, got %s", res.OptimalRatio.RatString())
	}
	if res.Plan.InputAmount().Raw.Int64() != 1_000_000 {
		t.Fatalf("the whole balance should be swapped, got %s", res.Plan.InputAmount().Raw)
	}
	if res.PostSwapTargetPool.Tick != 120 {
		t.Fatalf("post swap tick mismatch: %d", res.PostSwapTargetPool.Tick)
	}
}

func TestCalculateRatioAmountIn(t *testing.T) {
	cases := []struct {
		ratio, rate *big.Rat
		in, out     int64
		want        int64
	}{
		{big.NewRat(1, 1), big.NewRat(1, 1), 1000, 0, 500},
		{big.NewRat(1, 2), big.NewRat(2, 1), 1000, 200, 450},
		{big.NewRat(10, 1), big.NewRat(1, 1), 10, 10, 0},
	}
	for _, tc := range cases {
		got := CalculateRatioAmountIn(tc.ratio, tc.rate, big.NewInt(tc.in), big.NewInt(tc.out))
		if got.Int64() != tc.want {
			t.Fatalf("ratio %s rate %s: got %s want %d", tc.ratio.RatString(), tc.rate.RatString(), got, tc.want)
		}
	}
}

func TestCalculateOptimalRatioOutOfRange(t *testing.T) {
	above, err := dex.GetSqrtRatioAtTick(200)
	if err != nil {
		t.Fatalf("sqrt ratio: %v", err)
	}
	ratio, err := CalculateOptimalRatio(position(), above, true)
	if err != nil {
		t.Fatalf("optimal ratio: %v", err)
	}
	if ratio.Sign() != 0 {
		t.Fatalf("expected zero, got %s", ratio.RatString())
	}

	inRange, err := CalculateOptimalRatio(position(), dex.Q96, true)
	if err != nil {
		t.Fatalf("optimal ratio: %v", err)
	}
	diff := new(big.Rat).Sub(inRange, big.NewRat(1, 1))
	if diff.Abs(diff).Cmp(big.NewRat(1, 1000)) > 0 {
		t.Fatalf("symmetric range should need about equal amounts, got %s", inRange.FloatString(6))
	}
}
