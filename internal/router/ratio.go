package router

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"alphaRouter/internal/dex"
	"alphaRouter/internal/metrics"
	"alphaRouter/internal/model"
)

// ratioPrecision is the notional liquidity used to derive a position's ratio.
var ratioPrecision = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Router is the routing entry point used by ratio balancing.
type Router interface {
	Route(ctx context.Context, amount model.Amount, quoteCurrency model.Asset, tradeType model.TradeType, swap *SwapOptions, cfg *Config) (*model.SwapPlan, error)
}

// RatioSolver computes the swap that rebalances two token holdings into the
// proportion a concentrated-liquidity position needs.
type RatioSolver struct {
	router Router
	logger *zap.Logger
}

func NewRatioSolver(router Router, logger *zap.Logger) *RatioSolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RatioSolver{router: router, logger: logger}
}

// CalculateOptimalRatio returns the token0/token1 deposit ratio of position at
// sqrtPriceX96, inverted when zeroForOne is false. Out of range prices give 0.
func CalculateOptimalRatio(position model.Position, sqrtPriceX96 *big.Int, zeroForOne bool) (*big.Rat, error) {
	upper, err := dex.GetSqrtRatioAtTick(position.TickUpper)
	if err != nil {
		return nil, fmt.Errorf("upper tick: %w", err)
	}
	lower, err := dex.GetSqrtRatioAtTick(position.TickLower)
	if err != nil {
		return nil, fmt.Errorf("lower tick: %w", err)
	}
	if sqrtPriceX96.Cmp(upper) > 0 || sqrtPriceX96.Cmp(lower) < 0 {
		return new(big.Rat), nil
	}
	amount0 := dex.GetAmount0Delta(sqrtPriceX96, upper, ratioPrecision, true)
	amount1 := dex.GetAmount1Delta(sqrtPriceX96, lower, ratioPrecision, true)
	if amount0.Sign() == 0 || amount1.Sign() == 0 {
		return new(big.Rat), nil
	}
	ratio := new(big.Rat).SetFrac(amount0, amount1)
	if !zeroForOne {
		ratio.Inv(ratio)
	}
	return ratio, nil
}

// CalculateRatioAmountIn returns how much of the input token to swap so that
// the remaining balances match optimalRatio at exchangeRate:
// (inputBalance - optimalRatio*outputBalance) / (optimalRatio*exchangeRate + 1),
// rounded down. Negative results are clamped to zero.
func CalculateRatioAmountIn(optimalRatio, exchangeRate *big.Rat, inputBalance, outputBalance *big.Int) *big.Int {
	num := new(big.Rat).Mul(optimalRatio, new(big.Rat).SetInt(outputBalance))
	num.Sub(new(big.Rat).SetInt(inputBalance), num)
	if num.Sign() <= 0 {
		return new(big.Int)
	}
	den := new(big.Rat).Mul(optimalRatio, exchangeRate)
	den.Add(den, big.NewRat(1, 1))
	return model.FloorRat(num.Quo(num, den))
}

// RouteToRatio searches for an exact-input swap after which the holdings
// match the position's ratio within cfg.ErrorTolerance. Negative outcomes are
// reported through the result status; errors are reserved for misuse and
// transport failures.
func (s *RatioSolver) RouteToRatio(ctx context.Context, token0Balance, token1Balance model.Amount, position model.Position, cfg RatioConfig) (model.RatioResult, error) {
	if position.Pool == nil || position.Pool.SqrtPriceX96 == nil {
		return model.RatioResult{}, errors.New("position pool is required")
	}
	if position.TickLower >= position.TickUpper {
		return model.RatioResult{}, fmt.Errorf("invalid tick range [%d, %d]", position.TickLower, position.TickUpper)
	}
	if cfg.MaxIterations <= 0 || cfg.ErrorTolerance == nil {
		return model.RatioResult{}, errors.New("ratio config needs max iterations and an error tolerance")
	}
	if token1Balance.Asset.SortsBefore(token0Balance.Asset) {
		token0Balance, token1Balance = token1Balance, token0Balance
	}
	pool := position.Pool

	preSwapRatio, err := CalculateOptimalRatio(position, pool.SqrtPriceX96, true)
	if err != nil {
		return model.RatioResult{}, err
	}
	var zeroForOne bool
	switch {
	case pool.Tick > position.TickUpper:
		zeroForOne = true
	case pool.Tick < position.TickLower:
		zeroForOne = false
	default:
		if token1Balance.Sign() == 0 {
			zeroForOne = token0Balance.Sign() > 0
		} else {
			zeroForOne = token0Balance.Ratio(token1Balance).Cmp(preSwapRatio) > 0
		}
		if !zeroForOne && preSwapRatio.Sign() != 0 {
			preSwapRatio = new(big.Rat).Inv(preSwapRatio)
		}
	}

	inputBalance, outputBalance := token0Balance, token1Balance
	exchangeRate := pool.Token0Price()
	if !zeroForOne {
		inputBalance, outputBalance = token1Balance, token0Balance
		exchangeRate = pool.Token1Price()
	}

	routing := cfg.Routing
	routing.Protocols = []model.Protocol{model.ProtocolV3, model.ProtocolV2}
	routing.ForceMixedRoutes = false

	optimalRatio := preSwapRatio
	clamped := false
	for n := 1; ; n++ {
		if n > cfg.MaxIterations {
			metrics.RatioIterations.Observe(float64(cfg.MaxIterations))
			s.logger.Info("ratio balancing gave up", zap.Int("iterations", cfg.MaxIterations))
			return model.RatioResult{
				Status:     model.RatioNoRouteFound,
				Iterations: cfg.MaxIterations,
				Error:      "max iterations exceeded",
			}, nil
		}

		amountToSwap := CalculateRatioAmountIn(optimalRatio, exchangeRate, inputBalance.Raw, outputBalance.Raw)
		if amountToSwap.Sign() == 0 {
			metrics.RatioIterations.Observe(float64(n))
			s.logger.Info("holdings already balanced", zap.Int("iteration", n))
			return model.RatioResult{Status: model.RatioNoSwapNeeded, OptimalRatio: optimalRatio, Iterations: n}, nil
		}

		plan, err := s.router.Route(ctx, model.NewAmount(inputBalance.Asset, amountToSwap), outputBalance.Asset, model.ExactInput, nil, &routing)
		if err != nil {
			return model.RatioResult{}, fmt.Errorf("route ratio swap: %w", err)
		}
		if plan == nil || len(plan.Routes) == 0 {
			metrics.RatioIterations.Observe(float64(n))
			return model.RatioResult{Status: model.RatioNoRouteFound, Iterations: n, Error: "no route found"}, nil
		}

		tradeIn, tradeOut := plan.InputAmount(), plan.OutputAmount()
		remainingIn := new(big.Int).Sub(inputBalance.Raw, tradeIn.Raw)
		newOut := new(big.Int).Add(outputBalance.Raw, tradeOut.Raw)
		newRatio := new(big.Rat)
		if newOut.Sign() != 0 {
			newRatio.SetFrac(remainingIn, newOut)
		}

		postSwap := targetPoolAfter(plan, pool)
		optimalRatio = preSwapRatio
		if clamped {
			optimalRatio = new(big.Rat)
		}
		if postSwap != nil {
			updated, err := CalculateOptimalRatio(position, postSwap.SqrtPriceX96, zeroForOne)
			if err != nil {
				return model.RatioResult{}, err
			}
			optimalRatio = updated
			if updated.Sign() == 0 && !clamped {
				clamped = true
				s.logger.Info("trade moves target pool out of range, swapping to one side", zap.Int32("tick", postSwap.Tick))
			}
		}

		achieved := ratioWithin(newRatio, optimalRatio, cfg.ErrorTolerance)
		s.logger.Debug("ratio iteration",
			zap.Int("iteration", n),
			zap.String("amount_in", tradeIn.ToExact()),
			zap.String("amount_out", tradeOut.ToExact()),
			zap.String("new_ratio", newRatio.FloatString(18)),
			zap.String("optimal_ratio", optimalRatio.FloatString(18)),
		)
		if achieved {
			metrics.RatioIterations.Observe(float64(n))
			res := model.RatioResult{
				Status:             model.RatioSuccess,
				Plan:               plan,
				OptimalRatio:       optimalRatio,
				PostSwapTargetPool: pool,
				Iterations:         n,
			}
			if postSwap != nil {
				res.PostSwapTargetPool = postSwap
			}
			return res, nil
		}

		if tradeIn.Sign() == 0 || tradeOut.Sign() == 0 {
			metrics.RatioIterations.Observe(float64(n))
			return model.RatioResult{Status: model.RatioNoRouteFound, Iterations: n, Error: "insufficient liquidity to swap to optimal ratio"}, nil
		}
		exchangeRate = tradeOut.Ratio(tradeIn)
	}
}

// ratioWithin reports whether got is within tolerance of want. A zero target
// is met only exactly.
func ratioWithin(got, want, tolerance *big.Rat) bool {
	if got.Cmp(want) == 0 {
		return true
	}
	if want.Sign() == 0 {
		return false
	}
	diff := new(big.Rat).Quo(got, want)
	diff.Sub(diff, big.NewRat(1, 1))
	return diff.Abs(diff).Cmp(tolerance) < 0
}

// targetPoolAfter rebuilds the target pool at the price a plan leaves it at,
// or returns nil when no route of the plan trades through it.
func targetPoolAfter(plan *model.SwapPlan, target *model.V3Pool) *model.V3Pool {
	var sqrtAfter *big.Int
	for _, rq := range plan.Routes {
		for i, p := range rq.Route.Pools {
			v3, ok := p.(*model.V3Pool)
			if !ok || i >= len(rq.SqrtPriceX96AfterList) {
				continue
			}
			if v3.Token0.Equal(target.Token0) && v3.Token1.Equal(target.Token1) && v3.Fee == target.Fee {
				sqrtAfter = rq.SqrtPriceX96AfterList[i]
			}
		}
	}
	if sqrtAfter == nil {
		return nil
	}
	tick, err := dex.GetTickAtSqrtRatio(sqrtAfter)
	if err != nil {
		return nil
	}
	return &model.V3Pool{
		Token0:       target.Token0,
		Token1:       target.Token1,
		Fee:          target.Fee,
		SqrtPriceX96: new(big.Int).Set(sqrtAfter),
		Liquidity:    target.Liquidity,
		Tick:         tick,
		Address:      target.Address,
	}
}
