package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"alphaRouter/internal/config"
	"alphaRouter/internal/model"
	"alphaRouter/internal/pools"
	"alphaRouter/internal/router"
)

type ratioView struct {
	Status       string    `json:"status"`
	Iterations   int       `json:"iterations"`
	Error        string    `json:"error,omitempty"`
	OptimalRatio string    `json:"optimal_ratio,omitempty"`
	PostSwapTick *int32    `json:"post_swap_tick,omitempty"`
	Plan         *planView `json:"plan,omitempty"`
}

func runRatio(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	routing, err := cfg.Routing()
	if err != nil {
		return err
	}
	fee, err := parseFee(args[2])
	if err != nil {
		return err
	}
	tickLower, err := parseTick(args[3])
	if err != nil {
		return err
	}
	tickUpper, err := parseTick(args[4])
	if err != nil {
		return err
	}
	maxIterations, _ := cmd.Flags().GetInt("max-iterations")
	toleranceBips, _ := cmd.Flags().GetInt64("error-tolerance-bips")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	serveMetrics(ctx, cfg.MetricsAddr, logger)

	s, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	tokenA, err := s.resolveAsset(ctx, args[0])
	if err != nil {
		return err
	}
	tokenB, err := s.resolveAsset(ctx, args[1])
	if err != nil {
		return err
	}
	// Positions hold the wrapped form of the native asset.
	if tokenA.Native {
		tokenA = s.chain.WrappedNative
	}
	if tokenB.Native {
		tokenB = s.chain.WrappedNative
	}
	amountA, err := model.ParseAmount(tokenA, args[5])
	if err != nil {
		return err
	}
	amountB, err := model.ParseAmount(tokenB, args[6])
	if err != nil {
		return err
	}

	acc, err := s.v3.GetPools(ctx, []pools.V3Pair{{TokenA: tokenA, TokenB: tokenB, Fee: fee}}, pools.FetchOptions{BlockNumber: routing.BlockNumber})
	if err != nil {
		return fmt.Errorf("fetch position pool: %w", err)
	}
	pool, ok := acc.GetPool(tokenA, tokenB, fee)
	if !ok {
		return fmt.Errorf("no %s/%s pool with fee %s", tokenA, tokenB, fee)
	}

	ratioCfg := router.DefaultRatioConfig()
	ratioCfg.Routing = routing
	ratioCfg.MaxIterations = maxIterations
	ratioCfg.ErrorTolerance = big.NewRat(toleranceBips, 10_000)

	logger.Info("ratio start",
		zap.String("pool", pool.Address.Hex()),
		zap.Int32("tick", pool.Tick),
		zap.Int32("tick_lower", tickLower),
		zap.Int32("tick_upper", tickUpper),
	)

	solver := router.NewRatioSolver(s.router, logger)
	res, err := solver.RouteToRatio(ctx, amountA, amountB, model.Position{Pool: pool, TickLower: tickLower, TickUpper: tickUpper}, ratioCfg)
	if err != nil {
		return err
	}

	view := ratioView{Status: res.Status.String(), Iterations: res.Iterations, Error: res.Error}
	if res.OptimalRatio != nil {
		view.OptimalRatio = res.OptimalRatio.FloatString(8)
	}
	if res.PostSwapTargetPool != nil {
		tick := res.PostSwapTargetPool.Tick
		view.PostSwapTick = &tick
	}
	if res.Plan != nil {
		pv := newPlanView(res.Plan)
		view.Plan = &pv
	}
	if err := appendResult(cfg.Out, view); err != nil {
		return err
	}
	return printJSON(cmd, view)
}

func parseFee(input string) (model.FeeAmount, error) {
	v, err := strconv.ParseUint(input, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse fee %q: %w", input, err)
	}
	fee := model.FeeAmount(v)
	for _, known := range model.AllFeeAmounts {
		if fee == known {
			return fee, nil
		}
	}
	return 0, fmt.Errorf("unsupported fee tier %d", v)
}

func parseTick(input string) (int32, error) {
	v, err := strconv.ParseInt(input, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse tick %q: %w", input, err)
	}
	return int32(v), nil
}
