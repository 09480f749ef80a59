package router

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"alphaRouter/internal/chain"
	"alphaRouter/internal/chains"
	"alphaRouter/internal/gas"
	"alphaRouter/internal/metrics"
	"alphaRouter/internal/model"
	"alphaRouter/internal/pools"
	"alphaRouter/internal/portion"
	"alphaRouter/internal/quote"
	"alphaRouter/internal/simulate"
	"alphaRouter/internal/tokens"
)

var (
	ErrUnsupportedTradeType = errors.New("unsupported trade type")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrChainMismatch        = errors.New("asset chain does not match router chain")
)

// BlockSource reads the head block and the gas price.
type BlockSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// GasModelFactory builds the gas models of one request.
type GasModelFactory interface {
	Build(ctx context.Context, req gas.BuildRequest) (gas.Models, error)
}

// Deps are the collaborators of an AlphaRouter. The V2 fields may be nil on
// chains without constant-product pools; Simulator may be nil.
type Deps struct {
	Chain       *chains.Chain
	Blocks      BlockSource
	V3Provider  pools.V3Provider
	V2Provider  pools.V2Provider
	V3Lister    pools.Lister
	V2Lister    pools.Lister
	Assets      AssetResolver
	Risk        RiskSource
	V3Quoter    quote.Engine
	MixedQuoter quote.Engine
	V2Quoter    quote.Engine
	GasModels   GasModelFactory
	Simulator   simulate.Simulator
	Portion     *portion.Adjuster
}

// AlphaRouter finds the best split of a trade across constant-product,
// concentrated-liquidity and mixed routes.
type AlphaRouter struct {
	chain       *chains.Chain
	blocks      BlockSource
	v3          pools.V3Provider
	v2          pools.V2Provider
	v3Lister    pools.Lister
	v2Lister    pools.Lister
	assets      AssetResolver
	risk        RiskSource
	v3Quoter    quote.Engine
	mixedQuoter quote.Engine
	v2Quoter    quote.Engine
	gasModels   GasModelFactory
	simulator   simulate.Simulator
	portion     *portion.Adjuster
	logger      *zap.Logger
}

func New(deps Deps, logger *zap.Logger) (*AlphaRouter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Chain == nil {
		return nil, errors.New("chain is required")
	}
	if deps.Blocks == nil || deps.V3Provider == nil || deps.V3Quoter == nil || deps.GasModels == nil {
		return nil, errors.New("block source, v3 provider, v3 quoter and gas models are required")
	}
	if deps.Chain.V2Supported && (deps.V2Provider == nil || deps.V2Quoter == nil) {
		return nil, fmt.Errorf("chain %s supports v2 but no v2 provider or quoter is set", deps.Chain.Name)
	}
	if deps.MixedQuoter == nil {
		deps.MixedQuoter = deps.V3Quoter
	}
	if deps.Portion == nil {
		deps.Portion = portion.NewAdjuster(logger)
	}
	return &AlphaRouter{
		chain:       deps.Chain,
		blocks:      deps.Blocks,
		v3:          deps.V3Provider,
		v2:          deps.V2Provider,
		v3Lister:    deps.V3Lister,
		v2Lister:    deps.V2Lister,
		assets:      deps.Assets,
		risk:        deps.Risk,
		v3Quoter:    deps.V3Quoter,
		mixedQuoter: deps.MixedQuoter,
		v2Quoter:    deps.V2Quoter,
		gasModels:   deps.GasModels,
		simulator:   deps.Simulator,
		portion:     deps.Portion,
		logger:      logger,
	}, nil
}

// Chain returns the chain the router serves.
func (r *AlphaRouter) Chain() *chains.Chain {
	return r.chain
}

// Route finds the best plan to trade amount for quoteCurrency. For exact
// input amount is spent, for exact output amount is received. A nil plan with
// a nil error means no route exists.
func (r *AlphaRouter) Route(ctx context.Context, amount model.Amount, quoteCurrency model.Asset, tradeType model.TradeType, swap *SwapOptions, cfg *Config) (*model.SwapPlan, error) {
	start := time.Now()
	status := "ok"
	defer func() {
		metrics.RouteRequests.WithLabelValues(tradeType.String(), status).Inc()
		metrics.RouteDuration.WithLabelValues(tradeType.String()).Observe(time.Since(start).Seconds())
	}()

	plan, err := r.route(ctx, amount, quoteCurrency, tradeType, swap, cfg)
	switch {
	case err != nil:
		status = "error"
	case plan == nil:
		status = "no_route"
	}
	return plan, err
}

func (r *AlphaRouter) route(ctx context.Context, amount model.Amount, quoteCurrency model.Asset, tradeType model.TradeType, swap *SwapOptions, cfg *Config) (*model.SwapPlan, error) {
	if tradeType != model.ExactInput && tradeType != model.ExactOutput {
		return nil, ErrUnsupportedTradeType
	}
	if amount.Raw == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount.Asset.ChainID != r.chain.ID || quoteCurrency.ChainID != r.chain.ID {
		return nil, ErrChainMismatch
	}
	routing := DefaultConfig()
	if cfg != nil {
		routing = *cfg
	}
	if err := routing.Validate(); err != nil {
		return nil, fmt.Errorf("routing config: %w", err)
	}
	if tradeType == model.ExactOutput && (routing.ForceMixedRoutes || (len(routing.Protocols) == 1 && routing.Protocols[0] == model.ProtocolMixed)) {
		return nil, quote.ErrExactOutputMixed
	}
	if err := swap.validate(); err != nil {
		return nil, fmt.Errorf("swap options: %w", err)
	}

	block, gasPrice, err := r.pinRequest(ctx, routing)
	if err != nil {
		return nil, err
	}

	var portionCfg *portion.Config
	if swap != nil {
		portionCfg = swap.Portion
	}
	originalAmount := amount
	routeAmount := r.portion.AdjustedOutputAmount(amount, tradeType, portionCfg)

	currencyIn, currencyOut := amount.Asset, quoteCurrency
	if tradeType == model.ExactOutput {
		currencyIn, currencyOut = quoteCurrency, amount.Asset
	}
	tokenIn, tokenOut := r.chain.Wrap(currencyIn), r.chain.Wrap(currencyOut)
	if tokenIn.Equal(tokenOut) {
		return nil, fmt.Errorf("cannot route %s to itself", tokenIn)
	}
	routeAmount = model.NewAmount(r.chain.Wrap(routeAmount.Asset), routeAmount.Raw)
	quoteToken := tokenOut
	if tradeType == model.ExactOutput {
		quoteToken = tokenIn
	}

	r.logger.Info("route request",
		zap.String("token_in", tokenIn.String()),
		zap.String("token_out", tokenOut.String()),
		zap.String("amount", routeAmount.ToExact()),
		zap.Stringer("trade_type", tradeType),
		zap.Uint64("block", block),
	)

	v3Provider := r.v3
	if scoped, ok := r.v3.(pools.RequestScoped[pools.V3Provider]); ok {
		v3Provider = scoped.ForRequest()
	}

	percents, trials := distribute(routeAmount, routing.DistributionPercent)
	models, err := r.gasModels.Build(ctx, gas.BuildRequest{
		GasPriceWei: gasPrice,
		QuoteToken:  quoteToken,
		BlockNumber: &block,
		V3Provider:  v3Provider,
	})
	if err != nil {
		return nil, fmt.Errorf("build gas models: %w", err)
	}

	kinds := r.kinds(routing, tradeType)
	quotes, err := r.quoteAll(ctx, kinds, v3Provider, candidateRequest{
		tokenIn:   tokenIn,
		tokenOut:  tokenOut,
		tradeType: tradeType,
		block:     &block,
	}, routing, trials, models)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("quote routes: %w", err)
	}
	if routing.ForceMixedRoutes {
		mixed := quotes[:0]
		for _, q := range quotes {
			if q.Route.Protocol == model.ProtocolMixed {
				mixed = append(mixed, q)
			}
		}
		quotes = mixed
	}
	if len(quotes) == 0 {
		r.logger.Info("no quotes for any route", zap.Int("percents", len(percents)))
		return nil, nil
	}

	best := BestSwapRoute(routeAmount, quotes, tradeType, routing, r.logger)
	if best == nil {
		return nil, nil
	}

	plan := r.buildPlan(tradeType, originalAmount, routeAmount, best, block, gasPrice, portionCfg)

	if swap != nil && swap.Recipient != (common.Address{}) && !swap.Deadline.IsZero() {
		params, err := EncodeSwap(r.chain, tradeType, best.Routes, currencyIn, currencyOut, swap)
		switch {
		case errors.Is(err, ErrFlatFeeCalldata):
			r.logger.Warn("plan returned without call data", zap.Error(err))
		case err != nil:
			return nil, fmt.Errorf("encode swap: %w", err)
		default:
			plan.MethodParameters = params
			if swap.Simulate && swap.From != (common.Address{}) && r.simulator != nil {
				r.simulate(ctx, plan, currencyIn, swap, block)
				if err := ctx.Err(); err != nil {
					return nil, fmt.Errorf("simulate swap: %w", err)
				}
			}
		}
	}

	r.logger.Info("route found",
		zap.String("quote", plan.Quote.ToExact()),
		zap.String("quote_gas_adjusted", plan.QuoteGasAdjusted.ToExact()),
		zap.Uint64("estimated_gas", plan.EstimatedGasUsed),
		zap.Int("routes", len(plan.Routes)),
	)
	return plan, nil
}

func (r *AlphaRouter) pinRequest(ctx context.Context, cfg Config) (uint64, *big.Int, error) {
	var block uint64
	if cfg.BlockNumber != nil {
		block = *cfg.BlockNumber
	} else {
		err := chain.WithRetry(ctx, blockRetry, func(ctx context.Context) error {
			var err error
			block, err = r.blocks.LatestBlockNumber(ctx)
			return err
		})
		if err != nil {
			return 0, nil, fmt.Errorf("fetch block number: %w", err)
		}
	}

	if cfg.GasPriceWei != nil {
		return block, new(big.Int).Set(cfg.GasPriceWei), nil
	}
	var gasPrice *big.Int
	err := chain.WithRetry(ctx, blockRetry, func(ctx context.Context) error {
		var err error
		gasPrice, err = r.blocks.SuggestGasPrice(ctx)
		return err
	})
	if err != nil {
		return 0, nil, fmt.Errorf("fetch gas price: %w", err)
	}
	return block, gasPrice, nil
}

type kinds struct {
	v3, v2, mixed bool
}

// kinds decides which venue kinds are quoted. Kinds that are not requested
// or not available never reach their quote engine.
func (r *AlphaRouter) kinds(cfg Config, tradeType model.TradeType) kinds {
	none := len(cfg.Protocols) == 0
	return kinds{
		v3: none || cfg.hasProtocol(model.ProtocolV3),
		v2: r.chain.V2Supported && (none || cfg.hasProtocol(model.ProtocolV2)),
		mixed: (cfg.hasProtocol(model.ProtocolMixed) || (none && r.chain.V2Supported)) &&
			r.chain.MixedSupported && tradeType == model.ExactInput,
	}
}

// quoteAll fetches candidates, then quotes every enabled kind concurrently
// and applies the gas models.
func (r *AlphaRouter) quoteAll(ctx context.Context, k kinds, v3Provider pools.V3Provider, req candidateRequest, cfg Config, trials []quote.Trial, models gas.Models) ([]model.RouteQuote, error) {
	var (
		v3Pools []*model.V3Pool
		v2Pools []*model.V2Pool
		risks   map[common.Address]tokens.Risk
	)

	g, gctx := errgroup.WithContext(ctx)
	if k.v3 || k.mixed {
		g.Go(func() error {
			v3req := req
			v3req.selection = cfg.V3PoolSelection
			var err error
			v3Pools, err = r.v3Candidates(gctx, v3Provider, v3req)
			return err
		})
	}
	if k.v2 || k.mixed {
		g.Go(func() error {
			v2req := req
			v2req.selection = cfg.V2PoolSelection
			var err error
			v2Pools, risks, err = r.v2Candidates(gctx, v2req)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("candidate pools: %w", err)
	}

	opts := quote.Options{BlockNumber: req.block, Risks: risks}
	var (
		mu  sync.Mutex
		all []model.RouteQuote
	)
	run := func(ctx context.Context, protocol model.Protocol, engine quote.Engine, routes []model.Route) error {
		rqs, err := engine.Quote(ctx, routes, trials, req.tradeType, opts)
		if err != nil {
			return fmt.Errorf("quote %s routes: %w", protocol, err)
		}
		gm := models.For(protocol)
		var out []model.RouteQuote
		for _, rq := range rqs {
			for _, q := range rq.Quotes {
				q.ApplyGas(gm.Estimate(&q))
				out = append(out, q)
			}
		}
		r.logger.Debug("quoted routes",
			zap.String("protocol", string(protocol)),
			zap.Int("routes", len(routes)),
			zap.Int("quotes", len(out)),
		)
		mu.Lock()
		all = append(all, out...)
		mu.Unlock()
		return nil
	}

	g, gctx = errgroup.WithContext(ctx)
	if k.v3 {
		g.Go(func() error {
			routes := ComputeAllV3Routes(req.tokenIn, req.tokenOut, v3Pools, cfg.MaxSwapsPerPath)
			return run(gctx, model.ProtocolV3, r.v3Quoter, routes)
		})
	}
	if k.v2 {
		g.Go(func() error {
			routes := ComputeAllV2Routes(req.tokenIn, req.tokenOut, v2Pools, cfg.MaxSwapsPerPath)
			return run(gctx, model.ProtocolV2, r.v2Quoter, routes)
		})
	}
	if k.mixed {
		g.Go(func() error {
			routes := ComputeAllMixedRoutes(req.tokenIn, req.tokenOut, v3Pools, v2Pools, cfg.MaxSwapsPerPath)
			return run(gctx, model.ProtocolMixed, r.mixedQuoter, routes)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

// distribute splits amount into 100/percent trial buckets.
func distribute(amount model.Amount, percent int) ([]int, []quote.Trial) {
	n := 100 / percent
	percents := make([]int, n)
	trials := make([]quote.Trial, n)
	for i := 1; i <= n; i++ {
		p := i * percent
		percents[i-1] = p
		trials[i-1] = quote.Trial{Percent: p, Amount: amount.MulRat(big.NewRat(int64(p), 100))}
	}
	return percents, trials
}

func (r *AlphaRouter) buildPlan(tradeType model.TradeType, original, routed model.Amount, best *SplitResult, block uint64, gasPrice *big.Int, cfg *portion.Config) *model.SwapPlan {
	plan := &model.SwapPlan{
		TradeType:                  tradeType,
		Amount:                     original,
		BlockNumber:                block,
		GasPriceWei:                gasPrice,
		Quote:                      best.Quote,
		QuoteGasAdjusted:           best.QuoteGasAdjusted,
		EstimatedGasUsed:           best.EstimatedGasUsed,
		EstimatedGasUsedQuoteToken: best.EstimatedGasUsedQuoteToken,
		EstimatedGasUsedUSD:        best.EstimatedGasUsedUSD,
	}

	tokenOutAmount := best.Quote
	if tradeType == model.ExactOutput {
		tokenOutAmount = original
	}
	portionAmount := r.portion.PortionAmount(tokenOutAmount, tradeType, cfg)
	portionQuote := r.portion.PortionQuoteAmount(tradeType, best.Quote, routed, portionAmount)
	plan.Quote = r.portion.Quote(tradeType, best.Quote, portionQuote)
	plan.QuoteGasAdjusted = r.portion.QuoteGasAdjusted(tradeType, best.QuoteGasAdjusted, portionQuote)
	plan.QuoteGasAndPortionAdjusted = r.portion.QuoteGasAndPortionAdjusted(tradeType, plan.QuoteGasAdjusted, portionAmount, portionQuote)
	plan.PortionAmount = portionAmount
	plan.Routes = r.portion.AdjustRoutes(tradeType, best.Routes, cfg)
	return plan
}

func (r *AlphaRouter) simulate(ctx context.Context, plan *model.SwapPlan, currencyIn model.Asset, swap *SwapOptions, block uint64) {
	amountIn := plan.InputAmount().Raw
	if plan.TradeType == model.ExactOutput {
		slippage := swap.SlippageTolerance
		if slippage == nil {
			slippage = new(big.Rat)
		}
		amountIn = maximumAmount(plan.Quote.Raw, slippage)
	}
	res := r.simulator.Simulate(ctx, simulate.Request{
		From:         swap.From,
		TokenIn:      currencyIn,
		AmountIn:     amountIn,
		Call:         *plan.MethodParameters,
		PermitSigned: swap.PermitSigned,
		BlockNumber:  &block,
	})
	status := res.Status
	plan.Simulation = &status
	if res.Status == model.SimulationSucceeded && res.GasEstimate > 0 {
		plan.EstimatedGasUsed = res.GasEstimate
	}
	r.logger.Info("simulation finished", zap.Stringer("status", res.Status), zap.Uint64("gas", res.GasEstimate))
}
