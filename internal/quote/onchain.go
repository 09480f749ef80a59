package quote

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"alphaRouter/internal/chains"
	"alphaRouter/internal/dex"
	"alphaRouter/internal/metrics"
	"alphaRouter/internal/model"
	"alphaRouter/internal/multicall"
)

// OnChainConfig tunes batched quoter calls.
type OnChainConfig struct {
	GasLimitPerCall uint64
	MinSuccessRate  float64
}

// DefaultOnChainConfig returns the batch settings used by the router.
func DefaultOnChainConfig() OnChainConfig {
	return OnChainConfig{GasLimitPerCall: 1_000_000, MinSuccessRate: 0.2}
}

// OnChainEngine simulates swaps through QuoterV2 and the mixed route quoter.
type OnChainEngine struct {
	chain     *chains.Chain
	multicall multicall.Executor
	cfg       OnChainConfig
	logger    *zap.Logger
}

func NewOnChainEngine(chain *chains.Chain, executor multicall.Executor, cfg OnChainConfig, logger *zap.Logger) *OnChainEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.GasLimitPerCall == 0 {
		cfg.GasLimitPerCall = 1_000_000
	}
	return &OnChainEngine{chain: chain, multicall: executor, cfg: cfg, logger: logger}
}

// Quote batches one quoter call per route and trial.
func (e *OnChainEngine) Quote(ctx context.Context, routes []model.Route, trials []Trial, tradeType model.TradeType, opts Options) ([]RouteQuotes, error) {
	if len(routes) == 0 || len(trials) == 0 {
		return nil, nil
	}
	exactOut := tradeType == model.ExactOutput
	method := "quoteExactInput"
	if exactOut {
		method = "quoteExactOutput"
	}

	quoterABI, err := dex.QuoterV2ABI()
	if err != nil {
		return nil, fmt.Errorf("parse quoter abi: %w", err)
	}
	mixedABI, err := dex.MixedQuoterABI()
	if err != nil {
		return nil, fmt.Errorf("parse mixed quoter abi: %w", err)
	}

	calls := make([]multicall.Call, 0, len(routes)*len(trials))
	for _, route := range routes {
		switch route.Protocol {
		case model.ProtocolMixed:
			if exactOut {
				return nil, ErrExactOutputMixed
			}
		case model.ProtocolV3:
		default:
			return nil, fmt.Errorf("on-chain quoter cannot quote %s routes", route.Protocol)
		}
		path, err := dex.EncodeRoutePath(route, exactOut)
		if err != nil {
			return nil, fmt.Errorf("encode path: %w", err)
		}
		target, parsed := e.chain.Addresses.QuoterV2, quoterABI
		if route.Protocol == model.ProtocolMixed {
			target, parsed = e.chain.Addresses.MixedQuoter, mixedABI
		}
		for _, trial := range trials {
			calls = append(calls, multicall.Call{
				Target:   target,
				ABI:      parsed,
				Method:   method,
				Args:     []interface{}{path, new(big.Int).Set(trial.Amount.Raw)},
				GasLimit: e.cfg.GasLimitPerCall,
			})
		}
	}

	batch, err := e.multicall.Call(ctx, calls, multicall.Options{BlockNumber: opts.BlockNumber})
	if err != nil {
		return nil, fmt.Errorf("quote routes: %w", err)
	}

	out := make([]RouteQuotes, 0, len(routes))
	succeeded := 0
	for i, route := range routes {
		rq := RouteQuotes{Route: route}
		token := quoteToken(route, tradeType)
		for j, trial := range trials {
			res := batch.Results[i*len(trials)+j]
			q, err := decodeQuote(res, route, trial, tradeType, token)
			if err != nil {
				metrics.QuoteCalls.WithLabelValues(string(route.Protocol), "failed").Inc()
				e.logger.Debug("quote failed",
					zap.String("route", route.String()),
					zap.Int("percent", trial.Percent),
					zap.Error(err),
				)
				continue
			}
			metrics.QuoteCalls.WithLabelValues(string(route.Protocol), "ok").Inc()
			succeeded++
			rq.Quotes = append(rq.Quotes, q)
		}
		out = append(out, rq)
	}

	if len(calls) > 0 {
		rate := float64(succeeded) / float64(len(calls))
		if rate < e.cfg.MinSuccessRate {
			e.logger.Warn("low quote success rate",
				zap.Float64("rate", rate),
				zap.Int("calls", len(calls)),
				zap.Uint64("block", batch.BlockNumber),
			)
		}
	}
	return out, nil
}

func decodeQuote(res multicall.Result, route model.Route, trial Trial, tradeType model.TradeType, token model.Asset) (model.RouteQuote, error) {
	if !res.Success {
		if res.Err != nil {
			return model.RouteQuote{}, res.Err
		}
		return model.RouteQuote{}, fmt.Errorf("quoter call failed")
	}
	if len(res.Values) < 4 {
		return model.RouteQuote{}, fmt.Errorf("short quoter return")
	}
	amount, err := dex.AsBigInt(res.Values[0])
	if err != nil {
		return model.RouteQuote{}, fmt.Errorf("quoted amount: %w", err)
	}
	if amount.Sign() == 0 {
		return model.RouteQuote{}, fmt.Errorf("zero quote")
	}
	sqrtAfter, err := dex.AsBigIntSlice(res.Values[1])
	if err != nil {
		return model.RouteQuote{}, fmt.Errorf("sqrt price list: %w", err)
	}
	ticks, err := dex.AsUint32Slice(res.Values[2])
	if err != nil {
		return model.RouteQuote{}, fmt.Errorf("ticks crossed list: %w", err)
	}
	gasEstimate, err := dex.AsBigInt(res.Values[3])
	if err != nil {
		return model.RouteQuote{}, fmt.Errorf("gas estimate: %w", err)
	}
	// Exact-output paths are quoted from the output side; keep lists in pool order.
	if tradeType == model.ExactOutput {
		reverseBigInts(sqrtAfter)
		reverseUint32s(ticks)
	}
	return model.RouteQuote{
		Route:                       route,
		TradeType:                   tradeType,
		Percent:                     trial.Percent,
		Amount:                      model.NewAmount(trial.Amount.Asset, trial.Amount.Raw),
		Quote:                       model.NewAmount(token, amount),
		QuoteToken:                  token,
		SqrtPriceX96AfterList:       sqrtAfter,
		InitializedTicksCrossedList: ticks,
		QuoterGasEstimate:           gasEstimate,
	}, nil
}

func reverseBigInts(s []*big.Int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func reverseUint32s(s []uint32) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
