package quote

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"alphaRouter/internal/dex"
	"alphaRouter/internal/metrics"
	"alphaRouter/internal/model"
	"alphaRouter/internal/tokens"
)

var bipsBase = big.NewInt(10_000)

// V2Engine prices constant-product routes from fetched reserves without any
// network call. Transfer fees reported by the risk provider are applied on
// every hop: the sell fee of the token sent into a pair and the buy fee of the
// token received from it.
type V2Engine struct {
	logger *zap.Logger
}

func NewV2Engine(logger *zap.Logger) *V2Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &V2Engine{logger: logger}
}

func (e *V2Engine) Quote(ctx context.Context, routes []model.Route, trials []Trial, tradeType model.TradeType, opts Options) ([]RouteQuotes, error) {
	out := make([]RouteQuotes, 0, len(routes))
	for _, route := range routes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if route.Protocol != model.ProtocolV2 {
			return nil, fmt.Errorf("constant-product engine cannot quote %s routes", route.Protocol)
		}
		rq := RouteQuotes{Route: route}
		token := quoteToken(route, tradeType)
		for _, trial := range trials {
			var (
				amount *big.Int
				err    error
			)
			if tradeType == model.ExactInput {
				amount, err = quoteExactIn(route, trial.Amount.Raw, opts.Risks)
			} else {
				amount, err = quoteExactOut(route, trial.Amount.Raw, opts.Risks)
			}
			if err != nil || amount.Sign() == 0 {
				metrics.QuoteCalls.WithLabelValues(string(model.ProtocolV2), "failed").Inc()
				e.logger.Debug("v2 quote failed",
					zap.String("route", route.String()),
					zap.Int("percent", trial.Percent),
					zap.Error(err),
				)
				continue
			}
			metrics.QuoteCalls.WithLabelValues(string(model.ProtocolV2), "ok").Inc()
			rq.Quotes = append(rq.Quotes, model.RouteQuote{
				Route:      route,
				TradeType:  tradeType,
				Percent:    trial.Percent,
				Amount:     model.NewAmount(trial.Amount.Asset, trial.Amount.Raw),
				Quote:      model.NewAmount(token, amount),
				QuoteToken: token,
			})
		}
		out = append(out, rq)
	}
	return out, nil
}

func quoteExactIn(route model.Route, amountIn *big.Int, risks map[common.Address]tokens.Risk) (*big.Int, error) {
	amount := new(big.Int).Set(amountIn)
	for i, pool := range route.Pools {
		pair, ok := pool.(*model.V2Pool)
		if !ok {
			return nil, fmt.Errorf("unexpected pool type %T", pool)
		}
		tokenIn, tokenOut := route.Path[i], route.Path[i+1]
		amount = applyFee(amount, sellFee(risks, tokenIn))
		reserveIn, reserveOut := pair.ReservesOf(tokenIn)
		next, err := dex.GetAmountOut(amount, reserveIn, reserveOut)
		if err != nil {
			return nil, err
		}
		amount = applyFee(next, buyFee(risks, tokenOut))
	}
	return amount, nil
}

func quoteExactOut(route model.Route, amountOut *big.Int, risks map[common.Address]tokens.Risk) (*big.Int, error) {
	amount := new(big.Int).Set(amountOut)
	for i := len(route.Pools) - 1; i >= 0; i-- {
		pair, ok := route.Pools[i].(*model.V2Pool)
		if !ok {
			return nil, fmt.Errorf("unexpected pool type %T", route.Pools[i])
		}
		tokenIn, tokenOut := route.Path[i], route.Path[i+1]
		gross, err := grossUp(amount, buyFee(risks, tokenOut))
		if err != nil {
			return nil, err
		}
		reserveIn, reserveOut := pair.ReservesOf(tokenIn)
		in, err := dex.GetAmountIn(gross, reserveIn, reserveOut)
		if err != nil {
			return nil, err
		}
		amount, err = grossUp(in, sellFee(risks, tokenIn))
		if err != nil {
			return nil, err
		}
	}
	return amount, nil
}

func sellFee(risks map[common.Address]tokens.Risk, asset model.Asset) *big.Int {
	if risk, ok := risks[asset.Address]; ok {
		return risk.SellFeeBps()
	}
	return nil
}

func buyFee(risks map[common.Address]tokens.Risk, asset model.Asset) *big.Int {
	if risk, ok := risks[asset.Address]; ok {
		return risk.BuyFeeBps()
	}
	return nil
}

// applyFee returns amount * (10000 - bps) / 10000, rounded down.
func applyFee(amount, bps *big.Int) *big.Int {
	if bps == nil || bps.Sign() == 0 {
		return amount
	}
	keep := new(big.Int).Sub(bipsBase, bps)
	if keep.Sign() <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, keep)
	return out.Quo(out, bipsBase)
}

// grossUp returns the smallest amount that is at least target after the fee.
func grossUp(target, bps *big.Int) (*big.Int, error) {
	if bps == nil || bps.Sign() == 0 {
		return target, nil
	}
	keep := new(big.Int).Sub(bipsBase, bps)
	if keep.Sign() <= 0 {
		return nil, fmt.Errorf("token fee of %s bps takes the whole transfer", bps)
	}
	num := new(big.Int).Mul(target, bipsBase)
	num.Add(num, new(big.Int).Sub(keep, big.NewInt(1)))
	return num.Quo(num, keep), nil
}
