package router

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"alphaRouter/internal/chains"
	"alphaRouter/internal/dex"
	"alphaRouter/internal/model"
)

// ErrFlatFeeCalldata is returned for exact-output portions: the swap router
// has no call that transfers a fixed amount to a fee recipient.
var ErrFlatFeeCalldata = errors.New("flat fee portions cannot be encoded for the swap router")

// addressThis makes the swap router keep the output for a later step.
var addressThis = common.HexToAddress("0x0000000000000000000000000000000000000002")

type exactInputParams struct {
	Path             []byte
	Recipient        common.Address
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
}

type exactOutputParams struct {
	Path            []byte
	Recipient       common.Address
	AmountOut       *big.Int
	AmountInMaximum *big.Int
}

// EncodeSwap builds the swap router multicall for a plan's routes.
// tokenIn and tokenOut are the assets as requested, so native assets are
// wrapped on the way in and unwrapped on the way out.
func EncodeSwap(c *chains.Chain, tradeType model.TradeType, routes []model.RouteQuote, tokenIn, tokenOut model.Asset, opts *SwapOptions) (*model.MethodParameters, error) {
	if opts == nil {
		return nil, errors.New("swap options are required")
	}
	if len(routes) == 0 {
		return nil, errors.New("no routes to encode")
	}
	if opts.Deadline.IsZero() {
		return nil, errors.New("deadline is required")
	}
	if tradeType == model.ExactOutput && opts.Portion != nil && opts.Portion.FlatFee != nil && opts.Portion.FlatFee.Sign() > 0 {
		return nil, ErrFlatFeeCalldata
	}
	parsed, err := dex.SwapRouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse swap router abi: %w", err)
	}
	slippage := opts.SlippageTolerance
	if slippage == nil {
		slippage = new(big.Rat)
	}

	withFee := tradeType == model.ExactInput && opts.Portion != nil && opts.Portion.FeeBips > 0
	routeToRouter := tokenOut.Native || withFee
	recipient := opts.Recipient
	if routeToRouter {
		recipient = addressThis
	}

	var (
		calls    [][]byte
		totalMin = new(big.Int)
		totalMax = new(big.Int)
		totalOut = new(big.Int)
	)
	for _, rq := range routes {
		var encoded [][]byte
		if tradeType == model.ExactInput {
			minOut := minimumAmount(rq.Quote.Raw, slippage)
			totalMin.Add(totalMin, minOut)
			encoded, err = encodeExactIn(parsed, rq.Route, rq.Amount.Raw, minOut, recipient)
		} else {
			maxIn := maximumAmount(rq.Quote.Raw, slippage)
			totalMax.Add(totalMax, maxIn)
			totalOut.Add(totalOut, rq.Amount.Raw)
			encoded, err = encodeExactOut(parsed, rq.Route, rq.Amount.Raw, maxIn, recipient)
		}
		if err != nil {
			return nil, fmt.Errorf("encode route %s: %w", rq.Route.ID(), err)
		}
		calls = append(calls, encoded...)
	}

	if routeToRouter {
		minimum := totalMin
		if tradeType == model.ExactOutput {
			minimum = totalOut
		}
		payout, err := encodePayout(parsed, c, tokenOut, minimum, opts, withFee)
		if err != nil {
			return nil, err
		}
		calls = append(calls, payout)
	}

	value := new(big.Int)
	if tokenIn.Native {
		if tradeType == model.ExactInput {
			for _, rq := range routes {
				value.Add(value, rq.Amount.Raw)
			}
		} else {
			value.Set(totalMax)
			refund, err := parsed.Pack("refundETH")
			if err != nil {
				return nil, fmt.Errorf("pack refundETH: %w", err)
			}
			calls = append(calls, refund)
		}
	}

	data, err := parsed.Pack("multicall", big.NewInt(opts.Deadline.Unix()), calls)
	if err != nil {
		return nil, fmt.Errorf("pack multicall: %w", err)
	}
	return &model.MethodParameters{To: c.Addresses.SwapRouter02, Calldata: data, Value: value}, nil
}

func encodePayout(parsed abi.ABI, c *chains.Chain, tokenOut model.Asset, minimum *big.Int, opts *SwapOptions, withFee bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case tokenOut.Native && withFee:
		data, err = parsed.Pack("unwrapWETH9WithFee", minimum, opts.Recipient, big.NewInt(int64(opts.Portion.FeeBips)), opts.Portion.Recipient)
	case tokenOut.Native:
		data, err = parsed.Pack("unwrapWETH9", minimum, opts.Recipient)
	default:
		token := c.Wrap(tokenOut).Address
		data, err = parsed.Pack("sweepTokenWithFee", token, minimum, opts.Recipient, big.NewInt(int64(opts.Portion.FeeBips)), opts.Portion.Recipient)
	}
	if err != nil {
		return nil, fmt.Errorf("pack payout: %w", err)
	}
	return data, nil
}

// encodeExactIn encodes one route. Mixed routes become one call per run of
// same-kind pools; every run after the first spends the router's balance.
func encodeExactIn(parsed abi.ABI, route model.Route, amountIn, minOut *big.Int, recipient common.Address) ([][]byte, error) {
	sections := splitSections(route)
	out := make([][]byte, 0, len(sections))
	for i, sec := range sections {
		last := i == len(sections)-1
		secIn := amountIn
		if i > 0 {
			secIn = new(big.Int)
		}
		secMin, secRecipient := minOut, recipient
		if !last {
			secMin, secRecipient = new(big.Int), addressThis
		}

		var (
			data []byte
			err  error
		)
		switch sec.Protocol {
		case model.ProtocolV3:
			path, perr := dex.EncodeRoutePath(sec, false)
			if perr != nil {
				return nil, perr
			}
			data, err = parsed.Pack("exactInput", exactInputParams{Path: path, Recipient: secRecipient, AmountIn: secIn, AmountOutMinimum: secMin})
		case model.ProtocolV2:
			data, err = parsed.Pack("swapExactTokensForTokens", secIn, secMin, pathAddresses(sec), secRecipient)
		default:
			return nil, fmt.Errorf("unexpected section protocol %s", sec.Protocol)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func encodeExactOut(parsed abi.ABI, route model.Route, amountOut, maxIn *big.Int, recipient common.Address) ([][]byte, error) {
	var (
		data []byte
		err  error
	)
	switch route.Protocol {
	case model.ProtocolV3:
		path, perr := dex.EncodeRoutePath(route, true)
		if perr != nil {
			return nil, perr
		}
		data, err = parsed.Pack("exactOutput", exactOutputParams{Path: path, Recipient: recipient, AmountOut: amountOut, AmountInMaximum: maxIn})
	case model.ProtocolV2:
		data, err = parsed.Pack("swapTokensForExactTokens", amountOut, maxIn, pathAddresses(route), recipient)
	default:
		return nil, fmt.Errorf("%s routes cannot be encoded for exact output", route.Protocol)
	}
	if err != nil {
		return nil, err
	}
	return [][]byte{data}, nil
}

// splitSections cuts a route into maximal runs of pools of the same kind.
func splitSections(route model.Route) []model.Route {
	if route.Protocol != model.ProtocolMixed {
		return []model.Route{route}
	}
	var out []model.Route
	start := 0
	for i := 1; i <= len(route.Pools); i++ {
		if i < len(route.Pools) && route.Pools[i].Kind() == route.Pools[start].Kind() {
			continue
		}
		sec, err := model.NewRoute(route.Pools[start:i], route.Path[start], route.Path[i])
		if err == nil {
			out = append(out, sec)
		}
		start = i
	}
	return out
}

func pathAddresses(route model.Route) []common.Address {
	out := make([]common.Address, len(route.Path))
	for i, a := range route.Path {
		out[i] = a.Address
	}
	return out
}

// minimumAmount is amount * (1 - slippage), rounded down.
func minimumAmount(amount *big.Int, slippage *big.Rat) *big.Int {
	keep := new(big.Rat).Sub(big.NewRat(1, 1), slippage)
	return model.FloorRat(new(big.Rat).Mul(new(big.Rat).SetInt(amount), keep))
}

// maximumAmount is amount * (1 + slippage), rounded up.
func maximumAmount(amount *big.Int, slippage *big.Rat) *big.Int {
	r := new(big.Rat).Mul(new(big.Rat).SetInt(amount), new(big.Rat).Add(big.NewRat(1, 1), slippage))
	q, m := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if m.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
