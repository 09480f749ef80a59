package model

import "math/big"

// RouteQuote is a route quoted for one trial amount.
//
// For exact input Amount is the amount in and Quote the amount out; for exact
// output the roles swap. QuoteToken is the asset Quote is denominated in.
type RouteQuote struct {
	Route      Route     `json:"route"`
	TradeType  TradeType `json:"trade_type"`
	Percent    int       `json:"percent"`
	Amount     Amount    `json:"amount"`
	Quote      Amount    `json:"quote"`
	QuoteToken Asset     `json:"quote_token"`

	// Venue execution metadata; concentrated-liquidity hops only.
	SqrtPriceX96AfterList       []*big.Int `json:"sqrt_price_x96_after_list,omitempty"`
	InitializedTicksCrossedList []uint32   `json:"initialized_ticks_crossed_list,omitempty"`
	QuoterGasEstimate           *big.Int   `json:"quoter_gas_estimate,omitempty"`

	// Filled in by the gas model.
	GasEstimate         uint64 `json:"gas_estimate"`
	GasCostInToken      Amount `json:"gas_cost_in_token"`
	GasCostInUSD        Amount `json:"gas_cost_in_usd"`
	QuoteAdjustedForGas Amount `json:"quote_adjusted_for_gas"`
}

// GasEstimate is the output of a gas model for one quote.
type GasEstimate struct {
	GasUnits       uint64
	GasCostInToken Amount
	GasCostInUSD   Amount
}

// ApplyGas stores the estimate and derives the gas-adjusted quote.
func (q *RouteQuote) ApplyGas(est GasEstimate) {
	q.GasEstimate = est.GasUnits
	q.GasCostInToken = est.GasCostInToken
	q.GasCostInUSD = est.GasCostInUSD
	if q.TradeType == ExactInput {
		q.QuoteAdjustedForGas = q.Quote.Sub(est.GasCostInToken)
	} else {
		q.QuoteAdjustedForGas = q.Quote.Add(est.GasCostInToken)
	}
}

// TicksCrossed sums initialized ticks crossed over all hops.
func (q *RouteQuote) TicksCrossed() uint64 {
	var total uint64
	for _, ticks := range q.InitializedTicksCrossedList {
		total += uint64(ticks)
	}
	return total
}

// BetterThan reports whether q has a better gas-adjusted quote than other.
func (q *RouteQuote) BetterThan(other *RouteQuote) bool {
	cmp := q.QuoteAdjustedForGas.Cmp(other.QuoteAdjustedForGas)
	if q.TradeType == ExactInput {
		return cmp > 0
	}
	return cmp < 0
}
