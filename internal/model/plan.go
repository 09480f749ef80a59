package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SimulationStatus is the terminal outcome of a pre-flight simulation.
type SimulationStatus int

const (
	SimulationNotSupported SimulationStatus = iota
	SimulationFailed
	SimulationSucceeded
	SimulationInsufficientBalance
	SimulationNotApproved
)

func (s SimulationStatus) String() string {
	switch s {
	case SimulationNotSupported:
		return "NotSupported"
	case SimulationFailed:
		return "Failed"
	case SimulationSucceeded:
		return "Succeeded"
	case SimulationInsufficientBalance:
		return "InsufficientBalance"
	case SimulationNotApproved:
		return "NotApproved"
	default:
		return "Unknown"
	}
}

// MarshalText renders the status by name.
func (s SimulationStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MethodParameters is a ready-to-broadcast call.
type MethodParameters struct {
	To       common.Address `json:"to"`
	Calldata []byte         `json:"calldata"`
	Value    *big.Int       `json:"value"`
}

// SwapPlan is the routing result for one request.
type SwapPlan struct {
	TradeType   TradeType `json:"trade_type"`
	Amount      Amount    `json:"amount"`
	BlockNumber uint64    `json:"block_number"`
	GasPriceWei *big.Int  `json:"gas_price_wei"`

	Quote                      Amount  `json:"quote"`
	QuoteGasAdjusted           Amount  `json:"quote_gas_adjusted"`
	QuoteGasAndPortionAdjusted *Amount `json:"quote_gas_and_portion_adjusted,omitempty"`
	PortionAmount              *Amount `json:"portion_amount,omitempty"`

	EstimatedGasUsed           uint64 `json:"estimated_gas_used"`
	EstimatedGasUsedQuoteToken Amount `json:"estimated_gas_used_quote_token"`
	EstimatedGasUsedUSD        Amount `json:"estimated_gas_used_usd"`

	Routes []RouteQuote `json:"routes"`

	MethodParameters *MethodParameters `json:"method_parameters,omitempty"`
	Simulation       *SimulationStatus `json:"simulation_status,omitempty"`
}

// InputAmount is the total amount spent by the plan.
func (p *SwapPlan) InputAmount() Amount {
	return p.sum(p.TradeType == ExactInput)
}

// OutputAmount is the total amount received by the plan.
func (p *SwapPlan) OutputAmount() Amount {
	return p.sum(p.TradeType == ExactOutput)
}

func (p *SwapPlan) sum(useAmounts bool) Amount {
	var total Amount
	for i, r := range p.Routes {
		v := r.Quote
		if useAmounts {
			v = r.Amount
		}
		if i == 0 {
			total = NewAmount(v.Asset, v.Raw)
			continue
		}
		total = total.Add(v)
	}
	return total
}

// TotalPercent sums route percentages.
func (p *SwapPlan) TotalPercent() int {
	total := 0
	for _, r := range p.Routes {
		total += r.Percent
	}
	return total
}

// RatioStatus is the terminal outcome of ratio balancing.
type RatioStatus int

const (
	RatioSuccess RatioStatus = iota
	RatioNoSwapNeeded
	RatioNoRouteFound
)

func (s RatioStatus) String() string {
	switch s {
	case RatioSuccess:
		return "Success"
	case RatioNoSwapNeeded:
		return "NoSwapNeeded"
	default:
		return "NoRouteFound"
	}
}

// MarshalText renders the status by name.
func (s RatioStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RatioResult is the outcome of RouteToRatio.
type RatioResult struct {
	Status             RatioStatus `json:"status"`
	Plan               *SwapPlan   `json:"plan,omitempty"`
	OptimalRatio       *big.Rat    `json:"-"`
	PostSwapTargetPool *V3Pool     `json:"post_swap_target_pool,omitempty"`
	Iterations         int         `json:"iterations"`
	Error              string      `json:"error,omitempty"`
}
