package portion

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"alphaRouter/internal/model"
)

// MaxFeeBips caps the proportional fee at 100%.
const MaxFeeBips = 10_000

// Config describes the fee taken on top of a swap. FeeBips applies to exact
// input swaps as a share of the output; FlatFee applies to exact output swaps
// as a fixed amount of the output token.
type Config struct {
	FeeBips   uint32
	FlatFee   *big.Int
	Recipient common.Address
}

// Validate rejects fee settings that cannot be honored.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.FeeBips > MaxFeeBips {
		return fmt.Errorf("portion fee %d bips exceeds %d", c.FeeBips, MaxFeeBips)
	}
	if c.FlatFee != nil && c.FlatFee.Sign() < 0 {
		return fmt.Errorf("negative flat portion %s", c.FlatFee)
	}
	if (c.FeeBips > 0 || (c.FlatFee != nil && c.FlatFee.Sign() > 0)) && c.Recipient == (common.Address{}) {
		return fmt.Errorf("portion recipient is required")
	}
	return nil
}

// Adjuster applies portion economics to quotes.
//
// Exact input: the portion is a share of the output and is taken from every
// route's quote. Exact output: the flat portion was already added to the
// requested output before routing; its input-side equivalent is estimated
// from the quote and removed from the reported quote and gas-adjusted quote.
type Adjuster struct {
	logger *zap.Logger
}

func NewAdjuster(logger *zap.Logger) *Adjuster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adjuster{logger: logger}
}

// PortionAmount returns the portion in output token units, or nil when no fee
// applies to the trade direction.
func (a *Adjuster) PortionAmount(tokenOutAmount model.Amount, tradeType model.TradeType, cfg *Config) *model.Amount {
	if cfg == nil {
		return nil
	}
	switch tradeType {
	case model.ExactInput:
		if cfg.FeeBips == 0 {
			return nil
		}
		portion := tokenOutAmount.MulRat(model.BipsToRat(cfg.FeeBips))
		return &portion
	default:
		if cfg.FlatFee == nil || cfg.FlatFee.Sign() == 0 {
			return nil
		}
		portion := model.NewAmount(tokenOutAmount.Asset, cfg.FlatFee)
		return &portion
	}
}

// PortionQuoteAmount estimates the input-side cost of an exact output
// portion as (portion / portionAdjustedAmount) * quote. It is nil for exact
// input trades.
func (a *Adjuster) PortionQuoteAmount(tradeType model.TradeType, quote, portionAdjustedAmount model.Amount, portion *model.Amount) *model.Amount {
	if tradeType != model.ExactOutput || portion == nil || portionAdjustedAmount.Sign() == 0 {
		return nil
	}
	amount := quote.MulRat(portion.Ratio(portionAdjustedAmount))
	return &amount
}

// Quote corrects the total quote of an exact output trade by removing the
// input spent on the portion.
func (a *Adjuster) Quote(tradeType model.TradeType, quote model.Amount, portionQuote *model.Amount) model.Amount {
	if tradeType == model.ExactOutput && portionQuote != nil {
		return quote.Sub(*portionQuote)
	}
	return quote
}

// QuoteGasAdjusted applies the same correction to the gas-adjusted quote.
func (a *Adjuster) QuoteGasAdjusted(tradeType model.TradeType, quoteGasAdjusted model.Amount, portionQuote *model.Amount) model.Amount {
	if tradeType == model.ExactOutput && portionQuote != nil {
		return quoteGasAdjusted.Sub(*portionQuote)
	}
	return quoteGasAdjusted
}

// QuoteGasAndPortionAdjusted is what the swapper ends up with after gas and
// portion. Exact input subtracts the portion from the gas-adjusted output.
// Exact output adds the portion's input cost back onto the corrected
// gas-adjusted input.
func (a *Adjuster) QuoteGasAndPortionAdjusted(tradeType model.TradeType, quoteGasAdjusted model.Amount, portion, portionQuote *model.Amount) *model.Amount {
	switch tradeType {
	case model.ExactInput:
		if portion == nil {
			return nil
		}
		out := quoteGasAdjusted.Sub(*portion)
		return &out
	default:
		if portionQuote == nil {
			return nil
		}
		out := quoteGasAdjusted.Add(*portionQuote)
		return &out
	}
}

// AdjustRoutes takes the proportional portion out of every exact input route
// quote. Exact output routes are returned unchanged.
func (a *Adjuster) AdjustRoutes(tradeType model.TradeType, routes []model.RouteQuote, cfg *Config) []model.RouteQuote {
	if tradeType != model.ExactInput || cfg == nil || cfg.FeeBips == 0 {
		return routes
	}
	fee := model.BipsToRat(cfg.FeeBips)
	out := make([]model.RouteQuote, len(routes))
	for i, r := range routes {
		portion := r.Quote.MulRat(fee)
		r.Quote = r.Quote.Sub(portion)
		out[i] = r
		a.logger.Debug("route quote portion adjusted",
			zap.String("route", r.Route.String()),
			zap.String("portion", portion.ToExact()),
		)
	}
	return out
}

// AdjustedOutputAmount returns the amount to route for. Exact output trades
// route for the requested output plus the flat portion.
func (a *Adjuster) AdjustedOutputAmount(amount model.Amount, tradeType model.TradeType, cfg *Config) model.Amount {
	if tradeType != model.ExactOutput {
		return amount
	}
	if portion := a.PortionAmount(amount, tradeType, cfg); portion != nil {
		return amount.Add(*portion)
	}
	return amount
}
