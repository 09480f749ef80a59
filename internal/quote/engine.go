package quote

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"alphaRouter/internal/model"
	"alphaRouter/internal/tokens"
)

// ErrExactOutputMixed is returned when mixed routes are quoted for exact output.
var ErrExactOutputMixed = errors.New("mixed routes only support exact input")

// Trial is one slice of the requested amount.
type Trial struct {
	Percent int
	Amount  model.Amount
}

// Options apply to one quoting round.
type Options struct {
	BlockNumber *uint64
	// Risks carries fee-on-transfer data for constant-product quoting.
	Risks map[common.Address]tokens.Risk
}

// RouteQuotes holds the successful quotes of one route, in trial order.
type RouteQuotes struct {
	Route  model.Route
	Quotes []model.RouteQuote
}

// Engine quotes every route for every trial amount. Route/amount pairs that
// fail to quote are omitted from the result.
type Engine interface {
	Quote(ctx context.Context, routes []model.Route, trials []Trial, tradeType model.TradeType, opts Options) ([]RouteQuotes, error)
}

func quoteToken(route model.Route, tradeType model.TradeType) model.Asset {
	if tradeType == model.ExactInput {
		return route.Output
	}
	return route.Input
}
