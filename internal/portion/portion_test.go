package portion

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"alphaRouter/internal/model"
)

var (
	tokenIn  = model.NewToken(1, common.HexToAddress("0x00000000000000000000000000000000000000a1"), 18, "IN")
	tokenOut = model.NewToken(1, common.HexToAddress("0x00000000000000000000000000000000000000b2"), 6, "OUT")
	feeTo    = common.HexToAddress("0x00000000000000000000000000000000000000fe")
)

func amt(asset model.Asset, v int64) model.Amount {
	return model.NewAmount(asset, big.NewInt(v))
}

func TestExactInputPortionSubtractedFromOutput(t *testing.T) {
	a := NewAdjuster(nil)
	cfg := &Config{FeeBips: 15, Recipient: feeTo}

	portion := a.PortionAmount(amt(tokenOut, 1_000_000), model.ExactInput, cfg)
	if portion == nil || portion.Raw.Int64() != 1_500 {
		t.Fatalf("portion mismatch: %v", portion)
	}
	if q := a.PortionQuoteAmount(model.ExactInput, amt(tokenOut, 1_000_000), amt(tokenIn, 1), portion); q != nil {
		t.Fatalf("exact input has no portion quote amount: %v", q)
	}

	adjusted := a.QuoteGasAndPortionAdjusted(model.ExactInput, amt(tokenOut, 990_000), portion, nil)
	if adjusted == nil || adjusted.Raw.Int64() != 988_500 {
		t.Fatalf("quote gas and portion adjusted mismatch: %v", adjusted)
	}
	if got := a.Quote(model.ExactInput, amt(tokenOut, 1_000_000), nil); got.Raw.Int64() != 1_000_000 {
		t.Fatalf("exact input quote must be unchanged: %s", got.Raw)
	}
}

func TestExactInputRoutesNetOfPortion(t *testing.T) {
	a := NewAdjuster(nil)
	cfg := &Config{FeeBips: 15, Recipient: feeTo}
	routes := []model.RouteQuote{
		{TradeType: model.ExactInput, Percent: 60, Quote: amt(tokenOut, 600_000)},
		{TradeType: model.ExactInput, Percent: 40, Quote: amt(tokenOut, 400_000)},
	}

	adjusted := a.AdjustRoutes(model.ExactInput, routes, cfg)
	if adjusted[0].Quote.Raw.Int64() != 599_100 || adjusted[1].Quote.Raw.Int64() != 399_400 {
		t.Fatalf("route quotes mismatch: %s %s", adjusted[0].Quote.Raw, adjusted[1].Quote.Raw)
	}
	if routes[0].Quote.Raw.Int64() != 600_000 {
		t.Fatalf("input routes must not be mutated")
	}
}

func TestExactOutputPortionAddedBeforeRouting(t *testing.T) {
	a := NewAdjuster(nil)
	cfg := &Config{FlatFee: big.NewInt(10), Recipient: feeTo}

	routed := a.AdjustedOutputAmount(amt(tokenOut, 1_000), model.ExactOutput, cfg)
	if routed.Raw.Int64() != 1_010 {
		t.Fatalf("routed amount mismatch: %s", routed.Raw)
	}
	if same := a.AdjustedOutputAmount(amt(tokenIn, 1_000), model.ExactInput, cfg); same.Raw.Int64() != 1_000 {
		t.Fatalf("exact input amount must not change: %s", same.Raw)
	}
}

func TestExactOutputPortionCorrectsInputSide(t *testing.T) {
	a := NewAdjuster(nil)
	cfg := &Config{FlatFee: big.NewInt(10), Recipient: feeTo}

	requested := amt(tokenOut, 1_000)
	routed := a.AdjustedOutputAmount(requested, model.ExactOutput, cfg)
	portion := a.PortionAmount(requested, model.ExactOutput, cfg)
	if portion == nil || portion.Raw.Int64() != 10 || !portion.Asset.Equal(tokenOut) {
		t.Fatalf("flat portion mismatch: %v", portion)
	}

	quote := amt(tokenIn, 2_020)
	portionQuote := a.PortionQuoteAmount(model.ExactOutput, quote, routed, portion)
	if portionQuote == nil || portionQuote.Raw.Int64() != 20 || !portionQuote.Asset.Equal(tokenIn) {
		t.Fatalf("portion quote amount mismatch: %v", portionQuote)
	}

	if got := a.Quote(model.ExactOutput, quote, portionQuote); got.Raw.Int64() != 2_000 {
		t.Fatalf("corrected quote mismatch: %s", got.Raw)
	}
	corrected := a.QuoteGasAdjusted(model.ExactOutput, amt(tokenIn, 2_050), portionQuote)
	if corrected.Raw.Int64() != 2_030 {
		t.Fatalf("corrected gas adjusted quote mismatch: %s", corrected.Raw)
	}
	total := a.QuoteGasAndPortionAdjusted(model.ExactOutput, corrected, portion, portionQuote)
	if total == nil || total.Raw.Int64() != 2_050 {
		t.Fatalf("exact output quote gas and portion adjusted mismatch: %v", total)
	}

	routes := []model.RouteQuote{{TradeType: model.ExactOutput, Percent: 100, Quote: quote}}
	if out := a.AdjustRoutes(model.ExactOutput, routes, cfg); out[0].Quote.Raw.Int64() != 2_020 {
		t.Fatalf("exact output routes must be unchanged: %s", out[0].Quote.Raw)
	}
}

func TestNoPortionConfigured(t *testing.T) {
	a := NewAdjuster(nil)
	if p := a.PortionAmount(amt(tokenOut, 1_000), model.ExactInput, nil); p != nil {
		t.Fatalf("expected no portion: %v", p)
	}
	if p := a.PortionAmount(amt(tokenOut, 1_000), model.ExactOutput, &Config{FeeBips: 15, Recipient: feeTo}); p != nil {
		t.Fatalf("proportional fee must not apply to exact output: %v", p)
	}
	if adj := a.QuoteGasAndPortionAdjusted(model.ExactInput, amt(tokenOut, 1), nil, nil); adj != nil {
		t.Fatalf("expected nil adjusted quote: %v", adj)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (&Config{FeeBips: 10_001, Recipient: feeTo}).Validate(); err == nil {
		t.Fatalf("expected error for fee above 100%%")
	}
	if err := (&Config{FeeBips: 15}).Validate(); err == nil {
		t.Fatalf("expected error for missing recipient")
	}
	if err := (&Config{FlatFee: big.NewInt(-1), Recipient: feeTo}).Validate(); err == nil {
		t.Fatalf("expected error for negative flat fee")
	}
	var none *Config
	if err := none.Validate(); err != nil {
		t.Fatalf("nil config should be valid: %v", err)
	}
}
