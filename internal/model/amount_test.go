package model

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var usdc = NewToken(1, common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), 6, "USDC")

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount(usdc, "1.5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Raw.Int64() != 1_500_000 {
		t.Fatalf("raw mismatch: %s", got.Raw)
	}
	if got.ToExact() != "1.5" {
		t.Fatalf("exact mismatch: %s", got.ToExact())
	}

	if _, err := ParseAmount(usdc, "0.0000001"); err == nil {
		t.Fatalf("expected an error for too many decimals")
	}
	if _, err := ParseAmount(usdc, "-1"); err == nil {
		t.Fatalf("expected an error for a negative amount")
	}
	if _, err := ParseAmount(usdc, "abc"); err == nil {
		t.Fatalf("expected an error for garbage")
	}
}

func TestAmountArithmetic(t *testing.T) {
	a := NewAmount(usdc, big.NewInt(1000))
	b := NewAmount(usdc, big.NewInt(250))

	if got := a.Sub(b).Raw.Int64(); got != 750 {
		t.Fatalf("sub mismatch: %d", got)
	}
	if got := a.MulRat(big.NewRat(1, 3)).Raw.Int64(); got != 333 {
		t.Fatalf("mul should floor, got %d", got)
	}
	if got := b.Ratio(a); got.Cmp(big.NewRat(1, 4)) != 0 {
		t.Fatalf("ratio mismatch: %s", got.RatString())
	}
	if got := a.Ratio(ZeroAmount(usdc)); got.Sign() != 0 {
		t.Fatalf("zero denominator should give zero")
	}
}

func TestNewAmountCopiesRaw(t *testing.T) {
	raw := big.NewInt(5)
	a := NewAmount(usdc, raw)
	raw.SetInt64(7)
	if a.Raw.Int64() != 5 {
		t.Fatalf("amount aliased its input")
	}
}

func TestAmountJSONCarriesRawAsString(t *testing.T) {
	data, err := json.Marshal(NewAmount(usdc, big.NewInt(1_234_567)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["raw"] != "1234567" || decoded["exact"] != "1.234567" {
		t.Fatalf("unexpected encoding: %s", data)
	}
}
