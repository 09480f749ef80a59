package model

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Amount is an asset paired with a raw integer in its smallest unit.
type Amount struct {
	Asset Asset
	Raw   *big.Int
}

// NewAmount copies raw so callers can keep mutating their value.
func NewAmount(asset Asset, raw *big.Int) Amount {
	if raw == nil {
		return Amount{Asset: asset, Raw: new(big.Int)}
	}
	return Amount{Asset: asset, Raw: new(big.Int).Set(raw)}
}

// ZeroAmount returns a zero amount of asset.
func ZeroAmount(asset Asset) Amount {
	return Amount{Asset: asset, Raw: new(big.Int)}
}

func (a Amount) raw() *big.Int {
	if a.Raw == nil {
		return new(big.Int)
	}
	return a.Raw
}

// Add returns a + b. Both amounts must be of the same asset.
func (a Amount) Add(b Amount) Amount {
	return Amount{Asset: a.Asset, Raw: new(big.Int).Add(a.raw(), b.raw())}
}

// Sub returns a - b. Both amounts must be of the same asset.
func (a Amount) Sub(b Amount) Amount {
	return Amount{Asset: a.Asset, Raw: new(big.Int).Sub(a.raw(), b.raw())}
}

// MulRat multiplies by an exact ratio and floors the result.
func (a Amount) MulRat(r *big.Rat) Amount {
	return Amount{Asset: a.Asset, Raw: FloorRat(new(big.Rat).Mul(new(big.Rat).SetInt(a.raw()), r))}
}

// Ratio returns a / b as an exact fraction. A zero denominator yields zero.
func (a Amount) Ratio(b Amount) *big.Rat {
	if b.raw().Sign() == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(a.raw(), b.raw())
}

func (a Amount) Cmp(b Amount) int {
	return a.raw().Cmp(b.raw())
}

func (a Amount) Sign() int {
	return a.raw().Sign()
}

func (a Amount) IsZero() bool {
	return a.raw().Sign() == 0
}

// ToExact renders the amount in whole units using the asset's decimals.
func (a Amount) ToExact() string {
	return decimal.NewFromBigInt(a.raw(), -int32(a.Asset.Decimals)).String()
}

// ParseAmount reads a whole-unit decimal string such as "1.5" into raw
// units. More fractional digits than the asset has are rejected.
func ParseAmount(asset Asset, value string) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("negative amount %q", value)
	}
	shifted := d.Shift(int32(asset.Decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return Amount{}, fmt.Errorf("amount %q has more than %d decimals", value, asset.Decimals)
	}
	return Amount{Asset: asset, Raw: shifted.BigInt()}, nil
}

func (a Amount) String() string {
	return a.ToExact() + " " + a.Asset.String()
}

type amountJSON struct {
	Asset Asset  `json:"asset"`
	Raw   string `json:"raw"`
	Exact string `json:"exact"`
}

// MarshalJSON encodes the raw value as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(amountJSON{Asset: a.Asset, Raw: a.raw().String(), Exact: a.ToExact()})
}

// UnmarshalJSON decodes an Amount written by MarshalJSON.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var aux amountJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	raw, ok := new(big.Int).SetString(aux.Raw, 10)
	if !ok {
		raw = new(big.Int)
	}
	a.Asset = aux.Asset
	a.Raw = raw
	return nil
}

// FloorRat returns floor(r) for non-negative r and truncation toward zero otherwise.
func FloorRat(r *big.Rat) *big.Int {
	return new(big.Int).Quo(r.Num(), r.Denom())
}

// NewFraction builds num/den as an exact ratio.
func NewFraction(num, den int64) *big.Rat {
	return big.NewRat(num, den)
}

// BipsToRat converts basis points to an exact ratio.
func BipsToRat(bips uint32) *big.Rat {
	return big.NewRat(int64(bips), 10_000)
}
