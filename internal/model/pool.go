package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Protocol names a venue kind.
type Protocol string

const (
	ProtocolV2    Protocol = "V2"
	ProtocolV3    Protocol = "V3"
	ProtocolMixed Protocol = "MIXED"
)

// FeeAmount is a concentrated-liquidity fee tier in hundredths of a bip.
type FeeAmount uint32

const (
	FeeLowest FeeAmount = 100
	FeeLow    FeeAmount = 500
	FeeMedium FeeAmount = 3000
	FeeHigh   FeeAmount = 10000
)

// AllFeeAmounts lists the fee tiers in the order candidates are enumerated.
var AllFeeAmounts = []FeeAmount{FeeHigh, FeeMedium, FeeLow, FeeLowest}

// TickSpacing returns the tick spacing enabled for the fee tier.
func (f FeeAmount) TickSpacing() int32 {
	switch f {
	case FeeLowest:
		return 1
	case FeeLow:
		return 10
	case FeeMedium:
		return 60
	case FeeHigh:
		return 200
	default:
		return 0
	}
}

func (f FeeAmount) String() string {
	return fmt.Sprintf("%d.%02d%%", f/10000, (f%10000)/100)
}

// Pool is the state of a single venue at a block.
type Pool interface {
	Kind() Protocol
	PoolAddress() common.Address
	Tokens() (Asset, Asset)
	Involves(asset Asset) bool
	// PriceOf returns the mid price of asset quoted in the other token.
	PriceOf(asset Asset) *big.Rat
}

// V2Pool is a constant-product pair.
type V2Pool struct {
	Token0      Asset          `json:"token0"`
	Token1      Asset          `json:"token1"`
	Reserve0    *big.Int       `json:"reserve0"`
	Reserve1    *big.Int       `json:"reserve1"`
	Address     common.Address `json:"address"`
	BlockNumber uint64         `json:"block_number"`
}

func (p *V2Pool) Kind() Protocol              { return ProtocolV2 }
func (p *V2Pool) PoolAddress() common.Address { return p.Address }
func (p *V2Pool) Tokens() (Asset, Asset)      { return p.Token0, p.Token1 }

func (p *V2Pool) Involves(asset Asset) bool {
	return p.Token0.Equal(asset) || p.Token1.Equal(asset)
}

// ReservesOf returns (reserveIn, reserveOut) for a swap selling asset.
func (p *V2Pool) ReservesOf(asset Asset) (*big.Int, *big.Int) {
	if p.Token0.Equal(asset) {
		return p.Reserve0, p.Reserve1
	}
	return p.Reserve1, p.Reserve0
}

func (p *V2Pool) PriceOf(asset Asset) *big.Rat {
	in, out := p.ReservesOf(asset)
	if in == nil || in.Sign() == 0 || out == nil {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(out, in)
}

// V3Pool is a concentrated-liquidity pool snapshot.
type V3Pool struct {
	Token0       Asset          `json:"token0"`
	Token1       Asset          `json:"token1"`
	Fee          FeeAmount      `json:"fee"`
	SqrtPriceX96 *big.Int       `json:"sqrt_price_x96"`
	Liquidity    *big.Int       `json:"liquidity"`
	Tick         int32          `json:"tick"`
	Address      common.Address `json:"address"`
}

func (p *V3Pool) Kind() Protocol              { return ProtocolV3 }
func (p *V3Pool) PoolAddress() common.Address { return p.Address }
func (p *V3Pool) Tokens() (Asset, Asset)      { return p.Token0, p.Token1 }

func (p *V3Pool) Involves(asset Asset) bool {
	return p.Token0.Equal(asset) || p.Token1.Equal(asset)
}

// Token0Price is the price of token0 in token1: sqrtPrice^2 / 2^192.
func (p *V3Pool) Token0Price() *big.Rat {
	return Token0PriceFromSqrt(p.SqrtPriceX96)
}

// Token1Price is the inverse of Token0Price.
func (p *V3Pool) Token1Price() *big.Rat {
	price := p.Token0Price()
	if price.Sign() == 0 {
		return price
	}
	return price.Inv(price)
}

func (p *V3Pool) PriceOf(asset Asset) *big.Rat {
	if p.Token0.Equal(asset) {
		return p.Token0Price()
	}
	return p.Token1Price()
}

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// Token0PriceFromSqrt converts a Q64.96 square root price to token1 per token0.
func Token0PriceFromSqrt(sqrtPriceX96 *big.Int) *big.Rat {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return new(big.Rat)
	}
	sq := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	return new(big.Rat).SetFrac(sq, q192)
}

// OtherToken returns the token of p that is not asset.
func OtherToken(p Pool, asset Asset) Asset {
	t0, t1 := p.Tokens()
	if t0.Equal(asset) {
		return t1
	}
	return t0
}

// Position is a concentrated-liquidity range on a pool.
type Position struct {
	Pool      *V3Pool `json:"pool"`
	TickLower int32   `json:"tick_lower"`
	TickUpper int32   `json:"tick_upper"`
}
