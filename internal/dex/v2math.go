package dex

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrInsufficientInputAmount = errors.New("insufficient input amount")
	ErrInsufficientLiquidity   = errors.New("insufficient liquidity")
	ErrOverflow                = errors.New("uint256 overflow")
)

var (
	feeMul = uint256.NewInt(997)
	feeDen = uint256.NewInt(1000)
)

func toU256(values ...*big.Int) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(values))
	for i, v := range values {
		if v == nil || v.Sign() < 0 {
			return nil, ErrOverflow
		}
		u, overflow := uint256.FromBig(v)
		if overflow {
			return nil, ErrOverflow
		}
		out[i] = u
	}
	return out, nil
}

// GetAmountOut prices an exact-input constant-product swap with the 0.3% fee.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	vals, err := toU256(amountIn, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}
	in, rIn, rOut := vals[0], vals[1], vals[2]
	if in.IsZero() {
		return nil, ErrInsufficientInputAmount
	}
	if rIn.IsZero() || rOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}

	inWithFee, overflow := new(uint256.Int).MulOverflow(in, feeMul)
	if overflow {
		return nil, ErrOverflow
	}
	numerator, overflow := new(uint256.Int).MulOverflow(inWithFee, rOut)
	if overflow {
		return nil, ErrOverflow
	}
	denominator, overflow := new(uint256.Int).MulOverflow(rIn, feeDen)
	if overflow {
		return nil, ErrOverflow
	}
	if _, overflow = denominator.AddOverflow(denominator, inWithFee); overflow {
		return nil, ErrOverflow
	}

	out := new(uint256.Int).Div(numerator, denominator)
	if out.IsZero() {
		return nil, ErrInsufficientInputAmount
	}
	return out.ToBig(), nil
}

// GetAmountIn prices an exact-output constant-product swap with the 0.3% fee.
func GetAmountIn(amountOut, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	vals, err := toU256(amountOut, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}
	out, rIn, rOut := vals[0], vals[1], vals[2]
	if out.IsZero() {
		return nil, ErrInsufficientInputAmount
	}
	if rIn.IsZero() || rOut.IsZero() || !out.Lt(rOut) {
		return nil, ErrInsufficientLiquidity
	}

	numerator, overflow := new(uint256.Int).MulOverflow(rIn, out)
	if overflow {
		return nil, ErrOverflow
	}
	if _, overflow = numerator.MulOverflow(numerator, feeDen); overflow {
		return nil, ErrOverflow
	}
	denominator := new(uint256.Int).Sub(rOut, out)
	if _, overflow = denominator.MulOverflow(denominator, feeMul); overflow {
		return nil, ErrOverflow
	}

	in := new(uint256.Int).Div(numerator, denominator)
	in.AddUint64(in, 1)
	return in.ToBig(), nil
}
