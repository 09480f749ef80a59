package dex

import "math/big"

func mulDivRoundingUp(a, b, denominator *big.Int) *big.Int {
	product := new(big.Int).Mul(a, b)
	quo, rem := new(big.Int).QuoRem(product, denominator, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

func divRoundingUp(a, b *big.Int) *big.Int {
	quo, rem := new(big.Int).QuoRem(a, b, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

// GetAmount0Delta returns the token0 amount between two sqrt prices for liquidity.
func GetAmount0Delta(sqrtRatioA, sqrtRatioB, liquidity *big.Int, roundUp bool) *big.Int {
	if sqrtRatioA.Cmp(sqrtRatioB) > 0 {
		sqrtRatioA, sqrtRatioB = sqrtRatioB, sqrtRatioA
	}
	if sqrtRatioA.Sign() == 0 {
		return new(big.Int)
	}
	numerator1 := new(big.Int).Lsh(liquidity, 96)
	numerator2 := new(big.Int).Sub(sqrtRatioB, sqrtRatioA)

	if roundUp {
		return divRoundingUp(mulDivRoundingUp(numerator1, numerator2, sqrtRatioB), sqrtRatioA)
	}
	out := new(big.Int).Mul(numerator1, numerator2)
	out.Quo(out, sqrtRatioB)
	return out.Quo(out, sqrtRatioA)
}

// GetAmount1Delta returns the token1 amount between two sqrt prices for liquidity.
func GetAmount1Delta(sqrtRatioA, sqrtRatioB, liquidity *big.Int, roundUp bool) *big.Int {
	if sqrtRatioA.Cmp(sqrtRatioB) > 0 {
		sqrtRatioA, sqrtRatioB = sqrtRatioB, sqrtRatioA
	}
	diff := new(big.Int).Sub(sqrtRatioB, sqrtRatioA)
	if roundUp {
		return mulDivRoundingUp(liquidity, diff, Q96)
	}
	out := new(big.Int).Mul(liquidity, diff)
	return out.Quo(out, Q96)
}
