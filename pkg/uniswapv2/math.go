// Package uniswapv2 implements the fixed-point arithmetic shared by pairs and
// the router: checked 256-bit operations, the Babylonian integer square root,
// the 0.30% fee quote formulas and the fee-adjusted constant product check.
package uniswapv2

import "github.com/holiman/uint256"

// fee: 0.3% => multiplier 997/1000 on the router side, 1000x/3x on the pair side
const (
	FeeMultiplier  = 997
	FeeDenominator = 1000
	FeeRate        = FeeDenominator - FeeMultiplier
)

var (
	feeMul = uint256.NewInt(FeeMultiplier)
	feeDen = uint256.NewInt(FeeDenominator)
	feeK   = uint256.NewInt(FeeRate)
	// feeDen2 = 1000^2, the scale of both sides of the invariant check.
	feeDen2 = uint256.NewInt(FeeDenominator * FeeDenominator)
)

// MaxReserve is the largest balance a pair may record (2^112 - 1). Keeping
// reserves below it guarantees the scaled invariant product fits in 256 bits.
var MaxReserve = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 112), 1)

// Mul returns x*y or ErrOverflow.
func Mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Add returns x+y or ErrOverflow.
func Add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Sub returns x-y or ErrOverflow when y > x.
func Sub(x, y *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulDiv returns floor(a*b/c). The intermediate product must fit in 256 bits.
func MulDiv(a, b, c *uint256.Int) (*uint256.Int, error) {
	if c.IsZero() {
		return nil, ErrDivisionByZero
	}
	p, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	return p.Div(p, c), nil
}

// Min returns the smaller of x and y.
func Min(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return x
	}
	return y
}

// Sqrt computes floor(sqrt(y)) with the Babylonian method.
func Sqrt(y *uint256.Int) *uint256.Int {
	z := new(uint256.Int)
	switch {
	case y.GtUint64(3):
		z.Set(y)
		x := new(uint256.Int).Rsh(y, 1)
		x.AddUint64(x, 1)
		q := new(uint256.Int)
		for x.Lt(z) {
			z.Set(x)
			q.Div(y, x)
			x.Add(q, x)
			x.Rsh(x, 1)
		}
	case !y.IsZero():
		z.SetOne()
	}
	return z
}

// GetAmountOut returns the maximum output for amountIn against the given
// reserves with the 0.30% fee taken from the input:
//
//	out = in*997*reserveOut / (reserveIn*1000 + in*997)
func GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountIn.IsZero() {
		return nil, ErrInsufficientInputAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	amountInWithFee, err := Mul(amountIn, feeMul)
	if err != nil {
		return nil, err
	}
	numerator, err := Mul(amountInWithFee, reserveOut)
	if err != nil {
		return nil, err
	}
	denominator, err := Mul(reserveIn, feeDen)
	if err != nil {
		return nil, err
	}
	if denominator, err = Add(denominator, amountInWithFee); err != nil {
		return nil, err
	}
	return numerator.Div(numerator, denominator), nil
}

// GetAmountIn returns the minimum input that buys amountOut against the given
// reserves, rounding up so the pair's invariant check always passes.
func GetAmountIn(amountOut, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountOut.IsZero() {
		return nil, ErrInsufficientOutputAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() || !amountOut.Lt(reserveOut) {
		return nil, ErrInsufficientLiquidity
	}
	numerator, err := Mul(reserveIn, amountOut)
	if err != nil {
		return nil, err
	}
	if numerator, err = Mul(numerator, feeDen); err != nil {
		return nil, err
	}
	rest := new(uint256.Int).Sub(reserveOut, amountOut)
	denominator, err := Mul(rest, feeMul)
	if err != nil {
		return nil, err
	}
	amountIn := numerator.Div(numerator, denominator)
	return Add(amountIn, uint256.NewInt(1))
}

// Quote converts amountA into the equivalent amount of B at the current
// reserve ratio, without fees.
func Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	if amountA.IsZero() {
		return nil, ErrInsufficientInputAmount
	}
	if reserveA.IsZero() || reserveB.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	return MulDiv(amountA, reserveB, reserveA)
}

// CheckK verifies the fee-adjusted constant product after a swap:
//
//	(b0*1000 - in0*3) * (b1*1000 - in1*3) >= r0 * r1 * 1000^2
func CheckK(balance0, balance1, amount0In, amount1In, reserve0, reserve1 *uint256.Int) error {
	adjusted0, err := adjustedBalance(balance0, amount0In)
	if err != nil {
		return err
	}
	adjusted1, err := adjustedBalance(balance1, amount1In)
	if err != nil {
		return err
	}
	left, err := Mul(adjusted0, adjusted1)
	if err != nil {
		return err
	}
	right, err := Mul(reserve0, reserve1)
	if err != nil {
		return err
	}
	if right, err = Mul(right, feeDen2); err != nil {
		return err
	}
	if left.Lt(right) {
		return ErrK
	}
	return nil
}

func adjustedBalance(balance, amountIn *uint256.Int) (*uint256.Int, error) {
	scaled, err := Mul(balance, feeDen)
	if err != nil {
		return nil, err
	}
	fee, err := Mul(amountIn, feeK)
	if err != nil {
		return nil, err
	}
	return Sub(scaled, fee)
}

// LiquidityToMint returns the shares issued for a deposit of amount0/amount1.
// The first deposit mints sqrt(amount0*amount1); later deposits mint the
// smaller of the two proportional contributions.
func LiquidityToMint(amount0, amount1, reserve0, reserve1, totalSupply *uint256.Int) (*uint256.Int, error) {
	if amount0.IsZero() || amount1.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	var liquidity *uint256.Int
	if totalSupply.IsZero() {
		product, err := Mul(amount0, amount1)
		if err != nil {
			return nil, err
		}
		liquidity = Sqrt(product)
	} else {
		l0, err := MulDiv(amount0, totalSupply, reserve0)
		if err != nil {
			return nil, err
		}
		l1, err := MulDiv(amount1, totalSupply, reserve1)
		if err != nil {
			return nil, err
		}
		liquidity = Min(l0, l1)
	}
	if liquidity.IsZero() {
		return nil, ErrInsufficientLiquidity
	}
	return liquidity, nil
}

// AmountsForShares returns the pro-rata redemption of shares against the
// given reserves.
func AmountsForShares(shares, reserve0, reserve1, totalSupply *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if totalSupply.IsZero() {
		return nil, nil, ErrInsufficientLiquidity
	}
	amount0, err := MulDiv(shares, reserve0, totalSupply)
	if err != nil {
		return nil, nil, err
	}
	amount1, err := MulDiv(shares, reserve1, totalSupply)
	if err != nil {
		return nil, nil, err
	}
	if amount0.IsZero() || amount1.IsZero() {
		return nil, nil, ErrInsufficientLiquidity
	}
	return amount0, amount1, nil
}
