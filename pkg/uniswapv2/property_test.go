package uniswapv2

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"pgregory.net/rapid"
)

// drawAmount draws a non-zero value of at most maxBits bits.
func drawAmount(t *rapid.T, label string, maxBits uint) *uint256.Int {
	bits := rapid.UintRange(1, maxBits).Draw(t, label+"_bits")
	hi := rapid.Uint64().Draw(t, label+"_hi")
	lo := rapid.Uint64().Draw(t, label+"_lo")
	v := new(uint256.Int).Lsh(uint256.NewInt(hi), 64)
	v.Or(v, uint256.NewInt(lo))
	mask := new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), bits), 1)
	v.And(v, mask)
	if v.IsZero() {
		v.SetOne()
	}
	return v
}

// The router's 997/1000 quote and the pair's 1000x/3x check must agree on the
// exact maximum output: the quote passes CheckK and one unit more fails.
func TestFeeFormulaEquivalence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reserveIn := drawAmount(t, "reserveIn", 111)
		reserveOut := drawAmount(t, "reserveOut", 111)
		amountIn := drawAmount(t, "amountIn", 111)

		out, err := GetAmountOut(amountIn, reserveIn, reserveOut)
		if err != nil {
			t.Fatalf("GetAmountOut: %v", err)
		}
		if !out.Lt(reserveOut) {
			t.Fatalf("quote %s drains reserve %s", out.Dec(), reserveOut.Dec())
		}

		balanceIn := new(uint256.Int).Add(reserveIn, amountIn)
		balanceOut := new(uint256.Int).Sub(reserveOut, out)
		zero := new(uint256.Int)
		if err := CheckK(balanceIn, balanceOut, amountIn, zero, reserveIn, reserveOut); err != nil {
			t.Fatalf("quoted output rejected: in=%s rIn=%s rOut=%s out=%s: %v",
				amountIn.Dec(), reserveIn.Dec(), reserveOut.Dec(), out.Dec(), err)
		}
		if balanceOut.IsZero() {
			return
		}
		balanceOut.SubUint64(balanceOut, 1)
		if err := CheckK(balanceIn, balanceOut, amountIn, zero, reserveIn, reserveOut); !errors.Is(err, ErrK) {
			t.Fatalf("output %s+1 accepted: in=%s rIn=%s rOut=%s", out.Dec(), amountIn.Dec(), reserveIn.Dec(), reserveOut.Dec())
		}
	})
}

func TestFeeFormulaEquivalenceNearMaxReserve(t *testing.T) {
	half := new(uint256.Int).Rsh(MaxReserve, 1)
	amounts := []*uint256.Int{
		uint256.NewInt(1_000),
		new(uint256.Int).Rsh(half, 20),
		new(uint256.Int).Rsh(half, 1),
		new(uint256.Int).SubUint64(new(uint256.Int).Sub(MaxReserve, half), 1),
	}
	zero := new(uint256.Int)
	for _, in := range amounts {
		out, err := GetAmountOut(in, half, MaxReserve)
		if err != nil {
			t.Fatalf("GetAmountOut(%s): %v", in.Dec(), err)
		}
		balanceIn := new(uint256.Int).Add(half, in)
		if balanceIn.Gt(MaxReserve) {
			t.Fatalf("balance %s exceeds max reserve", balanceIn.Dec())
		}
		balanceOut := new(uint256.Int).Sub(MaxReserve, out)
		if err := CheckK(balanceIn, balanceOut, in, zero, half, MaxReserve); err != nil {
			t.Fatalf("CheckK(%s): %v", in.Dec(), err)
		}
		balanceOut.SubUint64(balanceOut, 1)
		if err := CheckK(balanceIn, balanceOut, in, zero, half, MaxReserve); !errors.Is(err, ErrK) {
			t.Fatalf("CheckK accepted out+1 for in=%s", in.Dec())
		}
	}
}

func TestGetAmountInCoversOutput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reserveIn := drawAmount(t, "reserveIn", 70)
		reserveOut := drawAmount(t, "reserveOut", 70)
		if reserveOut.LtUint64(2) {
			reserveOut.SetUint64(2)
		}
		out := drawAmount(t, "amountOut", 70)
		out.Mod(out, reserveOut)
		if out.IsZero() {
			out.SetOne()
		}

		in, err := GetAmountIn(out, reserveIn, reserveOut)
		if err != nil {
			t.Fatalf("GetAmountIn: %v", err)
		}
		got, err := GetAmountOut(in, reserveIn, reserveOut)
		if err != nil {
			t.Fatalf("GetAmountOut: %v", err)
		}
		if got.Lt(out) {
			t.Fatalf("input %s buys %s, wanted at least %s", in.Dec(), got.Dec(), out.Dec())
		}
	})
}

func TestSqrtBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		y := drawAmount(t, "y", 254)
		z := Sqrt(y)
		sq := new(uint256.Int).Mul(z, z)
		if sq.Gt(y) {
			t.Fatalf("sqrt(%s)=%s is too large", y.Dec(), z.Dec())
		}
		next := new(uint256.Int).AddUint64(z, 1)
		next.Mul(next, next)
		if !next.Gt(y) {
			t.Fatalf("sqrt(%s)=%s is too small", y.Dec(), z.Dec())
		}
	})
}
