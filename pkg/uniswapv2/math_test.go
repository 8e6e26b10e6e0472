package uniswapv2

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
)

func TestGetAmountOut(t *testing.T) {
	// Example: reserves 1000000 : 1000000, amountIn 1000
	rIn := uint256.NewInt(1_000_000)
	rOut := uint256.NewInt(1_000_000)
	amountIn := uint256.NewInt(1_000)

	out, err := GetAmountOut(amountIn, rIn, rOut)
	if err != nil {
		t.Fatalf("GetAmountOut: %v", err)
	}

	// compute expected with big.Int to cross-check the checked uint256 path
	amountInWithFee := new(big.Int).Mul(amountIn.ToBig(), big.NewInt(997))
	numerator := new(big.Int).Mul(amountInWithFee, rOut.ToBig())
	denominator := new(big.Int).Mul(rIn.ToBig(), big.NewInt(1000))
	denominator.Add(denominator, amountInWithFee)
	expected := new(big.Int).Div(numerator, denominator)

	if out.ToBig().Cmp(expected) != 0 {
		t.Fatalf("unexpected: got %s want %s", out.Dec(), expected)
	}
	if out.IsZero() {
		t.Fatalf("amountOut should be positive")
	}
}

func TestGetAmountOutKnownValues(t *testing.T) {
	cases := []struct {
		name                  string
		in, rIn, rOut, expect uint64
	}{
		{"skewed", 100, 1_000, 2_000, 181},
		{"balanced", 100, 1_000, 1_000, 90},
		{"second hop", 90, 1_000, 4_000, 329},
		{"dust", 1, 1_000_000, 1_000_000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := GetAmountOut(uint256.NewInt(tc.in), uint256.NewInt(tc.rIn), uint256.NewInt(tc.rOut))
			if err != nil {
				t.Fatalf("GetAmountOut: %v", err)
			}
			if out.Uint64() != tc.expect {
				t.Fatalf("got %d want %d", out.Uint64(), tc.expect)
			}
		})
	}
}

func TestGetAmountOutErrors(t *testing.T) {
	one := uint256.NewInt(1)
	zero := new(uint256.Int)
	if _, err := GetAmountOut(zero, one, one); !errors.Is(err, ErrInsufficientInputAmount) {
		t.Fatalf("expected ErrInsufficientInputAmount, got %v", err)
	}
	if _, err := GetAmountOut(one, zero, one); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	if _, err := GetAmountOut(one, one, zero); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}
	huge := new(uint256.Int).SetAllOne()
	if _, err := GetAmountOut(huge, one, one); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestGetAmountIn(t *testing.T) {
	in, err := GetAmountIn(uint256.NewInt(200), uint256.NewInt(1_000), uint256.NewInt(2_000))
	if err != nil {
		t.Fatalf("GetAmountIn: %v", err)
	}
	if in.Uint64() != 112 {
		t.Fatalf("got %d want 112", in.Uint64())
	}
	if _, err := GetAmountIn(uint256.NewInt(2_000), uint256.NewInt(1_000), uint256.NewInt(2_000)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity for draining output, got %v", err)
	}
	if _, err := GetAmountIn(new(uint256.Int), uint256.NewInt(1), uint256.NewInt(1)); !errors.Is(err, ErrInsufficientOutputAmount) {
		t.Fatalf("expected ErrInsufficientOutputAmount, got %v", err)
	}
}

func TestQuote(t *testing.T) {
	out, err := Quote(uint256.NewInt(10), uint256.NewInt(100), uint256.NewInt(200))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if out.Uint64() != 20 {
		t.Fatalf("got %d want 20", out.Uint64())
	}
}

func TestSqrt(t *testing.T) {
	cases := map[uint64]uint64{
		0: 0, 1: 1, 2: 1, 3: 1, 4: 2, 8: 2, 9: 3, 36: 6, 99: 9, 100: 10,
		1 << 62: 1 << 31,
	}
	for in, want := range cases {
		if got := Sqrt(uint256.NewInt(in)); got.Uint64() != want {
			t.Errorf("Sqrt(%d) = %d, want %d", in, got.Uint64(), want)
		}
	}
	max := new(uint256.Int).SetAllOne()
	want := new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)
	if got := Sqrt(max); !got.Eq(want) {
		t.Fatalf("Sqrt(2^256-1) = %s, want %s", got.Dec(), want.Dec())
	}
}

func TestLiquidityToMint(t *testing.T) {
	zero := new(uint256.Int)

	first, err := LiquidityToMint(uint256.NewInt(4), uint256.NewInt(9), zero, zero, zero)
	if err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	if first.Uint64() != 6 {
		t.Fatalf("first deposit minted %d, want 6", first.Uint64())
	}

	next, err := LiquidityToMint(uint256.NewInt(10), uint256.NewInt(20), uint256.NewInt(100), uint256.NewInt(200), uint256.NewInt(10))
	if err != nil {
		t.Fatalf("proportional deposit: %v", err)
	}
	if next.Uint64() != 1 {
		t.Fatalf("proportional deposit minted %d, want 1", next.Uint64())
	}

	// imbalanced deposits are valued at the worse ratio
	skewed, err := LiquidityToMint(uint256.NewInt(50), uint256.NewInt(20), uint256.NewInt(100), uint256.NewInt(200), uint256.NewInt(10))
	if err != nil {
		t.Fatalf("skewed deposit: %v", err)
	}
	if skewed.Uint64() != 1 {
		t.Fatalf("skewed deposit minted %d, want 1", skewed.Uint64())
	}

	if _, err := LiquidityToMint(uint256.NewInt(1), uint256.NewInt(1), uint256.NewInt(100), uint256.NewInt(200), uint256.NewInt(10)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity for rounding to zero, got %v", err)
	}
	if _, err := LiquidityToMint(zero, uint256.NewInt(1), zero, zero, zero); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity for zero delta, got %v", err)
	}
}

func TestCheckK(t *testing.T) {
	r0, r1 := uint256.NewInt(1_000), uint256.NewInt(1_000)
	in := uint256.NewInt(100)
	out := uint256.NewInt(90)
	b0 := new(uint256.Int).Add(r0, in)
	b1 := new(uint256.Int).Sub(r1, out)
	if err := CheckK(b0, b1, in, new(uint256.Int), r0, r1); err != nil {
		t.Fatalf("CheckK rejected a fair swap: %v", err)
	}
	b1.SubUint64(b1, 1)
	if err := CheckK(b0, b1, in, new(uint256.Int), r0, r1); !errors.Is(err, ErrInsufficientInputAmount) {
		t.Fatalf("expected ErrK, got %v", err)
	}
}
