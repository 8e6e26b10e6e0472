package amm

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"pgregory.net/rapid"

	"github.com/nulln0ne/uniswapv2-engine/pkg/custody"
)

func newRapidEnv() *testEnv {
	vault := custody.NewVault()
	x := NewExchange(NewFactory(DefaultFactoryAddress, DefaultInitCodeHash), vault, WithClock(func() time.Time { return testEpoch }))
	return &testEnv{x: x, vault: vault, router: NewRouter(x)}
}

func mustBalance(t *rapid.T, x *Exchange, token, holder common.Address) *uint256.Int {
	b, err := x.BalanceOf(token, holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b
}

func checkPair(t *rapid.T, x *Exchange, p *Pair) {
	r0, r1, _ := p.Reserves()
	if b := mustBalance(t, x, p.Token0(), p.Address()); !b.Eq(r0) {
		t.Fatalf("reserve0 %s != custody %s", r0.Dec(), b.Dec())
	}
	if b := mustBalance(t, x, p.Token1(), p.Address()); !b.Eq(r1) {
		t.Fatalf("reserve1 %s != custody %s", r1.Dec(), b.Dec())
	}
	if sum := sumShares(p); !sum.Eq(p.TotalSupply()) {
		t.Fatalf("shares sum %s != total supply %s", sum.Dec(), p.TotalSupply().Dec())
	}
}

// Swapping exactly the quoted amount always succeeds, pays exactly the quote
// and never lowers the reserve product.
func TestSwapAtQuote(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		te := newRapidEnv()
		reserveA := rapid.Uint64Range(1_000, 1<<60).Draw(t, "reserveA")
		reserveB := rapid.Uint64Range(1_000, 1<<60).Draw(t, "reserveB")
		amountIn := rapid.Uint64Range(1, 1<<60).Draw(t, "amountIn")

		p, err := te.x.CreatePair(tokenA, tokenB)
		if err != nil {
			t.Fatal(err)
		}
		if err := te.x.Credit(tokenA, p.Address(), u(reserveA)); err != nil {
			t.Fatal(err)
		}
		if err := te.x.Credit(tokenB, p.Address(), u(reserveB)); err != nil {
			t.Fatal(err)
		}
		if _, err := te.x.Mint(p.Address(), alice); err != nil {
			t.Fatal(err)
		}
		if err := te.x.Credit(tokenA, bob, u(amountIn)); err != nil {
			t.Fatal(err)
		}
		r0, r1, _ := p.Reserves()
		before := new(uint256.Int).Mul(r0, r1)

		path := []common.Address{tokenA, tokenB}
		quote, err := te.router.GetAmountsOut(u(amountIn), path)
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		_, err = te.router.SwapExactTokensForTokens(u(amountIn), quote[1], path, bob, carol)
		if quote[1].IsZero() {
			if !errors.Is(err, ErrInsufficientOutput) {
				t.Fatalf("zero quote: got %v", err)
			}
			if got := mustBalance(t, te.x, tokenA, bob); got.Uint64() != amountIn {
				t.Fatalf("failed swap spent input: %s", got.Dec())
			}
			return
		}
		if err != nil {
			t.Fatalf("swap: %v", err)
		}
		if got := mustBalance(t, te.x, tokenB, carol); !got.Eq(quote[1]) {
			t.Fatalf("received %s, quoted %s", got.Dec(), quote[1].Dec())
		}
		r0, r1, _ = p.Reserves()
		if after := new(uint256.Int).Mul(r0, r1); after.Lt(before) {
			t.Fatalf("k decreased from %s to %s", before.Dec(), after.Dec())
		}
		checkPair(t, te.x, p)
	})
}

// Shares always add up to the total supply and reserves track custody across
// any sequence of deposits and withdrawals.
func TestLiquidityConservation(t *testing.T) {
	providers := []common.Address{alice, bob, carol}
	rapid.Check(t, func(t *rapid.T) {
		te := newRapidEnv()
		for _, lp := range providers {
			for _, token := range []common.Address{tokenA, tokenB} {
				if err := te.x.Credit(token, lp, u(1<<50)); err != nil {
					t.Fatal(err)
				}
			}
		}

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			lp := rapid.SampledFrom(providers).Draw(t, "lp")
			if rapid.Bool().Draw(t, "add") {
				_, err := te.router.AddLiquidity(AddLiquidityParams{
					TokenA:         tokenA,
					TokenB:         tokenB,
					AmountADesired: u(rapid.Uint64Range(1, 1<<40).Draw(t, "amountA")),
					AmountBDesired: u(rapid.Uint64Range(1, 1<<40).Draw(t, "amountB")),
					From:           lp,
					To:             lp,
				})
				if err != nil && !errors.Is(err, ErrInsufficientLiquidity) && !errors.Is(err, ErrInsufficientInput) {
					t.Fatalf("add: %v", err)
				}
			} else {
				p, ok := te.x.Factory().GetPair(tokenA, tokenB)
				if !ok {
					continue
				}
				held := p.SharesOf(lp)
				if held.IsZero() {
					continue
				}
				amount := rapid.Uint64Range(1, held.Uint64()).Draw(t, "shares")
				_, err := te.router.RemoveLiquidity(RemoveLiquidityParams{
					TokenA: tokenA,
					TokenB: tokenB,
					Shares: u(amount),
					From:   lp,
					To:     lp,
				})
				if err != nil && !errors.Is(err, ErrInsufficientLiquidity) {
					t.Fatalf("remove: %v", err)
				}
			}
			if p, ok := te.x.Factory().GetPair(tokenA, tokenB); ok {
				checkPair(t, te.x, p)
			}
		}

		// nothing is created or destroyed
		for _, token := range []common.Address{tokenA, tokenB} {
			total := new(uint256.Int)
			for _, b := range te.vault.Balances() {
				if b.Token == token {
					total.Add(total, b.Amount)
				}
			}
			if want := uint256.NewInt(3 << 50); !total.Eq(want) {
				t.Fatalf("token %s supply %s, want %s", token.Hex(), total.Dec(), want.Dec())
			}
		}
	})
}
