package scenario

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/uniswapv2-engine/pkg/amm"
	"github.com/nulln0ne/uniswapv2-engine/pkg/custody"
)

const (
	OpCreatePair      = "create_pair"
	OpFaucet          = "faucet"
	OpTransfer        = "transfer"
	OpTransferShares  = "transfer_shares"
	OpMint            = "mint"
	OpBurn            = "burn"
	OpSwap            = "swap"
	OpSkim            = "skim"
	OpSync            = "sync"
	OpAddLiquidity    = "add_liquidity"
	OpRemoveLiquidity = "remove_liquidity"
	OpSwapExactIn     = "swap_exact_in"
	OpSwapExactOut    = "swap_exact_out"
	OpQuote           = "quote"
	OpQuoteIn         = "quote_in"
	OpExpectError     = "expect_error"
)

// StepResult is the outcome of one executed step.
type StepResult struct {
	Index  int
	Op     string
	Detail string
	// Value is the step's headline amount, compared against Step.Expect.
	Value string
	Err   error
}

// PairState is a pair's final state in a report.
type PairState struct {
	Name     string
	Address  common.Address
	Token0   string
	Token1   string
	Reserve0 *uint256.Int
	Reserve1 *uint256.Int
	Shares   *uint256.Int
}

type Report struct {
	Name  string
	Steps []StepResult
	Pairs []PairState
}

// Runner executes scenarios on a fresh in-memory exchange.
type Runner struct {
	logger   *slog.Logger
	exchange *amm.Exchange
	router   *amm.Router
	names    names
}

func NewRunner(logger *slog.Logger) *Runner {
	x := amm.NewExchange(amm.NewFactory(amm.DefaultFactoryAddress, amm.DefaultInitCodeHash), custody.NewVault())
	return &Runner{
		logger:   logger,
		exchange: x,
		router:   amm.NewRouter(x),
		names:    names{},
	}
}

func (r *Runner) Exchange() *amm.Exchange { return r.exchange }

// Run executes every step in order. It stops at the first step that fails
// unexpectedly or misses its expectation; the report covers the steps run so
// far either way.
func (r *Runner) Run(sc *Scenario) (*Report, error) {
	report := &Report{Name: sc.Name}
	var runErr error
	for i := range sc.Steps {
		res := r.step(i+1, &sc.Steps[i])
		report.Steps = append(report.Steps, res)
		if res.Err != nil {
			r.logger.Debug("step failed", "index", res.Index, "op", res.Op, "err", res.Err)
			runErr = fmt.Errorf("step %d (%s): %w", res.Index, res.Op, res.Err)
			break
		}
		r.logger.Debug("step done", "index", res.Index, "op", res.Op, "detail", res.Detail)
	}
	report.Pairs = r.pairStates()
	return report, runErr
}

func (r *Runner) step(index int, st *Step) StepResult {
	res := StepResult{Index: index, Op: st.Op}
	if st.Op == OpExpectError {
		inner := r.step(index, st.Step)
		res.Op = OpExpectError + "(" + st.Step.Op + ")"
		want := errorKinds[st.Error]
		switch {
		case inner.Err == nil:
			res.Err = fmt.Errorf("%w: wanted %s", ErrUnexpectedSuccess, st.Error)
		case !errors.Is(inner.Err, want):
			res.Err = fmt.Errorf("wanted %s, got: %w", st.Error, inner.Err)
		default:
			res.Detail = inner.Err.Error()
		}
		return res
	}

	detail, value, err := r.exec(st)
	res.Detail, res.Value = detail, value
	if err != nil {
		res.Err = err
		return res
	}
	if st.Expect != "" && st.Expect != value {
		res.Err = fmt.Errorf("%w: got %s, want %s", ErrExpectationFailed, value, st.Expect)
	}
	return res
}

func (r *Runner) exec(st *Step) (string, string, error) {
	switch st.Op {
	case OpCreatePair:
		p, err := r.exchange.CreatePair(r.names.resolve(st.TokenA), r.names.resolve(st.TokenB))
		if err != nil {
			return "", "", err
		}
		name := st.TokenA + "/" + st.TokenB
		r.names[p.Address()] = name
		return fmt.Sprintf("%s at %s", name, p.Address().Hex()), p.Address().Hex(), nil

	case OpFaucet:
		amount, err := amountOf(st.Amount)
		if err != nil {
			return "", "", err
		}
		to, err := r.holder(st.To)
		if err != nil {
			return "", "", err
		}
		if err := r.exchange.Credit(r.names.resolve(st.Token), to, amount); err != nil {
			return "", "", err
		}
		return fmt.Sprintf("%s %s to %s", amount.Dec(), st.Token, st.To), amount.Dec(), nil

	case OpTransfer:
		amount, err := amountOf(st.Amount)
		if err != nil {
			return "", "", err
		}
		from, err := r.holder(st.From)
		if err != nil {
			return "", "", err
		}
		to, err := r.holder(st.To)
		if err != nil {
			return "", "", err
		}
		if err := r.exchange.Transfer(r.names.resolve(st.Token), from, to, amount); err != nil {
			return "", "", err
		}
		return fmt.Sprintf("%s %s from %s to %s", amount.Dec(), st.Token, st.From, st.To), amount.Dec(), nil

	case OpTransferShares:
		p, err := r.pair(st.Pair)
		if err != nil {
			return "", "", err
		}
		amount, err := amountOf(st.Shares)
		if err != nil {
			return "", "", err
		}
		from, err := r.holder(st.From)
		if err != nil {
			return "", "", err
		}
		to, err := r.holder(st.To)
		if err != nil {
			return "", "", err
		}
		if err := r.exchange.TransferShares(p, from, to, amount); err != nil {
			return "", "", err
		}
		return fmt.Sprintf("%s shares of %s from %s to %s", amount.Dec(), st.Pair, st.From, st.To), amount.Dec(), nil

	case OpMint:
		p, err := r.pair(st.Pair)
		if err != nil {
			return "", "", err
		}
		shares, err := r.exchange.Mint(p, r.names.resolve(st.To))
		if err != nil {
			return "", "", err
		}
		return fmt.Sprintf("%s shares of %s to %s", shares.Dec(), st.Pair, st.To), shares.Dec(), nil

	case OpBurn:
		p, err := r.pair(st.Pair)
		if err != nil {
			return "", "", err
		}
		// with shares set, move them from `from` into the pair first
		if st.Shares != "" {
			amount, err := amountOf(st.Shares)
			if err != nil {
				return "", "", err
			}
			if err := r.exchange.TransferShares(p, r.names.resolve(st.From), p, amount); err != nil {
				return "", "", err
			}
		}
		to, err := r.holder(st.To)
		if err != nil {
			return "", "", err
		}
		amount0, amount1, err := r.exchange.Burn(p, to)
		if err != nil {
			return "", "", err
		}
		value := amount0.Dec() + "," + amount1.Dec()
		return fmt.Sprintf("paid %s to %s", value, st.To), value, nil

	case OpSwap:
		p, err := r.pair(st.Pair)
		if err != nil {
			return "", "", err
		}
		amount0Out, err := optionalAmount(st.Amount0Out)
		if err != nil {
			return "", "", err
		}
		amount1Out, err := optionalAmount(st.Amount1Out)
		if err != nil {
			return "", "", err
		}
		to, err := r.holder(st.To)
		if err != nil {
			return "", "", err
		}
		if err := r.exchange.Swap(p, amount0Out, amount1Out, to); err != nil {
			return "", "", err
		}
		value := amount0Out.Dec() + "," + amount1Out.Dec()
		return fmt.Sprintf("out %s to %s", value, st.To), value, nil

	case OpSkim:
		p, err := r.pair(st.Pair)
		if err != nil {
			return "", "", err
		}
		to, err := r.holder(st.To)
		if err != nil {
			return "", "", err
		}
		return "skimmed to " + st.To, "", r.exchange.Skim(p, to)

	case OpSync:
		p, err := r.pair(st.Pair)
		if err != nil {
			return "", "", err
		}
		return "synced " + st.Pair, "", r.exchange.Sync(p)

	case OpAddLiquidity:
		amountA, err := amountOf(st.AmountA)
		if err != nil {
			return "", "", err
		}
		amountB, err := amountOf(st.AmountB)
		if err != nil {
			return "", "", err
		}
		minA, err := optionalAmount(st.MinA)
		if err != nil {
			return "", "", err
		}
		minB, err := optionalAmount(st.MinB)
		if err != nil {
			return "", "", err
		}
		res, err := r.router.AddLiquidity(amm.AddLiquidityParams{
			TokenA:         r.names.resolve(st.TokenA),
			TokenB:         r.names.resolve(st.TokenB),
			AmountADesired: amountA,
			AmountBDesired: amountB,
			AmountAMin:     minA,
			AmountBMin:     minB,
			From:           r.names.resolve(st.From),
			To:             r.names.resolve(st.To),
		})
		if err != nil {
			return "", "", err
		}
		if _, ok := r.names[res.Pair]; !ok {
			r.names[res.Pair] = st.TokenA + "/" + st.TokenB
		}
		return fmt.Sprintf("deposited %s/%s for %s shares", res.AmountA.Dec(), res.AmountB.Dec(), res.Shares.Dec()), res.Shares.Dec(), nil

	case OpRemoveLiquidity:
		shares, err := amountOf(st.Shares)
		if err != nil {
			return "", "", err
		}
		minA, err := optionalAmount(st.MinA)
		if err != nil {
			return "", "", err
		}
		minB, err := optionalAmount(st.MinB)
		if err != nil {
			return "", "", err
		}
		res, err := r.router.RemoveLiquidity(amm.RemoveLiquidityParams{
			TokenA:     r.names.resolve(st.TokenA),
			TokenB:     r.names.resolve(st.TokenB),
			Shares:     shares,
			AmountAMin: minA,
			AmountBMin: minB,
			From:       r.names.resolve(st.From),
			To:         r.names.resolve(st.To),
		})
		if err != nil {
			return "", "", err
		}
		value := res.AmountA.Dec() + "," + res.AmountB.Dec()
		return fmt.Sprintf("withdrew %s for %s shares", value, shares.Dec()), value, nil

	case OpSwapExactIn, OpSwapExactOut:
		amount, err := amountOf(st.Amount)
		if err != nil {
			return "", "", err
		}
		limit, err := optionalAmount(st.Limit)
		if err != nil {
			return "", "", err
		}
		if st.Op == OpSwapExactOut && st.Limit == "" {
			limit = nil
		}
		path := r.path(st.Path)
		from, to := r.names.resolve(st.From), r.names.resolve(st.To)
		var amounts []*uint256.Int
		if st.Op == OpSwapExactIn {
			amounts, err = r.router.SwapExactTokensForTokens(amount, limit, path, from, to)
		} else {
			amounts, err = r.router.SwapTokensForExactTokens(amount, limit, path, from, to)
		}
		if err != nil {
			return "", "", err
		}
		value := amounts[len(amounts)-1].Dec()
		if st.Op == OpSwapExactOut {
			value = amounts[0].Dec()
		}
		return "amounts " + joinAmounts(amounts), value, nil

	case OpQuote, OpQuoteIn:
		amount, err := amountOf(st.Amount)
		if err != nil {
			return "", "", err
		}
		path := r.path(st.Path)
		if st.Op == OpQuote {
			amounts, err := r.router.GetAmountsOut(amount, path)
			if err != nil {
				return "", "", err
			}
			return "amounts " + joinAmounts(amounts), amounts[len(amounts)-1].Dec(), nil
		}
		amounts, err := r.router.GetAmountsIn(amount, path)
		if err != nil {
			return "", "", err
		}
		return "amounts " + joinAmounts(amounts), amounts[0].Dec(), nil
	}
	return "", "", fmt.Errorf("%w: unknown op %q", ErrInvalidScenario, st.Op)
}

var ops = map[string]bool{
	OpCreatePair: true, OpFaucet: true, OpTransfer: true, OpTransferShares: true,
	OpMint: true, OpBurn: true, OpSwap: true, OpSkim: true, OpSync: true,
	OpAddLiquidity: true, OpRemoveLiquidity: true,
	OpSwapExactIn: true, OpSwapExactOut: true, OpQuote: true, OpQuoteIn: true,
}

// pair resolves "A/B" to the address of that pair.
func (r *Runner) pair(name string) (common.Address, error) {
	tokenA, tokenB, ok := strings.Cut(name, "/")
	if !ok {
		return r.names.resolve(name), nil
	}
	p, ok := r.exchange.Factory().GetPair(r.names.resolve(tokenA), r.names.resolve(tokenB))
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s", amm.ErrPairNotFound, name)
	}
	return p.Address(), nil
}

// holder resolves an account name, or a pair when the name contains "/".
func (r *Runner) holder(name string) (common.Address, error) {
	if strings.Contains(name, "/") {
		return r.pair(name)
	}
	return r.names.resolve(name), nil
}

func (r *Runner) path(tokens []string) []common.Address {
	path := make([]common.Address, len(tokens))
	for i, t := range tokens {
		path[i] = r.names.resolve(t)
	}
	return path
}

func (r *Runner) pairStates() []PairState {
	pairs := r.exchange.Factory().Pairs()
	out := make([]PairState, len(pairs))
	for i, p := range pairs {
		r0, r1, _ := p.Reserves()
		out[i] = PairState{
			Name:     r.names.label(p.Address()),
			Address:  p.Address(),
			Token0:   r.names.label(p.Token0()),
			Token1:   r.names.label(p.Token1()),
			Reserve0: r0,
			Reserve1: r1,
			Shares:   p.TotalSupply(),
		}
	}
	return out
}

func amountOf(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: amount is required", ErrInvalidScenario)
	}
	v, err := uint256.FromDecimal(strings.ReplaceAll(s, "_", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", ErrInvalidScenario, s, err)
	}
	return v, nil
}

func optionalAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	return amountOf(s)
}

func joinAmounts(amounts []*uint256.Int) string {
	parts := make([]string, len(amounts))
	for i, a := range amounts {
		parts[i] = a.Dec()
	}
	return strings.Join(parts, " -> ")
}
