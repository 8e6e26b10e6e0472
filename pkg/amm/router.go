package amm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/uniswapv2-engine/pkg/uniswapv2"
)

// Router quotes and executes trades along paths of pairs. It holds no funds:
// the input goes straight from the trader into the first pair and every hop
// pays its output directly into the next pair.
type Router struct {
	exchange *Exchange
}

func NewRouter(x *Exchange) *Router {
	return &Router{exchange: x}
}

// Quote converts amountA to B at the reserve ratio, ignoring fees.
func (r *Router) Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	return uniswapv2.Quote(amountA, reserveA, reserveB)
}

func (r *Router) GetAmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	return uniswapv2.GetAmountOut(amountIn, reserveIn, reserveOut)
}

func (r *Router) GetAmountIn(amountOut, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	return uniswapv2.GetAmountIn(amountOut, reserveIn, reserveOut)
}

func (r *Router) resolve(path []common.Address) ([]*Pair, error) {
	if len(path) < 2 {
		return nil, ErrPathTooShort
	}
	pairs := make([]*Pair, len(path)-1)
	for i := 0; i < len(path)-1; i++ {
		p, ok := r.exchange.factory.GetPair(path[i], path[i+1])
		if !ok {
			return nil, fmt.Errorf("%w: hop %d %s/%s", ErrPairNotFound, i, path[i].Hex(), path[i+1].Hex())
		}
		pairs[i] = p
	}
	return pairs, nil
}

// reservesFn reads a pair's reserves oriented for selling tokenIn.
type reservesFn func(p *Pair, tokenIn common.Address) (*uint256.Int, *uint256.Int)

// lockedReserves reads reserves through each pair's lock.
func lockedReserves(p *Pair, tokenIn common.Address) (*uint256.Int, *uint256.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	in, out := p.orient(tokenIn)
	return in.Clone(), out.Clone()
}

// heldReserves reads reserves of pairs whose locks the caller already holds.
func heldReserves(p *Pair, tokenIn common.Address) (*uint256.Int, *uint256.Int) {
	in, out := p.orient(tokenIn)
	return in.Clone(), out.Clone()
}

func amountsOut(amountIn *uint256.Int, path []common.Address, pairs []*Pair, reserves reservesFn) ([]*uint256.Int, error) {
	amounts := make([]*uint256.Int, len(path))
	amounts[0] = amountIn.Clone()
	for i, p := range pairs {
		reserveIn, reserveOut := reserves(p, path[i])
		out, err := uniswapv2.GetAmountOut(amounts[i], reserveIn, reserveOut)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
		amounts[i+1] = out
	}
	return amounts, nil
}

func amountsIn(amountOut *uint256.Int, path []common.Address, pairs []*Pair, reserves reservesFn) ([]*uint256.Int, error) {
	amounts := make([]*uint256.Int, len(path))
	amounts[len(path)-1] = amountOut.Clone()
	for i := len(pairs) - 1; i >= 0; i-- {
		reserveIn, reserveOut := reserves(pairs[i], path[i])
		in, err := uniswapv2.GetAmountIn(amounts[i+1], reserveIn, reserveOut)
		if err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
		amounts[i] = in
	}
	return amounts, nil
}

// GetAmountsOut quotes amountIn along path; amounts[0] is amountIn and each
// following entry is the output of one hop.
func (r *Router) GetAmountsOut(amountIn *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	pairs, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	return amountsOut(orZero(amountIn), path, pairs, lockedReserves)
}

// GetAmountsIn returns the inputs required at every step to receive
// amountOut of the last token in path.
func (r *Router) GetAmountsIn(amountOut *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	pairs, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	return amountsIn(orZero(amountOut), path, pairs, lockedReserves)
}

// executePath funds the first pair from `from` and runs every hop. The
// caller holds the locks of all pairs and of `to` if it is a pair.
func (r *Router) executePath(e *env, amounts []*uint256.Int, path []common.Address, pairs []*Pair, from, to common.Address) error {
	if err := safeTransfer(e, path[0], from, pairs[0].address, amounts[0]); err != nil {
		return err
	}
	for i, p := range pairs {
		amount0Out, amount1Out := new(uint256.Int), new(uint256.Int)
		if path[i] == p.token0 {
			amount1Out = amounts[i+1]
		} else {
			amount0Out = amounts[i+1]
		}
		recipient := to
		if i < len(pairs)-1 {
			recipient = pairs[i+1].address
		}
		if err := p.swap(e, amount0Out, amount1Out, recipient); err != nil {
			return fmt.Errorf("hop %d: %w", i, err)
		}
	}
	return nil
}

func (r *Router) checkSender(from common.Address) error {
	if _, ok := r.exchange.factory.PairAt(from); ok {
		return ErrPairCustody
	}
	return nil
}

func orZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x
}

func (r *Router) lockSet(pairs []*Pair, to common.Address) []*Pair {
	set := append([]*Pair(nil), pairs...)
	if dst, ok := r.exchange.factory.PairAt(to); ok {
		set = append(set, dst)
	}
	return set
}

// SwapExactTokensForTokens sells exactly amountIn of path[0] from `from` and
// sends at least amountOutMin of the last token to `to`. All hops apply or
// none do.
func (r *Router) SwapExactTokensForTokens(amountIn, amountOutMin *uint256.Int, path []common.Address, from, to common.Address) ([]*uint256.Int, error) {
	if err := r.checkSender(from); err != nil {
		return nil, err
	}
	pairs, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	amountIn, amountOutMin = orZero(amountIn), orZero(amountOutMin)
	var amounts []*uint256.Int
	err = r.exchange.atomic(from, r.lockSet(pairs, to), func(e *env) error {
		amounts, err = amountsOut(amountIn, path, pairs, heldReserves)
		if err != nil {
			return err
		}
		if last := amounts[len(amounts)-1]; last.Lt(amountOutMin) {
			return fmt.Errorf("%w: output %s below minimum %s", ErrSlippageExceeded, last.Dec(), amountOutMin.Dec())
		}
		return r.executePath(e, amounts, path, pairs, from, to)
	})
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

// SwapTokensForExactTokens buys exactly amountOut of the last token in path,
// spending at most amountInMax of path[0].
func (r *Router) SwapTokensForExactTokens(amountOut, amountInMax *uint256.Int, path []common.Address, from, to common.Address) ([]*uint256.Int, error) {
	if err := r.checkSender(from); err != nil {
		return nil, err
	}
	if amountInMax == nil {
		amountInMax = new(uint256.Int).SetAllOne()
	}
	amountOut = orZero(amountOut)
	pairs, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	var amounts []*uint256.Int
	err = r.exchange.atomic(from, r.lockSet(pairs, to), func(e *env) error {
		amounts, err = amountsIn(amountOut, path, pairs, heldReserves)
		if err != nil {
			return err
		}
		if amounts[0].Gt(amountInMax) {
			return fmt.Errorf("%w: input %s above maximum %s", ErrSlippageExceeded, amounts[0].Dec(), amountInMax.Dec())
		}
		return r.executePath(e, amounts, path, pairs, from, to)
	})
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

// AddLiquidityParams describes a deposit through the router.
type AddLiquidityParams struct {
	TokenA, TokenB                 common.Address
	AmountADesired, AmountBDesired *uint256.Int
	AmountAMin, AmountBMin         *uint256.Int
	From, To                       common.Address
}

// LiquidityResult reports the amounts actually moved and shares minted or burned.
type LiquidityResult struct {
	Pair    common.Address
	AmountA *uint256.Int
	AmountB *uint256.Int
	Shares  *uint256.Int
}

// AddLiquidity deposits at the current ratio, creating the pair if needed.
// The pair is created in its own step; an empty pair is left behind if the
// deposit then fails.
func (r *Router) AddLiquidity(params AddLiquidityParams) (*LiquidityResult, error) {
	if err := r.checkSender(params.From); err != nil {
		return nil, err
	}
	params.AmountAMin, params.AmountBMin = orZero(params.AmountAMin), orZero(params.AmountBMin)
	params.AmountADesired, params.AmountBDesired = orZero(params.AmountADesired), orZero(params.AmountBDesired)
	p, ok := r.exchange.factory.GetPair(params.TokenA, params.TokenB)
	if !ok {
		var err error
		if p, err = r.exchange.CreatePair(params.TokenA, params.TokenB); err != nil {
			return nil, err
		}
	}
	res := &LiquidityResult{Pair: p.address}
	err := r.exchange.atomic(params.From, []*Pair{p}, func(e *env) error {
		amountA, amountB, err := optimalAmounts(p, params)
		if err != nil {
			return err
		}
		if err := safeTransfer(e, params.TokenA, params.From, p.address, amountA); err != nil {
			return err
		}
		if err := safeTransfer(e, params.TokenB, params.From, p.address, amountB); err != nil {
			return err
		}
		shares, err := p.mint(e, params.To)
		if err != nil {
			return err
		}
		res.AmountA, res.AmountB, res.Shares = amountA, amountB, shares
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func optimalAmounts(p *Pair, params AddLiquidityParams) (*uint256.Int, *uint256.Int, error) {
	reserveA, reserveB := p.orient(params.TokenA)
	if reserveA.IsZero() && reserveB.IsZero() {
		return params.AmountADesired.Clone(), params.AmountBDesired.Clone(), nil
	}
	amountBOptimal, err := uniswapv2.Quote(params.AmountADesired, reserveA, reserveB)
	if err != nil {
		return nil, nil, err
	}
	if !amountBOptimal.Gt(params.AmountBDesired) {
		if amountBOptimal.Lt(params.AmountBMin) {
			return nil, nil, fmt.Errorf("%w: insufficient B amount %s", ErrSlippageExceeded, amountBOptimal.Dec())
		}
		return params.AmountADesired.Clone(), amountBOptimal, nil
	}
	amountAOptimal, err := uniswapv2.Quote(params.AmountBDesired, reserveB, reserveA)
	if err != nil {
		return nil, nil, err
	}
	if amountAOptimal.Gt(params.AmountADesired) || amountAOptimal.Lt(params.AmountAMin) {
		return nil, nil, fmt.Errorf("%w: insufficient A amount %s", ErrSlippageExceeded, amountAOptimal.Dec())
	}
	return amountAOptimal, params.AmountBDesired.Clone(), nil
}

// RemoveLiquidityParams describes a withdrawal through the router.
type RemoveLiquidityParams struct {
	TokenA, TokenB         common.Address
	Shares                 *uint256.Int
	AmountAMin, AmountBMin *uint256.Int
	From, To               common.Address
}

// RemoveLiquidity moves the shares into the pair, burns them and checks the
// payout against the minimums.
func (r *Router) RemoveLiquidity(params RemoveLiquidityParams) (*LiquidityResult, error) {
	if err := r.checkSender(params.From); err != nil {
		return nil, err
	}
	params.Shares = orZero(params.Shares)
	params.AmountAMin, params.AmountBMin = orZero(params.AmountAMin), orZero(params.AmountBMin)
	p, ok := r.exchange.factory.GetPair(params.TokenA, params.TokenB)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrPairNotFound, params.TokenA.Hex(), params.TokenB.Hex())
	}
	res := &LiquidityResult{Pair: p.address, Shares: params.Shares.Clone()}
	err := r.exchange.atomic(params.From, r.lockSet([]*Pair{p}, params.To), func(e *env) error {
		if err := p.transferShares(params.From, p.address, params.Shares); err != nil {
			return err
		}
		amount0, amount1, err := p.burn(e, params.To)
		if err != nil {
			return err
		}
		amountA, amountB := amount0, amount1
		if params.TokenA != p.token0 {
			amountA, amountB = amount1, amount0
		}
		if amountA.Lt(params.AmountAMin) || amountB.Lt(params.AmountBMin) {
			return fmt.Errorf("%w: received %s/%s", ErrSlippageExceeded, amountA.Dec(), amountB.Dec())
		}
		res.AmountA, res.AmountB = amountA, amountB
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
