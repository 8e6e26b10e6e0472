package amm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/uniswapv2-engine/pkg/custody"
	"github.com/nulln0ne/uniswapv2-engine/pkg/uniswapv2"
)

// Pair is the reserve ledger of one token pair. Its reserves track its own
// custody balances as of the last state-changing call; deposits are inferred
// from the difference between custody and reserves.
//
// Mutating methods are unexported and expect mu to be held by the enclosing
// Exchange transaction.
type Pair struct {
	address common.Address
	token0  common.Address
	token1  common.Address

	mu    sync.Mutex
	state pairState
}

type pairState struct {
	reserve0    *uint256.Int
	reserve1    *uint256.Int
	lastUpdate  uint32
	totalSupply *uint256.Int
	shares      map[common.Address]*uint256.Int
}

func newPair(address, token0, token1 common.Address) *Pair {
	return &Pair{
		address: address,
		token0:  token0,
		token1:  token1,
		state: pairState{
			reserve0:    new(uint256.Int),
			reserve1:    new(uint256.Int),
			totalSupply: new(uint256.Int),
			shares:      make(map[common.Address]*uint256.Int),
		},
	}
}

func (s pairState) clone() pairState {
	shares := make(map[common.Address]*uint256.Int, len(s.shares))
	for owner, amount := range s.shares {
		shares[owner] = amount.Clone()
	}
	return pairState{
		reserve0:    s.reserve0.Clone(),
		reserve1:    s.reserve1.Clone(),
		lastUpdate:  s.lastUpdate,
		totalSupply: s.totalSupply.Clone(),
		shares:      shares,
	}
}

func (p *Pair) Address() common.Address { return p.address }
func (p *Pair) Token0() common.Address  { return p.token0 }
func (p *Pair) Token1() common.Address  { return p.token1 }

// Reserves returns the recorded reserves and the unix time (mod 2^32) of
// their last update.
func (p *Pair) Reserves() (reserve0, reserve1 *uint256.Int, lastUpdate uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.reserve0.Clone(), p.state.reserve1.Clone(), p.state.lastUpdate
}

func (p *Pair) TotalSupply() *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.totalSupply.Clone()
}

// SharesOf returns the liquidity shares held by owner.
func (p *Pair) SharesOf(owner common.Address) *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sharesOf(owner)
}

func (p *Pair) sharesOf(owner common.Address) *uint256.Int {
	if s, ok := p.state.shares[owner]; ok {
		return s.Clone()
	}
	return new(uint256.Int)
}

// orient returns the reserves as (reserveIn, reserveOut) for a trade selling tokenIn.
func (p *Pair) orient(tokenIn common.Address) (*uint256.Int, *uint256.Int) {
	if tokenIn == p.token0 {
		return p.state.reserve0, p.state.reserve1
	}
	return p.state.reserve1, p.state.reserve0
}

func (p *Pair) balances(c custody.Provider) (*uint256.Int, *uint256.Int, error) {
	b0, err := c.BalanceOf(p.token0, p.address)
	if err != nil {
		return nil, nil, fmt.Errorf("balance of token0: %w", err)
	}
	b1, err := c.BalanceOf(p.token1, p.address)
	if err != nil {
		return nil, nil, fmt.Errorf("balance of token1: %w", err)
	}
	return b0, b1, nil
}

func (p *Pair) safeTransfer(e *env, token, to common.Address, amount *uint256.Int) error {
	return safeTransfer(e, token, p.address, to, amount)
}

func safeTransfer(e *env, token, from, to common.Address, amount *uint256.Int) error {
	payload, err := e.custody.Transfer(token, from, to, amount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	ok, err := custody.DecodeSuccess(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if !ok {
		return fmt.Errorf("%w: token %s from %s to %s", ErrTransferFailed, token.Hex(), from.Hex(), to.Hex())
	}
	return nil
}

// update resyncs the reserves to the observed balances.
func (p *Pair) update(e *env, balance0, balance1 *uint256.Int) error {
	if balance0.Gt(uniswapv2.MaxReserve) || balance1.Gt(uniswapv2.MaxReserve) {
		return fmt.Errorf("%w: balance exceeds 112 bits", ErrArithmeticOverflow)
	}
	p.state.reserve0 = balance0.Clone()
	p.state.reserve1 = balance1.Clone()
	p.state.lastUpdate = uint32(e.now.Unix())
	e.emit(Event{
		Kind:     EventSync,
		Pair:     p.address,
		Reserve0: balance0.Clone(),
		Reserve1: balance1.Clone(),
	})
	return nil
}

func (p *Pair) mintShares(to common.Address, amount *uint256.Int) error {
	supply, err := uniswapv2.Add(p.state.totalSupply, amount)
	if err != nil {
		return err
	}
	bal, err := uniswapv2.Add(p.sharesOf(to), amount)
	if err != nil {
		return err
	}
	p.state.totalSupply = supply
	p.state.shares[to] = bal
	return nil
}

func (p *Pair) burnShares(from common.Address, amount *uint256.Int) error {
	bal := p.sharesOf(from)
	if bal.Lt(amount) {
		return ErrInsufficientShares
	}
	bal.Sub(bal, amount)
	p.setShares(from, bal)
	p.state.totalSupply = new(uint256.Int).Sub(p.state.totalSupply, amount)
	return nil
}

func (p *Pair) setShares(owner common.Address, amount *uint256.Int) {
	if amount.IsZero() {
		delete(p.state.shares, owner)
		return
	}
	p.state.shares[owner] = amount
}

func (p *Pair) transferShares(from, to common.Address, amount *uint256.Int) error {
	src := p.sharesOf(from)
	if src.Lt(amount) {
		return ErrInsufficientShares
	}
	if from == to || amount.IsZero() {
		return nil
	}
	src.Sub(src, amount)
	dst, err := uniswapv2.Add(p.sharesOf(to), amount)
	if err != nil {
		return err
	}
	p.setShares(from, src)
	p.setShares(to, dst)
	return nil
}

// mint issues shares to `to` for whatever was deposited since the last
// update.
func (p *Pair) mint(e *env, to common.Address) (*uint256.Int, error) {
	balance0, balance1, err := p.balances(e.custody)
	if err != nil {
		return nil, err
	}
	amount0, err := uniswapv2.Sub(balance0, p.state.reserve0)
	if err != nil {
		return nil, fmt.Errorf("%w: custody below reserve0", ErrInsufficientLiquidity)
	}
	amount1, err := uniswapv2.Sub(balance1, p.state.reserve1)
	if err != nil {
		return nil, fmt.Errorf("%w: custody below reserve1", ErrInsufficientLiquidity)
	}

	liquidity, err := uniswapv2.LiquidityToMint(amount0, amount1, p.state.reserve0, p.state.reserve1, p.state.totalSupply)
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	if err := p.mintShares(to, liquidity); err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	if err := p.update(e, balance0, balance1); err != nil {
		return nil, err
	}
	e.emit(Event{
		Kind:      EventMint,
		Pair:      p.address,
		Sender:    e.sender,
		To:        to,
		Amount0In: amount0,
		Amount1In: amount1,
		Shares:    liquidity.Clone(),
	})
	return liquidity, nil
}

// burn redeems the shares the pair holds on its own address against the
// recorded reserves and pays both tokens out to `to`. Unsynced donations are
// not paid out; the closing resync folds them into the reserves.
func (p *Pair) burn(e *env, to common.Address) (*uint256.Int, *uint256.Int, error) {
	liquidity := p.sharesOf(p.address)

	amount0, amount1, err := uniswapv2.AmountsForShares(liquidity, p.state.reserve0, p.state.reserve1, p.state.totalSupply)
	if err != nil {
		return nil, nil, fmt.Errorf("burn: %w", err)
	}
	if err := p.burnShares(p.address, liquidity); err != nil {
		return nil, nil, fmt.Errorf("burn: %w", err)
	}
	if err := p.safeTransfer(e, p.token0, to, amount0); err != nil {
		return nil, nil, err
	}
	if err := p.safeTransfer(e, p.token1, to, amount1); err != nil {
		return nil, nil, err
	}
	balance0, balance1, err := p.balances(e.custody)
	if err != nil {
		return nil, nil, err
	}
	if err := p.update(e, balance0, balance1); err != nil {
		return nil, nil, err
	}
	e.emit(Event{
		Kind:       EventBurn,
		Pair:       p.address,
		Sender:     e.sender,
		To:         to,
		Amount0Out: amount0.Clone(),
		Amount1Out: amount1.Clone(),
		Shares:     liquidity,
	})
	return amount0, amount1, nil
}

// swap pays the requested outputs to `to` first and then checks that enough
// input arrived for the fee-adjusted constant product to hold. Both outputs
// may be non-zero.
func (p *Pair) swap(e *env, amount0Out, amount1Out *uint256.Int, to common.Address) error {
	if amount0Out.IsZero() && amount1Out.IsZero() {
		return ErrInsufficientOutput
	}
	reserve0, reserve1 := p.state.reserve0.Clone(), p.state.reserve1.Clone()
	if !amount0Out.Lt(reserve0) || !amount1Out.Lt(reserve1) {
		return fmt.Errorf("%w: output must be below reserve", ErrInsufficientLiquidity)
	}
	if to == p.token0 || to == p.token1 {
		return ErrInvalidRecipient
	}

	if !amount0Out.IsZero() {
		if err := p.safeTransfer(e, p.token0, to, amount0Out); err != nil {
			return err
		}
	}
	if !amount1Out.IsZero() {
		if err := p.safeTransfer(e, p.token1, to, amount1Out); err != nil {
			return err
		}
	}
	balance0, balance1, err := p.balances(e.custody)
	if err != nil {
		return err
	}

	amount0In := impliedInput(balance0, reserve0, amount0Out)
	amount1In := impliedInput(balance1, reserve1, amount1Out)
	if amount0In.IsZero() && amount1In.IsZero() {
		return ErrInsufficientInput
	}
	if err := uniswapv2.CheckK(balance0, balance1, amount0In, amount1In, reserve0, reserve1); err != nil {
		if errors.Is(err, ErrArithmeticOverflow) {
			return fmt.Errorf("swap: %w", err)
		}
		return err
	}

	if err := p.update(e, balance0, balance1); err != nil {
		return err
	}
	e.emit(Event{
		Kind:       EventSwap,
		Pair:       p.address,
		Sender:     e.sender,
		To:         to,
		Amount0In:  amount0In,
		Amount1In:  amount1In,
		Amount0Out: amount0Out.Clone(),
		Amount1Out: amount1Out.Clone(),
	})
	return nil
}

// impliedInput is max(0, balance - (reserve - out)). out < reserve holds.
func impliedInput(balance, reserve, out *uint256.Int) *uint256.Int {
	floor := new(uint256.Int).Sub(reserve, out)
	if balance.Gt(floor) {
		return floor.Sub(balance, floor)
	}
	return new(uint256.Int)
}

// skim sends any custody in excess of the reserves to `to`.
func (p *Pair) skim(e *env, to common.Address) error {
	balance0, balance1, err := p.balances(e.custody)
	if err != nil {
		return err
	}
	if balance0.Gt(p.state.reserve0) {
		if err := p.safeTransfer(e, p.token0, to, new(uint256.Int).Sub(balance0, p.state.reserve0)); err != nil {
			return err
		}
	}
	if balance1.Gt(p.state.reserve1) {
		if err := p.safeTransfer(e, p.token1, to, new(uint256.Int).Sub(balance1, p.state.reserve1)); err != nil {
			return err
		}
	}
	return nil
}

// sync forces the reserves to match custody.
func (p *Pair) sync(e *env) error {
	balance0, balance1, err := p.balances(e.custody)
	if err != nil {
		return err
	}
	return p.update(e, balance0, balance1)
}

// PairSnapshot is the persisted form of a pair.
type PairSnapshot struct {
	Address     common.Address
	Token0      common.Address
	Token1      common.Address
	Reserve0    *uint256.Int
	Reserve1    *uint256.Int
	LastUpdate  uint32
	TotalSupply *uint256.Int
	Shares      map[common.Address]*uint256.Int
}

func (p *Pair) snapshot() PairSnapshot {
	s := p.state.clone()
	return PairSnapshot{
		Address:     p.address,
		Token0:      p.token0,
		Token1:      p.token1,
		Reserve0:    s.reserve0,
		Reserve1:    s.reserve1,
		LastUpdate:  s.lastUpdate,
		TotalSupply: s.totalSupply,
		Shares:      s.shares,
	}
}

// Snapshot copies the pair's state.
func (p *Pair) Snapshot() PairSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}
