package amm

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/uniswapv2-engine/pkg/custody"
)

// Custodian is the custody backend of an Exchange.
type Custodian interface {
	custody.Transactor
	BalanceOf(token, holder common.Address) (*uint256.Int, error)
	Balances() []custody.Balance
	Load(balances []custody.Balance)
}

// env is the per-operation context pairs mutate through: a custody overlay
// plus the events buffered until commit.
type env struct {
	custody custody.Txn
	now     time.Time
	sender  common.Address
	events  []Event
}

func (e *env) emit(ev Event) {
	ev.Time = e.now
	e.events = append(e.events, ev)
}

// Exchange is the transactional boundary around the factory and its pairs.
// Every state-changing call locks the pairs it touches in address order,
// works on a custody overlay and either commits everything or restores the
// pairs and discards the overlay.
type Exchange struct {
	factory *Factory
	custody Custodian
	clock   func() time.Time

	subMu       sync.RWMutex
	subscribers []func(Event)

	// commits take a ticket while their pairs are still locked; events are
	// delivered strictly in ticket order
	pubMu     sync.Mutex
	pubCond   *sync.Cond
	issued    uint64
	delivered uint64
}

type Option func(*Exchange)

// WithClock overrides time.Now for reserve timestamps and events.
func WithClock(clock func() time.Time) Option {
	return func(x *Exchange) { x.clock = clock }
}

func NewExchange(factory *Factory, c Custodian, opts ...Option) *Exchange {
	x := &Exchange{
		factory: factory,
		custody: c,
		clock:   time.Now,
	}
	x.pubCond = sync.NewCond(&x.pubMu)
	for _, opt := range opts {
		opt(x)
	}
	return x
}

func (x *Exchange) Factory() *Factory { return x.factory }

// Subscribe registers fn to receive every committed event in commit order.
// fn runs after the pair locks are released and must not start exchange
// operations itself.
func (x *Exchange) Subscribe(fn func(Event)) {
	x.subMu.Lock()
	x.subscribers = append(x.subscribers, fn)
	x.subMu.Unlock()
}

// ticket reserves the next delivery slot. Callers take it while holding the
// locks that order their commit.
func (x *Exchange) ticket() uint64 {
	x.pubMu.Lock()
	defer x.pubMu.Unlock()
	t := x.issued
	x.issued++
	return t
}

// publish waits for every earlier ticket to be delivered, then hands events
// to the subscribers.
func (x *Exchange) publish(ticket uint64, events []Event) {
	x.pubMu.Lock()
	for x.delivered != ticket {
		x.pubCond.Wait()
	}
	x.pubMu.Unlock()

	if len(events) > 0 {
		x.subMu.RLock()
		subs := x.subscribers
		x.subMu.RUnlock()
		for _, ev := range events {
			for _, fn := range subs {
				fn(ev)
			}
		}
	}

	x.pubMu.Lock()
	x.delivered++
	x.pubCond.Broadcast()
	x.pubMu.Unlock()
}

// lockPairs locks the distinct pairs in ascending address order and returns
// them in that order.
func lockPairs(pairs []*Pair) []*Pair {
	seen := make(map[common.Address]bool, len(pairs))
	ordered := make([]*Pair, 0, len(pairs))
	for _, p := range pairs {
		if p == nil || seen[p.address] {
			continue
		}
		seen[p.address] = true
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i].address[:], ordered[j].address[:]) < 0
	})
	for _, p := range ordered {
		p.mu.Lock()
	}
	return ordered
}

func unlockPairs(pairs []*Pair) {
	for i := len(pairs) - 1; i >= 0; i-- {
		pairs[i].mu.Unlock()
	}
}

// atomic runs fn as one all-or-nothing unit over pairs.
func (x *Exchange) atomic(sender common.Address, pairs []*Pair, fn func(e *env) error) error {
	locked := lockPairs(pairs)
	saved := make([]pairState, len(locked))
	for i, p := range locked {
		saved[i] = p.state.clone()
	}
	rollback := func() {
		for i, p := range locked {
			p.state = saved[i]
		}
	}

	e := &env{custody: x.custody.Begin(), now: x.clock(), sender: sender}
	if err := fn(e); err != nil {
		e.custody.Discard()
		rollback()
		unlockPairs(locked)
		return err
	}
	if err := e.custody.Commit(); err != nil {
		rollback()
		unlockPairs(locked)
		return fmt.Errorf("commit: %w", err)
	}
	ticket := x.ticket()
	unlockPairs(locked)
	x.publish(ticket, e.events)
	return nil
}

func (x *Exchange) pairAt(address common.Address) (*Pair, error) {
	p, ok := x.factory.PairAt(address)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPairNotFound, address.Hex())
	}
	return p, nil
}

// CreatePair registers a new pair for tokenA/tokenB.
func (x *Exchange) CreatePair(tokenA, tokenB common.Address) (*Pair, error) {
	p, err := x.factory.CreatePair(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	x.publish(x.ticket(), []Event{{
		Kind:   EventPairCreated,
		Pair:   p.address,
		Time:   x.clock(),
		Token0: p.token0,
		Token1: p.token1,
		Index:  x.factory.AllPairsLength() - 1,
	}})
	return p, nil
}

// GetReserves returns the reserves of the pair at address.
func (x *Exchange) GetReserves(address common.Address) (*uint256.Int, *uint256.Int, uint32, error) {
	p, err := x.pairAt(address)
	if err != nil {
		return nil, nil, 0, err
	}
	r0, r1, ts := p.Reserves()
	return r0, r1, ts, nil
}

func (x *Exchange) BalanceOf(token, holder common.Address) (*uint256.Int, error) {
	return x.custody.BalanceOf(token, holder)
}

// Transfer moves tokens between holders. Sending to a pair is how liquidity
// and swap inputs are deposited before Mint or Swap. A pair's own custody
// cannot be moved from outside.
func (x *Exchange) Transfer(token, from, to common.Address, amount *uint256.Int) error {
	if _, ok := x.factory.PairAt(from); ok {
		return ErrPairCustody
	}
	dst, _ := x.factory.PairAt(to)
	return x.atomic(from, []*Pair{dst}, func(e *env) error {
		return safeTransfer(e, token, from, to, amount)
	})
}

// Credit mints tokens to a holder out of thin air. It exists to seed
// sandboxes and tests.
func (x *Exchange) Credit(token, to common.Address, amount *uint256.Int) error {
	dst, _ := x.factory.PairAt(to)
	return x.atomic(common.Address{}, []*Pair{dst}, func(e *env) error {
		return e.custody.Credit(token, to, amount)
	})
}

// Mint issues liquidity shares to `to` for tokens already deposited into the pair.
func (x *Exchange) Mint(pair, to common.Address) (*uint256.Int, error) {
	p, err := x.pairAt(pair)
	if err != nil {
		return nil, err
	}
	var shares *uint256.Int
	err = x.atomic(common.Address{}, []*Pair{p}, func(e *env) error {
		shares, err = p.mint(e, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	return shares, nil
}

// Seed credits amount0/amount1 straight into the pair's custody and mints
// the resulting shares to `to`, all in one step. It mirrors an existing pool
// into the exchange.
func (x *Exchange) Seed(pair common.Address, amount0, amount1 *uint256.Int, to common.Address) (*uint256.Int, error) {
	p, err := x.pairAt(pair)
	if err != nil {
		return nil, err
	}
	var shares *uint256.Int
	err = x.atomic(common.Address{}, []*Pair{p}, func(e *env) error {
		if err := e.custody.Credit(p.token0, p.address, orZero(amount0)); err != nil {
			return err
		}
		if err := e.custody.Credit(p.token1, p.address, orZero(amount1)); err != nil {
			return err
		}
		shares, err = p.mint(e, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	return shares, nil
}

// Burn redeems the shares held by the pair itself and pays out to `to`.
func (x *Exchange) Burn(pair, to common.Address) (*uint256.Int, *uint256.Int, error) {
	p, err := x.pairAt(pair)
	if err != nil {
		return nil, nil, err
	}
	pairs := []*Pair{p}
	if dst, ok := x.factory.PairAt(to); ok {
		pairs = append(pairs, dst)
	}
	var amount0, amount1 *uint256.Int
	err = x.atomic(common.Address{}, pairs, func(e *env) error {
		amount0, amount1, err = p.burn(e, to)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Swap executes a low-level swap against one pair. The input must already
// be in the pair's custody.
func (x *Exchange) Swap(pair common.Address, amount0Out, amount1Out *uint256.Int, to common.Address) error {
	p, err := x.pairAt(pair)
	if err != nil {
		return err
	}
	pairs := []*Pair{p}
	if dst, ok := x.factory.PairAt(to); ok {
		pairs = append(pairs, dst)
	}
	return x.atomic(common.Address{}, pairs, func(e *env) error {
		return p.swap(e, amount0Out, amount1Out, to)
	})
}

// Skim sends the pair's excess custody to `to`.
func (x *Exchange) Skim(pair, to common.Address) error {
	p, err := x.pairAt(pair)
	if err != nil {
		return err
	}
	pairs := []*Pair{p}
	if dst, ok := x.factory.PairAt(to); ok {
		pairs = append(pairs, dst)
	}
	return x.atomic(common.Address{}, pairs, func(e *env) error {
		return p.skim(e, to)
	})
}

// Sync sets the pair's reserves to its custody balances.
func (x *Exchange) Sync(pair common.Address) error {
	p, err := x.pairAt(pair)
	if err != nil {
		return err
	}
	return x.atomic(common.Address{}, []*Pair{p}, p.sync)
}

// TransferShares moves liquidity shares of pair between owners.
func (x *Exchange) TransferShares(pair, from, to common.Address, amount *uint256.Int) error {
	p, err := x.pairAt(pair)
	if err != nil {
		return err
	}
	if from == p.address {
		return ErrPairCustody
	}
	return x.atomic(from, []*Pair{p}, func(*env) error {
		return p.transferShares(from, to, amount)
	})
}

// State is a consistent copy of every pair and all custody balances.
type State struct {
	Pairs    []PairSnapshot
	Balances []custody.Balance
}

// Export copies the exchange state while holding every pair lock.
func (x *Exchange) Export() State {
	locked := lockPairs(x.factory.Pairs())
	defer unlockPairs(locked)

	byAddress := make(map[common.Address]PairSnapshot, len(locked))
	for _, p := range locked {
		byAddress[p.address] = p.snapshot()
	}
	state := State{Balances: x.custody.Balances()}
	// keep creation order
	for _, p := range x.factory.Pairs() {
		if s, ok := byAddress[p.address]; ok {
			state.Pairs = append(state.Pairs, s)
		}
	}
	return state
}

// Import loads a previously exported state into an empty exchange.
func (x *Exchange) Import(state State) error {
	if err := x.factory.restore(state.Pairs); err != nil {
		return err
	}
	x.custody.Load(state.Balances)
	return nil
}
