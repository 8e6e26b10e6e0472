package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/uniswapv2-engine/pkg/amm"
)

// Persister stores exchange snapshots.
type Persister interface {
	Save(ctx context.Context, state amm.State) error
}

// FailureRecorder counts failed operations.
type FailureRecorder interface {
	Failed(op string)
}

// PoolReader reads an on-chain pair.
type PoolReader interface {
	ReadPool(ctx context.Context, pool common.Address) (*PoolState, error)
}

// ExchangeService runs exchange operations, logs them and persists the
// resulting state after every successful mutation.
type ExchangeService struct {
	BaseService
	exchange *amm.Exchange
	router   *amm.Router

	store   Persister
	metrics FailureRecorder
	chain   PoolReader

	// serializes export+save so snapshots land in commit order
	persistMu sync.Mutex
}

type Option func(*ExchangeService)

func WithPersister(p Persister) Option {
	return func(s *ExchangeService) { s.store = p }
}

func WithFailureRecorder(r FailureRecorder) Option {
	return func(s *ExchangeService) { s.metrics = r }
}

func WithPoolReader(r PoolReader) Option {
	return func(s *ExchangeService) { s.chain = r }
}

func NewExchangeService(logger *slog.Logger, x *amm.Exchange, opts ...Option) *ExchangeService {
	s := &ExchangeService{
		BaseService: newBaseService(logger),
		exchange:    x,
		router:      amm.NewRouter(x),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ExchangeService) Exchange() *amm.Exchange { return s.exchange }

// mutate runs fn and persists the new state when it succeeds.
func (s *ExchangeService) mutate(ctx context.Context, op string, fn func() error) error {
	if err := fn(); err != nil {
		s.logger.Debug("operation failed", "op", op, "err", err)
		if s.metrics != nil {
			s.metrics.Failed(op)
		}
		return err
	}
	if s.store == nil {
		return nil
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if err := s.store.Save(ctx, s.exchange.Export()); err != nil {
		s.logger.Error("persist failed", "op", op, "err", err)
		if s.metrics != nil {
			s.metrics.Failed("persist")
		}
		return fmt.Errorf("%s: %w: %w", op, ErrNotPersisted, err)
	}
	return nil
}

// PairInfo is the read view of one pair.
type PairInfo struct {
	Address     common.Address
	Token0      common.Address
	Token1      common.Address
	Reserve0    *uint256.Int
	Reserve1    *uint256.Int
	LastUpdate  uint32
	TotalSupply *uint256.Int
}

func pairInfo(p *amm.Pair) PairInfo {
	r0, r1, ts := p.Reserves()
	return PairInfo{
		Address:     p.Address(),
		Token0:      p.Token0(),
		Token1:      p.Token1(),
		Reserve0:    r0,
		Reserve1:    r1,
		LastUpdate:  ts,
		TotalSupply: p.TotalSupply(),
	}
}

func (s *ExchangeService) CreatePair(ctx context.Context, tokenA, tokenB common.Address) (PairInfo, error) {
	var p *amm.Pair
	err := s.mutate(ctx, "create_pair", func() error {
		var err error
		p, err = s.exchange.CreatePair(tokenA, tokenB)
		return err
	})
	if err != nil {
		return PairInfo{}, err
	}
	s.logger.Info("pair created", "pair", p.Address().Hex(), "token0", p.Token0().Hex(), "token1", p.Token1().Hex())
	return pairInfo(p), nil
}

func (s *ExchangeService) Pairs() []PairInfo {
	pairs := s.exchange.Factory().Pairs()
	out := make([]PairInfo, len(pairs))
	for i, p := range pairs {
		out[i] = pairInfo(p)
	}
	return out
}

// Lookup finds the pair of two tokens in either order.
func (s *ExchangeService) Lookup(tokenA, tokenB common.Address) (PairInfo, error) {
	p, ok := s.exchange.Factory().GetPair(tokenA, tokenB)
	if !ok {
		return PairInfo{}, fmt.Errorf("%w: %s/%s", amm.ErrPairNotFound, tokenA.Hex(), tokenB.Hex())
	}
	return pairInfo(p), nil
}

func (s *ExchangeService) Pair(address common.Address) (PairInfo, error) {
	p, ok := s.exchange.Factory().PairAt(address)
	if !ok {
		return PairInfo{}, fmt.Errorf("%w: %s", amm.ErrPairNotFound, address.Hex())
	}
	return pairInfo(p), nil
}

func (s *ExchangeService) Mint(ctx context.Context, pair, to common.Address) (*uint256.Int, error) {
	var shares *uint256.Int
	err := s.mutate(ctx, "mint", func() error {
		var err error
		shares, err = s.exchange.Mint(pair, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("shares minted", "pair", pair.Hex(), "to", to.Hex(), "shares", shares.Dec())
	return shares, nil
}

func (s *ExchangeService) Burn(ctx context.Context, pair, to common.Address) (*uint256.Int, *uint256.Int, error) {
	var amount0, amount1 *uint256.Int
	err := s.mutate(ctx, "burn", func() error {
		var err error
		amount0, amount1, err = s.exchange.Burn(pair, to)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("shares burned", "pair", pair.Hex(), "to", to.Hex(), "amount0", amount0.Dec(), "amount1", amount1.Dec())
	return amount0, amount1, nil
}

func (s *ExchangeService) Swap(ctx context.Context, pair common.Address, amount0Out, amount1Out *uint256.Int, to common.Address) error {
	err := s.mutate(ctx, "swap", func() error {
		return s.exchange.Swap(pair, amount0Out, amount1Out, to)
	})
	if err != nil {
		return err
	}
	s.logger.Info("pair swapped", "pair", pair.Hex(), "to", to.Hex(), "amount0_out", amount0Out.Dec(), "amount1_out", amount1Out.Dec())
	return nil
}

func (s *ExchangeService) Skim(ctx context.Context, pair, to common.Address) error {
	return s.mutate(ctx, "skim", func() error {
		return s.exchange.Skim(pair, to)
	})
}

func (s *ExchangeService) Sync(ctx context.Context, pair common.Address) error {
	return s.mutate(ctx, "sync", func() error {
		return s.exchange.Sync(pair)
	})
}

func (s *ExchangeService) Transfer(ctx context.Context, token, from, to common.Address, amount *uint256.Int) error {
	return s.mutate(ctx, "transfer", func() error {
		return s.exchange.Transfer(token, from, to, amount)
	})
}

// Faucet credits new tokens to a holder.
func (s *ExchangeService) Faucet(ctx context.Context, token, to common.Address, amount *uint256.Int) error {
	err := s.mutate(ctx, "faucet", func() error {
		return s.exchange.Credit(token, to, amount)
	})
	if err != nil {
		return err
	}
	s.logger.Info("faucet credited", "token", token.Hex(), "to", to.Hex(), "amount", amount.Dec())
	return nil
}

func (s *ExchangeService) TransferShares(ctx context.Context, pair, from, to common.Address, amount *uint256.Int) error {
	return s.mutate(ctx, "transfer_shares", func() error {
		return s.exchange.TransferShares(pair, from, to, amount)
	})
}

func (s *ExchangeService) Balance(token, holder common.Address) (*uint256.Int, error) {
	return s.exchange.BalanceOf(token, holder)
}

func (s *ExchangeService) Shares(pair, owner common.Address) (*uint256.Int, error) {
	p, ok := s.exchange.Factory().PairAt(pair)
	if !ok {
		return nil, fmt.Errorf("%w: %s", amm.ErrPairNotFound, pair.Hex())
	}
	return p.SharesOf(owner), nil
}

func (s *ExchangeService) AddLiquidity(ctx context.Context, params amm.AddLiquidityParams) (*amm.LiquidityResult, error) {
	var res *amm.LiquidityResult
	err := s.mutate(ctx, "add_liquidity", func() error {
		var err error
		res, err = s.router.AddLiquidity(params)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("liquidity added", "pair", res.Pair.Hex(), "amount_a", res.AmountA.Dec(), "amount_b", res.AmountB.Dec(), "shares", res.Shares.Dec())
	return res, nil
}

func (s *ExchangeService) RemoveLiquidity(ctx context.Context, params amm.RemoveLiquidityParams) (*amm.LiquidityResult, error) {
	var res *amm.LiquidityResult
	err := s.mutate(ctx, "remove_liquidity", func() error {
		var err error
		res, err = s.router.RemoveLiquidity(params)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("liquidity removed", "pair", res.Pair.Hex(), "amount_a", res.AmountA.Dec(), "amount_b", res.AmountB.Dec(), "shares", res.Shares.Dec())
	return res, nil
}

func (s *ExchangeService) SwapExactIn(ctx context.Context, amountIn, amountOutMin *uint256.Int, path []common.Address, from, to common.Address) ([]*uint256.Int, error) {
	var amounts []*uint256.Int
	err := s.mutate(ctx, "swap_exact_in", func() error {
		var err error
		amounts, err = s.router.SwapExactTokensForTokens(amountIn, amountOutMin, path, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("swap executed", "hops", len(path)-1, "in", amounts[0].Dec(), "out", amounts[len(amounts)-1].Dec())
	return amounts, nil
}

func (s *ExchangeService) SwapExactOut(ctx context.Context, amountOut, amountInMax *uint256.Int, path []common.Address, from, to common.Address) ([]*uint256.Int, error) {
	var amounts []*uint256.Int
	err := s.mutate(ctx, "swap_exact_out", func() error {
		var err error
		amounts, err = s.router.SwapTokensForExactTokens(amountOut, amountInMax, path, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("swap executed", "hops", len(path)-1, "in", amounts[0].Dec(), "out", amounts[len(amounts)-1].Dec())
	return amounts, nil
}

func (s *ExchangeService) Quote(amountIn *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	return s.router.GetAmountsOut(amountIn, path)
}

func (s *ExchangeService) QuoteIn(amountOut *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	return s.router.GetAmountsIn(amountOut, path)
}

// ImportResult reports a pair mirrored from chain.
type ImportResult struct {
	Pair   PairInfo
	Block  uint64
	Shares *uint256.Int
	// Matches is true when the local pair address equals the on-chain pool,
	// which holds when the exchange uses the pool's factory and init code.
	Matches bool
}

// ImportPair mirrors an on-chain pool: it creates the local pair (if needed)
// and seeds it with the pool's current reserves, minting the shares to `to`.
func (s *ExchangeService) ImportPair(ctx context.Context, pool, to common.Address) (*ImportResult, error) {
	if s.chain == nil {
		return nil, ErrChainDisabled
	}
	state, err := s.chain.ReadPool(ctx, pool)
	if err != nil {
		return nil, err
	}
	if state.Reserve0.IsZero() || state.Reserve1.IsZero() {
		return nil, ErrEmptyReserves
	}

	var (
		p      *amm.Pair
		shares *uint256.Int
	)
	err = s.mutate(ctx, "import_pair", func() error {
		var ok bool
		if p, ok = s.exchange.Factory().GetPair(state.Token0, state.Token1); !ok {
			var err error
			if p, err = s.exchange.CreatePair(state.Token0, state.Token1); err != nil {
				return err
			}
		}
		amount0, amount1 := state.Reserve0, state.Reserve1
		if p.Token0() != state.Token0 {
			amount0, amount1 = amount1, amount0
		}
		var err error
		shares, err = s.exchange.Seed(p.Address(), amount0, amount1, to)
		return err
	})
	if err != nil {
		return nil, err
	}

	res := &ImportResult{
		Pair:    pairInfo(p),
		Block:   state.Block,
		Shares:  shares,
		Matches: p.Address() == pool,
	}
	s.logger.Info("pair imported", "pool", pool.Hex(), "pair", p.Address().Hex(), "block", state.Block, "matches", res.Matches)
	return res, nil
}
