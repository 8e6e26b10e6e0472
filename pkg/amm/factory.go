package amm

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Mainnet Uniswap V2 factory and pair init code hash. With these defaults
// PairFor derives the same addresses as the deployed contracts.
var (
	DefaultFactoryAddress = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	DefaultInitCodeHash   = common.HexToHash("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f")
)

type pairKey struct {
	a, b common.Address
}

// Factory is the pair registry. It is the only creator of Pair values and
// keeps at most one pair per unordered token pair.
type Factory struct {
	address      common.Address
	initCodeHash common.Hash

	mu        sync.RWMutex
	pairs     map[pairKey]*Pair
	byAddress map[common.Address]*Pair
	all       []*Pair
}

func NewFactory(address common.Address, initCodeHash common.Hash) *Factory {
	return &Factory{
		address:      address,
		initCodeHash: initCodeHash,
		pairs:        make(map[pairKey]*Pair),
		byAddress:    make(map[common.Address]*Pair),
	}
}

func (f *Factory) Address() common.Address { return f.address }

// SortTokens orders two tokens by their byte representation.
func SortTokens(tokenA, tokenB common.Address) (common.Address, common.Address, error) {
	if tokenA == tokenB {
		return common.Address{}, common.Address{}, ErrIdenticalTokens
	}
	token0, token1 := tokenA, tokenB
	if bytes.Compare(tokenA[:], tokenB[:]) > 0 {
		token0, token1 = tokenB, tokenA
	}
	if token0 == (common.Address{}) {
		return common.Address{}, common.Address{}, ErrZeroToken
	}
	return token0, token1, nil
}

// PairFor derives the pair address without a lookup:
// CREATE2(factory, keccak256(token0 ++ token1), initCodeHash).
func (f *Factory) PairFor(tokenA, tokenB common.Address) (common.Address, error) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	salt := crypto.Keccak256Hash(token0.Bytes(), token1.Bytes())
	return crypto.CreateAddress2(f.address, salt, f.initCodeHash.Bytes()), nil
}

// CreatePair registers a new, empty pair for tokenA/tokenB.
func (f *Factory) CreatePair(tokenA, tokenB common.Address) (*Pair, error) {
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	address, err := f.PairFor(token0, token1)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pairs[pairKey{token0, token1}]; ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrPairExists, token0.Hex(), token1.Hex())
	}
	p := newPair(address, token0, token1)
	f.register(p)
	return p, nil
}

func (f *Factory) register(p *Pair) {
	f.pairs[pairKey{p.token0, p.token1}] = p
	f.pairs[pairKey{p.token1, p.token0}] = p
	f.byAddress[p.address] = p
	f.all = append(f.all, p)
}

// GetPair looks up the pair for two tokens in either order.
func (f *Factory) GetPair(tokenA, tokenB common.Address) (*Pair, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.pairs[pairKey{tokenA, tokenB}]
	return p, ok
}

// PairAt looks up a pair by its own address.
func (f *Factory) PairAt(address common.Address) (*Pair, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.byAddress[address]
	return p, ok
}

func (f *Factory) AllPairsLength() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.all)
}

func (f *Factory) AllPairs(index int) (*Pair, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if index < 0 || index >= len(f.all) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrPairNotFound, index, len(f.all))
	}
	return f.all[index], nil
}

// Pairs returns every pair in creation order.
func (f *Factory) Pairs() []*Pair {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Pair, len(f.all))
	copy(out, f.all)
	return out
}

// restore rebuilds the registry from snapshots. The factory must be empty and
// every snapshot must be consistent with this factory's address derivation.
func (f *Factory) restore(snapshots []PairSnapshot) error {
	pairs := make([]*Pair, 0, len(snapshots))
	for i, s := range snapshots {
		token0, token1, err := SortTokens(s.Token0, s.Token1)
		if err != nil {
			return fmt.Errorf("pair %d: %w", i, err)
		}
		if token0 != s.Token0 {
			return fmt.Errorf("%w: pair %s tokens out of order", ErrSnapshotMismatch, s.Address.Hex())
		}
		address, err := f.PairFor(token0, token1)
		if err != nil {
			return err
		}
		if address != s.Address {
			return fmt.Errorf("%w: pair %s derives to %s", ErrSnapshotMismatch, s.Address.Hex(), address.Hex())
		}
		if s.Reserve0 == nil || s.Reserve1 == nil {
			return fmt.Errorf("%w: pair %s has no reserves", ErrSnapshotMismatch, s.Address.Hex())
		}
		sum := new(uint256.Int)
		for _, amount := range s.Shares {
			sum.Add(sum, amount)
		}
		if s.TotalSupply == nil || !sum.Eq(s.TotalSupply) {
			return fmt.Errorf("%w: pair %s shares do not add up to total supply", ErrSnapshotMismatch, s.Address.Hex())
		}

		p := newPair(s.Address, token0, token1)
		p.state = pairState{
			reserve0:    s.Reserve0.Clone(),
			reserve1:    s.Reserve1.Clone(),
			lastUpdate:  s.LastUpdate,
			totalSupply: s.TotalSupply.Clone(),
			shares:      make(map[common.Address]*uint256.Int, len(s.Shares)),
		}
		for owner, amount := range s.Shares {
			if !amount.IsZero() {
				p.state.shares[owner] = amount.Clone()
			}
		}
		pairs = append(pairs, p)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.all) != 0 {
		return fmt.Errorf("%w: factory already has %d pairs", ErrSnapshotMismatch, len(f.all))
	}
	seen := make(map[common.Address]bool, len(pairs))
	for _, p := range pairs {
		if seen[p.address] {
			return fmt.Errorf("%w: duplicate pair %s", ErrPairExists, p.address.Hex())
		}
		seen[p.address] = true
	}
	for _, p := range pairs {
		f.register(p)
	}
	return nil
}
