package service

import (
	"context"
	"fmt"
	"math/big"

	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/uniswapv2-engine/pkg/uniswapv2"
)

// ChainService reads Uniswap V2 pair state directly from contract storage.
type ChainService struct {
	BaseService
	ethereumClient *ethclient.Client
}

// NewChainService constructs a ChainService using the provided logger and
// Ethereum client.
func NewChainService(logger *slog.Logger, ec *ethclient.Client) *ChainService {
	return &ChainService{
		BaseService:    newBaseService(logger),
		ethereumClient: ec,
	}
}

// Storage layout of UniswapV2Pair:
//
//	slot 6: token0
//	slot 7: token1
//	slot 8: reserve0 (uint112) | reserve1 (uint112) | blockTimestampLast (uint32)
const (
	slotToken0   = 6
	slotToken1   = 7
	slotReserves = 8
)

// PoolState is a pair's token and reserve layout at one block.
type PoolState struct {
	Pool      common.Address
	Block     uint64
	Token0    common.Address
	Token1    common.Address
	Reserve0  *uint256.Int
	Reserve1  *uint256.Int
	Timestamp uint32
}

// ReadPool loads tokens and reserves of pool at the latest block.
func (s *ChainService) ReadPool(ctx context.Context, pool common.Address) (*PoolState, error) {
	bn, err := s.ethereumClient.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}
	blockNum := new(big.Int).SetUint64(bn)

	token0, token1, err := s.loadTokens(ctx, pool, blockNum)
	if err != nil {
		return nil, err
	}

	br, err := s.readSlot(ctx, pool, blockNum, slotReserves)
	if err != nil {
		return nil, err
	}
	reserve0, reserve1, ts := parseReserves(br)

	s.logger.Debug("pool read", "pool", pool.Hex(), "block", bn, "reserve0", reserve0.Dec(), "reserve1", reserve1.Dec())
	return &PoolState{
		Pool:      pool,
		Block:     bn,
		Token0:    token0,
		Token1:    token1,
		Reserve0:  reserve0,
		Reserve1:  reserve1,
		Timestamp: ts,
	}, nil
}

// Estimate computes the expected output amount for swapping amountIn of src to
// dst in the provided pool at the latest block.
func (s *ChainService) Estimate(ctx context.Context, pool, src, dst common.Address, amountIn *uint256.Int) (*uint256.Int, error) {
	s.logger.Debug("estimating swap", "pool", pool.Hex(), "src", src.Hex(), "dst", dst.Hex(), "in", amountIn.Dec())

	if src == dst {
		return nil, ErrSameToken
	}

	state, err := s.ReadPool(ctx, pool)
	if err != nil {
		return nil, err
	}

	var reserveIn, reserveOut *uint256.Int
	switch {
	case src == state.Token0 && dst == state.Token1:
		reserveIn, reserveOut = state.Reserve0, state.Reserve1
	case src == state.Token1 && dst == state.Token0:
		reserveIn, reserveOut = state.Reserve1, state.Reserve0
	default:
		return nil, ErrPairMismatch
	}

	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, ErrEmptyReserves
	}

	out, err := uniswapv2.GetAmountOut(amountIn, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("amount out computed", "out", out.Dec())
	return out, nil
}

func (s *ChainService) readSlot(ctx context.Context, pool common.Address, blockNum *big.Int, slot uint64) ([]byte, error) {
	key := common.BigToHash(new(big.Int).SetUint64(slot))
	b, err := s.ethereumClient.StorageAt(ctx, pool, key, blockNum)
	if err != nil {
		return nil, fmt.Errorf("storageAt slot %d (pool %s, block %s): %w",
			slot, pool.Hex(), blockNum.String(), err)
	}
	return b, nil
}

func (s *ChainService) loadTokens(ctx context.Context, pool common.Address, blockNum *big.Int) (common.Address, common.Address, error) {
	b0, err := s.readSlot(ctx, pool, blockNum, slotToken0)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	b1, err := s.readSlot(ctx, pool, blockNum, slotToken1)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return common.BytesToAddress(b0), common.BytesToAddress(b1), nil
}

// parseReserves unpacks the packed reserve word. Counting from the least
// significant bit:
//
//	[ 112 bits reserve0 | 112 bits reserve1 | 32 bits timestamp ]
func parseReserves(b []byte) (reserve0, reserve1 *uint256.Int, timestamp uint32) {
	v := new(uint256.Int).SetBytes(b)
	mask112 := new(uint256.Int).Set(uniswapv2.MaxReserve)

	reserve0 = new(uint256.Int).And(v, mask112)
	tmp := new(uint256.Int).Rsh(v, 112)
	reserve1 = new(uint256.Int).And(tmp, mask112)
	timestamp = uint32(new(uint256.Int).Rsh(v, 224).Uint64())
	return
}
