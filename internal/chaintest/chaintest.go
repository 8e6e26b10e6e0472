// Package chaintest serves an in-process Ethereum node that answers the
// calls used to read Uniswap V2 pair storage.
package chaintest

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
)

// UniswapV2Pair storage slots.
const (
	SlotToken0   = 6
	SlotToken1   = 7
	SlotReserves = 8
)

// Node holds block height and contract storage. Unknown slots read as zero.
type Node struct {
	mu      sync.Mutex
	block   uint64
	storage map[common.Address]map[common.Hash]common.Hash
}

func New(block uint64) *Node {
	return &Node{block: block, storage: make(map[common.Address]map[common.Hash]common.Hash)}
}

// SetPair lays out a pair contract's tokens and packed reserves.
func (n *Node) SetPair(pair, token0, token1 common.Address, reserve0, reserve1 uint64, timestamp uint32) {
	packed := uint256.NewInt(uint64(timestamp))
	packed.Lsh(packed, 112)
	packed.Or(packed, uint256.NewInt(reserve1))
	packed.Lsh(packed, 112)
	packed.Or(packed, uint256.NewInt(reserve0))

	n.SetSlot(pair, SlotToken0, common.BytesToHash(token0.Bytes()))
	n.SetSlot(pair, SlotToken1, common.BytesToHash(token1.Bytes()))
	n.SetSlot(pair, SlotReserves, packed.Bytes32())
}

func (n *Node) SetSlot(contract common.Address, slot uint64, value common.Hash) {
	n.mu.Lock()
	defer n.mu.Unlock()
	m, ok := n.storage[contract]
	if !ok {
		m = make(map[common.Hash]common.Hash)
		n.storage[contract] = m
	}
	m[uint256.NewInt(slot).Bytes32()] = value
}

// Client dials the node in-process. The connection closes with the test.
func (n *Node) Client(t testing.TB) *ethclient.Client {
	t.Helper()
	srv := gethrpc.NewServer()
	if err := srv.RegisterName("eth", &ethAPI{node: n}); err != nil {
		t.Fatalf("register rpc service: %v", err)
	}
	c := gethrpc.DialInProc(srv)
	t.Cleanup(func() {
		c.Close()
		srv.Stop()
	})
	return ethclient.NewClient(c)
}

// ethAPI is registered under the "eth" namespace, so methods map to eth_*.
type ethAPI struct {
	node *Node
}

func (a *ethAPI) BlockNumber(context.Context) (hexutil.Uint64, error) {
	a.node.mu.Lock()
	defer a.node.mu.Unlock()
	return hexutil.Uint64(a.node.block), nil
}

func (a *ethAPI) GetStorageAt(_ context.Context, contract common.Address, position common.Hash, _ gethrpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	a.node.mu.Lock()
	defer a.node.mu.Unlock()
	v := a.node.storage[contract][position]
	return hexutil.Bytes(v.Bytes()), nil
}
