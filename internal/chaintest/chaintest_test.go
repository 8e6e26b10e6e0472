package chaintest

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestSetPair(t *testing.T) {
	pair := common.HexToAddress("0x0000000000000000000000000000000000000abc")
	token0 := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	token1 := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	n := New(7)
	n.SetPair(pair, token0, token1, 3, 5, 9)
	ec := n.Client(t)
	ctx := context.Background()

	block, err := ec.BlockNumber(ctx)
	if err != nil || block != 7 {
		t.Fatalf("block = %d, %v", block, err)
	}

	raw, err := ec.StorageAt(ctx, pair, common.BigToHash(big.NewInt(SlotToken1)), nil)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	if common.BytesToAddress(raw) != token1 {
		t.Fatalf("token1 = %x", raw)
	}

	raw, err = ec.StorageAt(ctx, pair, common.BigToHash(big.NewInt(SlotReserves)), nil)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	v := new(big.Int).SetBytes(raw)
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 112), big.NewInt(1))
	if r0 := new(big.Int).And(v, mask); r0.Int64() != 3 {
		t.Fatalf("reserve0 = %s", r0)
	}
	if r1 := new(big.Int).And(new(big.Int).Rsh(v, 112), mask); r1.Int64() != 5 {
		t.Fatalf("reserve1 = %s", r1)
	}
	if ts := new(big.Int).Rsh(v, 224); ts.Int64() != 9 {
		t.Fatalf("timestamp = %s", ts)
	}

	raw, err = ec.StorageAt(ctx, common.HexToAddress("0x01"), common.Hash{}, nil)
	if err != nil || len(raw) != 32 || new(big.Int).SetBytes(raw).Sign() != 0 {
		t.Fatalf("unknown slot = %x, %v", raw, err)
	}
}
