package amm

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestCreatePair(t *testing.T) {
	te := newTestEnv(t)

	p, err := te.x.CreatePair(tokenB, tokenA)
	require.NoError(t, err)
	require.Equal(t, tokenA, p.Token0())
	require.Equal(t, tokenB, p.Token1())

	want, err := te.x.Factory().PairFor(tokenA, tokenB)
	require.NoError(t, err)
	require.Equal(t, want, p.Address())

	r0, r1, _ := p.Reserves()
	require.True(t, r0.IsZero())
	require.True(t, r1.IsZero())
	require.True(t, p.TotalSupply().IsZero())
}

func TestCreatePairErrors(t *testing.T) {
	te := newTestEnv(t)

	_, err := te.x.CreatePair(tokenA, tokenA)
	require.ErrorIs(t, err, ErrIdenticalTokens)

	_, err = te.x.CreatePair(common.Address{}, tokenA)
	require.ErrorIs(t, err, ErrZeroToken)

	_, err = te.x.CreatePair(tokenA, tokenB)
	require.NoError(t, err)
	_, err = te.x.CreatePair(tokenB, tokenA)
	require.ErrorIs(t, err, ErrPairExists)
	require.Equal(t, 1, te.x.Factory().AllPairsLength())
}

func TestGetPairIsSymmetric(t *testing.T) {
	te := newTestEnv(t)
	p, err := te.x.CreatePair(tokenA, tokenC)
	require.NoError(t, err)

	ab, ok := te.x.Factory().GetPair(tokenA, tokenC)
	require.True(t, ok)
	ba, ok := te.x.Factory().GetPair(tokenC, tokenA)
	require.True(t, ok)
	require.Same(t, p, ab)
	require.Same(t, p, ba)

	_, ok = te.x.Factory().GetPair(tokenA, tokenB)
	require.False(t, ok)

	byAddr, ok := te.x.Factory().PairAt(p.Address())
	require.True(t, ok)
	require.Same(t, p, byAddr)
}

func TestAllPairs(t *testing.T) {
	te := newTestEnv(t)
	first, err := te.x.CreatePair(tokenA, tokenB)
	require.NoError(t, err)
	second, err := te.x.CreatePair(tokenB, tokenC)
	require.NoError(t, err)

	f := te.x.Factory()
	require.Equal(t, 2, f.AllPairsLength())
	got, err := f.AllPairs(0)
	require.NoError(t, err)
	require.Same(t, first, got)
	got, err = f.AllPairs(1)
	require.NoError(t, err)
	require.Same(t, second, got)

	_, err = f.AllPairs(2)
	require.ErrorIs(t, err, ErrPairNotFound)
	_, err = f.AllPairs(-1)
	require.ErrorIs(t, err, ErrPairNotFound)
}

func TestPairForMatchesMainnet(t *testing.T) {
	usdc := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

	f := NewFactory(DefaultFactoryAddress, DefaultInitCodeHash)
	got, err := f.PairFor(weth, usdc)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"), got)
}

func TestSortTokens(t *testing.T) {
	t0, t1, err := SortTokens(tokenC, tokenA)
	require.NoError(t, err)
	require.Equal(t, tokenA, t0)
	require.Equal(t, tokenC, t1)

	_, _, err = SortTokens(tokenA, tokenA)
	require.ErrorIs(t, err, ErrIdenticalTokens)
}
