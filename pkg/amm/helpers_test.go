package amm

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/nulln0ne/uniswapv2-engine/pkg/custody"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tokenC = common.HexToAddress("0x00000000000000000000000000000000000000cc")

	alice = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x0000000000000000000000000000000000000ca1")
)

var testEpoch = time.Unix(1_700_000_000, 0)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

type testEnv struct {
	x      *Exchange
	vault  *custody.Vault
	router *Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	vault := custody.NewVault()
	return newTestEnvWith(t, vault)
}

func newTestEnvWith(t *testing.T, c Custodian) *testEnv {
	t.Helper()
	x := NewExchange(NewFactory(DefaultFactoryAddress, DefaultInitCodeHash), c, WithClock(func() time.Time { return testEpoch }))
	env := &testEnv{x: x, router: NewRouter(x)}
	if v, ok := c.(*custody.Vault); ok {
		env.vault = v
	}
	return env
}

// seed creates the pair if needed and deposits amountA/amountB minted to lp.
func (te *testEnv) seed(t *testing.T, a, b common.Address, amountA, amountB uint64, lp common.Address) *Pair {
	t.Helper()
	p, ok := te.x.Factory().GetPair(a, b)
	if !ok {
		var err error
		p, err = te.x.CreatePair(a, b)
		require.NoError(t, err)
	}
	require.NoError(t, te.x.Credit(a, p.Address(), u(amountA)))
	require.NoError(t, te.x.Credit(b, p.Address(), u(amountB)))
	_, err := te.x.Mint(p.Address(), lp)
	require.NoError(t, err)
	return p
}

func (te *testEnv) balance(t *testing.T, token, holder common.Address) uint64 {
	t.Helper()
	b, err := te.x.BalanceOf(token, holder)
	require.NoError(t, err)
	require.True(t, b.IsUint64())
	return b.Uint64()
}

// reservesFor returns the pair's reserves as (reserve of token, reserve of the other).
func reservesFor(p *Pair, token common.Address) (uint64, uint64) {
	r0, r1, _ := p.Reserves()
	if token == p.Token0() {
		return r0.Uint64(), r1.Uint64()
	}
	return r1.Uint64(), r0.Uint64()
}

// sumShares adds up every share balance of the pair.
func sumShares(p *Pair) *uint256.Int {
	sum := new(uint256.Int)
	for _, s := range p.Snapshot().Shares {
		sum.Add(sum, s)
	}
	return sum
}

// faultyCustodian answers transfers of one token with a fixed payload.
type faultyCustodian struct {
	*custody.Vault
	token   common.Address
	payload []byte
}

func (f *faultyCustodian) Begin() custody.Txn {
	return &faultyTxn{Txn: f.Vault.Begin(), token: f.token, payload: f.payload}
}

type faultyTxn struct {
	custody.Txn
	token   common.Address
	payload []byte
}

func (t *faultyTxn) Transfer(token, from, to common.Address, amount *uint256.Int) ([]byte, error) {
	if token == t.token {
		return t.payload, nil
	}
	return t.Txn.Transfer(token, from, to, amount)
}
