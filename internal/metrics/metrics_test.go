package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/nulln0ne/uniswapv2-engine/pkg/amm"
	"github.com/nulln0ne/uniswapv2-engine/pkg/custody"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	alice  = common.HexToAddress("0x0000000000000000000000000000000000000a11")
)

func TestObserve(t *testing.T) {
	x := amm.NewExchange(amm.NewFactory(amm.DefaultFactoryAddress, amm.DefaultInitCodeHash), custody.NewVault())
	m := New()
	m.Observe(x)

	p, err := x.CreatePair(tokenA, tokenB)
	require.NoError(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(m.PairsTotal))

	require.NoError(t, x.Credit(tokenA, p.Address(), uint256.NewInt(1_000)))
	require.NoError(t, x.Credit(tokenB, p.Address(), uint256.NewInt(4_000)))
	_, err = x.Mint(p.Address(), alice)
	require.NoError(t, err)

	require.Equal(t, float64(1), testutil.ToFloat64(m.EventsTotal.WithLabelValues("Mint")))
	require.Equal(t, float64(2_000), testutil.ToFloat64(m.ShareSupply.WithLabelValues(p.Address().Hex())))
	require.Equal(t, float64(1_000), testutil.ToFloat64(m.Reserves.WithLabelValues(p.Address().Hex(), tokenA.Hex())))

	require.NoError(t, x.Credit(tokenA, p.Address(), uint256.NewInt(100)))
	out := uint256.NewInt(360)
	amount0Out, amount1Out := new(uint256.Int), out
	if p.Token0() != tokenA {
		amount0Out, amount1Out = out, new(uint256.Int)
	}
	require.NoError(t, x.Swap(p.Address(), amount0Out, amount1Out, alice))
	require.Equal(t, float64(100), testutil.ToFloat64(m.SwapVolume.WithLabelValues(p.Address().Hex(), tokenA.Hex())))
	require.Equal(t, float64(3_640), testutil.ToFloat64(m.Reserves.WithLabelValues(p.Address().Hex(), tokenB.Hex())))

	m.Failed("swap")
	require.Equal(t, float64(1), testutil.ToFloat64(m.OperationErrors.WithLabelValues("swap")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Failed("mint")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `amm_operation_errors_total{op="mint"} 1`))
}
