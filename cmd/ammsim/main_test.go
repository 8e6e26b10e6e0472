package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nulln0ne/uniswapv2-engine/pkg/uniswapv2"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQuoteExactIn(t *testing.T) {
	out, err := execute(t, "quote", "--amount", "100", "--reserve-in", "1000", "--reserve-out", "4000")
	require.NoError(t, err)
	require.Contains(t, out, "362")
}

func TestQuoteExactOut(t *testing.T) {
	out, err := execute(t, "quote", "--exact-out", "--amount", "329", "--reserve-in", "1000", "--reserve-out", "4000")
	require.NoError(t, err)
	require.Contains(t, out, "90")
}

func TestQuoteErrors(t *testing.T) {
	_, err := execute(t, "quote", "--amount", "ten", "--reserve-in", "1000", "--reserve-out", "4000")
	require.ErrorContains(t, err, "--amount")

	_, err = execute(t, "quote", "--amount", "100", "--reserve-in", "0", "--reserve-out", "4000")
	require.ErrorIs(t, err, uniswapv2.ErrInsufficientLiquidity)

	_, err = execute(t, "quote", "--amount", "100")
	require.Error(t, err)
}

func TestRunScenario(t *testing.T) {
	out, err := execute(t, "run", "../../internal/scenario/testdata/basic.yaml")
	require.NoError(t, err)
	require.Contains(t, out, "A/B")
	require.Contains(t, out, "1819")

	_, err = execute(t, "run", "does-not-exist.yaml")
	require.Error(t, err)
}
