package scenario

import (
	"errors"

	"github.com/nulln0ne/uniswapv2-engine/pkg/amm"
)

var (
	ErrInvalidScenario   = errors.New("invalid scenario")
	ErrExpectationFailed = errors.New("expectation failed")
	ErrUnexpectedSuccess = errors.New("step succeeded but an error was expected")
)

// errorKinds names the exchange errors a scenario can expect.
var errorKinds = map[string]error{
	"identical_tokens":       amm.ErrIdenticalTokens,
	"zero_token":             amm.ErrZeroToken,
	"pair_exists":            amm.ErrPairExists,
	"pair_not_found":         amm.ErrPairNotFound,
	"insufficient_liquidity": amm.ErrInsufficientLiquidity,
	"insufficient_input":     amm.ErrInsufficientInput,
	"insufficient_output":    amm.ErrInsufficientOutput,
	"slippage_exceeded":      amm.ErrSlippageExceeded,
	"path_too_short":         amm.ErrPathTooShort,
	"transfer_failed":        amm.ErrTransferFailed,
	"arithmetic_overflow":    amm.ErrArithmeticOverflow,
	"invalid_recipient":      amm.ErrInvalidRecipient,
	"pair_custody":           amm.ErrPairCustody,
	"insufficient_shares":    amm.ErrInsufficientShares,
}
