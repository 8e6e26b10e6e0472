package amm

import (
	"errors"
	"fmt"

	"github.com/nulln0ne/uniswapv2-engine/pkg/uniswapv2"
)

// Registry and lookup errors.
var (
	ErrIdenticalTokens = errors.New("identical tokens")
	ErrZeroToken       = errors.New("zero token address")
	ErrPairExists      = errors.New("pair exists")
	ErrPairNotFound    = errors.New("pair not found")
)

// Pricing and accounting errors. The arithmetic kinds are shared with the
// uniswapv2 package so errors.Is works across both layers.
var (
	ErrInsufficientLiquidity = uniswapv2.ErrInsufficientLiquidity
	ErrInsufficientInput     = uniswapv2.ErrInsufficientInputAmount
	ErrInsufficientOutput    = uniswapv2.ErrInsufficientOutputAmount
	ErrArithmeticOverflow    = uniswapv2.ErrOverflow
	ErrSlippageExceeded      = errors.New("slippage exceeded")
	ErrPathTooShort          = errors.New("path too short")
	ErrTransferFailed        = errors.New("transfer failed")
	ErrInvalidRecipient      = errors.New("invalid recipient")
	ErrPairCustody           = errors.New("pair custody can only be moved by the pair")
	ErrSnapshotMismatch      = errors.New("snapshot does not match factory")
)

// ErrInsufficientShares is returned when an owner moves more shares than it holds.
var ErrInsufficientShares = fmt.Errorf("%w: share balance too low", ErrInsufficientLiquidity)
