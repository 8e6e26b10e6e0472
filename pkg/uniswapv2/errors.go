package uniswapv2

import (
	"errors"
	"fmt"
)

var (
	ErrOverflow                 = errors.New("arithmetic overflow")
	ErrDivisionByZero           = errors.New("division by zero")
	ErrInsufficientInputAmount  = errors.New("insufficient input amount")
	ErrInsufficientOutputAmount = errors.New("insufficient output amount")
	ErrInsufficientLiquidity    = errors.New("insufficient liquidity")
)

// ErrK is returned when the fee-adjusted product of balances falls below the
// product of the previous reserves. It is a flavour of insufficient input.
var ErrK = fmt.Errorf("%w: constant product decreased", ErrInsufficientInputAmount)
