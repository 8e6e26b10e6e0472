package custody

import "errors"

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
	ErrTxnClosed           = errors.New("transaction already closed")
	ErrBadPayload          = errors.New("transfer payload is not a boolean")
)
