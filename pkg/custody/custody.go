// Package custody holds token balances on behalf of accounts and pairs. Every
// mutation happens inside a Txn overlay that is either committed atomically
// or discarded, so callers can abort a multi-step operation without leaving
// partial transfers behind.
package custody

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Provider is the token capability the exchange consumes. Transfer returns
// the raw ABI payload a token would return; callers decide how to interpret it.
type Provider interface {
	BalanceOf(token, holder common.Address) (*uint256.Int, error)
	Transfer(token, from, to common.Address, amount *uint256.Int) ([]byte, error)
}

// Txn is a Provider whose effects become visible only after Commit.
type Txn interface {
	Provider
	// Credit mints amount of token to holder.
	Credit(token, holder common.Address, amount *uint256.Int) error
	Commit() error
	Discard()
}

// Transactor opens transactions against committed balances.
type Transactor interface {
	Begin() Txn
}

// Balance is one committed (token, holder) entry.
type Balance struct {
	Token  common.Address
	Holder common.Address
	Amount *uint256.Int
}
