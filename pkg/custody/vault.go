package custody

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type balanceKey struct {
	token  common.Address
	holder common.Address
}

// Vault is an in-memory multi-token ledger. Committed balances change only
// through Txn.Commit or Load.
type Vault struct {
	mu       sync.RWMutex
	balances map[balanceKey]*uint256.Int
}

func NewVault() *Vault {
	return &Vault{balances: make(map[balanceKey]*uint256.Int)}
}

// BalanceOf returns the committed balance of holder in token.
func (v *Vault) BalanceOf(token, holder common.Address) (*uint256.Int, error) {
	return v.committed(balanceKey{token, holder}), nil
}

func (v *Vault) committed(k balanceKey) *uint256.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if b, ok := v.balances[k]; ok {
		return b.Clone()
	}
	return new(uint256.Int)
}

func (v *Vault) Begin() Txn {
	return &txn{
		vault:   v,
		credits: make(map[balanceKey]*uint256.Int),
		debits:  make(map[balanceKey]*uint256.Int),
	}
}

// Balances exports every non-zero committed balance ordered by token, holder.
func (v *Vault) Balances() []Balance {
	v.mu.RLock()
	out := make([]Balance, 0, len(v.balances))
	for k, amount := range v.balances {
		out = append(out, Balance{Token: k.token, Holder: k.holder, Amount: amount.Clone()})
	}
	v.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].Token[:], out[j].Token[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(out[i].Holder[:], out[j].Holder[:]) < 0
	})
	return out
}

// Load replaces all committed balances.
func (v *Vault) Load(balances []Balance) {
	next := make(map[balanceKey]*uint256.Int, len(balances))
	for _, b := range balances {
		if b.Amount == nil || b.Amount.IsZero() {
			continue
		}
		next[balanceKey{b.Token, b.Holder}] = b.Amount.Clone()
	}
	v.mu.Lock()
	v.balances = next
	v.mu.Unlock()
}

// txn accumulates credits and debits per key on top of committed balances.
// Commit re-validates every touched key so concurrent transactions spending
// the same balance cannot both succeed.
type txn struct {
	vault   *Vault
	credits map[balanceKey]*uint256.Int
	debits  map[balanceKey]*uint256.Int
	closed  bool
}

func (t *txn) BalanceOf(token, holder common.Address) (*uint256.Int, error) {
	if t.closed {
		return nil, ErrTxnClosed
	}
	return t.balance(balanceKey{token, holder}, t.vault.committed(balanceKey{token, holder}))
}

func (t *txn) balance(k balanceKey, base *uint256.Int) (*uint256.Int, error) {
	if c, ok := t.credits[k]; ok {
		if _, overflow := base.AddOverflow(base, c); overflow {
			return nil, ErrBalanceOverflow
		}
	}
	if d, ok := t.debits[k]; ok {
		if _, underflow := base.SubOverflow(base, d); underflow {
			return nil, ErrInsufficientBalance
		}
	}
	return base, nil
}

// Transfer moves amount from one holder to another. Like an ERC-20 token that
// returns false instead of reverting, an unfunded transfer yields an encoded
// false payload and changes nothing.
func (t *txn) Transfer(token, from, to common.Address, amount *uint256.Int) ([]byte, error) {
	if t.closed {
		return nil, ErrTxnClosed
	}
	bal, err := t.BalanceOf(token, from)
	if err != nil {
		return nil, err
	}
	if bal.Lt(amount) {
		return EncodeBool(false), nil
	}
	if from == to || amount.IsZero() {
		return EncodeBool(true), nil
	}
	recipient, err := t.BalanceOf(token, to)
	if err != nil {
		return nil, err
	}
	if _, overflow := recipient.AddOverflow(recipient, amount); overflow {
		return EncodeBool(false), nil
	}
	add(t.debits, balanceKey{token, from}, amount)
	add(t.credits, balanceKey{token, to}, amount)
	return EncodeBool(true), nil
}

func (t *txn) Credit(token, holder common.Address, amount *uint256.Int) error {
	if t.closed {
		return ErrTxnClosed
	}
	bal, err := t.BalanceOf(token, holder)
	if err != nil {
		return err
	}
	if _, overflow := bal.AddOverflow(bal, amount); overflow {
		return ErrBalanceOverflow
	}
	add(t.credits, balanceKey{token, holder}, amount)
	return nil
}

func add(m map[balanceKey]*uint256.Int, k balanceKey, amount *uint256.Int) {
	if cur, ok := m[k]; ok {
		cur.Add(cur, amount)
		return
	}
	m[k] = amount.Clone()
}

func (t *txn) Commit() error {
	if t.closed {
		return ErrTxnClosed
	}
	t.closed = true

	v := t.vault
	v.mu.Lock()
	defer v.mu.Unlock()

	next := make(map[balanceKey]*uint256.Int, len(t.credits)+len(t.debits))
	touch := func(k balanceKey) error {
		if _, done := next[k]; done {
			return nil
		}
		base := new(uint256.Int)
		if b, ok := v.balances[k]; ok {
			base.Set(b)
		}
		bal, err := t.balance(k, base)
		if err != nil {
			return err
		}
		next[k] = bal
		return nil
	}
	for k := range t.credits {
		if err := touch(k); err != nil {
			return err
		}
	}
	for k := range t.debits {
		if err := touch(k); err != nil {
			return err
		}
	}
	for k, bal := range next {
		if bal.IsZero() {
			delete(v.balances, k)
			continue
		}
		v.balances[k] = bal
	}
	return nil
}

func (t *txn) Discard() {
	t.closed = true
}
