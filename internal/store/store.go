// Package store persists exchange snapshots in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	_ "modernc.org/sqlite"

	"github.com/nulln0ne/uniswapv2-engine/pkg/amm"
	"github.com/nulln0ne/uniswapv2-engine/pkg/custody"
)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and migrates it.
// Use ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// an in-memory database lives as long as its single connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored snapshot with state in one transaction.
func (s *Store) Save(ctx context.Context, state amm.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM shares`, `DELETE FROM pairs`, `DELETE FROM balances`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
	}

	for i, p := range state.Pairs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO pairs (address, idx, token0, token1, reserve0, reserve1, total_shares, last_update)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Address.Hex(), i, p.Token0.Hex(), p.Token1.Hex(),
			p.Reserve0.Dec(), p.Reserve1.Dec(), p.TotalSupply.Dec(), int64(p.LastUpdate),
		)
		if err != nil {
			return fmt.Errorf("insert pair %s: %w", p.Address.Hex(), err)
		}
		for owner, amount := range p.Shares {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO shares (pair, owner, amount) VALUES (?, ?, ?)`,
				p.Address.Hex(), owner.Hex(), amount.Dec(),
			); err != nil {
				return fmt.Errorf("insert shares %s/%s: %w", p.Address.Hex(), owner.Hex(), err)
			}
		}
	}

	for _, b := range state.Balances {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO balances (token, holder, amount) VALUES (?, ?, ?)`,
			b.Token.Hex(), b.Holder.Hex(), b.Amount.Dec(),
		); err != nil {
			return fmt.Errorf("insert balance %s/%s: %w", b.Token.Hex(), b.Holder.Hex(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. An empty database yields an empty state.
func (s *Store) Load(ctx context.Context) (amm.State, error) {
	var state amm.State

	rows, err := s.db.QueryContext(ctx,
		`SELECT address, token0, token1, reserve0, reserve1, total_shares, last_update FROM pairs ORDER BY idx`)
	if err != nil {
		return state, fmt.Errorf("query pairs: %w", err)
	}
	index := map[common.Address]int{}
	for rows.Next() {
		var (
			address, token0, token1, r0, r1, total string
			lastUpdate                             int64
		)
		if err := rows.Scan(&address, &token0, &token1, &r0, &r1, &total, &lastUpdate); err != nil {
			rows.Close()
			return state, fmt.Errorf("scan pair: %w", err)
		}
		snap, err := pairSnapshot(address, token0, token1, r0, r1, total, lastUpdate)
		if err != nil {
			rows.Close()
			return state, fmt.Errorf("pair %s: %w", address, err)
		}
		index[snap.Address] = len(state.Pairs)
		state.Pairs = append(state.Pairs, snap)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return state, fmt.Errorf("iterate pairs: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT pair, owner, amount FROM shares`)
	if err != nil {
		return state, fmt.Errorf("query shares: %w", err)
	}
	for rows.Next() {
		var pair, owner, amount string
		if err := rows.Scan(&pair, &owner, &amount); err != nil {
			rows.Close()
			return state, fmt.Errorf("scan shares: %w", err)
		}
		p, err := parseAddress(pair)
		if err != nil {
			rows.Close()
			return state, err
		}
		i, ok := index[p]
		if !ok {
			rows.Close()
			return state, fmt.Errorf("%w: shares of unknown pair %s", ErrCorruptRow, pair)
		}
		o, err := parseAddress(owner)
		if err != nil {
			rows.Close()
			return state, err
		}
		a, err := parseAmount(amount)
		if err != nil {
			rows.Close()
			return state, err
		}
		state.Pairs[i].Shares[o] = a
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return state, fmt.Errorf("iterate shares: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT token, holder, amount FROM balances ORDER BY token, holder`)
	if err != nil {
		return state, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var token, holder, amount string
		if err := rows.Scan(&token, &holder, &amount); err != nil {
			return state, fmt.Errorf("scan balance: %w", err)
		}
		var b custody.Balance
		if b.Token, err = parseAddress(token); err != nil {
			return state, err
		}
		if b.Holder, err = parseAddress(holder); err != nil {
			return state, err
		}
		if b.Amount, err = parseAmount(amount); err != nil {
			return state, err
		}
		state.Balances = append(state.Balances, b)
	}
	if err := rows.Err(); err != nil {
		return state, fmt.Errorf("iterate balances: %w", err)
	}
	return state, nil
}

func pairSnapshot(address, token0, token1, r0, r1, total string, lastUpdate int64) (amm.PairSnapshot, error) {
	snap := amm.PairSnapshot{LastUpdate: uint32(lastUpdate), Shares: map[common.Address]*uint256.Int{}}
	var err error
	if snap.Address, err = parseAddress(address); err != nil {
		return snap, err
	}
	if snap.Token0, err = parseAddress(token0); err != nil {
		return snap, err
	}
	if snap.Token1, err = parseAddress(token1); err != nil {
		return snap, err
	}
	if snap.Reserve0, err = parseAmount(r0); err != nil {
		return snap, err
	}
	if snap.Reserve1, err = parseAmount(r1); err != nil {
		return snap, err
	}
	if snap.TotalSupply, err = parseAmount(total); err != nil {
		return snap, err
	}
	return snap, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: address %q", ErrCorruptRow, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", ErrCorruptRow, s, err)
	}
	return v, nil
}
