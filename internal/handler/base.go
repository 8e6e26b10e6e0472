// Package handler defines HTTP request handlers and related utilities.
package handler

import (
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// BaseHandler provides common dependencies for HTTP handlers.
type BaseHandler struct {
	logger *slog.Logger
}

func parseAddress(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, NewAddressRequired(field)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, NewInvalidAddress(field)
	}
	return common.HexToAddress(s), nil
}

// parseAmount parses a required, strictly positive base-10 amount.
func parseAmount(field, s string) (*uint256.Int, error) {
	if s == "" {
		return nil, ErrAmountRequired
	}
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, NewInvalidAmount(field, err)
	}
	if amount.IsZero() {
		return nil, ErrAmountNonPositive
	}
	return amount, nil
}

// parseOptionalAmount parses an amount that may be empty or zero.
func parseOptionalAmount(field, s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, NewInvalidAmount(field, err)
	}
	return amount, nil
}

// parsePath accepts either a list or a single comma-separated string.
func parsePath(parts []string) ([]common.Address, error) {
	if len(parts) == 1 {
		parts = strings.Split(parts[0], ",")
	}
	if len(parts) == 0 || (len(parts) == 1 && parts[0] == "") {
		return nil, ErrPathRequired
	}
	path := make([]common.Address, len(parts))
	for i, p := range parts {
		addr, err := parseAddress("path", strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		path[i] = addr
	}
	return path, nil
}

func decimals(amounts []*uint256.Int) []string {
	out := make([]string, len(amounts))
	for i, a := range amounts {
		out[i] = a.Dec()
	}
	return out
}
