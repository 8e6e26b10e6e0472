package service

import "errors"

var (
	ErrSameToken     = errors.New("src and dst are equal")
	ErrPairMismatch  = errors.New("pair does not match src/dst")
	ErrEmptyReserves = errors.New("empty reserves")
	ErrChainDisabled = errors.New("no chain endpoint configured")

	// ErrNotPersisted means the operation was applied to the exchange but the
	// snapshot could not be saved.
	ErrNotPersisted = errors.New("applied but not persisted")
)
