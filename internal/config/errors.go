package config

import "errors"

// ErrInvalidFactoryAddress indicates that FACTORY_ADDRESS is not a 20-byte
// hex address.
var ErrInvalidFactoryAddress = errors.New("invalid FACTORY_ADDRESS")

// ErrInvalidInitCodeHash indicates that PAIR_INIT_CODE_HASH is not a
// 0x-prefixed 32-byte hex string.
var ErrInvalidInitCodeHash = errors.New("invalid PAIR_INIT_CODE_HASH")
