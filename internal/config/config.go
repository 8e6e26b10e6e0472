package config

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/nulln0ne/uniswapv2-engine/pkg/amm"
)

type Config struct {
	Addr        string
	RPCEndpoint string
	LogLevel    string
	// DBPath is the SQLite file holding exchange snapshots. Empty disables
	// persistence.
	DBPath       string
	Factory      common.Address
	InitCodeHash common.Hash
}

func FromEnv() (*Config, error) {
	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":1337"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	dbPath, ok := os.LookupEnv("DB_PATH")
	if !ok {
		dbPath = "amm.db"
	}

	cfg := &Config{
		Addr:         addr,
		RPCEndpoint:  os.Getenv("ETH_RPC_URL"),
		LogLevel:     logLevel,
		DBPath:       dbPath,
		Factory:      amm.DefaultFactoryAddress,
		InitCodeHash: amm.DefaultInitCodeHash,
	}

	if v := os.Getenv("FACTORY_ADDRESS"); v != "" {
		if !common.IsHexAddress(v) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFactoryAddress, v)
		}
		cfg.Factory = common.HexToAddress(v)
	}

	if v := os.Getenv("PAIR_INIT_CODE_HASH"); v != "" {
		b, err := hexutil.Decode(v)
		if err != nil || len(b) != common.HashLength {
			return nil, fmt.Errorf("%w: %q", ErrInvalidInitCodeHash, v)
		}
		cfg.InitCodeHash = common.BytesToHash(b)
	}

	return cfg, nil
}

// ChainEnabled reports whether an RPC endpoint is configured.
func (c *Config) ChainEnabled() bool {
	return c.RPCEndpoint != ""
}
