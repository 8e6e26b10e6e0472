// Package eth dials the Ethereum node used for on-chain pair reads.
package eth

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

const dialTimeout = 15 * time.Second

// Dial connects to url and asks the node for its chain id, so a bad endpoint
// fails at startup instead of on the first pair import.
func Dial(ctx context.Context, url string) (*ethclient.Client, *big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("chain id: %w", err)
	}
	return client, chainID, nil
}
