package amm

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

type EventKind uint8

const (
	EventPairCreated EventKind = iota + 1
	EventMint
	EventBurn
	EventSwap
	EventSync
)

var eventSignatures = map[EventKind]string{
	EventPairCreated: "PairCreated(address,address,address,uint256)",
	EventMint:        "Mint(address,uint256,uint256)",
	EventBurn:        "Burn(address,uint256,uint256,address)",
	EventSwap:        "Swap(address,uint256,uint256,uint256,uint256,address)",
	EventSync:        "Sync(uint112,uint112)",
}

var eventTopics = func() map[EventKind]common.Hash {
	m := make(map[EventKind]common.Hash, len(eventSignatures))
	for k, sig := range eventSignatures {
		m[k] = crypto.Keccak256Hash([]byte(sig))
	}
	return m
}()

func (k EventKind) String() string {
	switch k {
	case EventPairCreated:
		return "PairCreated"
	case EventMint:
		return "Mint"
	case EventBurn:
		return "Burn"
	case EventSwap:
		return "Swap"
	case EventSync:
		return "Sync"
	default:
		return "Unknown"
	}
}

// Topic is the keccak256 hash of the event signature, as an EVM log topic.
func (k EventKind) Topic() common.Hash {
	return eventTopics[k]
}

// Event is emitted by pairs and the factory. Only the fields relevant to Kind
// are set. Events are delivered after the enclosing operation commits.
type Event struct {
	Kind EventKind
	Pair common.Address
	Time time.Time

	Sender common.Address
	To     common.Address

	Token0 common.Address
	Token1 common.Address
	Index  int

	Amount0In  *uint256.Int
	Amount1In  *uint256.Int
	Amount0Out *uint256.Int
	Amount1Out *uint256.Int
	Shares     *uint256.Int

	Reserve0 *uint256.Int
	Reserve1 *uint256.Int
}
