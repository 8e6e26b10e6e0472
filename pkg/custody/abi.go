package custody

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var boolArgs = abi.Arguments{{Type: mustNewType("bool")}}

func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// EncodeBool returns the 32-byte ABI encoding of ok, the payload of an ERC-20
// style transfer.
func EncodeBool(ok bool) []byte {
	out, err := boolArgs.Pack(ok)
	if err != nil {
		panic(err)
	}
	return out
}

// DecodeSuccess interprets a transfer return payload. An empty payload counts
// as success (tokens that return nothing); anything else must decode as a
// single ABI bool.
func DecodeSuccess(payload []byte) (bool, error) {
	if len(payload) == 0 {
		return true, nil
	}
	values, err := boolArgs.Unpack(payload)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	ok, isBool := values[0].(bool)
	if !isBool {
		return false, fmt.Errorf("%w: got %T", ErrBadPayload, values[0])
	}
	return ok, nil
}
