package eth

import (
	"context"
	"errors"
	"math/big"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

type chainAPI struct{ id int64 }

func (a chainAPI) ChainId() *hexutil.Big { return (*hexutil.Big)(big.NewInt(a.id)) }

type brokenAPI struct{}

func (brokenAPI) ChainId() (*hexutil.Big, error) { return nil, errors.New("unavailable") }

func serve(t *testing.T, api any) string {
	t.Helper()
	srv := gethrpc.NewServer()
	if err := srv.RegisterName("eth", api); err != nil {
		t.Fatalf("register: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	return ts.URL
}

func TestDial(t *testing.T) {
	client, chainID, err := Dial(context.Background(), serve(t, chainAPI{id: 1}))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	if chainID.Int64() != 1 {
		t.Fatalf("chain id = %s, want 1", chainID)
	}
}

func TestDialUnhealthyNode(t *testing.T) {
	if _, _, err := Dial(context.Background(), serve(t, brokenAPI{})); err == nil {
		t.Fatalf("expected error from node without a chain id")
	}
}
