package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v3"

	"github.com/nulln0ne/uniswapv2-engine/internal/chaintest"
	"github.com/nulln0ne/uniswapv2-engine/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEstimateHandler_OK(t *testing.T) {
	token0 := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	token1 := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	pool := common.HexToAddress("0x0000000000000000000000000000000000000abc")

	node := chaintest.New(42)
	node.SetPair(pool, token0, token1, 1_000_000, 2_000_000, 0)
	ec := node.Client(t)
	logger := discardLogger()
	svc := service.NewChainService(logger, ec)
	h := NewEstimateHandler(logger, svc)

	app := fiber.New()
	app.Get("/estimate", h.Handle())

	req := httptest.NewRequest(http.MethodGet, "/estimate?pool="+pool.Hex()+"&src="+token0.Hex()+"&dst="+token1.Hex()+"&src_amount=1000", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "1992" {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestEstimateHandler_Validation(t *testing.T) {
	logger := discardLogger()
	ec := chaintest.New(1).Client(t)
	svc := service.NewChainService(logger, ec)
	h := NewEstimateHandler(logger, svc)

	app := fiber.New()
	app.Get("/estimate", h.Handle())

	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	pool := common.HexToAddress("0x0000000000000000000000000000000000000abc")
	cases := map[string]string{
		"missing params": "/estimate",
		"same tokens":    "/estimate?pool=" + pool.Hex() + "&src=" + token.Hex() + "&dst=" + token.Hex() + "&src_amount=1",
		"zero amount":    "/estimate?pool=" + pool.Hex() + "&src=" + token.Hex() + "&dst=" + pool.Hex() + "&src_amount=0",
		"bad amount":     "/estimate?pool=" + pool.Hex() + "&src=" + token.Hex() + "&dst=" + pool.Hex() + "&src_amount=1e9",
		// empty storage: tokens are zero and do not match
		"pair mismatch": "/estimate?pool=" + pool.Hex() + "&src=" + token.Hex() + "&dst=" + pool.Hex() + "&src_amount=1",
	}
	for name, url := range cases {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, url, nil))
		if err != nil {
			t.Fatalf("%s: app.Test error: %v", name, err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, resp.StatusCode)
		}
	}
}
