package handler

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
)

// Routes wires every endpoint onto app. estimate may be nil when no chain
// endpoint is configured; metrics may be nil to skip /metrics.
func Routes(app *fiber.App, exchange *ExchangeHandler, estimate *EstimateHandler, metrics http.Handler) {
	app.Post("/pairs", exchange.CreatePair())
	app.Get("/pairs", exchange.ListPairs())

	pairs := app.Group("/pairs")
	pairs.Get("/lookup", exchange.LookupPair())
	pairs.Post("/import", exchange.ImportPair())
	pairs.Get("/:address", exchange.GetPair())
	pairs.Post("/:address/mint", exchange.Mint())
	pairs.Post("/:address/burn", exchange.Burn())
	pairs.Post("/:address/swap", exchange.Swap())
	pairs.Post("/:address/skim", exchange.Skim())
	pairs.Post("/:address/sync", exchange.Sync())

	app.Post("/transfer", exchange.Transfer())
	app.Post("/faucet", exchange.Faucet())
	app.Get("/balances", exchange.Balance())
	app.Get("/shares", exchange.Shares())

	app.Post("/liquidity/add", exchange.AddLiquidity())
	app.Post("/liquidity/remove", exchange.RemoveLiquidity())
	app.Post("/swap/exact-in", exchange.SwapExactIn())
	app.Post("/swap/exact-out", exchange.SwapExactOut())
	app.Get("/quote", exchange.Quote())
	app.Get("/quote/in", exchange.QuoteIn())

	if estimate != nil {
		app.Get("/estimate", estimate.Handle())
	} else {
		app.Get("/estimate", func(fiber.Ctx) error { return ErrChainUnavailable })
	}
	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics))
	}
}
