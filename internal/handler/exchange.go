package handler

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v3"
	"github.com/holiman/uint256"

	"github.com/nulln0ne/uniswapv2-engine/internal/service"
	"github.com/nulln0ne/uniswapv2-engine/pkg/amm"
)

// ExchangeHandler serves the exchange operations over JSON.
type ExchangeHandler struct {
	BaseHandler
	service *service.ExchangeService
}

func NewExchangeHandler(logger *slog.Logger, svc *service.ExchangeService) *ExchangeHandler {
	return &ExchangeHandler{
		BaseHandler: BaseHandler{logger: logger},
		service:     svc,
	}
}

type PairResponse struct {
	Address     string `json:"address"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Reserve0    string `json:"reserve0"`
	Reserve1    string `json:"reserve1"`
	LastUpdate  uint32 `json:"last_update"`
	TotalShares string `json:"total_shares"`
}

func pairResponse(p service.PairInfo) PairResponse {
	return PairResponse{
		Address:     p.Address.Hex(),
		Token0:      p.Token0.Hex(),
		Token1:      p.Token1.Hex(),
		Reserve0:    p.Reserve0.Dec(),
		Reserve1:    p.Reserve1.Dec(),
		LastUpdate:  p.LastUpdate,
		TotalShares: p.TotalSupply.Dec(),
	}
}

type LiquidityResponse struct {
	Pair    string `json:"pair"`
	AmountA string `json:"amount_a"`
	AmountB string `json:"amount_b"`
	Shares  string `json:"shares"`
}

func liquidityResponse(r *amm.LiquidityResult) LiquidityResponse {
	return LiquidityResponse{
		Pair:    r.Pair.Hex(),
		AmountA: r.AmountA.Dec(),
		AmountB: r.AmountB.Dec(),
		Shares:  r.Shares.Dec(),
	}
}

type AmountsResponse struct {
	Amounts []string `json:"amounts"`
}

type CreatePairRequest struct {
	TokenA string `json:"token_a"`
	TokenB string `json:"token_b"`
}

func (h *ExchangeHandler) CreatePair() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req CreatePairRequest
		if err := c.Bind().Body(&req); err != nil {
			return ErrInvalidBody
		}
		tokenA, err := parseAddress("token_a", req.TokenA)
		if err != nil {
			return err
		}
		tokenB, err := parseAddress("token_b", req.TokenB)
		if err != nil {
			return err
		}
		info, err := h.service.CreatePair(c.Context(), tokenA, tokenB)
		if err != nil {
			return h.handleServiceError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(pairResponse(info))
	}
}

func (h *ExchangeHandler) ListPairs() fiber.Handler {
	return func(c fiber.Ctx) error {
		pairs := h.service.Pairs()
		out := make([]PairResponse, len(pairs))
		for i, p := range pairs {
			out[i] = pairResponse(p)
		}
		return c.JSON(out)
	}
}

func (h *ExchangeHandler) LookupPair() fiber.Handler {
	return func(c fiber.Ctx) error {
		tokenA, err := parseAddress("token_a", c.Query("token_a"))
		if err != nil {
			return err
		}
		tokenB, err := parseAddress("token_b", c.Query("token_b"))
		if err != nil {
			return err
		}
		info, err := h.service.Lookup(tokenA, tokenB)
		if err != nil {
			return h.handleServiceError(err)
		}
		return c.JSON(pairResponse(info))
	}
}

func (h *ExchangeHandler) GetPair() fiber.Handler {
	return func(c fiber.Ctx) error {
		pair, err := parseAddress("pair", c.Params("address"))
		if err != nil {
			return err
		}
		info, err := h.service.Pair(pair)
		if err != nil {
			return h.handleServiceError(err)
		}
		return c.JSON(pairResponse(info))
	}
}

type RecipientRequest struct {
	To string `json:"to"`
}

func (h *ExchangeHandler) Mint() fiber.Handler {
	return func(c fiber.Ctx) error {
		pair, to, err := h.pairAndRecipient(c)
		if err != nil {
			return err
		}
		shares, err := h.service.Mint(c.Context(), pair, to)
		if err != nil {
			return h.handleServiceError(err)
		}
		return c.JSON(fiber.Map{"shares": shares.Dec()})
	}
}

func (h *ExchangeHandler) Burn() fiber.Handler {
	return func(c fiber.Ctx) error {
		pair, to, err := h.pairAndRecipient(c)
		if err != nil {
			return err
		}
		amount0, amount1, err := h.service.Burn(c.Context(), pair, to)
		if err != nil {
			return h.handleServiceError(err)
		}
		return c.JSON(fiber.Map{"amount0": amount0.Dec(), "amount1": amount1.Dec()})
	}
}

func (h *ExchangeHandler) Skim() fiber.Handler {
	return func(c fiber.Ctx) error {
		pair, to, err := h.pairAndRecipient(c)
		if err != nil {
			return err
		}
		if err := h.service.Skim(c.Context(), pair, to); err != nil {
			return h.handleServiceError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (h *ExchangeHandler) Sync() fiber.Handler {
	return func(c fiber.Ctx) error {
		pair, err := parseAddress("pair", c.Params("address"))
		if err != nil {
			return err
		}
		if err := h.service.Sync(c.Context(), pair); err != nil {
			return h.handleServiceError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (h *ExchangeHandler) pairAndRecipient(c fiber.Ctx) (common.Address, common.Address, error) {
	pair, err := parseAddress("pair", c.Params("address"))
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	var req RecipientRequest
	if err := c.Bind().Body(&req); err != nil {
		return common.Address{}, common.Address{}, ErrInvalidBody
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return pair, to, nil
}

type PairSwapRequest struct {
	Amount0Out string `json:"amount0_out"`
	Amount1Out string `json:"amount1_out"`
	To         string `json:"to"`
}

func (h *ExchangeHandler) Swap() fiber.Handler {
	return func(c fiber.Ctx) error {
		pair, err := parseAddress("pair", c.Params("address"))
		if err != nil {
			return err
		}
		var req PairSwapRequest
		if err := c.Bind().Body(&req); err != nil {
			return ErrInvalidBody
		}
		amount0Out, err := parseOptionalAmount("amount0_out", req.Amount0Out)
		if err != nil {
			return err
		}
		amount1Out, err := parseOptionalAmount("amount1_out", req.Amount1Out)
		if err != nil {
			return err
		}
		to, err := parseAddress("to", req.To)
		if err != nil {
			return err
		}
		if err := h.service.Swap(c.Context(), pair, orZero(amount0Out), orZero(amount1Out), to); err != nil {
			return h.handleServiceError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type TransferRequest struct {
	Token  string `json:"token"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (h *ExchangeHandler) Transfer() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req TransferRequest
		if err := c.Bind().Body(&req); err != nil {
			return ErrInvalidBody
		}
		token, err := parseAddress("token", req.Token)
		if err != nil {
			return err
		}
		from, err := parseAddress("from", req.From)
		if err != nil {
			return err
		}
		to, err := parseAddress("to", req.To)
		if err != nil {
			return err
		}
		amount, err := parseAmount("amount", req.Amount)
		if err != nil {
			return err
		}
		if err := h.service.Transfer(c.Context(), token, from, to, amount); err != nil {
			return h.handleServiceError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type FaucetRequest struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (h *ExchangeHandler) Faucet() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req FaucetRequest
		if err := c.Bind().Body(&req); err != nil {
			return ErrInvalidBody
		}
		token, err := parseAddress("token", req.Token)
		if err != nil {
			return err
		}
		to, err := parseAddress("to", req.To)
		if err != nil {
			return err
		}
		amount, err := parseAmount("amount", req.Amount)
		if err != nil {
			return err
		}
		if err := h.service.Faucet(c.Context(), token, to, amount); err != nil {
			return h.handleServiceError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (h *ExchangeHandler) Balance() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, err := parseAddress("token", c.Query("token"))
		if err != nil {
			return err
		}
		holder, err := parseAddress("holder", c.Query("holder"))
		if err != nil {
			return err
		}
		bal, err := h.service.Balance(token, holder)
		if err != nil {
			return h.handleServiceError(err)
		}
		return c.JSON(fiber.Map{"balance": bal.Dec()})
	}
}

func (h *ExchangeHandler) Shares() fiber.Handler {
	return func(c fiber.Ctx) error {
		pair, err := parseAddress("pair", c.Query("pair"))
		if err != nil {
			return err
		}
		owner, err := parseAddress("owner", c.Query("owner"))
		if err != nil {
			return err
		}
		shares, err := h.service.Shares(pair, owner)
		if err != nil {
			return h.handleServiceError(err)
		}
		return c.JSON(fiber.Map{"shares": shares.Dec()})
	}
}

type AddLiquidityRequest struct {
	TokenA         string `json:"token_a"`
	TokenB         string `json:"token_b"`
	AmountADesired string `json:"amount_a_desired"`
	AmountBDesired string `json:"amount_b_desired"`
	AmountAMin     string `json:"amount_a_min"`
	AmountBMin     string `json:"amount_b_min"`
	From           string `json:"from"`
	To             string `json:"to"`
}

func (h *ExchangeHandler) AddLiquidity() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req AddLiquidityRequest
		if err := c.Bind().Body(&req); err != nil {
			return ErrInvalidBody
		}
		var (
			params amm.AddLiquidityParams
			err    error
		)
		if params.TokenA, err = parseAddress("token_a", req.TokenA); err != nil {
			return err
		}
		if params.TokenB, err = parseAddress("token_b", req.TokenB); err != nil {
			return err
		}
		if params.AmountADesired, err = parseAmount("amount_a_desired", req.AmountADesired); err != nil {
			return err
		}
		if params.AmountBDesired, err = parseAmount("amount_b_desired", req.AmountBDesired); err != nil {
			return err
		}
		if params.AmountAMin, err = parseOptionalAmount("amount_a_min", req.AmountAMin); err != nil {
			return err
		}
		if params.AmountBMin, err = parseOptionalAmount("amount_b_min", req.AmountBMin); err != nil {
			return err
		}
		if params.From, err = parseAddress("from", req.From); err != nil {
			return err
		}
		if params.To, err = parseAddress("to", req.To); err != nil {
			return err
		}
		res, err := h.service.AddLiquidity(c.Context(), params)
		if err != nil {
			return h.handleServiceError(err)
		}
		return c.JSON(liquidityResponse(res))
	}
}

type RemoveLiquidityRequest struct {
	TokenA     string `json:"token_a"`
	TokenB     string `json:"token_b"`
	Shares     string `json:"shares"`
	AmountAMin string `json:"amount_a_min"`
	AmountBMin string `json:"amount_b_min"`
	From       string `json:"from"`
	To         string `json:"to"`
}

func (h *ExchangeHandler) RemoveLiquidity() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req RemoveLiquidityRequest
		if err := c.Bind().Body(&req); err != nil {
			return ErrInvalidBody
		}
		var (
			params amm.RemoveLiquidityParams
			err    error
		)
		if params.TokenA, err = parseAddress("token_a", req.TokenA); err != nil {
			return err
		}
		if params.TokenB, err = parseAddress("token_b", req.TokenB); err != nil {
			return err
		}
		if params.Shares, err = parseAmount("shares", req.Shares); err != nil {
			return err
		}
		if params.AmountAMin, err = parseOptionalAmount("amount_a_min", req.AmountAMin); err != nil {
			return err
		}
		if params.AmountBMin, err = parseOptionalAmount("amount_b_min", req.AmountBMin); err != nil {
			return err
		}
		if params.From, err = parseAddress("from", req.From); err != nil {
			return err
		}
		if params.To, err = parseAddress("to", req.To); err != nil {
			return err
		}
		res, err := h.service.RemoveLiquidity(c.Context(), params)
		if err != nil {
			return h.handleServiceError(err)
		}
		return c.JSON(liquidityResponse(res))
	}
}

// SwapRequest serves both swap directions: Amount is the exact side and
// Limit the slippage bound (minimum out or maximum in).
type SwapRequest struct {
	Amount string   `json:"amount"`
	Limit  string   `json:"limit"`
	Path   []string `json:"path"`
	From   string   `json:"from"`
	To     string   `json:"to"`
}

func (h *ExchangeHandler) SwapExactIn() fiber.Handler {
	return h.routeSwap(h.service.SwapExactIn)
}

func (h *ExchangeHandler) SwapExactOut() fiber.Handler {
	return h.routeSwap(h.service.SwapExactOut)
}

type swapFn func(ctx context.Context, amount, limit *uint256.Int, path []common.Address, from, to common.Address) ([]*uint256.Int, error)

func (h *ExchangeHandler) routeSwap(fn swapFn) fiber.Handler {
	return func(c fiber.Ctx) error {
		var req SwapRequest
		if err := c.Bind().Body(&req); err != nil {
			return ErrInvalidBody
		}
		amount, err := parseAmount("amount", req.Amount)
		if err != nil {
			return err
		}
		limit, err := parseOptionalAmount("limit", req.Limit)
		if err != nil {
			return err
		}
		path, err := parsePath(req.Path)
		if err != nil {
			return err
		}
		from, err := parseAddress("from", req.From)
		if err != nil {
			return err
		}
		to, err := parseAddress("to", req.To)
		if err != nil {
			return err
		}
		amounts, err := fn(c.Context(), amount, limit, path, from, to)
		if err != nil {
			return h.handleServiceError(err)
		}
		return c.JSON(AmountsResponse{Amounts: decimals(amounts)})
	}
}

func (h *ExchangeHandler) Quote() fiber.Handler {
	return h.quote("amount_in", h.service.Quote)
}

func (h *ExchangeHandler) QuoteIn() fiber.Handler {
	return h.quote("amount_out", h.service.QuoteIn)
}

func (h *ExchangeHandler) quote(field string, fn func(*uint256.Int, []common.Address) ([]*uint256.Int, error)) fiber.Handler {
	return func(c fiber.Ctx) error {
		amount, err := parseAmount(field, c.Query(field))
		if err != nil {
			return err
		}
		path, err := parsePath([]string{c.Query("path")})
		if err != nil {
			return err
		}
		amounts, err := fn(amount, path)
		if err != nil {
			return h.handleServiceError(err)
		}
		return c.JSON(AmountsResponse{Amounts: decimals(amounts)})
	}
}

type ImportRequest struct {
	Pool string `json:"pool"`
	To   string `json:"to"`
}

func (h *ExchangeHandler) ImportPair() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req ImportRequest
		if err := c.Bind().Body(&req); err != nil {
			return ErrInvalidBody
		}
		pool, err := parseAddress("pool", req.Pool)
		if err != nil {
			return err
		}
		to, err := parseAddress("to", req.To)
		if err != nil {
			return err
		}
		res, err := h.service.ImportPair(c.Context(), pool, to)
		if err != nil {
			return h.handleServiceError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"pair":    pairResponse(res.Pair),
			"block":   strconv.FormatUint(res.Block, 10),
			"shares":  res.Shares.Dec(),
			"matches": res.Matches,
		})
	}
}

func orZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x
}
