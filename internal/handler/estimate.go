package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/nulln0ne/uniswapv2-engine/internal/service"
)

// EstimateHandler quotes a swap against a pool read from chain.
type EstimateHandler struct {
	BaseHandler
	service *service.ChainService
}

func NewEstimateHandler(logger *slog.Logger, svc *service.ChainService) *EstimateHandler {
	return &EstimateHandler{
		BaseHandler: BaseHandler{
			logger: logger,
		},
		service: svc,
	}
}

type EstimateRequest struct {
	Pool     string `query:"pool" json:"pool"`
	Src      string `query:"src" json:"src"`
	Dst      string `query:"dst" json:"dst"`
	AmountIn string `query:"src_amount" json:"amount_in"`
}

func (h *EstimateHandler) Handle() fiber.Handler {
	return func(c fiber.Ctx) error {
		var req EstimateRequest
		if err := c.Bind().Query(&req); err != nil {
			h.logger.Debug("failed to bind query parameters", "err", err)
			return ErrInvalidQueryParameters
		}

		pool, err := parseAddress("pool", req.Pool)
		if err != nil {
			return err
		}
		src, err := parseAddress("src", req.Src)
		if err != nil {
			return err
		}
		dst, err := parseAddress("dst", req.Dst)
		if err != nil {
			return err
		}
		if src == dst {
			return ErrSameAddresses
		}

		amountIn, err := parseAmount("amount_in", req.AmountIn)
		if err != nil {
			return err
		}

		amountOut, err := h.service.Estimate(c.Context(), pool, src, dst, amountIn)
		if err != nil {
			return h.handleServiceError(err)
		}

		h.logger.Debug("estimate computed", "pool", req.Pool, "src", req.Src, "dst", req.Dst, "in", amountIn.Dec(), "out", amountOut.Dec())
		return c.SendString(amountOut.Dec())
	}
}
