package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/nulln0ne/uniswapv2-engine/internal/service"
	"github.com/nulln0ne/uniswapv2-engine/pkg/amm"
	"github.com/nulln0ne/uniswapv2-engine/pkg/custody"
)

// ErrInvalidQueryParameters indicates that the request query string could not
// be parsed into the expected structure.
var ErrInvalidQueryParameters = fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")

// ErrInvalidBody indicates that the JSON body could not be decoded.
var ErrInvalidBody = fiber.NewError(fiber.StatusBadRequest, "invalid request body")

// ErrSameAddresses is returned when src and dst addresses are identical.
var ErrSameAddresses = fiber.NewError(fiber.StatusBadRequest, "src and dst addresses cannot be the same")

// ErrAmountRequired is returned when the amount parameter is missing.
var ErrAmountRequired = fiber.NewError(fiber.StatusBadRequest, "amount is required")

// ErrAmountNonPositive is returned when the amount is zero or negative.
var ErrAmountNonPositive = fiber.NewError(fiber.StatusBadRequest, "amount must be greater than zero")

// ErrPathRequired is returned when a route path is missing.
var ErrPathRequired = fiber.NewError(fiber.StatusBadRequest, "path is required")

// ErrChainUnavailable is returned by on-chain endpoints when no RPC endpoint
// is configured.
var ErrChainUnavailable = fiber.NewError(fiber.StatusServiceUnavailable, "no chain endpoint configured")

// ErrNotPersisted is returned when the operation took effect but the state
// could not be saved. Retrying would apply it twice.
var ErrNotPersisted = fiber.NewError(fiber.StatusInternalServerError, "operation applied but state was not persisted")

// ErrInternal signals a generic server-side failure.
var ErrInternal = fiber.NewError(fiber.StatusInternalServerError, "internal error")

// NewInvalidAmount wraps an amount parsing error into a 400 Bad Request
// naming the field.
func NewInvalidAmount(field string, err error) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid "+field+": "+err.Error())
}

// NewAddressRequired returns a 400 Bad Request for a missing address field.
func NewAddressRequired(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, field+" address is required")
}

// NewInvalidAddress returns a 400 Bad Request for an invalid address format.
func NewInvalidAddress(field string) error {
	return fiber.NewError(fiber.StatusBadRequest, "invalid "+field+" address")
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, amm.ErrPairNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, amm.ErrPairExists):
		return fiber.StatusConflict
	case errors.Is(err, amm.ErrIdenticalTokens),
		errors.Is(err, amm.ErrZeroToken),
		errors.Is(err, amm.ErrPathTooShort),
		errors.Is(err, amm.ErrInvalidRecipient),
		errors.Is(err, amm.ErrPairCustody),
		errors.Is(err, service.ErrSameToken),
		errors.Is(err, service.ErrPairMismatch),
		errors.Is(err, service.ErrEmptyReserves):
		return fiber.StatusBadRequest
	case errors.Is(err, amm.ErrInsufficientLiquidity),
		errors.Is(err, amm.ErrInsufficientInput),
		errors.Is(err, amm.ErrInsufficientOutput),
		errors.Is(err, amm.ErrSlippageExceeded),
		errors.Is(err, amm.ErrTransferFailed),
		errors.Is(err, amm.ErrArithmeticOverflow),
		errors.Is(err, custody.ErrInsufficientBalance),
		errors.Is(err, custody.ErrBalanceOverflow):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, service.ErrChainDisabled):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// handleServiceError converts a service error into a fiber error. Internal
// failures are logged and hidden behind a generic message.
func (h *BaseHandler) handleServiceError(err error) error {
	if errors.Is(err, service.ErrNotPersisted) {
		h.logger.Error("state not persisted", "err", err)
		return ErrNotPersisted
	}
	status := statusOf(err)
	if status == fiber.StatusInternalServerError {
		h.logger.Error("request failed", "err", err)
		return ErrInternal
	}
	return fiber.NewError(status, err.Error())
}
