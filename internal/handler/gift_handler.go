package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/livecast-io/livecast-api/internal/dto"
	"github.com/livecast-io/livecast-api/internal/middleware"
	"github.com/livecast-io/livecast-api/internal/service"
	"github.com/livecast-io/livecast-api/internal/utils"
)

// GiftHandler wires the gift catalog, inventory and transaction endpoints.
type GiftHandler struct {
	gifts     service.GiftService
	catalog   service.CatalogService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGiftHandler creates a gift handler instance.
func NewGiftHandler(gifts service.GiftService, catalog service.CatalogService, validator *validator.Validate, logger zerolog.Logger) *GiftHandler {
	return &GiftHandler{
		gifts:     gifts,
		catalog:   catalog,
		validator: validator,
		logger:    logger.With().Str("component", "gift_handler").Logger(),
	}
}

// Register binds gift routes under the provided router group.
func (h *GiftHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Post("/send", middleware.RequireCapability(middleware.CapGiftSend), h.send)
	router.Post("/purchase", middleware.RequireCapability(middleware.CapGiftPurchase), h.purchase)
	router.Get("/inventory", h.inventory)
	router.Get("/earnings", middleware.RequireCapability(middleware.CapEarningsRead), h.earnings)
}

func (h *GiftHandler) list(c *fiber.Ctx) error {
	gifts, err := h.catalog.List(requestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list gift catalog")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list gifts")
	}

	return utils.SendSuccess(c, "gift catalog", gifts)
}

func (h *GiftHandler) send(c *fiber.Ctx) error {
	userID := middleware.UserIDFromCtx(c)

	var req dto.GiftSendRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.gifts.SendGift(requestContext(c), userID, req)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrGiftNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "gift not found")
		case errors.Is(err, service.ErrSenderOrReceiverMissing):
			return utils.SendError(c, fiber.StatusNotFound, "sender or receiver not found")
		case errors.Is(err, service.ErrInsufficientInventory):
			return utils.SendError(c, fiber.StatusConflict, "not enough gifts in inventory")
		default:
			requestLogger(h.logger, c).Error().Err(err).Str("gift_slug", req.GiftSlug).Msg("failed to send gift")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to send gift")
		}
	}

	return utils.SendSuccess(c, "gift sent", result)
}

func (h *GiftHandler) purchase(c *fiber.Ctx) error {
	userID := middleware.UserIDFromCtx(c)

	var req dto.GiftPurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.gifts.Purchase(requestContext(c), userID, req)
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrGiftNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "gift not found")
		case errors.Is(err, service.ErrLedgerUserNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		case errors.Is(err, service.ErrInsufficientBalance):
			return utils.SendError(c, fiber.StatusConflict, "insufficient coin balance")
		default:
			requestLogger(h.logger, c).Error().Err(err).Str("gift_slug", req.GiftSlug).Msg("failed to purchase gift")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to purchase gift")
		}
	}

	return utils.SendSuccess(c, "gift purchased", result)
}

func (h *GiftHandler) inventory(c *fiber.Ctx) error {
	userID := middleware.UserIDFromCtx(c)

	items, err := h.gifts.Inventory(requestContext(c), userID)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list inventory")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list inventory")
	}

	return utils.SendSuccess(c, "gift inventory", items)
}

func (h *GiftHandler) earnings(c *fiber.Ctx) error {
	userID := middleware.UserIDFromCtx(c)

	summary, err := h.gifts.Earnings(requestContext(c), userID)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load earnings summary")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load earnings")
	}

	return utils.SendSuccess(c, "creator earnings", summary)
}
