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

// WalletHandler exposes the coin balance and the ledger history behind it.
type WalletHandler struct {
	ledger    service.LedgerService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewWalletHandler creates a wallet handler instance.
func NewWalletHandler(ledger service.LedgerService, validator *validator.Validate, logger zerolog.Logger) *WalletHandler {
	return &WalletHandler{
		ledger:    ledger,
		validator: validator,
		logger:    logger.With().Str("component", "wallet_handler").Logger(),
	}
}

// Register binds wallet routes under the provided router group.
func (h *WalletHandler) Register(router fiber.Router) {
	router.Get("/", h.balance)
	router.Get("/transactions", h.transactions)
}

func (h *WalletHandler) balance(c *fiber.Ctx) error {
	userID := middleware.UserIDFromCtx(c)

	balance, err := h.ledger.Balance(requestContext(c), userID)
	if err != nil {
		if errors.Is(err, service.ErrLedgerUserNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "user not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load wallet balance")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load balance")
	}

	return utils.SendSuccess(c, "wallet balance", dto.WalletResponse{
		UserID:      userID,
		CoinBalance: balance,
		BalanceUSD:  service.CoinsToUSD(balance),
	})
}

func (h *WalletHandler) transactions(c *fiber.Ctx) error {
	userID := middleware.UserIDFromCtx(c)

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	query := dto.LedgerHistoryQuery{
		Reason: c.Query("reason"),
		Limit:  limit,
		Offset: offset,
	}
	if err := h.validator.Struct(query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	entries, err := h.ledger.History(requestContext(c), userID, query)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load ledger history")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load transactions")
	}

	return utils.SendSuccess(c, "wallet transactions", entries)
}
