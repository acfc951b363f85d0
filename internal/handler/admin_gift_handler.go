package handler

import (
	"errors"
	"io"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/livecast-io/livecast-api/internal/dto"
	"github.com/livecast-io/livecast-api/internal/middleware"
	"github.com/livecast-io/livecast-api/internal/service"
	"github.com/livecast-io/livecast-api/internal/utils"
)

// AdminGiftHandler maintains the gift catalog. Upserts accept multipart forms
// so artwork can be attached alongside the catalog fields.
type AdminGiftHandler struct {
	catalog   service.CatalogService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAdminGiftHandler creates an admin gift handler instance.
func NewAdminGiftHandler(catalog service.CatalogService, validator *validator.Validate, logger zerolog.Logger) *AdminGiftHandler {
	return &AdminGiftHandler{
		catalog:   catalog,
		validator: validator,
		logger:    logger.With().Str("component", "admin_gift_handler").Logger(),
	}
}

// Register binds admin catalog routes under the provided router group.
func (h *AdminGiftHandler) Register(router fiber.Router) {
	router.Use(middleware.RequireCapability(middleware.CapCatalogManage))
	router.Post("/", h.upsert)
	router.Put("/", h.upsert)
	router.Patch("/:slug/active", h.setActive)
	router.Delete("/:slug", h.remove)
}

func (h *AdminGiftHandler) upsert(c *fiber.Ctx) error {
	coinCost, err := strconv.ParseInt(c.FormValue("coin_cost"), 10, 64)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid coin_cost")
	}

	req := dto.AdminGiftUpsertRequest{
		Slug:     c.FormValue("slug"),
		Name:     c.FormValue("name"),
		CoinCost: coinCost,
		Rarity:   c.FormValue("rarity"),
	}
	if raw := c.FormValue("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid active flag")
		}
		req.Active = &active
	}

	var (
		artwork     io.Reader
		artworkName string
	)
	if file, err := c.FormFile("artwork"); err == nil && file != nil {
		opened, err := file.Open()
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "failed to read artwork upload")
		}
		defer opened.Close()
		artwork = opened
		artworkName = file.Filename
	}

	gift, err := h.catalog.Upsert(requestContext(c), req, artworkName, artwork)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Str("slug", req.Slug).Msg("failed to upsert gift")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to save gift")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "gift saved", gift)
}

func (h *AdminGiftHandler) setActive(c *fiber.Ctx) error {
	slug := c.Params("slug")

	var body struct {
		Active bool `json:"active"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.catalog.SetActive(requestContext(c), slug, body.Active); err != nil {
		if errors.Is(err, service.ErrGiftNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "gift not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Str("slug", slug).Msg("failed to update gift status")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to update gift")
	}

	return utils.SendSuccess(c, "gift updated", fiber.Map{"slug": slug, "active": body.Active})
}

// remove deactivates a gift so it disappears from the public catalog. Rows are
// kept because transaction history references the slug.
func (h *AdminGiftHandler) remove(c *fiber.Ctx) error {
	slug := c.Params("slug")

	if err := h.catalog.SetActive(requestContext(c), slug, false); err != nil {
		if errors.Is(err, service.ErrGiftNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "gift not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Str("slug", slug).Msg("failed to remove gift")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to remove gift")
	}

	return utils.SendSuccess(c, "gift removed", fiber.Map{"slug": slug})
}
