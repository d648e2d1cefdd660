package handler

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sabyrkhan/cafe-pos/internal/service"
	"github.com/sabyrkhan/cafe-pos/pkg/mylogger"
	"github.com/sabyrkhan/cafe-pos/pkg/utils"
	"go.uber.org/zap"
)

type GenerateLinkRequest struct {
	CustomerID string `json:"customer_id" validate:"required,uuid"`
}

type ShortLinkHandler struct {
	service  service.ShortLinkService
	linkBase string
	logger   *zap.Logger
	validate *validator.Validate
}

func NewShortLinkHandler(service service.ShortLinkService, linkBase string, logger *zap.Logger) *ShortLinkHandler {
	return &ShortLinkHandler{
		service:  service,
		linkBase: linkBase,
		logger:   logger,
		validate: validator.New(),
	}
}

func (h *ShortLinkHandler) Generate(c *fiber.Ctx) error {
	input := new(GenerateLinkRequest)

	if err := c.BodyParser(input); err != nil {
		h.logger.Warn(
			"failed to parse body in generate link",
			zap.Error(err),
		)

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": utils.FormatValidationError(err),
		})
	}

	link, err := h.service.Generate(c.UserContext(), uuid.MustParse(input.CustomerID), 0)
	if err != nil {
		return writeServiceError(c, err)
	}

	mylogger.Info(
		c.UserContext(),
		h.logger,
		"short link generated",
		zap.String("token", link.Token),
	)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":      link.Token,
		"url":        fmt.Sprintf("%s/l/%s", c.BaseURL(), link.Token),
		"expires_at": link.ExpiresAt,
	})
}

// Redirect serves the public /l/:token entry. Live tokens bounce the visitor
// to the loyalty page; unknown and expired ones both answer 404.
func (h *ShortLinkHandler) Redirect(c *fiber.Ctx) error {
	customerID, err := h.service.Resolve(c.UserContext(), c.Params("token"))
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.Redirect(fmt.Sprintf("%s/%s", h.linkBase, customerID), fiber.StatusFound)
}

func (h *ShortLinkHandler) Balance(c *fiber.Ctx) error {
	customerID, err := uuid.Parse(c.Params("customerId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid customer id"})
	}

	balance, err := h.service.Balance(c.UserContext(), customerID)
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"customer_id": customerID,
		"points":      balance,
	})
}
