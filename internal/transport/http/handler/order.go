package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sabyrkhan/cafe-pos/internal/domain"
	"github.com/sabyrkhan/cafe-pos/internal/service"
	"github.com/sabyrkhan/cafe-pos/pkg/mylogger"
	"github.com/sabyrkhan/cafe-pos/pkg/utils"
	"go.uber.org/zap"
)

type LineRequest struct {
	ProductID string   `json:"product_id" validate:"required,uuid"`
	Quantity  int32    `json:"quantity" validate:"required,gt=0"`
	Notes     string   `json:"notes"`
	AddOnIDs  []string `json:"add_on_ids" validate:"dive,uuid"`
}

type CreateOrderRequest struct {
	CustomerID string                `json:"customer_id" validate:"omitempty,uuid"`
	Lines      []LineRequest         `json:"lines" validate:"required,min=1,dive"`
	Notes      string                `json:"notes"`
	Status     string                `json:"status" validate:"omitempty,oneof=pending preparing ready"`
	Payment    *SettlePaymentRequest `json:"payment" validate:"omitempty"`
}

type UpdateOrderRequest struct {
	CustomerID string        `json:"customer_id" validate:"omitempty,uuid"`
	Lines      []LineRequest `json:"lines" validate:"required,min=1,dive"`
	Status     string        `json:"status" validate:"omitempty,oneof=pending preparing ready completed cancelled"`
}

type AdvanceStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending preparing ready completed cancelled voided"`
}

type SettlePaymentRequest struct {
	Method         string `json:"method" validate:"required,oneof=cash card gcash"`
	AmountReceived int64  `json:"amount_received" validate:"gte=0"`
	Tips           int64  `json:"tips" validate:"gte=0"`
}

type OrderHandler struct {
	service  service.OrderService
	logger   *zap.Logger
	validate *validator.Validate
}

func NewOrderHandler(service service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		logger:   logger,
		validate: validator.New(),
	}
}

func toLineInputs(lines []LineRequest) []service.LineInput {
	inputs := make([]service.LineInput, 0, len(lines))
	for _, line := range lines {
		input := service.LineInput{
			ProductID: uuid.MustParse(line.ProductID),
			Quantity:  line.Quantity,
			Notes:     line.Notes,
		}
		for _, id := range line.AddOnIDs {
			input.AddOnIDs = append(input.AddOnIDs, uuid.MustParse(id))
		}
		inputs = append(inputs, input)
	}
	return inputs
}

func parseCustomerID(raw string) *uuid.UUID {
	if raw == "" {
		return nil
	}
	id := uuid.MustParse(raw)
	return &id
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	input := new(CreateOrderRequest)

	if err := c.BodyParser(input); err != nil {
		h.logger.Warn(
			"failed to parse body in create order",
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

	userId, ok := actorFromLocals(c)
	if !ok {
		mylogger.Info(c.UserContext(), h.logger, "user_id get failed")

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	createInput := service.CreateOrderInput{
		CustomerID:    parseCustomerID(input.CustomerID),
		Lines:         toLineInputs(input.Lines),
		Notes:         input.Notes,
		InitialStatus: domain.OrderStatus(input.Status),
	}
	if input.Payment != nil {
		createInput.Payment = &service.SettlePaymentInput{
			Method:         domain.PaymentMethod(input.Payment.Method),
			AmountReceived: input.Payment.AmountReceived,
			Tips:           input.Payment.Tips,
		}
	}

	order, err := h.service.Create(c.UserContext(), userId, createInput)
	if err != nil {
		return writeServiceError(c, err)
	}

	mylogger.Info(
		c.UserContext(),
		h.logger,
		"create order succeeded",
		zap.String("order_id", order.ID.String()),
		zap.Int64("order_number", order.Number),
	)

	return c.Status(fiber.StatusCreated).JSON(toOrderResponse(order))
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	from, to, err := parseRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid range, expected YYYY-MM-DD"})
	}

	orders, err := h.service.List(c.UserContext(), from, to)
	if err != nil {
		return writeServiceError(c, err)
	}

	responses := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		responses = append(responses, toOrderResponse(&orders[i]))
	}

	return c.JSON(fiber.Map{"orders": responses})
}

func (h *OrderHandler) FindByID(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	order, err := h.service.Get(c.UserContext(), orderID)
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(toOrderResponse(order))
}

func (h *OrderHandler) Update(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	input := new(UpdateOrderRequest)
	if err := c.BodyParser(input); err != nil {
		h.logger.Warn(
			"failed to parse body in update order",
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

	userId, ok := actorFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	order, err := h.service.Update(c.UserContext(), userId, orderID, service.UpdateOrderInput{
		CustomerID: parseCustomerID(input.CustomerID),
		Lines:      toLineInputs(input.Lines),
		Status:     domain.OrderStatus(input.Status),
	})
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(toOrderResponse(order))
}

func (h *OrderHandler) AdvanceStatus(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	input := new(AdvanceStatusRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": utils.FormatValidationError(err),
		})
	}

	userId, ok := actorFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	order, err := h.service.Advance(c.UserContext(), userId, orderID, domain.OrderStatus(input.Status))
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(toOrderResponse(order))
}

func (h *OrderHandler) Void(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	userId, ok := actorFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	order, err := h.service.Void(c.UserContext(), userId, orderID)
	if err != nil {
		return writeServiceError(c, err)
	}

	mylogger.Info(
		c.UserContext(),
		h.logger,
		"void order succeeded",
		zap.String("order_id", order.ID.String()),
	)

	return c.JSON(toOrderResponse(order))
}

func (h *OrderHandler) SettlePayment(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	input := new(SettlePaymentRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": utils.FormatValidationError(err),
		})
	}

	userId, ok := actorFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "userId parsing error"})
	}

	order, err := h.service.SettlePayment(c.UserContext(), userId, orderID, service.SettlePaymentInput{
		Method:         domain.PaymentMethod(input.Method),
		AmountReceived: input.AmountReceived,
		Tips:           input.Tips,
	})
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(toOrderResponse(order))
}
