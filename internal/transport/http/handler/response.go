package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sabyrkhan/cafe-pos/internal/domain"
	"github.com/sabyrkhan/cafe-pos/internal/repository"
	"github.com/sabyrkhan/cafe-pos/internal/service"
)

type OrderLineResponse struct {
	ProductID uuid.UUID           `json:"product_id"`
	Name      string              `json:"name"`
	UnitPrice int64               `json:"unit_price"`
	Quantity  int32               `json:"quantity"`
	Subtotal  int64               `json:"subtotal"`
	Notes     string              `json:"notes,omitempty"`
	AddOns    []OrderLineResponse `json:"add_ons,omitempty"`
}

type OrderResponse struct {
	ID             uuid.UUID           `json:"id"`
	Number         int64               `json:"order_number"`
	Status         domain.OrderStatus  `json:"status"`
	CustomerID     *uuid.UUID          `json:"customer_id,omitempty"`
	Lines          []OrderLineResponse `json:"lines"`
	Total          int64               `json:"total"`
	PaymentMethod  *string             `json:"payment_method,omitempty"`
	AmountReceived int64               `json:"amount_received"`
	Change         int64               `json:"change"`
	Tips           int64               `json:"tips"`
	Notes          string              `json:"notes,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func toLineResponse(line *domain.OrderLine) OrderLineResponse {
	resp := OrderLineResponse{
		ProductID: line.ProductID,
		Name:      line.Name,
		UnitPrice: line.UnitPrice,
		Quantity:  line.Quantity,
		Subtotal:  line.Subtotal(),
		Notes:     line.Notes,
	}
	for i := range line.AddOns {
		resp.AddOns = append(resp.AddOns, toLineResponse(&line.AddOns[i]))
	}
	return resp
}

func toOrderResponse(order *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:             order.ID,
		Number:         order.Number,
		Status:         order.Status,
		CustomerID:     order.CustomerID,
		Lines:          make([]OrderLineResponse, 0, len(order.Lines)),
		Total:          order.Total,
		AmountReceived: order.AmountReceived,
		Change:         order.Change,
		Tips:           order.Tips,
		Notes:          order.Notes,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
	if order.PaymentMethod != nil {
		method := string(*order.PaymentMethod)
		resp.PaymentMethod = &method
	}
	for i := range order.Lines {
		resp.Lines = append(resp.Lines, toLineResponse(&order.Lines[i]))
	}
	return resp
}

// writeServiceError maps domain failures onto HTTP: caller mistakes get 400,
// missing records 404, state and write races 409, everything else 500.
func writeServiceError(c *fiber.Ctx, err error) error {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr.Message})
	}

	switch {
	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrCustomerNotFound),
		errors.Is(err, repository.ErrShortLinkNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}

	var stateErr *service.InvalidStateError
	if errors.As(err, &stateErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": stateErr.Error()})
	}

	var transitionErr *service.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": transitionErr.Error()})
	}

	if errors.Is(err, service.ErrConcurrency) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "concurrent modification, please retry"})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

func actorFromLocals(c *fiber.Ctx) (uuid.UUID, bool) {
	userId, ok := c.Locals("userId").(uuid.UUID)
	return userId, ok
}
