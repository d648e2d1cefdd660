package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sabyrkhan/cafe-pos/internal/domain"
	"github.com/sabyrkhan/cafe-pos/internal/repository"
	"github.com/sabyrkhan/cafe-pos/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// createRetries bounds the order-number race retry loop.
	createRetries = 3

	// centavosPerPoint: one loyalty point per whole peso spent.
	centavosPerPoint = 100
)

type LineInput struct {
	ProductID uuid.UUID
	Quantity  int32
	Notes     string
	AddOnIDs  []uuid.UUID
}

type CreateOrderInput struct {
	CustomerID    *uuid.UUID
	Lines         []LineInput
	Notes         string
	InitialStatus domain.OrderStatus
	// Payment settles at the counter together with creation when set.
	Payment *SettlePaymentInput
}

type UpdateOrderInput struct {
	CustomerID *uuid.UUID
	Lines      []LineInput
	Status     domain.OrderStatus
}

type SettlePaymentInput struct {
	Method         domain.PaymentMethod
	AmountReceived int64
	Tips           int64
}

type OrderService interface {
	Create(ctx context.Context, actor uuid.UUID, input CreateOrderInput) (*domain.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	List(ctx context.Context, from, to time.Time) ([]domain.Order, error)
	Update(ctx context.Context, actor uuid.UUID, orderID uuid.UUID, input UpdateOrderInput) (*domain.Order, error)
	Advance(ctx context.Context, actor uuid.UUID, orderID uuid.UUID, target domain.OrderStatus) (*domain.Order, error)
	Void(ctx context.Context, actor uuid.UUID, orderID uuid.UUID) (*domain.Order, error)
	SettlePayment(ctx context.Context, actor uuid.UUID, orderID uuid.UUID, input SettlePaymentInput) (*domain.Order, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	catalogRepo repository.CatalogRepository
	loyaltyRepo repository.LoyaltyRepository
	audit       repository.AuditRecorder
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	catalogRepo repository.CatalogRepository,
	loyaltyRepo repository.LoyaltyRepository,
	audit repository.AuditRecorder,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		catalogRepo: catalogRepo,
		loyaltyRepo: loyaltyRepo,
		audit:       audit,
		logger:      logger,
		tracer:      otel.Tracer("order_service"),
	}
}

// buildLines validates every referenced product and add-on against the
// catalog and freezes the resolved prices into the line snapshot. An add-on's
// effective price is the active per-(product, add-on) override when one
// exists, otherwise its own catalog price.
func (s *orderService) buildLines(ctx context.Context, inputs []LineInput) ([]domain.OrderLine, error) {
	if len(inputs) == 0 {
		return nil, NewValidationError("order must contain at least one line")
	}

	lines := make([]domain.OrderLine, 0, len(inputs))
	for _, in := range inputs {
		if in.Quantity <= 0 {
			return nil, NewValidationError("line quantity must be positive")
		}

		product, err := s.catalogRepo.GetActiveProduct(ctx, in.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return nil, NewValidationError("product %s does not exist or is inactive", in.ProductID)
			}
			return nil, err
		}
		if product.IsAddOn {
			return nil, NewValidationError("product %s is an add-on and cannot be ordered on its own", in.ProductID)
		}

		line := domain.OrderLine{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  in.Quantity,
			Notes:     in.Notes,
		}

		for _, addOnID := range in.AddOnIDs {
			addOn, err := s.catalogRepo.GetActiveProduct(ctx, addOnID)
			if err != nil {
				if errors.Is(err, repository.ErrProductNotFound) {
					return nil, NewValidationError("add-on %s does not exist or is inactive", addOnID)
				}
				return nil, err
			}
			if !addOn.IsAddOn {
				return nil, NewValidationError("product %s is not an add-on", addOnID)
			}

			price := addOn.Price
			override, err := s.catalogRepo.GetActiveAddOnOverride(ctx, product.ID, addOn.ID)
			if err != nil {
				return nil, err
			}
			if override != nil {
				price = *override
			}

			line.AddOns = append(line.AddOns, domain.OrderLine{
				ProductID: addOn.ID,
				Name:      addOn.Name,
				UnitPrice: price,
				Quantity:  1,
			})
		}

		lines = append(lines, line)
	}

	return lines, nil
}

func (s *orderService) Create(ctx context.Context, actor uuid.UUID, input CreateOrderInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Create")
	defer span.End()

	span.SetAttributes(attribute.Int("lines_count", len(input.Lines)))

	status := input.InitialStatus
	if status == "" {
		status = domain.OrderStatusPending
	}
	if status.IsTerminal() {
		return nil, NewValidationError("order cannot be created in terminal status %q", status)
	}

	lines, err := s.buildLines(ctx, input.Lines)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:         uuid.New(),
		CreatedBy:  actor,
		CustomerID: input.CustomerID,
		Status:     status,
		Lines:      lines,
		Notes:      input.Notes,
	}
	order.CalculateTotal()

	if input.Payment != nil {
		if err := applyPayment(order, *input.Payment); err != nil {
			return nil, err
		}
	}

	for attempt := 0; ; attempt++ {
		err = s.orderRepo.Create(ctx, order)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrOrderNumberTaken) {
			span.RecordError(err)
			mylogger.Error(ctx, s.logger, "Failed to create order", zap.Error(err))

			return nil, fmt.Errorf("failed to create order: %w", err)
		}
		if attempt+1 >= createRetries {
			mylogger.Warn(
				ctx,
				s.logger,
				"Order number contention exhausted retries",
				zap.Int("attempts", attempt+1),
			)

			return nil, fmt.Errorf("%w: order number assignment", ErrConcurrency)
		}
	}

	s.recordAudit(ctx, actor, order.ID, "order_created", fmt.Sprintf("order #%d, total %d", order.Number, order.Total))

	mylogger.Info(
		ctx,
		s.logger,
		"Order created",
		zap.String("order_id", order.ID.String()),
		zap.Int64("order_number", order.Number),
	)

	return order, nil
}

func (s *orderService) Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.orderRepo.GetByID(ctx, orderID)
}

func (s *orderService) List(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	return s.orderRepo.ListWindow(ctx, from, to)
}

func (s *orderService) Update(ctx context.Context, actor uuid.UUID, orderID uuid.UUID, input UpdateOrderInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Update")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID.String()))

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, &InvalidStateError{Current: order.Status, Attempted: "update"}
	}

	status := input.Status
	if status == "" {
		status = order.Status
	}
	if status != order.Status && !order.Status.CanTransition(status) {
		return nil, &InvalidTransitionError{From: order.Status, To: status}
	}

	lines, err := s.buildLines(ctx, input.Lines)
	if err != nil {
		return nil, err
	}

	prev := order.Status
	order.CustomerID = input.CustomerID
	order.Status = status
	order.Lines = lines
	order.CalculateTotal()

	// The write compares against the status read above, so a concurrent
	// Advance cannot be silently overwritten with an older state.
	if err := s.orderRepo.ReplaceLines(ctx, order, prev); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, s.conflictError(ctx, orderID, "update", status)
		}

		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Failed to update order", zap.Error(err))

		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	if status == domain.OrderStatusCompleted && prev != domain.OrderStatusCompleted {
		s.accrueLoyalty(ctx, order)
	}

	s.recordAudit(ctx, actor, order.ID, "order_updated", fmt.Sprintf("lines replaced, total %d", order.Total))

	return order, nil
}

func (s *orderService) Advance(ctx context.Context, actor uuid.UUID, orderID uuid.UUID, target domain.OrderStatus) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Advance")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", orderID.String()),
		attribute.String("target", string(target)),
	)

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransition(target) {
		return nil, &InvalidTransitionError{From: order.Status, To: target}
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, order.Status, target); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, s.conflictError(ctx, orderID, "advance", target)
		}

		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Failed to advance order", zap.Error(err))

		return nil, fmt.Errorf("failed to advance order: %w", err)
	}

	from := order.Status
	order.Status = target

	if target == domain.OrderStatusCompleted {
		s.accrueLoyalty(ctx, order)
	}

	s.recordAudit(ctx, actor, orderID, "order_status_changed", fmt.Sprintf("%s -> %s", from, target))

	return order, nil
}

// accrueLoyalty adds one point per whole peso of the order total. Both
// completion paths write the new status with a compare-and-set against the
// status they read, so exactly one winner reaches this per completed order.
// Accrual failure is logged, never surfaced: the completion already committed.
func (s *orderService) accrueLoyalty(ctx context.Context, order *domain.Order) {
	if order.CustomerID == nil {
		return
	}

	points := order.Total / centavosPerPoint
	if points <= 0 {
		return
	}

	if err := s.loyaltyRepo.AddPoints(ctx, *order.CustomerID, points); err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to accrue loyalty points",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *orderService) Void(ctx context.Context, actor uuid.UUID, orderID uuid.UUID) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Void")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID.String()))

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusCompleted {
		return nil, &InvalidStateError{Current: order.Status, Attempted: "void"}
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, domain.OrderStatusCompleted, domain.OrderStatusVoided); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, s.conflictError(ctx, orderID, "void", domain.OrderStatusVoided)
		}

		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Failed to void order", zap.Error(err))

		return nil, fmt.Errorf("failed to void order: %w", err)
	}

	order.Status = domain.OrderStatusVoided

	s.recordAudit(ctx, actor, orderID, "order_voided", fmt.Sprintf("order #%d corrected, total %d excluded from revenue", order.Number, order.Total))

	mylogger.Info(
		ctx,
		s.logger,
		"Order voided",
		zap.String("order_id", orderID.String()),
		zap.Int64("order_number", order.Number),
	)

	return order, nil
}

// applyPayment validates the method and writes method, received amount,
// change and tips onto the order. Change is only meaningful for cash
// handling; card and wallet charges capture the exact total.
func applyPayment(order *domain.Order, input SettlePaymentInput) error {
	if _, ok := domain.ParsePaymentMethod(string(input.Method)); !ok {
		return NewValidationError("unknown payment method %q", input.Method)
	}
	if input.AmountReceived < 0 || input.Tips < 0 {
		return NewValidationError("amounts must not be negative")
	}

	method := input.Method
	order.PaymentMethod = &method
	order.Tips = input.Tips

	if method == domain.PaymentMethodCash {
		if input.AmountReceived < order.Total {
			return NewValidationError("amount received %d is less than total %d", input.AmountReceived, order.Total)
		}
		order.AmountReceived = input.AmountReceived
		order.Change = input.AmountReceived - order.Total
	} else {
		order.AmountReceived = order.Total
		order.Change = 0
	}

	return nil
}

func (s *orderService) SettlePayment(ctx context.Context, actor uuid.UUID, orderID uuid.UUID, input SettlePaymentInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.SettlePayment")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", orderID.String()),
		attribute.String("method", string(input.Method)),
	)

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, &InvalidStateError{Current: order.Status, Attempted: "settle payment for"}
	}

	if err := applyPayment(order, input); err != nil {
		return nil, err
	}

	if err := s.orderRepo.SetPayment(ctx, order); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, s.conflictError(ctx, orderID, "settle payment for", order.Status)
		}

		span.RecordError(err)
		mylogger.Error(ctx, s.logger, "Failed to settle payment", zap.Error(err))

		return nil, fmt.Errorf("failed to settle payment: %w", err)
	}

	s.recordAudit(ctx, actor, orderID, "payment_settled", fmt.Sprintf("%s, received %d, change %d, tips %d", input.Method, order.AmountReceived, order.Change, order.Tips))

	return order, nil
}

// conflictError re-reads the order after a lost compare-and-set to report
// what actually happened: the order vanished, or it moved to a state the
// operation does not permit.
func (s *orderService) conflictError(ctx context.Context, orderID uuid.UUID, attempted string, target domain.OrderStatus) error {
	fresh, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	if fresh.Status.CanTransition(target) {
		// The state raced but the transition is still legal; the caller can retry.
		return fmt.Errorf("%w: order %s", ErrConcurrency, orderID)
	}

	if attempted == "advance" {
		return &InvalidTransitionError{From: fresh.Status, To: target}
	}

	return &InvalidStateError{Current: fresh.Status, Attempted: attempted}
}

func (s *orderService) recordAudit(ctx context.Context, actor, orderID uuid.UUID, action, detail string) {
	entry := &domain.AuditEntry{
		ActorID: actor,
		Action:  action,
		OrderID: orderID,
		Detail:  detail,
	}

	// Audit persistence is a collaborator concern; its failure never fails
	// the mutation that already committed.
	if err := s.audit.Record(ctx, entry); err != nil {
		mylogger.Warn(
			ctx,
			s.logger,
			"Failed to record audit entry",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
