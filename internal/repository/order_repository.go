package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sabyrkhan/cafe-pos/internal/domain"
	"github.com/sabyrkhan/cafe-pos/pkg/mylogger"
	outboxDomain "github.com/sabyrkhan/cafe-pos/pkg/outbox/domain"
	"github.com/sabyrkhan/cafe-pos/pkg/outbox/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// ReplaceLines writes the order only if its stored status still equals
	// from; otherwise it returns ErrStatusConflict.
	ReplaceLines(ctx context.Context, order *domain.Order, from domain.OrderStatus) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error
	SetPayment(ctx context.Context, order *domain.Order) error
	ListWindow(ctx context.Context, from, to time.Time) ([]domain.Order, error)
}

type orderRepo struct {
	pool       *pgxpool.Pool
	outboxRepo worker.OutboxRepository
	topic      string
	logger     *zap.Logger
	tracer     trace.Tracer
}

func NewOrderRepository(pool *pgxpool.Pool, outboxRepo worker.OutboxRepository, topic string, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		pool:       pool,
		outboxRepo: outboxRepo,
		topic:      topic,
		logger:     logger,
		tracer:     otel.Tracer("order_repo"),
	}
}

// saveOrderChanged writes the order-changed outbox row in the same transaction
// as the mutation, so the dashboard signal can never be lost or duplicated
// relative to the committed state.
func (r *orderRepo) saveOrderChanged(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	event := domain.OrderChangedEvent{
		OrderID:    order.ID,
		Number:     order.Number,
		Status:     order.Status,
		OccurredAt: time.Now().UTC(),
	}

	envelope := map[string]any{
		"event":   "OrderChanged",
		"payload": event,
	}

	payloadBytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	return r.outboxRepo.SaveOutboxEvent(ctx, tx, &outboxDomain.OutboxEvent{
		AggregateType: "Order",
		AggregateID:   order.ID.String(),
		EventType:     "OrderChanged",
		Payload:       payloadBytes,
		Topic:         r.topic,
	})
}

func (r *orderRepo) begin(ctx context.Context) (pgx.Tx, func(), error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		mylogger.Error(ctx, r.logger, "Failed to begin transaction", zap.Error(err))
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	rollback := func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(cleanupCtx, r.logger, "Failed to rollback transaction", zap.Error(err))
		}
	}

	return tx, rollback, nil
}

func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", order.ID.String()),
		attribute.Int("lines_count", len(order.Lines)),
	)

	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	// The order number comes from max+1 under a unique index. Two racing
	// creates both insert, one loses with 23505 and the caller retries with
	// a fresh draw. Gaps from aborted creates are fine, duplicates are not.
	var method *string
	if order.PaymentMethod != nil {
		m := string(*order.PaymentMethod)
		method = &m
	}

	queryOrder := `
		INSERT INTO orders (id, order_number, created_by, customer_id, status, total,
		                    payment_method, amount_received, change_amount, tips, notes, created_at, updated_at)
		VALUES ($1, (SELECT COALESCE(MAX(order_number), 0) + 1 FROM orders), $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING order_number, created_at, updated_at
	`

	if err := tx.QueryRow(
		ctx,
		queryOrder,
		order.ID,
		order.CreatedBy,
		order.CustomerID,
		string(order.Status),
		order.Total,
		method,
		order.AmountReceived,
		order.Change,
		order.Tips,
		order.Notes,
	).Scan(
		&order.Number,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == "23505" {
			mylogger.Warn(
				ctx,
				r.logger,
				"Order number collision",
				zap.String("order_id", order.ID.String()),
			)

			return ErrOrderNumberTaken
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to insert order", zap.Error(err))

		return fmt.Errorf("failed to insert order: %w", err)
	}

	if err := r.insertLines(ctx, tx, order); err != nil {
		span.RecordError(err)
		return err
	}

	if err := r.saveOrderChanged(ctx, tx, order); err != nil {
		span.RecordError(err)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, r.logger, "Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *orderRepo) insertLines(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	queryLine := `
		INSERT INTO order_lines (order_id, parent_line_id, product_id, name, unit_price, quantity, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	for i := range order.Lines {
		line := &order.Lines[i]

		if err := tx.QueryRow(
			ctx,
			queryLine,
			order.ID,
			nil,
			line.ProductID,
			line.Name,
			line.UnitPrice,
			line.Quantity,
			line.Notes,
		).Scan(&line.ID); err != nil {
			mylogger.Error(ctx, r.logger, "Failed to insert order line", zap.Error(err))
			return fmt.Errorf("failed to insert order line: %w", err)
		}

		for j := range line.AddOns {
			addOn := &line.AddOns[j]

			if err := tx.QueryRow(
				ctx,
				queryLine,
				order.ID,
				line.ID,
				addOn.ProductID,
				addOn.Name,
				addOn.UnitPrice,
				addOn.Quantity,
				addOn.Notes,
			).Scan(&addOn.ID); err != nil {
				mylogger.Error(ctx, r.logger, "Failed to insert add-on line", zap.Error(err))
				return fmt.Errorf("failed to insert add-on line: %w", err)
			}
		}
	}

	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", id.String()))

	query := `
		SELECT id, order_number, created_by, customer_id, status, total,
		       payment_method, amount_received, change_amount, tips, notes,
		       created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var (
		order  domain.Order
		status string
		method *string
	)
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&order.ID,
		&order.Number,
		&order.CreatedBy,
		&order.CustomerID,
		&status,
		&order.Total,
		&method,
		&order.AmountReceived,
		&order.Change,
		&order.Tips,
		&order.Notes,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to query order", zap.Error(err))

		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	order.Status = domain.OrderStatus(status)
	if method != nil {
		m := domain.PaymentMethod(*method)
		order.PaymentMethod = &m
	}

	lines, err := r.loadLines(ctx, []uuid.UUID{id})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	order.Lines = lines[id]

	return &order, nil
}

// loadLines fetches the lines of a set of orders in one round trip and
// reattaches add-on rows to their parent line.
func (r *orderRepo) loadLines(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID][]domain.OrderLine, error) {
	query := `
		SELECT id, order_id, parent_line_id, product_id, name, unit_price, quantity, notes
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY parent_line_id NULLS FIRST, id
	`

	rows, err := r.pool.Query(ctx, query, orderIDs)
	if err != nil {
		mylogger.Error(ctx, r.logger, "Failed to query order lines", zap.Error(err))
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	type lineRef struct {
		orderID uuid.UUID
		idx     int
	}

	result := make(map[uuid.UUID][]domain.OrderLine, len(orderIDs))
	parents := make(map[int64]lineRef)

	for rows.Next() {
		var (
			line     domain.OrderLine
			parentID *int64
		)
		if err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&parentID,
			&line.ProductID,
			&line.Name,
			&line.UnitPrice,
			&line.Quantity,
			&line.Notes,
		); err != nil {
			mylogger.Error(ctx, r.logger, "Failed to scan order line", zap.Error(err))
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}

		if parentID == nil {
			result[line.OrderID] = append(result[line.OrderID], line)
			parents[line.ID] = lineRef{orderID: line.OrderID, idx: len(result[line.OrderID]) - 1}
			continue
		}

		// Parent rows sort before add-on rows, so the reference is present.
		if ref, ok := parents[*parentID]; ok {
			lines := result[ref.orderID]
			lines[ref.idx].AddOns = append(lines[ref.idx].AddOns, line)
		}
	}

	if err := rows.Err(); err != nil {
		mylogger.Error(ctx, r.logger, "Rows error", zap.Error(err))
		return nil, err
	}

	return result, nil
}

func (r *orderRepo) ReplaceLines(ctx context.Context, order *domain.Order, from domain.OrderStatus) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ReplaceLines")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", order.ID.String()),
		attribute.String("from", string(from)),
		attribute.Int("lines_count", len(order.Lines)),
	)

	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	query := `
		UPDATE orders
		SET customer_id = $2, status = $3, total = $4, notes = $5, updated_at = NOW()
		WHERE id = $1 AND status = $6
	`

	commandTag, err := tx.Exec(ctx, query, order.ID, order.CustomerID, string(order.Status), order.Total, order.Notes, string(from))
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to update order", zap.Error(err))

		return fmt.Errorf("failed to update order: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrStatusConflict
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id = $1`, order.ID); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to delete order lines", zap.Error(err))

		return fmt.Errorf("failed to delete order lines: %w", err)
	}

	if err := r.insertLines(ctx, tx, order); err != nil {
		span.RecordError(err)
		return err
	}

	if err := r.saveOrderChanged(ctx, tx, order); err != nil {
		span.RecordError(err)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, r.logger, "Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", id.String()),
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	)

	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	query := `
		UPDATE orders
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING order_number
	`

	var number int64
	if err := tx.QueryRow(ctx, query, id, string(from), string(to)).Scan(&number); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStatusConflict
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to update order status", zap.Error(err))

		return fmt.Errorf("failed to update order status: %w", err)
	}

	if err := r.saveOrderChanged(ctx, tx, &domain.Order{ID: id, Number: number, Status: to}); err != nil {
		span.RecordError(err)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, r.logger, "Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *orderRepo) SetPayment(ctx context.Context, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.SetPayment")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", order.ID.String()))

	tx, rollback, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer rollback()

	var method *string
	if order.PaymentMethod != nil {
		m := string(*order.PaymentMethod)
		method = &m
	}

	query := `
		UPDATE orders
		SET payment_method = $2, amount_received = $3, change_amount = $4, tips = $5, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('completed', 'cancelled', 'voided')
	`

	commandTag, err := tx.Exec(ctx, query, order.ID, method, order.AmountReceived, order.Change, order.Tips)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to set payment", zap.Error(err))

		return fmt.Errorf("failed to set payment: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrStatusConflict
	}

	if err := r.saveOrderChanged(ctx, tx, order); err != nil {
		span.RecordError(err)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		mylogger.Error(ctx, r.logger, "Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *orderRepo) ListWindow(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListWindow")
	defer span.End()

	span.SetAttributes(
		attribute.String("from", from.Format(time.RFC3339)),
		attribute.String("to", to.Format(time.RFC3339)),
	)

	query := `
		SELECT id, order_number, created_by, customer_id, status, total,
		       payment_method, amount_received, change_amount, tips, notes,
		       created_at, updated_at
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to query orders window", zap.Error(err))

		return nil, fmt.Errorf("failed to query orders window: %w", err)
	}
	defer rows.Close()

	var (
		orders []domain.Order
		ids    []uuid.UUID
	)
	for rows.Next() {
		var (
			order  domain.Order
			status string
			method *string
		)
		if err := rows.Scan(
			&order.ID,
			&order.Number,
			&order.CreatedBy,
			&order.CustomerID,
			&status,
			&order.Total,
			&method,
			&order.AmountReceived,
			&order.Change,
			&order.Tips,
			&order.Notes,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			span.RecordError(err)
			mylogger.Error(ctx, r.logger, "Failed to scan order", zap.Error(err))

			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		order.Status = domain.OrderStatus(status)
		if method != nil {
			m := domain.PaymentMethod(*method)
			order.PaymentMethod = &m
		}

		orders = append(orders, order)
		ids = append(ids, order.ID)
	}

	if err := rows.Err(); err != nil {
		mylogger.Error(ctx, r.logger, "Rows error", zap.Error(err))
		return nil, err
	}

	if len(orders) == 0 {
		return orders, nil
	}

	lines, err := r.loadLines(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}

	return orders, nil
}
