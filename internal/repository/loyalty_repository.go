package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sabyrkhan/cafe-pos/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type LoyaltyRepository interface {
	AddPoints(ctx context.Context, customerID uuid.UUID, points int64) error
	GetBalance(ctx context.Context, customerID uuid.UUID) (int64, error)
}

type loyaltyRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewLoyaltyRepository(pool *pgxpool.Pool, logger *zap.Logger) LoyaltyRepository {
	return &loyaltyRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("loyalty_repo"),
	}
}

func (r *loyaltyRepo) AddPoints(ctx context.Context, customerID uuid.UUID, points int64) error {
	ctx, span := r.tracer.Start(ctx, "LoyaltyRepository.AddPoints")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer_id", customerID.String()),
		attribute.Int64("points", points),
	)

	query := `
		INSERT INTO loyalty_accounts (customer_id, points, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (customer_id)
		DO UPDATE SET points = loyalty_accounts.points + EXCLUDED.points, updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, customerID, points); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to add loyalty points", zap.Error(err))

		return fmt.Errorf("failed to add loyalty points: %w", err)
	}

	return nil
}

func (r *loyaltyRepo) GetBalance(ctx context.Context, customerID uuid.UUID) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "LoyaltyRepository.GetBalance")
	defer span.End()

	span.SetAttributes(attribute.String("customer_id", customerID.String()))

	query := `
		SELECT points
		FROM loyalty_accounts
		WHERE customer_id = $1
	`

	var points int64
	if err := r.pool.QueryRow(ctx, query, customerID).Scan(&points); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to query loyalty balance", zap.Error(err))

		return 0, fmt.Errorf("failed to query loyalty balance: %w", err)
	}

	return points, nil
}
