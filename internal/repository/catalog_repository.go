package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sabyrkhan/cafe-pos/internal/domain"
	"github.com/sabyrkhan/cafe-pos/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CatalogRepository is the read-only snapshot view the lifecycle manager
// prices order lines from.
type CatalogRepository interface {
	GetActiveProduct(ctx context.Context, id uuid.UUID) (*domain.CatalogProduct, error)
	// GetActiveAddOnOverride returns the per-(product, add-on) override price,
	// or nil when no active override exists.
	GetActiveAddOnOverride(ctx context.Context, productID, addOnID uuid.UUID) (*int64, error)
}

type catalogRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewCatalogRepository(pool *pgxpool.Pool, logger *zap.Logger) CatalogRepository {
	return &catalogRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("catalog_repo"),
	}
}

func (r *catalogRepo) GetActiveProduct(ctx context.Context, id uuid.UUID) (*domain.CatalogProduct, error) {
	ctx, span := r.tracer.Start(ctx, "CatalogRepository.GetActiveProduct")
	defer span.End()

	span.SetAttributes(attribute.String("product_id", id.String()))

	query := `
		SELECT id, name, price, is_addon, active
		FROM products
		WHERE id = $1 AND active
	`

	var product domain.CatalogProduct
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.IsAddOn,
		&product.Active,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to query product", zap.Error(err))

		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	return &product, nil
}

func (r *catalogRepo) GetActiveAddOnOverride(ctx context.Context, productID, addOnID uuid.UUID) (*int64, error) {
	ctx, span := r.tracer.Start(ctx, "CatalogRepository.GetActiveAddOnOverride")
	defer span.End()

	span.SetAttributes(
		attribute.String("product_id", productID.String()),
		attribute.String("addon_id", addOnID.String()),
	)

	query := `
		SELECT price
		FROM addon_price_overrides
		WHERE product_id = $1 AND addon_id = $2 AND active
	`

	var price int64
	if err := r.pool.QueryRow(ctx, query, productID, addOnID).Scan(&price); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to query add-on override", zap.Error(err))

		return nil, fmt.Errorf("failed to query add-on override: %w", err)
	}

	return &price, nil
}
