package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sabyrkhan/cafe-pos/internal/domain"
	"github.com/sabyrkhan/cafe-pos/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// AuditRecorder persists audit facts emitted by the lifecycle manager.
type AuditRecorder interface {
	Record(ctx context.Context, entry *domain.AuditEntry) error
}

type auditRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewAuditRepository(pool *pgxpool.Pool, logger *zap.Logger) AuditRecorder {
	return &auditRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("audit_repo"),
	}
}

func (r *auditRepo) Record(ctx context.Context, entry *domain.AuditEntry) error {
	ctx, span := r.tracer.Start(ctx, "AuditRepository.Record")
	defer span.End()

	span.SetAttributes(
		attribute.String("action", entry.Action),
		attribute.String("order_id", entry.OrderID.String()),
	)

	query := `
		INSERT INTO audit_log (actor_id, action, order_id, detail, occurred_at)
		VALUES ($1, $2, $3, $4, NOW())
	`

	if _, err := r.pool.Exec(ctx, query, entry.ActorID, entry.Action, entry.OrderID, entry.Detail); err != nil {
		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to record audit entry", zap.Error(err))

		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	return nil
}
