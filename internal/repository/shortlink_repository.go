package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sabyrkhan/cafe-pos/internal/domain"
	"github.com/sabyrkhan/cafe-pos/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ShortLinkRepository interface {
	Insert(ctx context.Context, link *domain.ShortLink) error
	FindByToken(ctx context.Context, token string) (*domain.ShortLink, error)
}

type shortLinkRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewShortLinkRepository(pool *pgxpool.Pool, logger *zap.Logger) ShortLinkRepository {
	return &shortLinkRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("shortlink_repo"),
	}
}

func (r *shortLinkRepo) Insert(ctx context.Context, link *domain.ShortLink) error {
	ctx, span := r.tracer.Start(ctx, "ShortLinkRepository.Insert")
	defer span.End()

	span.SetAttributes(attribute.String("target_id", link.TargetID.String()))

	query := `
		INSERT INTO short_links (token, target_type, target_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`

	if err := r.pool.QueryRow(
		ctx,
		query,
		link.Token,
		string(link.TargetType),
		link.TargetID,
		link.ExpiresAt,
	).Scan(&link.CreatedAt); err != nil {
		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == "23505" {
			return ErrTokenTaken
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to insert short link", zap.Error(err))

		return fmt.Errorf("failed to insert short link: %w", err)
	}

	return nil
}

func (r *shortLinkRepo) FindByToken(ctx context.Context, token string) (*domain.ShortLink, error) {
	ctx, span := r.tracer.Start(ctx, "ShortLinkRepository.FindByToken")
	defer span.End()

	query := `
		SELECT token, target_type, target_id, expires_at, created_at
		FROM short_links
		WHERE token = $1
	`

	var (
		link       domain.ShortLink
		targetType string
	)
	if err := r.pool.QueryRow(ctx, query, token).Scan(
		&link.Token,
		&targetType,
		&link.TargetID,
		&link.ExpiresAt,
		&link.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrShortLinkNotFound
		}

		span.RecordError(err)
		mylogger.Error(ctx, r.logger, "Failed to query short link", zap.Error(err))

		return nil, fmt.Errorf("failed to query short link: %w", err)
	}

	link.TargetType = domain.ShortLinkTarget(targetType)

	return &link, nil
}
