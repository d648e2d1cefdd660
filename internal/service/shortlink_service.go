package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
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
	// tokenAlphabet is case-sensitive alphanumeric minus the glyphs that read
	// ambiguously on receipts (0/O, 1/l/I).
	tokenAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz"
	tokenLength   = 8

	// generateRetries bounds the collision retry loop. With a 55^8 space the
	// loop practically never runs more than once.
	generateRetries = 5
)

type ShortLinkService interface {
	Generate(ctx context.Context, customerID uuid.UUID, ttl time.Duration) (*domain.ShortLink, error)
	Resolve(ctx context.Context, token string) (uuid.UUID, error)
	Balance(ctx context.Context, customerID uuid.UUID) (int64, error)
}

type shortLinkService struct {
	linkRepo    repository.ShortLinkRepository
	loyaltyRepo repository.LoyaltyRepository
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewShortLinkService(linkRepo repository.ShortLinkRepository, loyaltyRepo repository.LoyaltyRepository, logger *zap.Logger) ShortLinkService {
	return &shortLinkService{
		linkRepo:    linkRepo,
		loyaltyRepo: loyaltyRepo,
		logger:      logger,
		tracer:      otel.Tracer("shortlink_service"),
	}
}

func randomToken() string {
	b := make([]byte, tokenLength)
	for i := range b {
		b[i] = tokenAlphabet[rand.IntN(len(tokenAlphabet))]
	}
	return string(b)
}

func (s *shortLinkService) Generate(ctx context.Context, customerID uuid.UUID, ttl time.Duration) (*domain.ShortLink, error) {
	ctx, span := s.tracer.Start(ctx, "ShortLinkService.Generate")
	defer span.End()

	span.SetAttributes(attribute.String("customer_id", customerID.String()))

	link := &domain.ShortLink{
		TargetType: domain.ShortLinkTargetLoyalty,
		TargetID:   customerID,
	}
	if ttl > 0 {
		expires := time.Now().UTC().Add(ttl)
		link.ExpiresAt = &expires
	}

	for attempt := 0; attempt < generateRetries; attempt++ {
		link.Token = randomToken()

		err := s.linkRepo.Insert(ctx, link)
		if err == nil {
			mylogger.Debug(
				ctx,
				s.logger,
				"Short link generated",
				zap.String("customer_id", customerID.String()),
				zap.Int("attempt", attempt+1),
			)

			return link, nil
		}
		if !errors.Is(err, repository.ErrTokenTaken) {
			span.RecordError(err)
			mylogger.Error(ctx, s.logger, "Failed to insert short link", zap.Error(err))

			return nil, fmt.Errorf("failed to generate short link: %w", err)
		}
	}

	mylogger.Warn(
		ctx,
		s.logger,
		"Short link token space contention exhausted retries",
		zap.Int("attempts", generateRetries),
	)

	return nil, fmt.Errorf("%w: short link token", ErrConcurrency)
}

// Resolve treats unknown and expired tokens identically: the caller gets
// "not found", never an error to log. Expiry is a soft redirect-to-nothing.
func (s *shortLinkService) Resolve(ctx context.Context, token string) (uuid.UUID, error) {
	ctx, span := s.tracer.Start(ctx, "ShortLinkService.Resolve")
	defer span.End()

	link, err := s.linkRepo.FindByToken(ctx, token)
	if err != nil {
		return uuid.Nil, err
	}

	if link.Expired(time.Now().UTC()) {
		return uuid.Nil, repository.ErrShortLinkNotFound
	}

	return link.TargetID, nil
}

func (s *shortLinkService) Balance(ctx context.Context, customerID uuid.UUID) (int64, error) {
	return s.loyaltyRepo.GetBalance(ctx, customerID)
}
