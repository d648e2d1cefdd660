package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sabyrkhan/cafe-pos/internal/domain"
	"github.com/sabyrkhan/cafe-pos/pkg/utils"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const cacheVersionKey = "dashboard:ver"

// CacheInvalidator is what the order-event consumer calls on every
// order-changed signal to make the next dashboard read recompute.
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// salesServiceCached caches serialized dashboard views for a short TTL.
// Keys embed a version counter that the invalidator bumps, so stale entries
// just age out instead of being enumerated and deleted. All redis traffic
// runs behind a circuit breaker; when redis misbehaves every read falls
// through to the uncached engine.
type salesServiceCached struct {
	next        SalesService
	redisClient *redis.Client
	cacheTTL    time.Duration
	cb          *gobreaker.CircuitBreaker
	logger      *zap.Logger
}

func NewCachedSalesService(next SalesService, redisClient *redis.Client, cacheTTL time.Duration, logger *zap.Logger) SalesService {
	settings := gobreaker.Settings{
		Name:        "DashboardCache",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn(
				"Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &salesServiceCached{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
		cb:          gobreaker.NewCircuitBreaker(settings),
		logger:      logger,
	}
}

func (s *salesServiceCached) Invalidate(ctx context.Context) {
	_, err := utils.ExecuteWithBreaker(s.cb, func() (int64, error) {
		return s.redisClient.Incr(ctx, cacheVersionKey).Result()
	})
	if err != nil {
		s.logger.Debug("Dashboard cache invalidation skipped", zap.Error(err))
	}
}

func (s *salesServiceCached) version(ctx context.Context) int64 {
	ver, err := utils.ExecuteWithBreaker(s.cb, func() (int64, error) {
		v, err := s.redisClient.Get(ctx, cacheVersionKey).Int64()
		if err == redis.Nil {
			return 0, nil
		}
		return v, err
	})
	if err != nil {
		return -1
	}
	return ver
}

// lookup returns true when dest was filled from cache. A version of -1 means
// redis is unavailable and caching is skipped entirely for this read.
func (s *salesServiceCached) lookup(ctx context.Context, key string, dest any) bool {
	val, err := utils.ExecuteWithBreaker(s.cb, func() (string, error) {
		return s.redisClient.Get(ctx, key).Result()
	})
	if err != nil {
		return false
	}

	return json.Unmarshal([]byte(val), dest) == nil
}

func (s *salesServiceCached) store(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}

	_, err = utils.ExecuteWithBreaker(s.cb, func() (string, error) {
		return s.redisClient.Set(ctx, key, data, s.cacheTTL).Result()
	})
	if err != nil {
		s.logger.Debug("Dashboard cache store skipped", zap.Error(err))
	}
}

func (s *salesServiceCached) DailySummary(ctx context.Context, day time.Time, tz string) (*domain.DailySummaryComparison, error) {
	ver := s.version(ctx)
	key := fmt.Sprintf("dashboard:%d:summary:%s:%s", ver, day.Format("2006-01-02"), tz)

	if ver >= 0 {
		var cached domain.DailySummaryComparison
		if s.lookup(ctx, key, &cached) {
			return &cached, nil
		}
	}

	result, err := s.next.DailySummary(ctx, day, tz)
	if err != nil {
		return nil, err
	}

	if ver >= 0 {
		s.store(ctx, key, result)
	}

	return result, nil
}

func (s *salesServiceCached) HourlyRevenue(ctx context.Context, day time.Time, tz string) ([]domain.HourlyRevenuePoint, error) {
	ver := s.version(ctx)
	key := fmt.Sprintf("dashboard:%d:hourly:%s:%s", ver, day.Format("2006-01-02"), tz)

	if ver >= 0 {
		var cached []domain.HourlyRevenuePoint
		if s.lookup(ctx, key, &cached) {
			return cached, nil
		}
	}

	result, err := s.next.HourlyRevenue(ctx, day, tz)
	if err != nil {
		return nil, err
	}

	if ver >= 0 {
		s.store(ctx, key, result)
	}

	return result, nil
}

func (s *salesServiceCached) TopProducts(ctx context.Context, from, to time.Time, n int) ([]domain.TopSellingProduct, error) {
	ver := s.version(ctx)
	key := fmt.Sprintf("dashboard:%d:top:%d:%d:%d", ver, from.Unix(), to.Unix(), n)

	if ver >= 0 {
		var cached []domain.TopSellingProduct
		if s.lookup(ctx, key, &cached) {
			return cached, nil
		}
	}

	result, err := s.next.TopProducts(ctx, from, to, n)
	if err != nil {
		return nil, err
	}

	if ver >= 0 {
		s.store(ctx, key, result)
	}

	return result, nil
}

func (s *salesServiceCached) OrdersByStatus(ctx context.Context, from, to time.Time) ([]domain.StatusCount, error) {
	ver := s.version(ctx)
	key := fmt.Sprintf("dashboard:%d:status:%d:%d", ver, from.Unix(), to.Unix())

	if ver >= 0 {
		var cached []domain.StatusCount
		if s.lookup(ctx, key, &cached) {
			return cached, nil
		}
	}

	result, err := s.next.OrdersByStatus(ctx, from, to)
	if err != nil {
		return nil, err
	}

	if ver >= 0 {
		s.store(ctx, key, result)
	}

	return result, nil
}

func (s *salesServiceCached) PaymentBreakdown(ctx context.Context, from, to time.Time) ([]domain.PaymentMethodBreakdown, error) {
	ver := s.version(ctx)
	key := fmt.Sprintf("dashboard:%d:payments:%d:%d", ver, from.Unix(), to.Unix())

	if ver >= 0 {
		var cached []domain.PaymentMethodBreakdown
		if s.lookup(ctx, key, &cached) {
			return cached, nil
		}
	}

	result, err := s.next.PaymentBreakdown(ctx, from, to)
	if err != nil {
		return nil, err
	}

	if ver >= 0 {
		s.store(ctx, key, result)
	}

	return result, nil
}
