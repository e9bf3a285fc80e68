package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/lokma/internal/config"
	"go.uber.org/zap"
)

const keyOrderIngestBusiness = "lokma:orders:ingest:%s"

// OrderIngestLimiter throttles completed-order events per business. It is
// disabled when redis is not configured or the rate is zero.
type OrderIngestLimiter struct {
	bucket *TokenBucket
	log    *zap.Logger
	rate   float64
	burst  int
}

func NewOrderIngestLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *OrderIngestLimiter {
	if client == nil || cfg.OrderIngestRate <= 0 || cfg.OrderIngestBurst <= 0 {
		return nil
	}
	return &OrderIngestLimiter{
		bucket: NewTokenBucket(client),
		log:    log.Named("ratelimit"),
		rate:   cfg.OrderIngestRate,
		burst:  cfg.OrderIngestBurst,
	}
}

func (l *OrderIngestLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowBusiness fails open: a redis outage must not block order ingestion.
func (l *OrderIngestLimiter) AllowBusiness(ctx context.Context, businessID string) Result {
	if !l.Enabled() {
		return Result{Allowed: true}
	}
	key := fmt.Sprintf(keyOrderIngestBusiness, strings.TrimSpace(businessID))
	result, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
	if err != nil {
		l.log.Warn("order ingest rate limit check failed", zap.String("business_id", businessID), zap.Error(err))
		return Result{Allowed: true}
	}
	return result
}
