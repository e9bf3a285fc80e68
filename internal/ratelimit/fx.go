package ratelimit

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewOrderIngestLimiter),
	fx.Invoke(func(limiter *OrderIngestLimiter, log *zap.Logger) {
		if !limiter.Enabled() {
			log.Info("order ingest rate limit disabled")
			return
		}
		log.Info("order ingest rate limit enabled", zap.Float64("rate", limiter.rate), zap.Int("burst", limiter.burst))
	}),
)
