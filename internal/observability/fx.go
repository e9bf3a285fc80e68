package observability

import (
	"github.com/smallbiznis/lokma/internal/observability/logger"
	"github.com/smallbiznis/lokma/internal/observability/metrics"
	"github.com/smallbiznis/lokma/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.LoggerConfig,
		Config.TracingConfig,
		Config.MetricsConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
	),
	fx.Invoke(func(cfg Config, log *zap.Logger, _ *sdktrace.TracerProvider) {
		log.Info("observability ready",
			zap.String("log_level", cfg.LogLevel),
			zap.Bool("otel_enabled", cfg.OtelEnabled),
		)
	}),
)
