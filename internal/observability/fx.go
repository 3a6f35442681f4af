package observability

import (
	"github.com/boilermanc/onceuponadrawing/internal/config"
	"github.com/boilermanc/onceuponadrawing/internal/observability/metrics"
	"github.com/boilermanc/onceuponadrawing/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(tracing.NewProvider),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
	fx.Provide(func(cfg config.Config) (*metrics.HTTPMetrics, error) {
		return metrics.NewHTTPMetrics(cfg.Tracing.ServiceName)
	}),
	fx.Provide(func(cfg config.Config) *metrics.PipelineMetrics {
		return metrics.PipelineWithEnvironment(cfg.Environment)
	}),
)
