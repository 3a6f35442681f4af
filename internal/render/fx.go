package render

import (
	"github.com/boilermanc/onceuponadrawing/internal/config"
	"github.com/boilermanc/onceuponadrawing/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("render",
	fx.Provide(func() ImageFetcher {
		return NewHTTPImageFetcher(nil)
	}),
	fx.Provide(func(fetcher ImageFetcher, log *zap.Logger, pipeline *metrics.PipelineMetrics, cfg config.Config) Renderer {
		return NewPDFRenderer(fetcher, log, pipeline, cfg.Book.PageCount)
	}),
)
