package fulfillment

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/boilermanc/onceuponadrawing/internal/config"
	"github.com/boilermanc/onceuponadrawing/internal/fulfillment/domain"
	"github.com/boilermanc/onceuponadrawing/internal/fulfillment/lulu"
)

var Module = fx.Module("fulfillment",
	fx.Provide(func(cfg config.Config, log *zap.Logger) *lulu.Client {
		return lulu.NewClient(cfg.Fulfillment, log)
	}),
	fx.Provide(func(client *lulu.Client) domain.Client {
		return client
	}),
)
