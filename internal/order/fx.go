package order

import (
	"go.uber.org/fx"

	"github.com/boilermanc/onceuponadrawing/internal/order/repository"
	"github.com/boilermanc/onceuponadrawing/internal/order/service"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(repository.ProvideContent),
	fx.Provide(service.NewService),
)
