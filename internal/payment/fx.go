package payment

import (
	"go.uber.org/fx"

	"github.com/boilermanc/onceuponadrawing/internal/payment/adapters"
	"github.com/boilermanc/onceuponadrawing/internal/payment/adapters/stripe"
	"github.com/boilermanc/onceuponadrawing/internal/payment/repository"
	"github.com/boilermanc/onceuponadrawing/internal/payment/service"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(stripe.NewFactory())
	}),
	fx.Provide(service.NewService),
)
