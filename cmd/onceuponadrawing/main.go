package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/boilermanc/onceuponadrawing/internal/clock"
	"github.com/boilermanc/onceuponadrawing/internal/config"
	"github.com/boilermanc/onceuponadrawing/internal/docstore"
	"github.com/boilermanc/onceuponadrawing/internal/events"
	"github.com/boilermanc/onceuponadrawing/internal/fulfillment"
	"github.com/boilermanc/onceuponadrawing/internal/migration"
	"github.com/boilermanc/onceuponadrawing/internal/notify"
	"github.com/boilermanc/onceuponadrawing/internal/observability"
	"github.com/boilermanc/onceuponadrawing/internal/observability/logger"
	"github.com/boilermanc/onceuponadrawing/internal/order"
	"github.com/boilermanc/onceuponadrawing/internal/payment"
	"github.com/boilermanc/onceuponadrawing/internal/render"
	"github.com/boilermanc/onceuponadrawing/internal/seed"
	"github.com/boilermanc/onceuponadrawing/internal/server"
	"github.com/boilermanc/onceuponadrawing/pkg/db"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		observability.Module,
		docstore.Module,
		render.Module,
		fulfillment.Module,
		notify.Module,
		fx.Provide(events.NewOutbox),
		order.Module,
		payment.Module,
		fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
			if err := migration.Run(conn, log); err != nil {
				return err
			}
			if cfg.IsProduction() {
				return nil
			}
			return seed.EnsureSampleCreation(conn)
		}),
		server.Module,
	)
	app.Run()
}
