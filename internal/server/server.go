// Package server exposes the HTTP surface: partner and payment webhooks,
// the operator order API, signed document downloads and health/metrics
// endpoints.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/boilermanc/onceuponadrawing/internal/cache"
	"github.com/boilermanc/onceuponadrawing/internal/config"
	"github.com/boilermanc/onceuponadrawing/internal/docstore"
	"github.com/boilermanc/onceuponadrawing/internal/observability/logger"
	"github.com/boilermanc/onceuponadrawing/internal/observability/metrics"
	orderdomain "github.com/boilermanc/onceuponadrawing/internal/order/domain"
	paymentdomain "github.com/boilermanc/onceuponadrawing/internal/payment/domain"
)

type Params struct {
	fx.In

	Cfg         config.Config
	Log         *zap.Logger
	DB          *gorm.DB
	OrderSvc    orderdomain.Service
	PaymentSvc  paymentdomain.Service
	Store       *docstore.LocalStore
	HTTPMetrics *metrics.HTTPMetrics
	Pipeline    *metrics.PipelineMetrics
}

type Server struct {
	cfg         config.Config
	log         *zap.Logger
	db          *gorm.DB
	orderSvc    orderdomain.Service
	paymentSvc  paymentdomain.Service
	store       *docstore.LocalStore
	httpMetrics *metrics.HTTPMetrics
	pipeline    *metrics.PipelineMetrics

	keyCache       *cache.TTLCache[string, bool]
	webhookLimiter *rateLimiter
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:            p.Cfg,
		log:            p.Log.Named("server"),
		db:             p.DB,
		orderSvc:       p.OrderSvc,
		paymentSvc:     p.PaymentSvc,
		store:          p.Store,
		httpMetrics:    p.HTTPMetrics,
		pipeline:       p.Pipeline,
		keyCache:       cache.NewTTLCache[string, bool](),
		webhookLimiter: newRateLimiter(120, time.Minute),
	}
}

// Router builds the gin engine with middleware and all routes.
func (s *Server) Router() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	engine.Use(metrics.GinMiddleware(s.httpMetrics))

	engine.GET("/healthz", s.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	webhooks := engine.Group("/webhooks", s.WebhookRateLimit())
	webhooks.POST("/payment/:provider", s.PaymentWebhook)
	webhooks.POST("/print", s.PrintWebhook)

	engine.GET("/documents/*key", s.DownloadDocument)

	v1 := engine.Group("/v1", s.OperatorKeyRequired())
	v1.POST("/orders", s.CreateOrder)
	v1.GET("/orders/:id", s.GetOrder)
	v1.POST("/orders/:id/process", s.ProcessOrder)
	v1.POST("/orders/:id/deliver", s.DeliverOrder)
	v1.POST("/orders/:id/cancel", s.CancelOrder)

	return engine
}

func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "environment": s.cfg.Environment})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "environment": s.cfg.Environment})
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)
