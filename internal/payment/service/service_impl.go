package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/boilermanc/onceuponadrawing/internal/clock"
	"github.com/boilermanc/onceuponadrawing/internal/config"
	orderdomain "github.com/boilermanc/onceuponadrawing/internal/order/domain"
	"github.com/boilermanc/onceuponadrawing/internal/payment/adapters"
	paymentdomain "github.com/boilermanc/onceuponadrawing/internal/payment/domain"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     paymentdomain.Repository
	OrderSvc orderdomain.Service
	Cfg      config.Config
	Clock    clock.Clock
	Adapters *adapters.Registry
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     paymentdomain.Repository
	orderSvc orderdomain.Service
	cfg      config.Config
	clock    clock.Clock
	adapters *adapters.Registry
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		orderSvc: p.OrderSvc,
		cfg:      p.Cfg,
		clock:    p.Clock,
		adapters: p.Adapters,
	}
}

// IngestWebhook verifies, records and applies one webhook delivery.
// Replayed deliveries of an already processed event return
// ErrEventAlreadyProcessed; deliveries racing a crash between insert and
// processing are picked up and completed.
func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	if s.adapters == nil || !s.adapters.ProviderExists(provider) {
		return paymentdomain.ErrProviderNotFound
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	adapter, err := s.adapters.NewAdapter(provider, paymentdomain.AdapterConfig{
		Provider:      provider,
		WebhookSecret: s.cfg.Payment.WebhookSecret,
		Tolerance:     s.cfg.Payment.WebhookTolerance,
	})
	if err != nil {
		return err
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			return nil
		}
		return err
	}
	if event == nil || event.ProviderEventID == "" || event.OrderID == 0 {
		return paymentdomain.ErrInvalidEvent
	}

	now := s.clock.Now()
	received := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		OrderID:         event.OrderID,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	confirmation := orderdomain.PaymentConfirmation{
		Ref:         event.ProviderEventID,
		AmountCents: event.Amount,
		Currency:    event.Currency,
	}
	if err := s.orderSvc.ConfirmPayment(ctx, event.OrderID, confirmation); err != nil {
		return err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, s.clock.Now()); err != nil {
		return err
	}

	s.log.Info("payment webhook processed",
		zap.String("provider", provider),
		zap.String("provider_event_id", event.ProviderEventID),
		zap.String("order_id", event.OrderID.String()),
	)
	return nil
}
