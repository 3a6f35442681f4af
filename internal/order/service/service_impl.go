package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/boilermanc/onceuponadrawing/internal/clock"
	"github.com/boilermanc/onceuponadrawing/internal/config"
	"github.com/boilermanc/onceuponadrawing/internal/docstore"
	"github.com/boilermanc/onceuponadrawing/internal/events"
	fulfillmentdomain "github.com/boilermanc/onceuponadrawing/internal/fulfillment/domain"
	"github.com/boilermanc/onceuponadrawing/internal/notify"
	"github.com/boilermanc/onceuponadrawing/internal/observability/metrics"
	orderdomain "github.com/boilermanc/onceuponadrawing/internal/order/domain"
	"github.com/boilermanc/onceuponadrawing/internal/printspec"
	"github.com/boilermanc/onceuponadrawing/internal/render"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        orderdomain.Repository
	Content     orderdomain.ContentProvider
	Renderer    render.Renderer
	Store       docstore.Store
	Fulfillment fulfillmentdomain.Client
	Outbox      *events.Outbox
	Clock       clock.Clock
	Cfg         config.Config
	Metrics     *metrics.PipelineMetrics
	Notifier    notify.Notifier
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        orderdomain.Repository
	content     orderdomain.ContentProvider
	renderer    render.Renderer
	store       docstore.Store
	fulfillment fulfillmentdomain.Client
	outbox      *events.Outbox
	clock       clock.Clock
	cfg         config.Config
	metrics     *metrics.PipelineMetrics
	notifier    notify.Notifier
}

func NewService(p Params) orderdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("order.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		content:     p.Content,
		renderer:    p.Renderer,
		store:       p.Store,
		fulfillment: p.Fulfillment,
		outbox:      p.Outbox,
		clock:       p.Clock,
		cfg:         p.Cfg,
		metrics:     p.Metrics,
		notifier:    p.Notifier,
	}
}

func (s *Service) Create(ctx context.Context, req orderdomain.CreateOrderRequest) (*orderdomain.Order, error) {
	if req.CreationID == 0 {
		return nil, orderdomain.ErrInvalidOrder
	}
	if strings.TrimSpace(req.CustomerEmail) == "" {
		return nil, orderdomain.ErrInvalidOrder
	}

	profile, err := printspec.ProfileFor(printspec.BindingKind(req.BookType))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", orderdomain.ErrInvalidOrder, err)
	}

	if _, err := s.content.Content(ctx, req.CreationID); err != nil {
		return nil, err
	}

	quantity := req.Quantity
	if quantity < 1 {
		quantity = 1
	}
	level := strings.ToUpper(strings.TrimSpace(req.ShippingLevel))
	if level == "" {
		level = string(fulfillmentdomain.ShippingLevelGround)
	}

	now := s.clock.Now()
	order := &orderdomain.Order{
		ID:            s.genID.Generate(),
		CreationID:    req.CreationID,
		Status:        orderdomain.StatusPending,
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerName:  strings.TrimSpace(req.CustomerName),
		Binding:       string(profile.Binding),
		ProductCode:   profile.ProductCode,
		Quantity:      quantity,
		ShippingLevel: level,

		ShippingName:    req.Shipping.Name,
		ShippingStreet1: req.Shipping.Street1,
		ShippingStreet2: req.Shipping.Street2,
		ShippingCity:    req.Shipping.City,
		ShippingState:   req.Shipping.StateCode,
		ShippingPostal:  req.Shipping.PostalCode,
		ShippingCountry: req.Shipping.CountryCode,
		ShippingPhone:   req.Shipping.PhoneNumber,

		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, order); err != nil {
		return nil, err
	}
	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("binding", order.Binding),
	)
	return order, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*orderdomain.Order, error) {
	return s.repo.Find(ctx, s.db, id)
}

func (s *Service) ConfirmPayment(ctx context.Context, id snowflake.ID, pay orderdomain.PaymentConfirmation) error {
	now := s.clock.Now()
	moved, err := s.repo.MarkPaymentReceived(ctx, s.db, id, pay, now)
	if err != nil {
		return err
	}
	if !moved {
		order, err := s.repo.Find(ctx, s.db, id)
		if err != nil {
			return err
		}
		if order.Status.AtOrPast(orderdomain.StatusPaymentReceived) {
			// Replayed payment webhook; the first delivery already moved
			// the order.
			return nil
		}
		if order.Status.Terminal() {
			// The gateway retries on errors. A charge against a closed
			// order needs an operator, not a retry loop.
			s.log.Warn("payment received for closed order",
				zap.String("order_id", id.String()),
				zap.String("order_status", string(order.Status)),
				zap.String("payment_ref", pay.Ref),
			)
			return nil
		}
		return orderdomain.ErrOrderNotPayable
	}

	s.recordEvent(ctx, id, events.EventPaymentReceived, events.StatusChangePayload{
		From: string(orderdomain.StatusPending),
		To:   string(orderdomain.StatusPaymentReceived),
	}.ToMap(), "payment_received")
	s.log.Info("payment confirmed", zap.String("order_id", id.String()))
	return nil
}

func (s *Service) Process(ctx context.Context, id snowflake.ID) error {
	order, err := s.repo.Find(ctx, s.db, id)
	if err != nil {
		return err
	}
	if order.Status.AtOrPast(orderdomain.StatusSubmitted) {
		return nil
	}
	if order.Status.Terminal() {
		return orderdomain.ErrInvalidTransition
	}
	if order.Status == orderdomain.StatusPending {
		return orderdomain.ErrOrderNotReady
	}

	now := s.clock.Now()
	moved, err := s.repo.UpdateStatus(ctx, s.db, id, []orderdomain.Status{orderdomain.StatusPaymentReceived}, orderdomain.StatusProcessing, now)
	if err != nil {
		return err
	}
	if moved {
		s.recordEvent(ctx, id, events.EventProcessingStarted, events.StatusChangePayload{
			From: string(orderdomain.StatusPaymentReceived),
			To:   string(orderdomain.StatusProcessing),
		}.ToMap(), "processing_started")
	} else if order.Status != orderdomain.StatusProcessing {
		return orderdomain.ErrOrderNotReady
	}

	profile, err := printspec.ProfileFor(printspec.BindingKind(order.Binding))
	if err != nil {
		return fmt.Errorf("%w: %v", orderdomain.ErrInvalidOrder, err)
	}

	content, err := s.bookContent(ctx, order.CreationID)
	if err != nil {
		return err
	}

	interior, err := s.renderer.RenderInterior(ctx, *content)
	if err != nil {
		return err
	}

	cover, err := s.renderer.RenderCover(ctx, *content, interior.PageCount, profile)
	if err != nil {
		return err
	}

	interiorURL, coverURL, err := s.storeDocuments(ctx, order.ID, interior.PDF, cover)
	if err != nil {
		return err
	}
	s.recordEvent(ctx, id, events.EventDocumentsRendered, map[string]any{
		"page_count":     interior.PageCount,
		"fallback_pages": len(interior.FallbackPages),
	}, "documents_rendered")

	options, err := s.fulfillment.ShippingOptions(ctx, order.ShippingAddress(), order.ProductCode, order.Quantity)
	if err != nil {
		return err
	}
	level, err := chooseShippingLevel(options, order.ShippingLevel)
	if err != nil {
		return err
	}

	job, err := s.fulfillment.SubmitJob(ctx, fulfillmentdomain.SubmitRequest{
		LineItems: []fulfillmentdomain.LineItem{{
			Title:       content.Title,
			Quantity:    order.Quantity,
			PageCount:   interior.PageCount,
			ProductCode: order.ProductCode,
			InteriorURL: interiorURL,
			CoverURL:    coverURL,
		}},
		ShippingAddress: order.ShippingAddress(),
		ShippingLevel:   level,
		ContactEmail:    s.cfg.Fulfillment.ContactEmail,
	})
	if err != nil {
		s.metrics.JobSubmitted("error")
		// The order stays in processing so the submission can be retried
		// once the partner accepts it.
		return err
	}
	s.metrics.JobSubmitted("ok")

	moved, err = s.repo.MarkSubmitted(ctx, s.db, id, job.ID, interior.PageCount, interiorURL, coverURL, s.clock.Now())
	if err != nil {
		return err
	}
	if !moved {
		current, err := s.repo.Find(ctx, s.db, id)
		if err != nil {
			return err
		}
		if current.Status.AtOrPast(orderdomain.StatusSubmitted) {
			return nil
		}
		return orderdomain.ErrInvalidTransition
	}

	s.recordEvent(ctx, id, events.EventPrintJobSubmitted, events.StatusChangePayload{
		From:       string(orderdomain.StatusProcessing),
		To:         string(orderdomain.StatusSubmitted),
		PrintJobID: job.ID,
	}.ToMap(), fmt.Sprintf("submitted:%d", job.ID))
	s.log.Info("print job submitted",
		zap.String("order_id", id.String()),
		zap.Int64("print_job_id", job.ID),
		zap.String("environment", job.Environment),
	)
	return nil
}

func (s *Service) ApplyPrintStatus(ctx context.Context, printJobID int64, status fulfillmentdomain.JobStatus, tracking fulfillmentdomain.Tracking) error {
	order, err := s.repo.FindByPrintJob(ctx, s.db, printJobID)
	if err != nil {
		return err
	}

	target := orderdomain.MapPartnerStatus(status)
	if order.Status == target {
		// A replayed shipped delivery can still fill in tracking an
		// earlier delivery failed to resolve.
		if target == orderdomain.StatusShipped && order.TrackingNumber == "" && !tracking.Empty() {
			s.persistTracking(ctx, order.ID, tracking)
		}
		return nil
	}
	if order.Status.Terminal() {
		s.log.Info("ignoring partner status for closed order",
			zap.String("order_id", order.ID.String()),
			zap.String("partner_status", string(status)),
			zap.String("order_status", string(order.Status)),
		)
		return nil
	}

	sources := transitionSources(target)
	if len(sources) == 0 {
		return nil
	}

	moved, err := s.repo.UpdateStatus(ctx, s.db, order.ID, sources, target, s.clock.Now())
	if err != nil {
		return err
	}
	if !moved {
		// Out-of-order or replayed delivery; the order already moved on.
		s.log.Debug("stale partner status delivery",
			zap.String("order_id", order.ID.String()),
			zap.String("partner_status", string(status)),
		)
		return nil
	}

	s.recordEvent(ctx, order.ID, events.EventPrintStatusApplied, events.StatusChangePayload{
		From:          string(order.Status),
		To:            string(target),
		PartnerStatus: string(status),
		PrintJobID:    printJobID,
	}.ToMap(), fmt.Sprintf("print:%s:%d", status, printJobID))

	if target == orderdomain.StatusShipped {
		s.handleShipped(ctx, order, printJobID, tracking)
	}
	return nil
}

func (s *Service) MarkDelivered(ctx context.Context, id snowflake.ID) error {
	moved, err := s.repo.UpdateStatus(ctx, s.db, id, []orderdomain.Status{orderdomain.StatusShipped}, orderdomain.StatusDelivered, s.clock.Now())
	if err != nil {
		return err
	}
	if !moved {
		order, err := s.repo.Find(ctx, s.db, id)
		if err != nil {
			return err
		}
		if order.Status == orderdomain.StatusDelivered {
			return nil
		}
		return orderdomain.ErrInvalidTransition
	}
	s.recordEvent(ctx, id, events.EventOrderDelivered, events.StatusChangePayload{
		From: string(orderdomain.StatusShipped),
		To:   string(orderdomain.StatusDelivered),
	}.ToMap(), "delivered")
	return nil
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) error {
	cancellable := []orderdomain.Status{
		orderdomain.StatusPending,
		orderdomain.StatusPaymentReceived,
		orderdomain.StatusProcessing,
		orderdomain.StatusSubmitted,
		orderdomain.StatusInProduction,
	}
	moved, err := s.repo.UpdateStatus(ctx, s.db, id, cancellable, orderdomain.StatusCancelled, s.clock.Now())
	if err != nil {
		return err
	}
	if !moved {
		order, err := s.repo.Find(ctx, s.db, id)
		if err != nil {
			return err
		}
		switch order.Status {
		case orderdomain.StatusCancelled:
			return nil
		case orderdomain.StatusShipped, orderdomain.StatusDelivered:
			return orderdomain.ErrAlreadyShipped
		default:
			return orderdomain.ErrInvalidTransition
		}
	}
	s.recordEvent(ctx, id, events.EventOrderCancelled, map[string]any{
		"to": string(orderdomain.StatusCancelled),
	}, "cancelled")
	return nil
}

func (s *Service) bookContent(ctx context.Context, creationID snowflake.ID) (*render.BookContent, error) {
	creation, err := s.content.Content(ctx, creationID)
	if err != nil {
		return nil, err
	}
	pages, err := creation.StoryPages()
	if err != nil {
		return nil, err
	}

	content := &render.BookContent{
		Title:         creation.Title,
		Author:        creation.Author,
		Dedication:    creation.Dedication,
		CoverImageURL: creation.CoverImageURL,
	}
	for _, page := range pages {
		content.Pages = append(content.Pages, render.StoryPage{
			Text:     page.Text,
			ImageURL: page.ImageURL,
		})
	}
	return content, nil
}

func (s *Service) storeDocuments(ctx context.Context, id snowflake.ID, interior, cover []byte) (string, string, error) {
	interiorKey := fmt.Sprintf("orders/%s/interior.pdf", id)
	coverKey := fmt.Sprintf("orders/%s/cover.pdf", id)

	if _, err := s.store.Put(ctx, interiorKey, interior, "application/pdf"); err != nil {
		return "", "", err
	}
	if _, err := s.store.Put(ctx, coverKey, cover, "application/pdf"); err != nil {
		return "", "", err
	}

	interiorURL, err := s.store.SignedURL(interiorKey, s.cfg.Storage.URLTTL)
	if err != nil {
		return "", "", err
	}
	coverURL, err := s.store.SignedURL(coverKey, s.cfg.Storage.URLTTL)
	if err != nil {
		return "", "", err
	}
	return interiorURL, coverURL, nil
}

func (s *Service) handleShipped(ctx context.Context, order *orderdomain.Order, printJobID int64, tracking fulfillmentdomain.Tracking) {
	notice := notify.ShipmentNotice{
		ToEmail: order.CustomerEmail,
		ToName:  order.CustomerName,
	}
	if creation, err := s.content.Content(ctx, order.CreationID); err == nil {
		notice.BookTitle = creation.Title
	}

	// The shipped notification usually carries tracking already; the
	// partner is only polled when it did not.
	if tracking.Empty() {
		job, err := s.fulfillment.JobStatus(ctx, printJobID)
		if err != nil {
			s.log.Warn("tracking lookup failed",
				zap.String("order_id", order.ID.String()),
				zap.Int64("print_job_id", printJobID),
				zap.Error(err),
			)
		} else {
			tracking = job.FirstTracking()
		}
	}
	if !tracking.Empty() {
		s.persistTracking(ctx, order.ID, tracking)
		notice.TrackingNumber = tracking.Number
		notice.TrackingURL = tracking.URL
	}

	if err := s.notifier.OrderShipped(ctx, notice); err != nil {
		s.log.Warn("shipment notification failed",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
	s.recordEvent(ctx, order.ID, events.EventOrderShipped, events.StatusChangePayload{
		From:           string(order.Status),
		To:             string(orderdomain.StatusShipped),
		PrintJobID:     printJobID,
		TrackingNumber: notice.TrackingNumber,
	}.ToMap(), "shipped")
}

func (s *Service) persistTracking(ctx context.Context, orderID snowflake.ID, tracking fulfillmentdomain.Tracking) {
	if err := s.repo.SetTracking(ctx, s.db, orderID, tracking.Number, tracking.URL, s.clock.Now()); err != nil {
		s.log.Warn("tracking persist failed",
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) recordEvent(ctx context.Context, orderID snowflake.ID, eventType string, payload map[string]any, dedupeKey string) {
	err := s.outbox.Publish(ctx, events.Event{
		OrderID:   orderID,
		Type:      eventType,
		Payload:   payload,
		DedupeKey: dedupeKey,
	})
	if err != nil {
		s.log.Warn("outbox publish failed",
			zap.String("order_id", orderID.String()),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

// chooseShippingLevel keeps the level the customer picked when the partner
// quotes it, otherwise falls back to the cheapest quoted level.
func chooseShippingLevel(options []fulfillmentdomain.ShippingOption, requested string) (fulfillmentdomain.ShippingLevel, error) {
	if len(options) == 0 {
		return "", orderdomain.ErrShippingLevelUnset
	}
	wanted := fulfillmentdomain.ShippingLevel(strings.ToUpper(strings.TrimSpace(requested)))
	cheapest := options[0]
	for _, option := range options {
		if option.Level == wanted {
			return option.Level, nil
		}
		if option.CostCents < cheapest.CostCents {
			cheapest = option
		}
	}
	return cheapest.Level, nil
}

func transitionSources(target orderdomain.Status) []orderdomain.Status {
	switch target {
	case orderdomain.StatusSubmitted:
		return []orderdomain.Status{orderdomain.StatusProcessing}
	case orderdomain.StatusInProduction:
		return []orderdomain.Status{orderdomain.StatusProcessing, orderdomain.StatusSubmitted}
	case orderdomain.StatusShipped:
		return []orderdomain.Status{orderdomain.StatusProcessing, orderdomain.StatusSubmitted, orderdomain.StatusInProduction}
	case orderdomain.StatusCancelled:
		return []orderdomain.Status{
			orderdomain.StatusPending,
			orderdomain.StatusPaymentReceived,
			orderdomain.StatusProcessing,
			orderdomain.StatusSubmitted,
			orderdomain.StatusInProduction,
		}
	case orderdomain.StatusProcessing:
		// Unrecognized partner vocabulary lands here; only orders already
		// with the partner are affected.
		return []orderdomain.Status{orderdomain.StatusSubmitted, orderdomain.StatusInProduction}
	default:
		return nil
	}
}
