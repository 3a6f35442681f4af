package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/boilermanc/onceuponadrawing/internal/clock"
	"github.com/boilermanc/onceuponadrawing/internal/config"
	"github.com/boilermanc/onceuponadrawing/internal/docstore"
	"github.com/boilermanc/onceuponadrawing/internal/events"
	fulfillmentdomain "github.com/boilermanc/onceuponadrawing/internal/fulfillment/domain"
	"github.com/boilermanc/onceuponadrawing/internal/notify"
	"github.com/boilermanc/onceuponadrawing/internal/observability/metrics"
	orderdomain "github.com/boilermanc/onceuponadrawing/internal/order/domain"
	"github.com/boilermanc/onceuponadrawing/internal/order/repository"
	"github.com/boilermanc/onceuponadrawing/internal/printspec"
	"github.com/boilermanc/onceuponadrawing/internal/render"
)

var testPayment = orderdomain.PaymentConfirmation{
	Ref:         "evt_123",
	AmountCents: 3499,
	Currency:    "USD",
}

type fakeRenderer struct {
	interiorErr error
	pageCount   int
}

func (r *fakeRenderer) RenderInterior(ctx context.Context, content render.BookContent) (*render.InteriorResult, error) {
	if r.interiorErr != nil {
		return nil, r.interiorErr
	}
	pageCount := r.pageCount
	if pageCount == 0 {
		pageCount = 32
	}
	return &render.InteriorResult{PDF: []byte("%PDF-interior"), PageCount: pageCount}, nil
}

func (r *fakeRenderer) RenderCover(ctx context.Context, content render.BookContent, pageCount int, profile printspec.BookTypeProfile) ([]byte, error) {
	return []byte("%PDF-cover"), nil
}

type fakeFulfillment struct {
	mu            sync.Mutex
	submitErr     error
	submitCalls   int
	lastSubmit    fulfillmentdomain.SubmitRequest
	nextJobID     int64
	statusJob     *fulfillmentdomain.Job
	statusErr     error
	shippingLevel fulfillmentdomain.ShippingLevel
}

func (f *fakeFulfillment) Token(ctx context.Context) (string, error) { return "token", nil }

func (f *fakeFulfillment) ShippingOptions(ctx context.Context, address fulfillmentdomain.Address, productCode string, quantity int) ([]fulfillmentdomain.ShippingOption, error) {
	level := f.shippingLevel
	if level == "" {
		level = fulfillmentdomain.ShippingLevelGround
	}
	return []fulfillmentdomain.ShippingOption{
		{Level: level, CostCents: 499, Currency: "USD", Environment: "sandbox"},
		{Level: fulfillmentdomain.ShippingLevelExpedited, CostCents: 1299, Currency: "USD", Environment: "sandbox"},
	}, nil
}

func (f *fakeFulfillment) SubmitJob(ctx context.Context, req fulfillmentdomain.SubmitRequest) (*fulfillmentdomain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitCalls++
	f.lastSubmit = req
	id := f.nextJobID
	if id == 0 {
		id = 98123
	}
	return &fulfillmentdomain.Job{ID: id, Status: fulfillmentdomain.JobStatusCreated, Environment: "sandbox"}, nil
}

func (f *fakeFulfillment) JobStatus(ctx context.Context, jobID int64) (*fulfillmentdomain.Job, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if f.statusJob != nil {
		return f.statusJob, nil
	}
	return &fulfillmentdomain.Job{ID: jobID, Status: fulfillmentdomain.JobStatusCreated, Environment: "sandbox"}, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notify.ShipmentNotice
}

func (n *fakeNotifier) OrderShipped(ctx context.Context, notice notify.ShipmentNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

type fixture struct {
	svc         orderdomain.Service
	db          *gorm.DB
	genID       *snowflake.Node
	fulfillment *fakeFulfillment
	renderer    *fakeRenderer
	notifier    *fakeNotifier
	registry    *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	registry := prometheus.NewRegistry()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&orderdomain.Order{}, &orderdomain.Creation{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE order_events (
			id INTEGER PRIMARY KEY,
			order_id INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT,
			dedupe_key TEXT,
			published BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL
		)`,
	).Error; err != nil {
		t.Fatalf("create order_events: %v", err)
	}
	if err := db.Exec(`CREATE UNIQUE INDEX order_events_dedupe ON order_events(order_id, dedupe_key)`).Error; err != nil {
		t.Fatalf("create dedupe index: %v", err)
	}

	genID, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	cfg := config.Config{
		Environment: "sandbox",
		Fulfillment: config.FulfillmentConfig{
			Environment:  "sandbox",
			ContactEmail: "orders@example.com",
		},
		Storage: config.StorageConfig{URLTTL: time.Hour},
	}

	fulfillment := &fakeFulfillment{}
	renderer := &fakeRenderer{}
	notifier := &fakeNotifier{}

	svc := NewService(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       genID,
		Repo:        repository.Provide(),
		Content:     repository.ProvideContent(db),
		Renderer:    renderer,
		Store:       docstore.NewLocalStore(t.TempDir(), "https://books.example.com", "sign-secret"),
		Fulfillment: fulfillment,
		Outbox:      events.NewOutbox(db, genID),
		Clock:       clock.SystemClock{},
		Cfg:         cfg,
		Metrics:     metrics.NewPipelineMetrics(registry, "sandbox"),
		Notifier:    notifier,
	})

	return &fixture{
		svc:         svc,
		db:          db,
		genID:       genID,
		fulfillment: fulfillment,
		renderer:    renderer,
		notifier:    notifier,
		registry:    registry,
	}
}

func (f *fixture) newCreation(t *testing.T) snowflake.ID {
	t.Helper()
	creation := &orderdomain.Creation{
		ID:            f.genID.Generate(),
		Title:         "The Dragon Who Lost His Roar",
		Author:        "Maya, age 7",
		Dedication:    "For Grandma",
		CoverImageURL: "https://cdn.example.com/cover.png",
		Pages:         datatypes.JSON(`[{"text":"Once upon a time","image_url":"https://cdn.example.com/p1.png"}]`),
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := f.db.Create(creation).Error; err != nil {
		t.Fatalf("insert creation: %v", err)
	}
	return creation.ID
}

func (f *fixture) newOrder(t *testing.T) *orderdomain.Order {
	t.Helper()
	order, err := f.svc.Create(context.Background(), orderdomain.CreateOrderRequest{
		CreationID:    f.newCreation(t),
		CustomerEmail: "maya@example.com",
		CustomerName:  "Maya Patel",
		BookType:      "softcover",
		Quantity:      1,
		ShippingLevel: "GROUND",
		Shipping: fulfillmentdomain.Address{
			Name:        "Maya Patel",
			Street1:     "12 Crayon Lane",
			City:        "Asheville",
			StateCode:   "NC",
			PostalCode:  "28801",
			CountryCode: "US",
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func (f *fixture) reload(t *testing.T, id snowflake.ID) *orderdomain.Order {
	t.Helper()
	order, err := f.svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	return order
}

func (f *fixture) countEvents(t *testing.T, orderID snowflake.ID, eventType string) int64 {
	t.Helper()
	var count int64
	err := f.db.Raw(
		`SELECT COUNT(*) FROM order_events WHERE order_id = ? AND event_type = ?`,
		orderID, eventType,
	).Scan(&count).Error
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	return count
}

func TestCreateRejectsUnknownBinding(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), orderdomain.CreateOrderRequest{
		CreationID:    f.newCreation(t),
		CustomerEmail: "maya@example.com",
		BookType:      "spiral",
	})
	if !errors.Is(err, orderdomain.ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder, got %v", err)
	}
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	order := f.newOrder(t)
	ctx := context.Background()

	if err := f.svc.ConfirmPayment(ctx, order.ID, testPayment); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if err := f.svc.ConfirmPayment(ctx, order.ID, testPayment); err != nil {
		t.Fatalf("replayed confirm: %v", err)
	}

	got := f.reload(t, order.ID)
	if got.Status != orderdomain.StatusPaymentReceived {
		t.Fatalf("unexpected status %q", got.Status)
	}
	if got.PaymentRef != "evt_123" {
		t.Fatalf("unexpected payment ref %q", got.PaymentRef)
	}
	if got.AmountCents != 3499 || got.Currency != "USD" {
		t.Fatalf("unexpected charge %d %s", got.AmountCents, got.Currency)
	}
	if n := f.countEvents(t, order.ID, events.EventPaymentReceived); n != 1 {
		t.Fatalf("expected one payment event, got %d", n)
	}
}

func TestConfirmPaymentClosedOrderAcknowledged(t *testing.T) {
	f := newFixture(t)
	order := f.newOrder(t)
	ctx := context.Background()

	if err := f.svc.Cancel(ctx, order.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// Errors would send the gateway into a retry loop over an order no
	// retry can fix.
	if err := f.svc.ConfirmPayment(ctx, order.ID, testPayment); err != nil {
		t.Fatalf("confirm on cancelled order: %v", err)
	}

	got := f.reload(t, order.ID)
	if got.Status != orderdomain.StatusCancelled {
		t.Fatalf("unexpected status %q", got.Status)
	}
	if got.PaymentRef != "" {
		t.Fatalf("cancelled order must not record payment, got ref %q", got.PaymentRef)
	}
}

func TestProcessSubmitsPrintJob(t *testing.T) {
	f := newFixture(t)
	order := f.newOrder(t)
	ctx := context.Background()

	if err := f.svc.ConfirmPayment(ctx, order.ID, testPayment); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := f.svc.Process(ctx, order.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got := f.reload(t, order.ID)
	if got.Status != orderdomain.StatusSubmitted {
		t.Fatalf("unexpected status %q", got.Status)
	}
	if got.PrintJobID == nil || *got.PrintJobID != 98123 {
		t.Fatalf("print job id not recorded: %+v", got.PrintJobID)
	}
	if got.PageCount != 32 {
		t.Fatalf("unexpected page count %d", got.PageCount)
	}
	if !strings.HasPrefix(got.InteriorURL, "https://books.example.com/documents/") {
		t.Fatalf("interior url not signed: %q", got.InteriorURL)
	}

	submitted := f.fulfillment.lastSubmit
	if len(submitted.LineItems) != 1 {
		t.Fatalf("expected one line item, got %d", len(submitted.LineItems))
	}
	item := submitted.LineItems[0]
	if !strings.HasPrefix(item.InteriorURL, "https://") || !strings.HasPrefix(item.CoverURL, "https://") {
		t.Fatalf("partner must receive resolvable urls: %q %q", item.InteriorURL, item.CoverURL)
	}
	if item.PageCount != 32 {
		t.Fatalf("unexpected line item page count %d", item.PageCount)
	}
	if submitted.ShippingLevel != fulfillmentdomain.ShippingLevelGround {
		t.Fatalf("unexpected shipping level %q", submitted.ShippingLevel)
	}
}

func TestProcessCountsSubmissionsNotRenders(t *testing.T) {
	f := newFixture(t)
	order := f.newOrder(t)
	ctx := context.Background()

	if err := f.svc.ConfirmPayment(ctx, order.ID, testPayment); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := f.svc.Process(ctx, order.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	families, err := f.registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		switch family.GetName() {
		case "fulfillment_documents_rendered_total":
			// Renders are counted inside the renderer. The orchestrator
			// must not count them a second time.
			for _, m := range family.GetMetric() {
				if m.GetCounter().GetValue() != 0 {
					t.Fatalf("orchestrator incremented render counter: %v", m)
				}
			}
		case "fulfillment_jobs_submitted_total":
			var total float64
			for _, m := range family.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			if total != 1 {
				t.Fatalf("expected one submission counted, got %v", total)
			}
		}
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	f := newFixture(t)
	order := f.newOrder(t)
	ctx := context.Background()

	if err := f.svc.ConfirmPayment(ctx, order.ID, testPayment); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := f.svc.Process(ctx, order.ID); err != nil {
		t.Fatalf("first process: %v", err)
	}
	if err := f.svc.Process(ctx, order.ID); err != nil {
		t.Fatalf("second process: %v", err)
	}
	if f.fulfillment.submitCalls != 1 {
		t.Fatalf("expected exactly one submission, got %d", f.fulfillment.submitCalls)
	}
}

func TestProcessRequiresPayment(t *testing.T) {
	f := newFixture(t)
	order := f.newOrder(t)

	if err := f.svc.Process(context.Background(), order.ID); !errors.Is(err, orderdomain.ErrOrderNotReady) {
		t.Fatalf("expected ErrOrderNotReady, got %v", err)
	}
}

func TestProcessFailedSubmissionStaysRetryable(t *testing.T) {
	f := newFixture(t)
	order := f.newOrder(t)
	ctx := context.Background()

	if err := f.svc.ConfirmPayment(ctx, order.ID, testPayment); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	f.fulfillment.submitErr = fulfillmentdomain.ErrSubmission
	if err := f.svc.Process(ctx, order.ID); !errors.Is(err, fulfillmentdomain.ErrSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
	if got := f.reload(t, order.ID); got.Status != orderdomain.StatusProcessing {
		t.Fatalf("failed submission should stay in processing, got %q", got.Status)
	}

	f.fulfillment.submitErr = nil
	if err := f.svc.Process(ctx, order.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := f.reload(t, order.ID); got.Status != orderdomain.StatusSubmitted {
		t.Fatalf("retry should submit, got %q", got.Status)
	}
}

func submitOrder(t *testing.T, f *fixture) *orderdomain.Order {
	t.Helper()
	order := f.newOrder(t)
	ctx := context.Background()
	if err := f.svc.ConfirmPayment(ctx, order.ID, testPayment); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := f.svc.Process(ctx, order.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	return f.reload(t, order.ID)
}

func TestApplyPrintStatusMovesToProduction(t *testing.T) {
	f := newFixture(t)
	order := submitOrder(t, f)

	if err := f.svc.ApplyPrintStatus(context.Background(), *order.PrintJobID, fulfillmentdomain.JobStatusInProduction, fulfillmentdomain.Tracking{}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := f.reload(t, order.ID); got.Status != orderdomain.StatusInProduction {
		t.Fatalf("unexpected status %q", got.Status)
	}
}

func TestApplyPrintStatusShippedRecordsTracking(t *testing.T) {
	f := newFixture(t)
	order := submitOrder(t, f)

	// The notification carries tracking; a partner outage must not lose it.
	f.fulfillment.statusErr = errors.New("partner unavailable")
	tracking := fulfillmentdomain.Tracking{
		Number: "1Z999AA10123456784",
		URL:    "https://track.example.com/1Z999AA10123456784",
	}

	if err := f.svc.ApplyPrintStatus(context.Background(), *order.PrintJobID, fulfillmentdomain.JobStatusShipped, tracking); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got := f.reload(t, order.ID)
	if got.Status != orderdomain.StatusShipped {
		t.Fatalf("unexpected status %q", got.Status)
	}
	if got.TrackingNumber != "1Z999AA10123456784" {
		t.Fatalf("tracking not persisted: %q", got.TrackingNumber)
	}
	if got.TrackingURL != "https://track.example.com/1Z999AA10123456784" {
		t.Fatalf("tracking url not persisted: %q", got.TrackingURL)
	}
	if len(f.notifier.notices) != 1 {
		t.Fatalf("expected one shipment notice, got %d", len(f.notifier.notices))
	}
	if f.notifier.notices[0].ToEmail != "maya@example.com" {
		t.Fatalf("unexpected recipient %q", f.notifier.notices[0].ToEmail)
	}
	if f.notifier.notices[0].TrackingNumber != "1Z999AA10123456784" {
		t.Fatalf("notice missing tracking: %q", f.notifier.notices[0].TrackingNumber)
	}

	// Replayed delivery is a no-op.
	if err := f.svc.ApplyPrintStatus(context.Background(), *order.PrintJobID, fulfillmentdomain.JobStatusShipped, tracking); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(f.notifier.notices) != 1 {
		t.Fatalf("replay must not notify again, got %d notices", len(f.notifier.notices))
	}
}

func TestApplyPrintStatusShippedPollsWhenTrackingMissing(t *testing.T) {
	f := newFixture(t)
	order := submitOrder(t, f)

	f.fulfillment.statusJob = &fulfillmentdomain.Job{
		ID:     *order.PrintJobID,
		Status: fulfillmentdomain.JobStatusShipped,
		LineItems: []fulfillmentdomain.JobLineItem{{
			TrackingID:   "1Z999AA10123456784",
			TrackingURLs: []string{"https://track.example.com/1Z999AA10123456784"},
			Status:       fulfillmentdomain.JobStatusShipped,
		}},
	}

	if err := f.svc.ApplyPrintStatus(context.Background(), *order.PrintJobID, fulfillmentdomain.JobStatusShipped, fulfillmentdomain.Tracking{}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got := f.reload(t, order.ID)
	if got.TrackingNumber != "1Z999AA10123456784" {
		t.Fatalf("tracking not recovered from the partner: %q", got.TrackingNumber)
	}
}

func TestApplyPrintStatusShippedReplayBackfillsTracking(t *testing.T) {
	f := newFixture(t)
	order := submitOrder(t, f)
	ctx := context.Background()

	// First delivery carries no tracking and the partner is down, so the
	// order ships without a tracking number.
	f.fulfillment.statusErr = errors.New("partner unavailable")
	if err := f.svc.ApplyPrintStatus(ctx, *order.PrintJobID, fulfillmentdomain.JobStatusShipped, fulfillmentdomain.Tracking{}); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if got := f.reload(t, order.ID); got.TrackingNumber != "" {
		t.Fatalf("unexpected tracking %q", got.TrackingNumber)
	}

	// A redelivery with tracking fills in the gap even though the status
	// already matches.
	tracking := fulfillmentdomain.Tracking{
		Number: "1Z999AA10123456784",
		URL:    "https://track.example.com/1Z999AA10123456784",
	}
	if err := f.svc.ApplyPrintStatus(ctx, *order.PrintJobID, fulfillmentdomain.JobStatusShipped, tracking); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	got := f.reload(t, order.ID)
	if got.TrackingNumber != "1Z999AA10123456784" {
		t.Fatalf("redelivery did not backfill tracking: %q", got.TrackingNumber)
	}
	if len(f.notifier.notices) != 1 {
		t.Fatalf("redelivery must not notify again, got %d notices", len(f.notifier.notices))
	}
}

func TestApplyPrintStatusRejectionCancels(t *testing.T) {
	f := newFixture(t)
	order := submitOrder(t, f)

	if err := f.svc.ApplyPrintStatus(context.Background(), *order.PrintJobID, fulfillmentdomain.JobStatusRejected, fulfillmentdomain.Tracking{}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := f.reload(t, order.ID); got.Status != orderdomain.StatusCancelled {
		t.Fatalf("unexpected status %q", got.Status)
	}
}

func TestApplyPrintStatusUnknownFallsBack(t *testing.T) {
	f := newFixture(t)
	order := submitOrder(t, f)

	if err := f.svc.ApplyPrintStatus(context.Background(), *order.PrintJobID, fulfillmentdomain.JobStatus("HOLOGRAM_QA"), fulfillmentdomain.Tracking{}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := f.reload(t, order.ID); got.Status != orderdomain.StatusProcessing {
		t.Fatalf("unknown partner status should fall back to processing, got %q", got.Status)
	}
}

func TestApplyPrintStatusUnknownJob(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.ApplyPrintStatus(context.Background(), 424242, fulfillmentdomain.JobStatusShipped, fulfillmentdomain.Tracking{}); !errors.Is(err, orderdomain.ErrUnknownPrintJob) {
		t.Fatalf("expected ErrUnknownPrintJob, got %v", err)
	}
}

func TestCancelShippedOrderRejected(t *testing.T) {
	f := newFixture(t)
	order := submitOrder(t, f)

	if err := f.svc.ApplyPrintStatus(context.Background(), *order.PrintJobID, fulfillmentdomain.JobStatusShipped, fulfillmentdomain.Tracking{}); err != nil {
		t.Fatalf("ship: %v", err)
	}
	if err := f.svc.Cancel(context.Background(), order.ID); !errors.Is(err, orderdomain.ErrAlreadyShipped) {
		t.Fatalf("expected ErrAlreadyShipped, got %v", err)
	}
}

func TestMarkDelivered(t *testing.T) {
	f := newFixture(t)
	order := submitOrder(t, f)
	ctx := context.Background()

	if err := f.svc.ApplyPrintStatus(ctx, *order.PrintJobID, fulfillmentdomain.JobStatusShipped, fulfillmentdomain.Tracking{}); err != nil {
		t.Fatalf("ship: %v", err)
	}
	if err := f.svc.MarkDelivered(ctx, order.ID); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := f.svc.MarkDelivered(ctx, order.ID); err != nil {
		t.Fatalf("replayed deliver: %v", err)
	}
	if got := f.reload(t, order.ID); got.Status != orderdomain.StatusDelivered {
		t.Fatalf("unexpected status %q", got.Status)
	}
}
