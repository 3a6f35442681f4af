// Package stripe adapts Stripe checkout webhooks into canonical payment
// events. Only completed checkout sessions tagged as book orders are
// processed; everything else is ignored.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"

	paymentdomain "github.com/boilermanc/onceuponadrawing/internal/payment/domain"
	"github.com/boilermanc/onceuponadrawing/internal/webhook"
)

const (
	providerName    = "stripe"
	signatureHeader = "Stripe-Signature"

	eventCheckoutCompleted = "checkout.session.completed"
	orderTypeBook          = "book_order"
)

type factory struct{}

func NewFactory() paymentdomain.AdapterFactory { return factory{} }

func (factory) Provider() string { return providerName }

func (factory) NewAdapter(config paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	if strings.TrimSpace(config.WebhookSecret) == "" {
		return nil, webhook.ErrMissingSecret
	}
	return &adapter{
		secret:    config.WebhookSecret,
		tolerance: config.Tolerance,
	}, nil
}

type adapter struct {
	secret    string
	tolerance time.Duration
}

func (a *adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	err := webhook.VerifyTimestamped(payload, headers.Get(signatureHeader), a.secret, a.tolerance)
	if err != nil {
		if errors.Is(err, webhook.ErrStaleTimestamp) || errors.Is(err, webhook.ErrMalformedHeader) {
			return err
		}
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			AmountTotal int64             `json:"amount_total"`
			Currency    string            `json:"currency"`
			Metadata    map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (a *adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	if event.Type != eventCheckoutCompleted {
		return nil, paymentdomain.ErrEventIgnored
	}

	metadata := event.Data.Object.Metadata
	if metadata["order_type"] != orderTypeBook {
		return nil, paymentdomain.ErrEventIgnored
	}

	orderID, err := parseOrderID(metadata["order_id"])
	if err != nil {
		return nil, paymentdomain.ErrInvalidEvent
	}

	occurredAt := time.Unix(event.Created, 0).UTC()
	if event.Created == 0 {
		occurredAt = time.Now().UTC()
	}

	return &paymentdomain.PaymentEvent{
		Provider:        providerName,
		ProviderEventID: event.ID,
		Type:            paymentdomain.EventTypePaymentSucceeded,
		OrderID:         orderID,
		Amount:          event.Data.Object.AmountTotal,
		Currency:        strings.ToUpper(event.Data.Object.Currency),
		OccurredAt:      occurredAt,
	}, nil
}

func parseOrderID(raw string) (snowflake.ID, error) {
	parsed, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || parsed == 0 {
		return 0, paymentdomain.ErrInvalidEvent
	}
	return snowflake.ID(parsed), nil
}
