package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	paymentdomain "github.com/boilermanc/onceuponadrawing/internal/payment/domain"
	"github.com/boilermanc/onceuponadrawing/internal/webhook"
)

const testSecret = "whsec_test"

func newAdapter(t *testing.T) paymentdomain.PaymentAdapter {
	t.Helper()
	adapter, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{
		Provider:      "stripe",
		WebhookSecret: testSecret,
		Tolerance:     5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter
}

func signedHeaders(t *testing.T, body []byte, issuedAt time.Time) http.Header {
	t.Helper()
	timestamp := issuedAt.Unix()
	signed := fmt.Sprintf("%d.%s", timestamp, body)
	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", timestamp, webhook.Sign([]byte(signed), testSecret)))
	return headers
}

func checkoutPayload(orderID, orderType string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"created": 1735689600,
		"data": {"object": {
			"amount_total": 3499,
			"currency": "usd",
			"metadata": {"order_id": %q, "order_type": %q}
		}}
	}`, orderID, orderType))
}

func TestVerifyAcceptsSignedPayload(t *testing.T) {
	adapter := newAdapter(t)
	body := checkoutPayload("123456789", "book_order")

	if err := adapter.Verify(context.Background(), body, signedHeaders(t, body, time.Now())); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	adapter := newAdapter(t)
	body := checkoutPayload("123456789", "book_order")
	headers := signedHeaders(t, body, time.Now())

	tampered := checkoutPayload("999999999", "book_order")
	if err := adapter.Verify(context.Background(), tampered, headers); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	adapter := newAdapter(t)
	body := checkoutPayload("123456789", "book_order")
	headers := signedHeaders(t, body, time.Now().Add(-time.Hour))

	if err := adapter.Verify(context.Background(), body, headers); !errors.Is(err, webhook.ErrStaleTimestamp) {
		t.Fatalf("expected ErrStaleTimestamp, got %v", err)
	}
}

func TestParseCompletedCheckout(t *testing.T) {
	adapter := newAdapter(t)

	event, err := adapter.Parse(context.Background(), checkoutPayload("123456789", "book_order"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.ProviderEventID != "evt_1" {
		t.Fatalf("unexpected event id %q", event.ProviderEventID)
	}
	if int64(event.OrderID) != 123456789 {
		t.Fatalf("unexpected order id %d", event.OrderID)
	}
	if event.Amount != 3499 || event.Currency != "USD" {
		t.Fatalf("unexpected amount %d %q", event.Amount, event.Currency)
	}
	if event.Type != paymentdomain.EventTypePaymentSucceeded {
		t.Fatalf("unexpected type %q", event.Type)
	}
}

func TestParseIgnoresOtherEventTypes(t *testing.T) {
	adapter := newAdapter(t)
	payload := []byte(`{"id":"evt_2","type":"invoice.paid","data":{"object":{}}}`)

	if _, err := adapter.Parse(context.Background(), payload); !errors.Is(err, paymentdomain.ErrEventIgnored) {
		t.Fatalf("expected ErrEventIgnored, got %v", err)
	}
}

func TestParseIgnoresNonBookOrders(t *testing.T) {
	adapter := newAdapter(t)

	if _, err := adapter.Parse(context.Background(), checkoutPayload("123456789", "gift_card")); !errors.Is(err, paymentdomain.ErrEventIgnored) {
		t.Fatalf("expected ErrEventIgnored, got %v", err)
	}
}

func TestParseRejectsMissingOrderID(t *testing.T) {
	adapter := newAdapter(t)

	if _, err := adapter.Parse(context.Background(), checkoutPayload("", "book_order")); !errors.Is(err, paymentdomain.ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}
