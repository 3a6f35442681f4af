package domain

import (
	"context"
	"net/http"
	"time"
)

// PaymentAdapter verifies and parses one provider's webhook deliveries.
type PaymentAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
}

// AdapterConfig carries the per-provider webhook credentials.
type AdapterConfig struct {
	Provider      string
	WebhookSecret string
	Tolerance     time.Duration
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(config AdapterConfig) (PaymentAdapter, error)
}
