// Package notify sends best-effort customer notifications. Delivery
// failures are logged and never fail the order pipeline.
package notify

import "context"

// ShipmentNotice carries everything needed for a shipped-order email.
type ShipmentNotice struct {
	ToEmail        string
	ToName         string
	BookTitle      string
	TrackingNumber string
	TrackingURL    string
}

type Notifier interface {
	OrderShipped(ctx context.Context, notice ShipmentNotice) error
}

// Noop is the notifier used when no mail provider is configured.
type Noop struct{}

func (Noop) OrderShipped(ctx context.Context, notice ShipmentNotice) error { return nil }
