package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"

	fulfillmentdomain "github.com/boilermanc/onceuponadrawing/internal/fulfillment/domain"
)

// CreateOrderRequest carries everything needed to open a pending order.
type CreateOrderRequest struct {
	CreationID    snowflake.ID
	CustomerEmail string
	CustomerName  string
	BookType      string
	Quantity      int
	ShippingLevel string
	Shipping      fulfillmentdomain.Address
}

// PaymentConfirmation records what the payment gateway reported for an
// order.
type PaymentConfirmation struct {
	Ref         string
	AmountCents int64
	Currency    string
}

type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (*Order, error)
	Get(ctx context.Context, id snowflake.ID) (*Order, error)

	// ConfirmPayment moves a pending order to payment_received. Replays
	// are silent no-ops.
	ConfirmPayment(ctx context.Context, id snowflake.ID, pay PaymentConfirmation) error

	// Process renders the documents, stores them, quotes shipping and
	// submits the print job. Failures leave the order in processing so
	// the operation can be retried.
	Process(ctx context.Context, id snowflake.ID) error

	// ApplyPrintStatus reacts to a partner status change for a submitted
	// print job. Tracking data delivered with the notification is
	// persisted directly; the partner is only polled when the
	// notification carried none.
	ApplyPrintStatus(ctx context.Context, printJobID int64, status fulfillmentdomain.JobStatus, tracking fulfillmentdomain.Tracking) error

	// MarkDelivered closes out a shipped order.
	MarkDelivered(ctx context.Context, id snowflake.ID) error

	// Cancel aborts an order that has not shipped yet.
	Cancel(ctx context.Context, id snowflake.ID) error
}

var (
	ErrOrderNotFound      = errors.New("order_not_found")
	ErrCreationNotFound   = errors.New("creation_not_found")
	ErrInvalidOrder       = errors.New("invalid_order")
	ErrInvalidTransition  = errors.New("invalid_transition")
	ErrOrderNotPayable    = errors.New("order_not_payable")
	ErrOrderNotReady      = errors.New("order_not_ready")
	ErrAlreadyShipped     = errors.New("order_already_shipped")
	ErrUnknownPrintJob    = errors.New("unknown_print_job")
	ErrShippingLevelUnset = errors.New("shipping_level_unavailable")
)
